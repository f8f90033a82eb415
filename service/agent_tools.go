package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/openai/openai-go"
)

// Tool names reported in run metadata; the chat pipeline uses them to write
// ToolCall records.
const (
	ToolWebSearch      = "web_search"
	ToolDocumentSearch = "document_search"
	ToolFetchImages    = "fetch_uploaded_images"
)

// Tool input structs

type WebSearchInput struct {
	Query string `json:"query"`
	Url   string `json:"url,omitempty"`
}

type DocumentSearchInput struct {
	Query string `json:"query"`
}

type FetchImagesInput struct {
	Limit int `json:"limit,omitempty"`
}

// FetchImagesOutput is the tool's contract: on internal failure it returns a
// user-safe message and an empty list rather than raising.
type FetchImagesOutput struct {
	Message string     `json:"message"`
	Images  []ImageRef `json:"images"`
}

const toolResultLimit = 8000

// buildToolParams declares the fixed tool set: web search always, document
// search only when knowledge bases are configured, and the image-fetch tool
// for "the image above" style references.
func buildToolParams(knowledgeBases []string) []openai.ChatCompletionToolParam {
	tools := []openai.ChatCompletionToolParam{
		{
			Type: openai.F(openai.ChatCompletionToolTypeFunction),
			Function: openai.F(openai.FunctionDefinitionParam{
				Name:        openai.F(ToolWebSearch),
				Description: openai.F("Search the web for current information, or fetch a specific page. Use for manuals, part numbers, error codes, vendor bulletins."),
				Parameters: openai.F(openai.FunctionParameters{
					"type": "object",
					"properties": map[string]interface{}{
						"query": map[string]interface{}{"type": "string", "description": "search query"},
						"url":   map[string]interface{}{"type": "string", "description": "optional exact page URL to fetch instead of searching"},
					},
					"required": []string{"query"},
				}),
			}),
		},
		{
			Type: openai.F(openai.ChatCompletionToolTypeFunction),
			Function: openai.F(openai.FunctionDefinitionParam{
				Name:        openai.F(ToolFetchImages),
				Description: openai.F("Fetch the images the technician recently uploaded in this conversation. Use when the user refers to a photo without re-attaching it."),
				Parameters: openai.F(openai.FunctionParameters{
					"type": "object",
					"properties": map[string]interface{}{
						"limit": map[string]interface{}{"type": "integer", "description": "max images to return"},
					},
				}),
			}),
		},
	}

	if len(knowledgeBases) > 0 {
		tools = append(tools, openai.ChatCompletionToolParam{
			Type: openai.F(openai.ChatCompletionToolTypeFunction),
			Function: openai.F(openai.FunctionDefinitionParam{
				Name:        openai.F(ToolDocumentSearch),
				Description: openai.F("Search the internal knowledge base: service manuals, SOPs, past job reports."),
				Parameters: openai.F(openai.FunctionParameters{
					"type": "object",
					"properties": map[string]interface{}{
						"query": map[string]interface{}{"type": "string", "description": "search query"},
					},
					"required": []string{"query"},
				}),
			}),
		})
	}
	return tools
}

// KnowledgeBaseIDs reads the comma-separated knowledge base identifiers.
func KnowledgeBaseIDs() []string {
	raw := os.Getenv("KNOWLEDGE_BASE_IDS")
	if raw == "" {
		return nil
	}
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// executeTool dispatches one tool invocation by name.
func (a *AgentService) executeTool(ctx context.Context, session SessionContext, name, arguments string) (string, error) {
	switch name {
	case ToolWebSearch:
		var input WebSearchInput
		if err := json.Unmarshal([]byte(arguments), &input); err != nil {
			return "", fmt.Errorf("web_search input: %w", err)
		}
		return webSearch(ctx, input)
	case ToolDocumentSearch:
		var input DocumentSearchInput
		if err := json.Unmarshal([]byte(arguments), &input); err != nil {
			return "", fmt.Errorf("document_search input: %w", err)
		}
		return documentSearch(ctx, input, a.definition.KnowledgeBases)
	case ToolFetchImages:
		var input FetchImagesInput
		// tolerate empty/malformed args, the tool has usable defaults
		_ = json.Unmarshal([]byte(arguments), &input)
		return a.fetchImages(ctx, session, input), nil
	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}

// webSearch fetches a page (direct URL or via the configured search endpoint)
// and converts it to markdown, the same way the old page summarizer did.
func webSearch(ctx context.Context, input WebSearchInput) (string, error) {
	target := input.Url
	if target == "" {
		base := os.Getenv("SEARCH_URL")
		if base == "" {
			base = "https://html.duckduckgo.com/html/?q="
		}
		target = base + url.QueryEscape(input.Query)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	client := &http.Client{Timeout: 20 * time.Second}
	res, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", target, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", target, res.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(res.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	content, err := htmltomarkdown.ConvertString(string(data))
	if err != nil {
		return "", fmt.Errorf("convert body: %w", err)
	}
	return truncate(content, toolResultLimit), nil
}

// documentSearch queries the knowledge base service over all configured ids.
func documentSearch(ctx context.Context, input DocumentSearchInput, knowledgeBases []string) (string, error) {
	base := os.Getenv("KB_SEARCH_URL")
	if base == "" {
		return "", fmt.Errorf("knowledge base search not configured")
	}

	q := url.Values{}
	q.Set("query", input.Query)
	q.Set("kb_ids", strings.Join(knowledgeBases, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	client := &http.Client{Timeout: 20 * time.Second}
	res, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("kb search: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("kb search: status %d", res.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(res.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return truncate(string(data), toolResultLimit), nil
}

// fetchImages resolves the conversation's recent uploads. Failures come back
// as a friendly message with an empty list, never as an error to the model.
func (a *AgentService) fetchImages(ctx context.Context, session SessionContext, input FetchImagesInput) string {
	out := FetchImagesOutput{Images: []ImageRef{}}

	refs, err := a.images.RecentImages(ctx, session.ConversationID, input.Limit, 0)
	if err != nil {
		logger.Warnf("[agent] fetch images error, %s", err)
		out.Message = "I couldn't retrieve the uploaded images right now."
	} else if len(refs) == 0 {
		out.Message = "No images have been uploaded in this conversation yet."
	} else {
		out.Message = fmt.Sprintf("Found %d recently uploaded image(s).", len(refs))
		out.Images = refs
	}

	data, err := json.Marshal(out)
	if err != nil {
		return `{"message":"I couldn't retrieve the uploaded images right now.","images":[]}`
	}
	return string(data)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n...[truncated]"
}
