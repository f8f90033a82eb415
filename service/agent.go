package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/getlisa/copilot-server/platform"
	uuid "github.com/google/uuid"
	"github.com/openai/openai-go"
)

const agentInstructions = `You are Lisa, a field-service copilot for technicians working on equipment in the field. Answer with practical, safety-conscious guidance: likely causes, diagnostic steps, parts, and procedures. Use the web_search tool for manuals and vendor information, document_search for the internal knowledge base, and fetch_uploaded_images when the technician refers to a photo they already sent. Be concise; technicians read on a phone, often with gloves on.`

// AgentDefinition is the tool-augmented agent configuration. It is built once
// per process and treated as immutable shared state; all per-turn state lives
// in the Run call.
type AgentDefinition struct {
	Model          string
	Instructions   string
	Tools          []openai.ChatCompletionToolParam
	KnowledgeBases []string
}

// SessionContext scopes one run to a conversation/user.
type SessionContext struct {
	ConversationID string
	UserID         *string
}

// RunCallbacks surface run progress to the caller's transport. Any of them
// may be nil.
type RunCallbacks struct {
	OnThinking  func()
	OnChunk     func(delta, total string)
	OnToolCall  func(name string)
	OnCompleted func(result *RunResult)
	OnError     func(err error)
}

func (cb RunCallbacks) thinking() {
	if cb.OnThinking != nil {
		cb.OnThinking()
	}
}

func (cb RunCallbacks) chunk(delta, total string) {
	if cb.OnChunk != nil {
		cb.OnChunk(delta, total)
	}
}

func (cb RunCallbacks) toolCall(name string) {
	if cb.OnToolCall != nil {
		cb.OnToolCall(name)
	}
}

func (cb RunCallbacks) completed(result *RunResult) {
	if cb.OnCompleted != nil {
		cb.OnCompleted(result)
	}
}

func (cb RunCallbacks) failed(err error) {
	if cb.OnError != nil {
		cb.OnError(err)
	}
}

// ToolRecord captures one executed tool invocation for persistence by the
// caller.
type ToolRecord struct {
	Name      string
	Arguments string
	Output    string
	Error     string
}

// RunResult is the finalized outcome of one agent turn.
type RunResult struct {
	MessageID   string
	Content     string
	Model       string
	ToolsUsed   []string
	ToolRecords []ToolRecord
	DurationMs  int64
	Deflected   bool
}

// Stream events, decoded once at the boundary so the loop below matches on a
// closed set instead of probing optional fields.
type streamEvent interface{ isStreamEvent() }

type eventTextDelta struct{ Delta string }

type eventToolCallFinished struct{ Name, Arguments string }

type eventMessageCompleted struct{ Content string }

func (eventTextDelta) isStreamEvent()        {}
func (eventToolCallFinished) isStreamEvent() {}
func (eventMessageCompleted) isStreamEvent() {}

func decodeChunk(chunk openai.ChatCompletionChunk, acc *openai.ChatCompletionAccumulator) []streamEvent {
	var events []streamEvent
	acc.AddChunk(chunk)
	if len(chunk.Choices) > 0 {
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			events = append(events, eventTextDelta{Delta: delta})
		}
	}
	if tc, ok := acc.JustFinishedToolCall(); ok {
		events = append(events, eventToolCallFinished{Name: tc.Name, Arguments: tc.Arguments})
	}
	if content, ok := acc.JustFinishedContent(); ok {
		events = append(events, eventMessageCompleted{Content: content})
	}
	return events
}

// AgentService owns the shared agent definition and runs turns against it.
type AgentService struct {
	definition AgentDefinition
	guard      turnGate
	images     *ImageService
}

// NewAgentService builds the agent once: web search always, document search
// only when knowledge bases are configured, plus the uploaded-image fetch.
func NewAgentService(guard *GuardrailService, images *ImageService) *AgentService {
	kbs := KnowledgeBaseIDs()
	return &AgentService{
		definition: AgentDefinition{
			Model:          platform.AgentModel(),
			Instructions:   agentInstructions,
			Tools:          buildToolParams(kbs),
			KnowledgeBases: kbs,
		},
		guard:  guard,
		images: images,
	}
}

const maxToolRounds = 5

// Run executes one agent turn: guardrail gate, then streamed generation with
// tool execution rounds. Text deltas are forwarded to the caller as they
// arrive; tool names are deduplicated only at finalization. Errors propagate
// to the caller without internal retry.
func (a *AgentService) Run(ctx context.Context, turns []Turn, session SessionContext, cb RunCallbacks) (*RunResult, error) {
	start := time.Now()
	cb.thinking()

	if verdict := a.guard.Evaluate(ctx, latestUserText(turns)); !verdict.Allowed {
		result := &RunResult{
			MessageID:  uuid.New().String(),
			Content:    verdict.Deflection,
			Model:      a.definition.Model,
			ToolsUsed:  []string{},
			DurationMs: time.Since(start).Milliseconds(),
			Deflected:  true,
		}
		cb.completed(result)
		return result, nil
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.F(a.definition.Model),
		Messages: openai.F(a.toMessages(turns)),
	}
	if len(a.definition.Tools) > 0 {
		params.Tools = openai.F(a.definition.Tools)
	}

	var (
		buffer    strings.Builder
		toolNames []string
		records   []ToolRecord
		finalText string
	)

	for round := 0; round < maxToolRounds; round++ {
		stream := platform.LLMClient.Chat.Completions.NewStreaming(ctx, params)
		acc := openai.ChatCompletionAccumulator{}

		for stream.Next() {
			for _, event := range decodeChunk(stream.Current(), &acc) {
				switch ev := event.(type) {
				case eventTextDelta:
					buffer.WriteString(ev.Delta)
					cb.chunk(ev.Delta, buffer.String())
				case eventToolCallFinished:
					toolNames = append(toolNames, ev.Name)
					cb.toolCall(ev.Name)
				case eventMessageCompleted:
					// some capabilities emit only a final message and no
					// deltas; keep it as the fallback text
					if ev.Content != "" {
						finalText = ev.Content
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			err = fmt.Errorf("agent stream: %w", err)
			cb.failed(err)
			return nil, err
		}
		if len(acc.Choices) == 0 {
			break
		}

		message := acc.Choices[0].Message
		if len(message.ToolCalls) == 0 {
			if message.Content != "" {
				finalText = message.Content
			}
			break
		}

		// feed tool results back and re-enter the stream
		params.Messages.Value = append(params.Messages.Value, message)
		for _, call := range message.ToolCalls {
			record := ToolRecord{Name: call.Function.Name, Arguments: call.Function.Arguments}
			output, err := a.executeTool(ctx, session, call.Function.Name, call.Function.Arguments)
			if err != nil {
				logger.Warnf("[agent] tool %s error, %s", call.Function.Name, err)
				record.Error = err.Error()
				output = fmt.Sprintf("The %s tool failed: %s", call.Function.Name, err)
			}
			record.Output = output
			records = append(records, record)
			params.Messages.Value = append(params.Messages.Value, openai.ToolMessage(call.ID, output))
		}
	}

	// prefer the explicit final output; fall back to the streamed total
	content := finalText
	if content == "" {
		content = buffer.String()
	}

	result := &RunResult{
		MessageID:   uuid.New().String(),
		Content:     content,
		Model:       a.definition.Model,
		ToolsUsed:   dedupeNames(toolNames),
		ToolRecords: records,
		DurationMs:  time.Since(start).Milliseconds(),
	}
	cb.completed(result)
	return result, nil
}

// toMessages converts turns to wire params. Turns carrying images become
// multimodal user parts; plain turns map by role.
func (a *AgentService) toMessages(turns []Turn) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	if a.definition.Instructions != "" {
		messages = append(messages, openai.SystemMessage(a.definition.Instructions))
	}
	for _, turn := range turns {
		if len(turn.Images) > 0 {
			parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(turn.Images)+1)
			if turn.Content != "" {
				parts = append(parts, openai.TextPart(turn.Content))
			}
			for _, image := range turn.Images {
				parts = append(parts, openai.ImagePart(image))
			}
			messages = append(messages, openai.UserMessageParts(parts...))
			continue
		}
		switch turn.Role {
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}
	return messages
}

// VisionTurn builds the single-turn input for an image question. Prior
// history is intentionally omitted so unrelated context doesn't leak into the
// image analysis.
func VisionTurn(text string, imageURLs []string) []Turn {
	return []Turn{{Role: RoleUser, Content: text, Images: imageURLs}}
}

func latestUserText(turns []Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleUser {
			return turns[i].Content
		}
	}
	return ""
}

// dedupeNames keeps first-use order; a tool invoked three times reports once.
func dedupeNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
