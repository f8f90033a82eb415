package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/getlisa/copilot-server/model"
	"github.com/getlisa/copilot-server/platform"
	"github.com/openai/openai-go"
)

type SummarizerService struct{}

const summaryInstruction = `Describe this field-service equipment photo. Respond with a single JSON object and nothing else, with exactly these keys:
"source" (always "user_upload"), "summary" (2-4 sentences), "objects" (array of visible objects), "observations" (array of notable conditions), "inferred_issue" (string), "confidence" (number 0-1), "linked_entities" (array of related equipment/part names).`

// Summarize produces a structured description of a retrievable image, used to
// compress image content into reusable text for later turns. Best-effort: any
// transport or parse failure returns nil, never an error; a missing summary
// must not block the upload flow.
func (s *SummarizerService) Summarize(ctx context.Context, imageURL string) *model.ImageSummary {
	params := openai.ChatCompletionNewParams{
		Model: openai.F(platform.VisionModel()),
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.UserMessageParts(
				openai.TextPart(summaryInstruction),
				openai.ImagePart(imageURL),
			),
		}),
		Temperature: openai.F(0.2),
	}

	completion, err := platform.LLMClient.Chat.Completions.New(ctx, params)
	if err != nil {
		logger.Warnf("[summarizer] vision call error, %s", err)
		return nil
	}
	if len(completion.Choices) == 0 {
		return nil
	}

	raw, ok := extractJSONObject(completion.Choices[0].Message.Content)
	if !ok {
		logger.Warnf("[summarizer] no JSON object in vision output")
		return nil
	}

	var summary model.ImageSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		logger.Warnf("[summarizer] parse vision output error, %s", err)
		return nil
	}
	return NormalizeSummary(&summary)
}

// extractJSONObject pulls the first-{ .. last-} substring so extraneous prose
// around the object doesn't break parsing.
func extractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// NormalizeSummary defaults optional arrays to empty slices and optional
// strings to empty strings so consumers never branch on missing vs. empty.
// Idempotent: normalizing a normalized summary changes nothing.
func NormalizeSummary(s *model.ImageSummary) *model.ImageSummary {
	if s == nil {
		return nil
	}
	if s.Source == "" {
		s.Source = "user_upload"
	}
	if s.Objects == nil {
		s.Objects = []string{}
	}
	if s.Observations == nil {
		s.Observations = []string{}
	}
	if s.LinkedEntities == nil {
		s.LinkedEntities = []string{}
	}
	if s.Confidence < 0 {
		s.Confidence = 0
	}
	if s.Confidence > 1 {
		s.Confidence = 1
	}
	return s
}
