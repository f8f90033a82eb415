package service

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/getlisa/copilot-server/platform"
	"github.com/openai/openai-go"
)

// Verdict is the gate's outcome. A deflection is not an error: it is a
// defined, successful-but-redirected result.
type Verdict struct {
	Allowed    bool
	Deflection string
}

// turnGate decides whether a user turn is in scope before generation starts.
type turnGate interface {
	Evaluate(ctx context.Context, userText string) Verdict
}

// Deflections rotate so repeated off-topic questions don't read like a
// canned wall. The first entry doubles as the generic fail-closed message.
var Deflections = []string{
	"I'm your field-service copilot, so I'll stick to equipment, jobs, and repairs. What are you working on?",
	"That one's outside my toolbox, but I can help with anything about your current job or equipment.",
	"I'd better stay in my lane: diagnostics, parts, procedures. Anything on the job I can help with?",
}

type GuardrailService struct {
	rotation uint32
}

const gatePrompt = `You are a gate for a field-service assistant. Decide whether the user's message is about field service work: equipment, machinery, diagnostics, repairs, parts, installations, maintenance, safety procedures, job sites, or the technician's current job. Uploaded equipment photos and follow-up questions about them count. Answer with exactly YES or NO.`

// Evaluate classifies the latest user turn only. Blocking semantics: the main
// agent turn must not start until this resolves. Policy on classifier
// transport failure is fail-closed: deflect with the generic message rather
// than let an unchecked turn through.
func (g *GuardrailService) Evaluate(ctx context.Context, userText string) Verdict {
	params := openai.ChatCompletionNewParams{
		Model: openai.F(platform.GuardrailModel()),
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(gatePrompt),
			openai.UserMessage(userText),
		}),
		Temperature: openai.F(0.0),
		MaxTokens:   openai.F(int64(3)),
	}

	completion, err := platform.LLMClient.Chat.Completions.New(ctx, params)
	if err != nil {
		logger.Warnf("[guardrail] classification call error, failing closed: %s", err)
		return Verdict{Allowed: false, Deflection: Deflections[0]}
	}
	if len(completion.Choices) == 0 {
		logger.Warnf("[guardrail] empty classification output, failing closed")
		return Verdict{Allowed: false, Deflection: Deflections[0]}
	}

	allowed, ok := parseGateAnswer(completion.Choices[0].Message.Content)
	if !ok {
		logger.Warnf("[guardrail] unparseable classification %q, failing closed",
			completion.Choices[0].Message.Content)
		return Verdict{Allowed: false, Deflection: Deflections[0]}
	}
	if allowed {
		return Verdict{Allowed: true}
	}
	return Verdict{Allowed: false, Deflection: g.nextDeflection()}
}

func parseGateAnswer(s string) (allowed bool, ok bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(s, "YES"):
		return true, true
	case strings.HasPrefix(s, "NO"):
		return false, true
	default:
		return false, false
	}
}

func (g *GuardrailService) nextDeflection() string {
	n := atomic.AddUint32(&g.rotation, 1)
	return Deflections[int(n-1)%len(Deflections)]
}
