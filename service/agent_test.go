package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupeNames(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "nil", input: nil, want: []string{}},
		{name: "no repeats", input: []string{"web_search", "document_search"}, want: []string{"web_search", "document_search"}},
		{
			name:  "repeats keep first-use order",
			input: []string{"web_search", "fetch_uploaded_images", "web_search", "web_search", "document_search", "fetch_uploaded_images"},
			want:  []string{"web_search", "fetch_uploaded_images", "document_search"},
		},
		{name: "blank names dropped", input: []string{"", "web_search", ""}, want: []string{"web_search"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dedupeNames(tt.input))
		})
	}
}

func TestLatestUserText(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "second"},
		{Role: RoleAssistant, Content: "another reply"},
	}
	assert.Equal(t, "second", latestUserText(turns))
	assert.Equal(t, "", latestUserText(nil))
	assert.Equal(t, "", latestUserText([]Turn{{Role: RoleAssistant, Content: "only ai"}}))
}

func TestVisionTurn(t *testing.T) {
	turns := VisionTurn("what is this part?", []string{"https://example.com/a.jpg", "https://example.com/b.jpg"})
	require.Len(t, turns, 1)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, "what is this part?", turns[0].Content)
	assert.Len(t, turns[0].Images, 2)
}

func TestRunCallbacksNilSafe(t *testing.T) {
	cb := RunCallbacks{}
	assert.NotPanics(t, func() {
		cb.thinking()
		cb.chunk("a", "a")
		cb.toolCall("web_search")
		cb.completed(&RunResult{})
		cb.failed(assert.AnError)
	})
}

func mustChunk(t *testing.T, raw string) openai.ChatCompletionChunk {
	t.Helper()
	var chunk openai.ChatCompletionChunk
	require.NoError(t, json.Unmarshal([]byte(raw), &chunk))
	return chunk
}

func TestDecodeChunkStream(t *testing.T) {
	acc := openai.ChatCompletionAccumulator{}

	// a tool call arrives, then text, then the finish chunk
	toolChunk := mustChunk(t, `{"id":"cmpl-1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"web_search","arguments":"{\"query\":\"pump\"}"}}]}}]}`)
	textChunk := mustChunk(t, `{"id":"cmpl-1","choices":[{"index":0,"delta":{"content":"Checking."}}]}`)
	doneChunk := mustChunk(t, `{"id":"cmpl-1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`)

	assert.Empty(t, decodeChunk(toolChunk, &acc))

	events := decodeChunk(textChunk, &acc)
	require.Len(t, events, 2)
	delta, ok := events[0].(eventTextDelta)
	require.True(t, ok)
	assert.Equal(t, "Checking.", delta.Delta)
	finished, ok := events[1].(eventToolCallFinished)
	require.True(t, ok)
	assert.Equal(t, "web_search", finished.Name)
	assert.Equal(t, `{"query":"pump"}`, finished.Arguments)

	events = decodeChunk(doneChunk, &acc)
	require.Len(t, events, 1)
	completed, ok := events[0].(eventMessageCompleted)
	require.True(t, ok)
	assert.Equal(t, "Checking.", completed.Content)

	// the accumulated message retains the tool call id for the execution loop
	require.Len(t, acc.Choices, 1)
	require.Len(t, acc.Choices[0].Message.ToolCalls, 1)
	assert.Equal(t, "call_1", acc.Choices[0].Message.ToolCalls[0].ID)
}

type stubGate struct {
	verdict Verdict
}

func (g stubGate) Evaluate(ctx context.Context, userText string) Verdict {
	return g.verdict
}

func TestRunDeflectsBeforeGeneration(t *testing.T) {
	a := &AgentService{
		definition: AgentDefinition{Model: "gpt-4o"},
		guard:      stubGate{verdict: Verdict{Allowed: false, Deflection: Deflections[0]}},
	}

	var completed *RunResult
	chunks := 0
	result, err := a.Run(context.Background(),
		[]Turn{{Role: RoleUser, Content: "who won the game last night?"}},
		SessionContext{ConversationID: "conv-1"},
		RunCallbacks{
			OnChunk:     func(delta, total string) { chunks++ },
			OnCompleted: func(r *RunResult) { completed = r },
		})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Deflected)
	assert.Equal(t, Deflections[0], result.Content)
	assert.NotNil(t, result.ToolsUsed)
	assert.Empty(t, result.ToolsUsed)
	assert.Zero(t, chunks)
	assert.Same(t, result, completed)
}

func TestBuildToolParams(t *testing.T) {
	// document_search only appears once knowledge bases are configured
	withoutKB := buildToolParams(nil)
	withKB := buildToolParams([]string{"kb-1"})
	assert.Len(t, withKB, len(withoutKB)+1)
}
