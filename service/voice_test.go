package service

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeVoiceEvent(t *testing.T) {
	audio := base64.StdEncoding.EncodeToString([]byte{0x01, 0x02, 0x03})

	tests := []struct {
		name string
		raw  string
		want voiceEvent
	}{
		{
			name: "session created",
			raw:  `{"type":"session.created"}`,
			want: voiceEvent{Kind: voiceEvtSessionReady},
		},
		{
			name: "transcript delta",
			raw:  `{"type":"conversation.item.input_audio_transcription.delta","delta":"the comp"}`,
			want: voiceEvent{Kind: voiceEvtTranscriptDelta, Text: "the comp"},
		},
		{
			name: "transcript final",
			raw:  `{"type":"conversation.item.input_audio_transcription.completed","transcript":"the compressor is rattling"}`,
			want: voiceEvent{Kind: voiceEvtTranscriptFinal, Text: "the compressor is rattling"},
		},
		{
			name: "audio delta",
			raw:  `{"type":"response.audio.delta","delta":"` + audio + `"}`,
			want: voiceEvent{Kind: voiceEvtAudioDelta, Audio: []byte{0x01, 0x02, 0x03}},
		},
		{
			name: "audio delta with bad base64",
			raw:  `{"type":"response.audio.delta","delta":"!!!"}`,
			want: voiceEvent{Kind: voiceEvtOther},
		},
		{
			name: "response done",
			raw:  `{"type":"response.done"}`,
			want: voiceEvent{Kind: voiceEvtResponseDone},
		},
		{
			name: "error with message",
			raw:  `{"type":"error","error":{"message":"session expired"}}`,
			want: voiceEvent{Kind: voiceEvtError, Err: "session expired"},
		},
		{
			name: "error without message",
			raw:  `{"type":"error"}`,
			want: voiceEvent{Kind: voiceEvtError, Err: "transport error"},
		},
		{
			name: "unknown type ignored",
			raw:  `{"type":"rate_limits.updated"}`,
			want: voiceEvent{Kind: voiceEvtOther},
		},
		{
			name: "garbage ignored",
			raw:  `not json`,
			want: voiceEvent{Kind: voiceEvtOther},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeVoiceEvent([]byte(tt.raw)))
		})
	}
}

func newTestSession(reason ReasoningFunc) *VoiceSession {
	return &VoiceSession{
		ID:     "test-session",
		config: VoiceConfig{ConversationId: "conv-1"},
		reason: reason,
		state:  VoiceListening,
		done:   make(chan struct{}),
	}
}

func TestPartialTranscriptsNeverStartTurns(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	s := newTestSession(func(ctx context.Context, conversationId string, userId *string, text string) (string, error) {
		mu.Lock()
		calls = append(calls, text)
		mu.Unlock()
		return "", nil
	})

	s.handleTranscript("the comp", false)
	s.handleTranscript("the compressor is", false)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, calls)
}

func TestFinalTranscriptSupersedesWhileInFlight(t *testing.T) {
	firstStarted := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var calls []string
	allDone := make(chan struct{}, 2)

	s := newTestSession(func(ctx context.Context, conversationId string, userId *string, text string) (string, error) {
		mu.Lock()
		calls = append(calls, text)
		n := len(calls)
		mu.Unlock()
		if n == 1 {
			close(firstStarted)
			<-release
		}
		allDone <- struct{}{}
		return "", nil
	})

	s.handleTranscript("first question", true)
	select {
	case <-firstStarted:
	case <-time.After(time.Second):
		t.Fatal("first turn never started")
	}

	// these arrive mid-turn: the final supersedes, the partial is dropped
	s.handleTranscript("second qu", false)
	s.handleTranscript("second question", true)
	close(release)

	for i := 0; i < 2; i++ {
		select {
		case <-allDone:
		case <-time.After(time.Second):
			t.Fatal("turns did not finish")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"first question", "second question"}, calls)
}

func TestEmptyTranscriptIgnored(t *testing.T) {
	called := false
	s := newTestSession(func(ctx context.Context, conversationId string, userId *string, text string) (string, error) {
		called = true
		return "", nil
	})
	s.handleTranscript("", true)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, called)
}

func TestStopIdempotent(t *testing.T) {
	s := newTestSession(nil)
	assert.NotPanics(t, func() {
		s.Stop()
		s.Stop()
		s.Stop()
	})
	assert.Equal(t, VoiceDisconnected, s.State())
}

func TestRegistryDestroyUnknownIsNoop(t *testing.T) {
	r := NewVoiceRegistry(nil)
	assert.NotPanics(t, func() { r.Destroy("missing") })
	assert.Equal(t, 0, r.Len())
}
