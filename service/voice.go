package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getlisa/copilot-server/platform"
	uuid "github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type VoiceState string

const (
	VoiceDisconnected VoiceState = "DISCONNECTED"
	VoiceConnecting   VoiceState = "CONNECTING"
	VoiceConnected    VoiceState = "CONNECTED"
	VoiceListening    VoiceState = "LISTENING"
	VoiceTranscribing VoiceState = "TRANSCRIBING"
	VoiceReasoning    VoiceState = "REASONING"
	VoiceSpeaking     VoiceState = "SPEAKING"
)

// VoiceConfig configures one duplex session.
type VoiceConfig struct {
	ConversationId     string
	UserId             *string
	Voice              string // output voice, default "alloy"
	InputFormat        string // default "pcm16"
	VADMode            string // "semantic" or "silence"
	TranscriptionModel string // default "whisper-1"
}

// VoiceHooks are side-channel observability callbacks (recording, metrics);
// they are not part of the control flow and may be nil.
type VoiceHooks struct {
	OnAudioChunk    func(chunk []byte)
	OnAssistantText func(text string)
}

// ReasoningFunc runs one reasoning turn for a transcript and returns the
// reply text.
type ReasoningFunc func(ctx context.Context, conversationId string, userId *string, text string) (string, error)

// Incoming transport events, decoded once at the websocket boundary into a
// closed set.
type voiceEventKind int

const (
	voiceEvtOther voiceEventKind = iota
	voiceEvtSessionReady
	voiceEvtTranscriptDelta
	voiceEvtTranscriptFinal
	voiceEvtAudioDelta
	voiceEvtResponseDone
	voiceEvtError
)

type voiceEvent struct {
	Kind  voiceEventKind
	Text  string
	Audio []byte
	Err   string
}

type realtimeEnvelope struct {
	Type       string `json:"type"`
	Delta      string `json:"delta,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func decodeVoiceEvent(raw []byte) voiceEvent {
	var env realtimeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return voiceEvent{Kind: voiceEvtOther}
	}
	switch env.Type {
	case "session.created", "session.updated":
		return voiceEvent{Kind: voiceEvtSessionReady}
	case "conversation.item.input_audio_transcription.delta":
		return voiceEvent{Kind: voiceEvtTranscriptDelta, Text: env.Delta}
	case "conversation.item.input_audio_transcription.completed":
		return voiceEvent{Kind: voiceEvtTranscriptFinal, Text: env.Transcript}
	case "response.audio.delta":
		audio, err := base64.StdEncoding.DecodeString(env.Delta)
		if err != nil {
			return voiceEvent{Kind: voiceEvtOther}
		}
		return voiceEvent{Kind: voiceEvtAudioDelta, Audio: audio}
	case "response.done":
		return voiceEvent{Kind: voiceEvtResponseDone}
	case "error":
		msg := "transport error"
		if env.Error != nil {
			msg = env.Error.Message
		}
		return voiceEvent{Kind: voiceEvtError, Err: msg}
	default:
		return voiceEvent{Kind: voiceEvtOther}
	}
}

// VoiceSession bridges one duplex audio/text transport to the agent. The
// websocket read loop never blocks on reasoning: turns run in their own
// goroutine and report back asynchronously.
type VoiceSession struct {
	ID     string
	config VoiceConfig
	hooks  VoiceHooks
	reason ReasoningFunc

	conn    *websocket.Conn
	writeMu sync.Mutex

	stateMu sync.RWMutex
	state   VoiceState

	// debounce: partial transcripts never start a turn while one is in
	// flight; the latest final transcript supersedes and runs afterwards
	inFlight     atomic.Bool
	pendingMu    sync.Mutex
	pendingFinal string

	stopOnce sync.Once
	done     chan struct{}
}

func (s *VoiceSession) State() VoiceState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *VoiceSession) setState(state VoiceState) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()
}

// connectVoice dials the realtime endpoint and configures the session.
func connectVoice(config VoiceConfig, hooks VoiceHooks, reason ReasoningFunc) (*VoiceSession, error) {
	session := &VoiceSession{
		ID:     uuid.New().String(),
		config: config,
		hooks:  hooks,
		reason: reason,
		state:  VoiceConnecting,
		done:   make(chan struct{}),
	}

	endpoint := os.Getenv("REALTIME_URL")
	if endpoint == "" {
		endpoint = "wss://api.openai.com/v1/realtime"
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+os.Getenv("LLM_API_KEY"))
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, _, err := websocket.DefaultDialer.Dial(
		fmt.Sprintf("%s?model=%s", endpoint, platform.RealtimeModel()), header)
	if err != nil {
		return nil, fmt.Errorf("dial realtime transport: %w", err)
	}
	session.conn = conn

	if err := session.sendJSON(session.sessionUpdate()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("configure session: %w", err)
	}

	session.setState(VoiceConnected)
	go session.readLoop()
	return session, nil
}

func (s *VoiceSession) sessionUpdate() map[string]interface{} {
	voice := s.config.Voice
	if voice == "" {
		voice = "alloy"
	}
	format := s.config.InputFormat
	if format == "" {
		format = "pcm16"
	}
	transcription := s.config.TranscriptionModel
	if transcription == "" {
		transcription = "whisper-1"
	}

	var turnDetection map[string]interface{}
	if s.config.VADMode == "semantic" {
		turnDetection = map[string]interface{}{"type": "semantic_vad"}
	} else {
		turnDetection = map[string]interface{}{
			"type":                "server_vad",
			"silence_duration_ms": 500,
		}
	}

	return map[string]interface{}{
		"type": "session.update",
		"session": map[string]interface{}{
			"voice":                       voice,
			"input_audio_format":          format,
			"turn_detection":              turnDetection,
			"input_audio_transcription":   map[string]interface{}{"model": transcription},
			"modalities":                  []string{"audio", "text"},
		},
	}
}

func (s *VoiceSession) sendJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteJSON(v)
}

func (s *VoiceSession) readLoop() {
	defer s.Stop()
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				logger.Warnf("[voice %s] transport read error, %s", s.ID, err)
			}
			return
		}

		switch event := decodeVoiceEvent(raw); event.Kind {
		case voiceEvtSessionReady:
			s.setState(VoiceListening)
		case voiceEvtTranscriptDelta:
			s.setState(VoiceTranscribing)
			s.handleTranscript(event.Text, false)
		case voiceEvtTranscriptFinal:
			s.handleTranscript(event.Text, true)
		case voiceEvtAudioDelta:
			if s.hooks.OnAudioChunk != nil {
				s.hooks.OnAudioChunk(event.Audio)
			}
		case voiceEvtResponseDone:
			s.setState(VoiceListening)
		case voiceEvtError:
			// a bad turn must not take the session down
			logger.Warnf("[voice %s] transport event error, %s", s.ID, event.Err)
		}
	}
}

// handleTranscript is the debounce stage. Partials are suppressed while a
// turn is in flight; a final transcript always supersedes the pending one and
// runs as soon as the current turn finishes.
func (s *VoiceSession) handleTranscript(text string, final bool) {
	if text == "" {
		return
	}
	if final {
		s.pendingMu.Lock()
		s.pendingFinal = text
		s.pendingMu.Unlock()
	}
	s.tryStartTurn()
}

func (s *VoiceSession) tryStartTurn() {
	if !s.inFlight.CompareAndSwap(false, true) {
		return
	}
	s.pendingMu.Lock()
	text := s.pendingFinal
	s.pendingFinal = ""
	s.pendingMu.Unlock()
	if text == "" {
		s.inFlight.Store(false)
		return
	}

	go func() {
		defer func() {
			s.inFlight.Store(false)
			// a final that arrived mid-turn supersedes; run it now
			s.tryStartTurn()
		}()

		s.setState(VoiceReasoning)
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		reply, err := s.reason(ctx, s.config.ConversationId, s.config.UserId, text)
		if err != nil {
			// swallowed: the user just doesn't hear a response for this one
			logger.Warnf("[voice %s] reasoning turn error, %s", s.ID, err)
			s.setState(VoiceListening)
			return
		}
		if reply == "" {
			s.setState(VoiceListening)
			return
		}
		if s.hooks.OnAssistantText != nil {
			s.hooks.OnAssistantText(reply)
		}
		s.speak(reply)
	}()
}

// speak pushes reply text back into the duplex session for synthesis.
func (s *VoiceSession) speak(text string) {
	s.setState(VoiceSpeaking)
	err := s.sendJSON(map[string]interface{}{
		"type": "response.create",
		"response": map[string]interface{}{
			"modalities":   []string{"audio", "text"},
			"instructions": "Say exactly the following to the user, without additions: " + text,
		},
	})
	if err != nil {
		logger.Warnf("[voice %s] speak error, %s", s.ID, err)
		s.setState(VoiceListening)
	}
}

// SendText pushes pre-transcribed text directly, bypassing STT.
func (s *VoiceSession) SendText(text string) {
	s.handleTranscript(text, true)
}

// SendAudio appends a base64 audio chunk; commit forces end-of-utterance
// processing.
func (s *VoiceSession) SendAudio(audioB64 string, commit bool) error {
	if err := s.sendJSON(map[string]interface{}{
		"type":  "input_audio_buffer.append",
		"audio": audioB64,
	}); err != nil {
		return fmt.Errorf("append audio: %w", err)
	}
	if commit {
		if err := s.sendJSON(map[string]interface{}{"type": "input_audio_buffer.commit"}); err != nil {
			return fmt.Errorf("commit audio: %w", err)
		}
	}
	return nil
}

// Stop tears the transport down synchronously. Idempotent: stopping twice is
// a no-op.
func (s *VoiceSession) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.setState(VoiceDisconnected)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}
