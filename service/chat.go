package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/getlisa/copilot-server/lib"
	"github.com/getlisa/copilot-server/model"
	"github.com/gin-gonic/gin"
	uuid "github.com/google/uuid"
)

// ChatRequest is one inbound user turn.
type ChatRequest struct {
	ConversationId string   `json:"conversation_id"`
	JobId          string   `json:"job_id"`
	Text           string   `json:"text"`
	ImageURLs      []string `json:"image_urls,omitempty"`
}

// ChatService wires the turn pipeline: validate, persist the user turn,
// assemble history, gate, run the agent with SSE streaming, persist the
// result.
type ChatService struct {
	agent   *AgentService
	history *HistoryService
}

func NewChatService(agent *AgentService, history *HistoryService) *ChatService {
	return &ChatService{agent: agent, history: history}
}

var ErrEmptyMessage = errors.New("message text must not be empty")

// sseEvent is one line on the stream back to the caller.
type sseEvent struct {
	Type    string      `json:"type"` // thinking | chunk | tool | done | error
	Delta   string      `json:"delta,omitempty"`
	Name    string      `json:"name,omitempty"`
	Message interface{} `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeSSE(c *gin.Context, flusher http.Flusher, event sseEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	flusher.Flush()
}

// HandleTurn runs one full conversational turn and streams the answer over
// SSE. Validation errors are rejected before any model call.
func (s *ChatService) HandleTurn(c *gin.Context, userId *string, req ChatRequest) error {
	if req.Text == "" {
		return ErrEmptyMessage
	}

	conv, err := s.resolveConversation(userId, req)
	if err != nil {
		return err
	}

	userMessage := userMessageForRequest(conv.ID, userId, req)
	if err := model.CreateMessageWithConversationUpdate(userMessage); err != nil {
		return fmt.Errorf("persist user message: %w", err)
	}

	// vision turns carry the image and the question only; text turns carry
	// bounded history
	var turns []Turn
	if len(req.ImageURLs) > 0 {
		turns = VisionTurn(req.Text, req.ImageURLs)
	} else {
		turns, err = s.history.BuildHistory(c.Request.Context(), conv.ID, DefaultHistoryLimit)
		if err != nil {
			return err
		}
	}

	promptTokens := EstimateTokens(turns, s.agent.definition.Model)
	logger.Infof("[%s] turn on conversation %s, ~%d prompt tokens",
		c.GetString("requestId"), conv.ID, promptTokens)

	w := c.Writer
	flusher, ok := w.(http.Flusher)
	if !ok {
		return errors.New("get Writer flusher error")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	session := SessionContext{ConversationID: conv.ID, UserID: userId}
	callbacks := RunCallbacks{
		OnThinking: func() {
			writeSSE(c, flusher, sseEvent{Type: "thinking"})
		},
		OnChunk: func(delta, total string) {
			writeSSE(c, flusher, sseEvent{Type: "chunk", Delta: delta})
		},
		OnToolCall: func(name string) {
			writeSSE(c, flusher, sseEvent{Type: "tool", Name: name})
		},
		OnError: func(err error) {
			writeSSE(c, flusher, sseEvent{Type: "error", Error: "The assistant is unavailable right now."})
		},
	}

	result, err := s.agent.Run(c.Request.Context(), turns, session, callbacks)
	if err != nil {
		logger.Warnf("[%s] agent run error, %s", c.GetString("requestId"), err)
		return err
	}

	aiMessage := s.persistResult(c.GetString("requestId"), conv.ID, result, promptTokens)
	writeSSE(c, flusher, sseEvent{Type: "done", Message: aiMessage})
	return nil
}

// userMessageForRequest builds the persisted user turn. A turn carrying image
// URLs is an IMAGE message with the URLs as attachments, so the references
// survive into history and the image-listing fallback.
func userMessageForRequest(conversationId string, userId *string, req ChatRequest) *model.Message {
	message := &model.Message{
		ConversationId: conversationId,
		SenderType:     model.SenderUser,
		SenderId:       userId,
		Content:        req.Text,
		ContentType:    model.ContentText,
	}
	if len(req.ImageURLs) > 0 {
		message.ContentType = model.ContentImage
		attachments := make(model.Attachments, 0, len(req.ImageURLs))
		for _, imageURL := range req.ImageURLs {
			attachments = append(attachments, model.Attachment{
				ID:  uuid.New().String(),
				Url: imageURL,
			})
		}
		message.Attachments = attachments
	}
	return message
}

// resolveConversation either loads the referenced conversation or creates the
// ACTIVE one for (user, job).
func (s *ChatService) resolveConversation(userId *string, req ChatRequest) (*model.Conversation, error) {
	if req.ConversationId != "" {
		return model.GetConversation(req.ConversationId)
	}
	if req.JobId == "" {
		return nil, errors.New("conversation_id or job_id is required")
	}
	return model.GetOrCreateActiveConversation(userId, req.JobId, "chat", nil)
}

// persistResult writes the AI message and its tool call records. A generated
// response whose write fails is a reportable inconsistency: logged loudly and
// alerted, never dropped silently.
func (s *ChatService) persistResult(requestId, conversationId string, result *RunResult, promptTokens int) *model.Message {
	aiMessage := &model.Message{
		ID:             result.MessageID,
		ConversationId: conversationId,
		SenderType:     model.SenderAI,
		Content:        result.Content,
		ContentType:    model.ContentText,
		Metadata: model.MessageMetadata{
			Model:            result.Model,
			PromptTokens:     promptTokens,
			CompletionTokens: EstimateTokens([]Turn{{Role: RoleAssistant, Content: result.Content}}, result.Model),
			ToolsUsed:        result.ToolsUsed,
			DurationMs:       result.DurationMs,
		},
	}
	if err := model.CreateMessageWithConversationUpdate(aiMessage); err != nil {
		logger.Errorf("[%s] INCONSISTENCY: generated response for conversation %s was not persisted, %s",
			requestId, conversationId, err)
		lib.SendAlert("copilot: dropped AI response write",
			fmt.Sprintf("conversation %s, request %s: %s", conversationId, requestId, err))
		return aiMessage
	}

	for _, record := range result.ToolRecords {
		call, err := model.RecordToolCall(aiMessage.ID, record.Name, model.JSONMap{"arguments": record.Arguments})
		if err != nil {
			logger.Warnf("[%s] record tool call %s error, %s", requestId, record.Name, err)
			continue
		}
		if record.Error != "" {
			if err := model.FailToolCall(call.ID, record.Error); err != nil {
				logger.Warnf("[%s] fail tool call %s error, %s", requestId, call.ID, err)
			}
			continue
		}
		if err := model.CompleteToolCall(call.ID, model.JSONMap{"result": record.Output}); err != nil {
			logger.Warnf("[%s] complete tool call %s error, %s", requestId, call.ID, err)
		}
	}
	return aiMessage
}

// RunTurnText is the non-streaming variant used by the voice bridge: history
// plus the transcript, final text only.
func (s *ChatService) RunTurnText(ctx context.Context, conversationId string, userId *string, text string) (string, error) {
	if text == "" {
		return "", ErrEmptyMessage
	}
	userMessage := &model.Message{
		ConversationId: conversationId,
		SenderType:     model.SenderUser,
		SenderId:       userId,
		Content:        text,
		ContentType:    model.ContentAudio,
	}
	if err := model.CreateMessageWithConversationUpdate(userMessage); err != nil {
		return "", fmt.Errorf("persist transcript: %w", err)
	}

	turns, err := s.history.BuildHistory(ctx, conversationId, DefaultHistoryLimit)
	if err != nil {
		return "", err
	}
	session := SessionContext{ConversationID: conversationId, UserID: userId}
	result, err := s.agent.Run(ctx, turns, session, RunCallbacks{})
	if err != nil {
		return "", err
	}
	s.persistResult("voice", conversationId, result, EstimateTokens(turns, result.Model))
	return result.Content, nil
}
