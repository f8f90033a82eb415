package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/getlisa/copilot-server/model"
	"github.com/getlisa/copilot-server/platform"
	"golang.org/x/sync/errgroup"
)

var logger = platform.Logger

// Turn is one role-tagged unit of conversational input/output handed to the
// generation capability.
type Turn struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"` // resolved URLs or data URLs, vision turns only
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// TechnicianProfile is the synthesized head-of-history turn.
type TechnicianProfile struct {
	FirstName string
	LastName  string
	Role      string
}

type HistoryService struct{}

const DefaultHistoryLimit = 20

// BuildHistory returns the bounded, ordered turn list for a conversation:
// optional technician profile first, then the most recent messages in
// chronological order, with stored image summaries expanded into synthetic
// assistant turns before their owning message. Read-only and safe to call
// concurrently.
func (s *HistoryService) BuildHistory(ctx context.Context, conversationId string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var (
		messages []model.Message
		profile  *TechnicianProfile
	)

	// The two reads are independent; run them together. The profile is a
	// best-effort enrichment and must not fail the build.
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		messages, err = model.ListRecentMessages(conversationId, limit)
		return err
	})
	g.Go(func() error {
		profile = fetchProfile(conversationId)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build history: %w", err)
	}

	return assembleTurns(profile, messages), nil
}

func fetchProfile(conversationId string) *TechnicianProfile {
	conv, err := model.GetConversation(conversationId)
	if err != nil || conv.UserId == nil {
		return nil
	}
	id, err := strconv.ParseInt(*conv.UserId, 10, 64)
	if err != nil {
		return nil
	}
	user, err := model.GetUserByID(id)
	if err != nil {
		return nil
	}
	if user.FirstName == "" && user.LastName == "" {
		return nil
	}
	return &TechnicianProfile{FirstName: user.FirstName, LastName: user.LastName, Role: string(user.Role)}
}

// assembleTurns is the pure core of the assembler, split out so ordering can
// be tested without a database.
func assembleTurns(profile *TechnicianProfile, messages []model.Message) []Turn {
	turns := make([]Turn, 0, len(messages)+1)

	if profile != nil {
		turns = append(turns, Turn{
			Role: RoleUser,
			Content: fmt.Sprintf("Technician profile: %s %s (%s).",
				profile.FirstName, profile.LastName, profile.Role),
		})
	}

	for _, msg := range messages {
		// stored image summaries replay before the owning message's own turn
		for _, summary := range msg.Metadata.ImageSummaries {
			turns = append(turns, Turn{
				Role:    RoleAssistant,
				Content: renderImageSummary(summary),
			})
		}

		role := RoleUser
		switch msg.SenderType {
		case model.SenderAI:
			role = RoleAssistant
		case model.SenderSystem:
			role = RoleSystem
		}
		turns = append(turns, Turn{Role: role, Content: msg.Content})
	}
	return turns
}

// renderImageSummary compresses a structured summary into one compact line,
// omitting absent fields.
func renderImageSummary(s model.ImageSummary) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Image summary (%s):", s.ID))
	if s.Summary != "" {
		b.WriteString(" " + s.Summary)
	}
	if len(s.Objects) > 0 {
		b.WriteString(" Objects: " + strings.Join(s.Objects, ", ") + ".")
	}
	if len(s.Observations) > 0 {
		b.WriteString(" Observations: " + strings.Join(s.Observations, ", ") + ".")
	}
	if s.InferredIssue != "" {
		b.WriteString(" Inferred issue: " + s.InferredIssue + ".")
	}
	if len(s.LinkedEntities) > 0 {
		b.WriteString(" Linked entities: " + strings.Join(s.LinkedEntities, ", ") + ".")
	}
	return b.String()
}
