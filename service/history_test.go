package service

import (
	"testing"

	"github.com/getlisa/copilot-server/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleTurnsOrdering(t *testing.T) {
	messages := []model.Message{
		{SenderType: model.SenderUser, Content: "the compressor is rattling"},
		{
			SenderType:  model.SenderUser,
			Content:     "here's a photo",
			ContentType: model.ContentImage,
			Metadata: model.MessageMetadata{
				ImageSummaries: []model.ImageSummary{
					{ID: "img-1", Summary: "Compressor with a cracked mounting bracket."},
				},
			},
		},
		{SenderType: model.SenderAI, Content: "That bracket looks cracked. Replace it before running again."},
	}

	turns := assembleTurns(nil, messages)
	require.Len(t, turns, 4)

	// the stored summary replays before the message that owns it
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, "the compressor is rattling", turns[0].Content)
	assert.Equal(t, RoleAssistant, turns[1].Role)
	assert.Contains(t, turns[1].Content, "Image summary (img-1)")
	assert.Equal(t, RoleUser, turns[2].Role)
	assert.Equal(t, "here's a photo", turns[2].Content)
	assert.Equal(t, RoleAssistant, turns[3].Role)
}

func TestAssembleTurnsProfileHead(t *testing.T) {
	profile := &TechnicianProfile{FirstName: "Dana", LastName: "Reyes", Role: "technician"}
	messages := []model.Message{
		{SenderType: model.SenderUser, Content: "hello"},
	}

	turns := assembleTurns(profile, messages)
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, "Technician profile: Dana Reyes (technician).", turns[0].Content)
	assert.Equal(t, "hello", turns[1].Content)
}

func TestAssembleTurnsEmpty(t *testing.T) {
	assert.Empty(t, assembleTurns(nil, nil))
}

func TestAssembleTurnsSenderRoles(t *testing.T) {
	messages := []model.Message{
		{SenderType: model.SenderSystem, Content: "conversation resumed"},
		{SenderType: model.SenderAI, Content: "hi"},
		{SenderType: model.SenderUser, Content: "hey"},
	}
	turns := assembleTurns(nil, messages)
	require.Len(t, turns, 3)
	assert.Equal(t, RoleSystem, turns[0].Role)
	assert.Equal(t, RoleAssistant, turns[1].Role)
	assert.Equal(t, RoleUser, turns[2].Role)
}

func TestRenderImageSummary(t *testing.T) {
	tests := []struct {
		name     string
		summary  model.ImageSummary
		contains []string
		excludes []string
	}{
		{
			name: "all fields",
			summary: model.ImageSummary{
				ID:             "img-9",
				Summary:        "A rusted condenser coil.",
				Objects:        []string{"condenser", "coil"},
				Observations:   []string{"heavy rust", "bent fins"},
				InferredIssue:  "corrosion-induced leak",
				LinkedEntities: []string{"unit RTU-4"},
			},
			contains: []string{
				"Image summary (img-9):",
				"A rusted condenser coil.",
				"Objects: condenser, coil.",
				"Observations: heavy rust, bent fins.",
				"Inferred issue: corrosion-induced leak.",
				"Linked entities: unit RTU-4.",
			},
		},
		{
			name:     "absent fields omitted",
			summary:  model.ImageSummary{ID: "img-2", Summary: "A pump."},
			contains: []string{"Image summary (img-2):", "A pump."},
			excludes: []string{"Objects:", "Observations:", "Inferred issue:", "Linked entities:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderImageSummary(tt.summary)
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			for _, not := range tt.excludes {
				assert.NotContains(t, got, not)
			}
		})
	}
}
