package service

import (
	"testing"

	"github.com/getlisa/copilot-server/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{name: "bare object", input: `{"summary":"x"}`, want: `{"summary":"x"}`, ok: true},
		{name: "prose around object", input: "Sure! Here you go:\n{\"summary\":\"x\"}\nHope that helps.", want: `{"summary":"x"}`, ok: true},
		{name: "fenced output", input: "```json\n{\"a\":1}\n```", want: `{"a":1}`, ok: true},
		{name: "no object", input: "I cannot describe this image.", ok: false},
		{name: "empty", input: "", ok: false},
		{name: "brace order wrong", input: "} nothing {", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSONObject(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNormalizeSummaryDefaults(t *testing.T) {
	s := NormalizeSummary(&model.ImageSummary{Summary: "a pump"})
	require.NotNil(t, s)
	assert.Equal(t, "user_upload", s.Source)
	assert.NotNil(t, s.Objects)
	assert.NotNil(t, s.Observations)
	assert.NotNil(t, s.LinkedEntities)
	assert.Empty(t, s.Objects)
}

func TestNormalizeSummaryClampsConfidence(t *testing.T) {
	assert.Equal(t, 0.0, NormalizeSummary(&model.ImageSummary{Confidence: -0.3}).Confidence)
	assert.Equal(t, 1.0, NormalizeSummary(&model.ImageSummary{Confidence: 2.5}).Confidence)
	assert.Equal(t, 0.7, NormalizeSummary(&model.ImageSummary{Confidence: 0.7}).Confidence)
}

func TestNormalizeSummaryIdempotent(t *testing.T) {
	s := &model.ImageSummary{
		ID:         "img-1",
		Summary:    "a valve",
		Objects:    []string{"valve"},
		Confidence: 1.4,
	}
	once := *NormalizeSummary(s)
	twice := *NormalizeSummary(&once)
	assert.Equal(t, once, twice)
}

func TestNormalizeSummaryNil(t *testing.T) {
	assert.Nil(t, NormalizeSummary(nil))
}
