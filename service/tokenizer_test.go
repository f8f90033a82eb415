package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlattenText(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleUser, Content: "", Images: []string{"https://x/a.png"}},
		{Role: RoleAssistant, Content: "hi there"},
	}
	assert.Equal(t, []string{"hello", "hi there"}, flattenText(turns))
	assert.Empty(t, flattenText(nil))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(nil, "gpt-4o"))

	short := EstimateTokens([]Turn{{Role: RoleUser, Content: "hi"}}, "gpt-4o")
	long := EstimateTokens([]Turn{{
		Role:    RoleUser,
		Content: "The rooftop unit is short-cycling and the suction line is icing up near the compressor.",
	}}, "gpt-4o")
	assert.Greater(t, short, 0)
	assert.Greater(t, long, short)

	// unknown models fall back rather than fail
	assert.Greater(t, EstimateTokens([]Turn{{Role: RoleUser, Content: "hi"}}, "some-future-model"), 0)
}
