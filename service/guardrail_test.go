package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseGateAnswer(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		allowed bool
		ok      bool
	}{
		{name: "plain yes", input: "YES", allowed: true, ok: true},
		{name: "plain no", input: "NO", allowed: false, ok: true},
		{name: "lowercase", input: "yes", allowed: true, ok: true},
		{name: "trailing punctuation", input: "No.", allowed: false, ok: true},
		{name: "surrounding whitespace", input: "  YES\n", allowed: true, ok: true},
		{name: "rambling", input: "Well, it depends on the context.", ok: false},
		{name: "empty", input: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, ok := parseGateAnswer(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.allowed, allowed)
			}
		})
	}
}

func TestDeflectionRotation(t *testing.T) {
	g := &GuardrailService{}
	seen := make([]string, 0, 2*len(Deflections))
	for i := 0; i < 2*len(Deflections); i++ {
		seen = append(seen, g.nextDeflection())
	}
	// full cycle, then the same cycle again
	for i := 0; i < len(Deflections); i++ {
		assert.Equal(t, Deflections[i], seen[i])
		assert.Equal(t, seen[i], seen[i+len(Deflections)])
	}
}
