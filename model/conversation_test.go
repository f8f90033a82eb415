package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupMembers(t *testing.T) {
	tests := []struct {
		name  string
		input StringList
		want  StringList
	}{
		{name: "nil", input: nil, want: StringList{}},
		{name: "unique kept in order", input: StringList{"u1", "u2"}, want: StringList{"u1", "u2"}},
		{name: "repeats dropped", input: StringList{"u1", "u2", "u1", "u3", "u2"}, want: StringList{"u1", "u2", "u3"}},
		{name: "blanks dropped", input: StringList{"", "u1", ""}, want: StringList{"u1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dedupMembers(tt.input))
		})
	}
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from ConversationStatus
		to   ConversationStatus
		ok   bool
	}{
		{ConversationActive, ConversationClosed, true},
		{ConversationActive, ConversationArchived, true},
		{ConversationClosed, ConversationArchived, true},
		{ConversationClosed, ConversationActive, false},
		{ConversationArchived, ConversationActive, false},
		{ConversationArchived, ConversationClosed, false},
		{ConversationActive, ConversationActive, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.ok, validTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}
