package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/getlisa/copilot-server/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefsFromMessages(t *testing.T) {
	now := time.Now()
	sign := func(key string) (string, error) {
		return "https://store.example.com/" + key + "?sig=abc", nil
	}

	messages := []model.Message{
		{
			CreatedAt: now,
			Attachments: model.Attachments{
				{
					ID:       "att-1",
					Url:      "https://store.example.com/old-expired-url",
					MimeType: "image/jpeg",
					Filename: "coil.jpg",
					Metadata: map[string]interface{}{"storage_key": "conversations/c1/images/a"},
				},
			},
		},
		{
			CreatedAt: now.Add(-time.Minute),
			Attachments: model.Attachments{
				// no storage key, but already an absolute URL: pass through
				{ID: "att-2", Url: "https://cdn.example.com/direct.png", MimeType: "image/png"},
				// neither key nor absolute URL: dropped
				{ID: "att-3", Url: "relative/path.png"},
			},
		},
	}

	refs := refsFromMessages(messages, 10, sign)
	require.Len(t, refs, 2)
	assert.Equal(t, "att-1", refs[0].ID)
	assert.Equal(t, "https://store.example.com/conversations/c1/images/a?sig=abc", refs[0].Url)
	assert.Equal(t, "att-2", refs[1].ID)
	assert.Equal(t, "https://cdn.example.com/direct.png", refs[1].Url)
}

func TestRefsFromMessagesLimit(t *testing.T) {
	sign := func(key string) (string, error) { return "https://x/" + key, nil }
	messages := []model.Message{{
		Attachments: model.Attachments{
			{ID: "a", Metadata: map[string]interface{}{"storage_key": "k1"}},
			{ID: "b", Metadata: map[string]interface{}{"storage_key": "k2"}},
			{ID: "c", Metadata: map[string]interface{}{"storage_key": "k3"}},
		},
	}}
	refs := refsFromMessages(messages, 2, sign)
	assert.Len(t, refs, 2)
}

func TestRefsFromMessagesSignFailureSkips(t *testing.T) {
	sign := func(key string) (string, error) {
		if key == "bad" {
			return "", fmt.Errorf("not found")
		}
		return "https://x/" + key, nil
	}
	messages := []model.Message{{
		Attachments: model.Attachments{
			{ID: "a", Metadata: map[string]interface{}{"storage_key": "bad"}},
			{ID: "b", Metadata: map[string]interface{}{"storage_key": "good"}},
		},
	}}
	refs := refsFromMessages(messages, 10, sign)
	require.Len(t, refs, 1)
	assert.Equal(t, "b", refs[0].ID)
}

func TestIsAbsoluteURL(t *testing.T) {
	assert.True(t, isAbsoluteURL("https://example.com/a.png"))
	assert.True(t, isAbsoluteURL("http://example.com/a.png"))
	assert.False(t, isAbsoluteURL("conversations/c1/images/a"))
	assert.False(t, isAbsoluteURL(""))
	assert.False(t, isAbsoluteURL("ftp://example.com/a.png"))
}
