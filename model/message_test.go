package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachmentStorageKey(t *testing.T) {
	withKey := Attachment{Metadata: map[string]interface{}{"storage_key": "conversations/c1/images/a"}}
	assert.Equal(t, "conversations/c1/images/a", withKey.StorageKey())

	assert.Equal(t, "", Attachment{}.StorageKey())
	assert.Equal(t, "", Attachment{Metadata: map[string]interface{}{"storage_key": 42}}.StorageKey())
	assert.Equal(t, "", Attachment{Metadata: map[string]interface{}{}}.StorageKey())
}

func TestImageSummaryJSONKeys(t *testing.T) {
	summary := ImageSummary{
		ID:             "img-1",
		Source:         "user_upload",
		Summary:        "a pump",
		Objects:        []string{"pump"},
		Observations:   []string{"leaking seal"},
		InferredIssue:  "worn shaft seal",
		Confidence:     0.8,
		LinkedEntities: []string{"pump P-101"},
	}

	data, err := json.Marshal(summary)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"id", "source", "summary", "objects", "observations", "inferred_issue", "confidence", "linked_entities"} {
		assert.Contains(t, decoded, key)
	}
}

func TestMessageMetadataScanRoundTrip(t *testing.T) {
	meta := MessageMetadata{
		Model:      "gpt-4o",
		ToolsUsed:  []string{"web_search"},
		DurationMs: 1250,
		ImageSummaries: []ImageSummary{
			{ID: "img-1", Summary: "a valve"},
		},
	}

	value, err := meta.Value()
	require.NoError(t, err)

	var decoded MessageMetadata
	require.NoError(t, decoded.Scan(value))
	assert.Equal(t, meta.Model, decoded.Model)
	assert.Equal(t, meta.ToolsUsed, decoded.ToolsUsed)
	assert.Equal(t, meta.DurationMs, decoded.DurationMs)
	require.Len(t, decoded.ImageSummaries, 1)
	assert.Equal(t, "img-1", decoded.ImageSummaries[0].ID)
}
