package platform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorage(t *testing.T) {
	s, err := newStorage("localhost:9000", "access", "secret", "uploads", false)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "conversations/c1/images/a", s.NormalizeKey("s3://uploads/conversations/c1/images/a"))

	_, err = newStorage("", "access", "secret", "uploads", false)
	assert.Error(t, err)

	_, err = newStorage("localhost:9000/uploads", "access", "secret", "uploads", false)
	assert.Error(t, err)
}

func TestClampSignTTL(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
		want time.Duration
	}{
		{name: "zero falls back to default", ttl: 0, want: DefaultSignTTL},
		{name: "negative falls back to default", ttl: -time.Hour, want: DefaultSignTTL},
		{name: "within bounds untouched", ttl: time.Hour, want: time.Hour},
		{name: "at the ceiling", ttl: MaxSignTTL, want: MaxSignTTL},
		{name: "over the ceiling is capped", ttl: 90 * 24 * time.Hour, want: MaxSignTTL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampSignTTL(tt.ttl))
		})
	}
}

func TestNormalizeStorageKey(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		bucket string
		want   string
	}{
		{name: "bare key untouched", key: "conversations/c1/images/a", bucket: "uploads", want: "conversations/c1/images/a"},
		{name: "s3 scheme with bucket", key: "s3://uploads/conversations/c1/images/a", bucket: "uploads", want: "conversations/c1/images/a"},
		{name: "minio scheme with bucket", key: "minio://uploads/conversations/c1/images/a", bucket: "uploads", want: "conversations/c1/images/a"},
		{name: "scheme with foreign bucket", key: "s3://other/conversations/c1/images/a", bucket: "uploads", want: "conversations/c1/images/a"},
		{name: "leading slash stripped", key: "/conversations/c1/images/a", bucket: "uploads", want: "conversations/c1/images/a"},
		{name: "whitespace trimmed", key: "  conversations/c1/images/a ", bucket: "uploads", want: "conversations/c1/images/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeStorageKey(tt.key, tt.bucket))
		})
	}
}
