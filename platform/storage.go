package platform

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	// DefaultSignTTL is used whenever a caller passes a non-positive TTL.
	DefaultSignTTL = 15 * time.Minute
	// MaxSignTTL is the presign ceiling the storage provider accepts.
	MaxSignTTL = 7 * 24 * time.Hour
)

var Store *Storage

// Storage wraps the S3-compatible object store. Keys are the durable identity;
// URLs are always derived and expire.
type Storage struct {
	client *minio.Client
	bucket string
}

func InitStorage() {
	store, err := newStorage(
		os.Getenv("STORAGE_ENDPOINT"),
		os.Getenv("STORAGE_ACCESS_KEY"),
		os.Getenv("STORAGE_SECRET_KEY"),
		os.Getenv("STORAGE_BUCKET"),
		os.Getenv("STORAGE_USE_SSL") != "false",
	)
	if err != nil {
		log.Fatalf("Failed to init storage client: %v", err)
		return
	}
	Store = store
}

func newStorage(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Storage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &Storage{client: client, bucket: bucket}, nil
}

// NormalizeKey strips any scheme/bucket prefix so callers can hand us either a
// bare key or a previously stored s3://bucket/key style reference.
func (s *Storage) NormalizeKey(key string) string {
	return NormalizeStorageKey(key, s.bucket)
}

func NormalizeStorageKey(key, bucket string) string {
	key = strings.TrimSpace(key)
	for _, scheme := range []string{"s3://", "minio://"} {
		if strings.HasPrefix(key, scheme) {
			key = strings.TrimPrefix(key, scheme)
			if bucket != "" && strings.HasPrefix(key, bucket+"/") {
				key = strings.TrimPrefix(key, bucket+"/")
			} else if idx := strings.Index(key, "/"); idx >= 0 {
				key = key[idx+1:]
			}
			break
		}
	}
	return strings.TrimPrefix(key, "/")
}

// ClampSignTTL enforces the provider bounds: non-positive TTLs fall back to the
// default, oversized TTLs are capped.
func ClampSignTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultSignTTL
	}
	if ttl > MaxSignTTL {
		return MaxSignTTL
	}
	return ttl
}

// Put uploads bytes under key and returns the stored key.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	key = s.NormalizeKey(key)
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("storage put %s: %w", key, err)
	}
	return key, nil
}

// Sign derives a time-limited retrieval URL for a stored key.
func (s *Storage) Sign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	key = s.NormalizeKey(key)
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ClampSignTTL(ttl), url.Values{})
	if err != nil {
		return "", fmt.Errorf("storage sign %s: %w", key, err)
	}
	return u.String(), nil
}

// Ready reports whether the object is retrievable yet. Used instead of a fixed
// post-upload sleep before handing the URL to the vision model.
func (s *Storage) Ready(ctx context.Context, key string) bool {
	_, err := s.client.StatObject(ctx, s.bucket, s.NormalizeKey(key), minio.StatObjectOptions{})
	return err == nil
}

// WaitReady polls with a short backoff until the object is visible or the
// budget runs out.
func (s *Storage) WaitReady(ctx context.Context, key string, budget time.Duration) bool {
	deadline := time.Now().Add(budget)
	wait := 200 * time.Millisecond
	for {
		if s.Ready(ctx, key) {
			return true
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return false
		}
		time.Sleep(wait)
		if wait < 2*time.Second {
			wait *= 2
		}
	}
}
