package service

import (
	"context"
	"strings"
	"time"

	"github.com/getlisa/copilot-server/model"
	"github.com/getlisa/copilot-server/platform"
)

// ImageRef is the caller-facing view of a retrievable image: a fresh signed
// URL derived from the durable storage key.
type ImageRef struct {
	ID        string    `json:"id"`
	Url       string    `json:"url"`
	MimeType  string    `json:"mime_type"`
	Filename  string    `json:"filename,omitempty"`
	CreatedAt time.Time `json:"uploaded_at"`
}

type ImageService struct{}

const DefaultImageLimit = 4

// RecentImages resolves a conversation's most recent uploads to time-limited
// URLs, newest first. When no ImageFile rows exist (the image was ingested by
// a path that never wrote one), it falls back to scanning IMAGE messages'
// attachment metadata.
func (s *ImageService) RecentImages(ctx context.Context, conversationId string, limit int, ttl time.Duration) ([]ImageRef, error) {
	if limit <= 0 {
		limit = DefaultImageLimit
	}

	files, err := model.ListRecentImageFiles(conversationId, limit)
	if err != nil {
		return nil, err
	}
	if len(files) > 0 {
		return s.signFiles(ctx, files, ttl), nil
	}

	messages, err := model.ListRecentImageMessages(conversationId, limit)
	if err != nil {
		return nil, err
	}
	return refsFromMessages(messages, limit, func(key string) (string, error) {
		return platform.Store.Sign(ctx, key, ttl)
	}), nil
}

// ImagesBySimilarity ranks a conversation's images by vector distance to the
// query embedding, nearest first. No embedding or an empty index yields an
// empty list, never an error.
func (s *ImageService) ImagesBySimilarity(ctx context.Context, conversationId string, query []float32, limit int, ttl time.Duration) ([]ImageRef, error) {
	if len(query) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultImageLimit
	}
	ids, err := platform.QueryImages(ctx, conversationId, query, limit)
	if err != nil {
		logger.Warnf("[images] similarity query error, %s", err)
		return nil, nil
	}
	files, err := model.GetImageFilesByIDs(ids)
	if err != nil {
		return nil, err
	}
	return s.signFiles(ctx, files, ttl), nil
}

func (s *ImageService) signFiles(ctx context.Context, files []model.ImageFile, ttl time.Duration) []ImageRef {
	refs := make([]ImageRef, 0, len(files))
	for _, f := range files {
		url, err := platform.Store.Sign(ctx, f.StorageKey, ttl)
		if err != nil {
			logger.Warnf("[images] sign %s error, %s", f.StorageKey, err)
			continue
		}
		refs = append(refs, ImageRef{
			ID:        f.ID,
			Url:       url,
			MimeType:  f.MimeType,
			Filename:  f.Filename,
			CreatedAt: f.CreatedAt,
		})
	}
	return refs
}

// refsFromMessages extracts image references from message attachments. Keys
// are re-signed; already-absolute URLs pass through untouched.
func refsFromMessages(messages []model.Message, limit int, sign func(string) (string, error)) []ImageRef {
	refs := make([]ImageRef, 0, limit)
	for _, msg := range messages {
		for _, att := range msg.Attachments {
			if len(refs) >= limit {
				return refs
			}
			url := ""
			if key := att.StorageKey(); key != "" {
				signed, err := sign(key)
				if err != nil {
					continue
				}
				url = signed
			} else if isAbsoluteURL(att.Url) {
				url = att.Url
			}
			if url == "" {
				continue
			}
			refs = append(refs, ImageRef{
				ID:        att.ID,
				Url:       url,
				MimeType:  att.MimeType,
				Filename:  att.Filename,
				CreatedAt: msg.CreatedAt,
			})
		}
	}
	return refs
}

func isAbsoluteURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}
