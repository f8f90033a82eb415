package platform

import (
	"context"

	"github.com/philippgille/chromem-go"
)

var imageIndex *chromem.Collection

// InitVectorIndex creates the in-process index that mirrors ImageFile
// embeddings. The database rows stay the source of truth; the index only
// serves nearest-neighbour lookups.
func InitVectorIndex() {
	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection("conversation-images", nil, nil)
	if err != nil {
		Logger.Errorf("[vector] init collection error, %s", err)
		return
	}
	imageIndex = col
}

// IndexImage upserts one image embedding keyed by the ImageFile id.
func IndexImage(ctx context.Context, id, conversationID string, embedding []float32) error {
	if imageIndex == nil || len(embedding) == 0 {
		return nil
	}
	return imageIndex.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   id,
		Embedding: embedding,
		Metadata:  map[string]string{"conversation_id": conversationID},
	})
}

// QueryImages returns ImageFile ids for the nearest stored embeddings within a
// conversation, nearest first. An empty index or query yields an empty result.
func QueryImages(ctx context.Context, conversationID string, query []float32, limit int) ([]string, error) {
	if imageIndex == nil || len(query) == 0 {
		return nil, nil
	}
	if n := imageIndex.Count(); n < limit {
		limit = n
	}
	if limit <= 0 {
		return nil, nil
	}
	results, err := imageIndex.QueryEmbedding(ctx, query, limit, map[string]string{"conversation_id": conversationID}, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	return ids, nil
}
