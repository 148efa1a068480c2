package retrieval

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/hrygo/recall/plugin/ai/vector"
	aierrors "github.com/hrygo/recall/server/internal/errors"
	"github.com/hrygo/recall/store"
)

// VectorStore is the slice of the store the vector adapter reads.
type VectorStore interface {
	VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.ChunkWithScore, error)
}

// VectorFilters scopes a vector query. Empty fields do not filter.
type VectorFilters struct {
	UserID string
	AppID  string
}

// VectorSearchAdapter runs nearest-neighbour lookups over content chunks.
// It holds no request state and is safe for concurrent use.
type VectorSearchAdapter struct {
	store VectorStore
}

// NewVectorSearchAdapter creates a VectorSearchAdapter.
func NewVectorSearchAdapter(s VectorStore) *VectorSearchAdapter {
	return &VectorSearchAdapter{store: s}
}

// Query returns chunks with score = 1 - cosine distance strictly above threshold, nearest first.
// An embedding of the wrong width is rejected before the store is touched.
func (a *VectorSearchAdapter) Query(ctx context.Context, embedding []float32, filters VectorFilters, limit int, threshold float64) ([]*RetrievedItem, error) {
	if err := vector.ValidateDimensions(embedding); err != nil {
		return nil, aierrors.InvalidArgument(err.Error()).WithContext("adapter", SourceVector)
	}
	if limit <= 0 {
		limit = 10
	}

	opts := &store.VectorSearchOptions{
		Vector:    embedding,
		Threshold: threshold,
		Limit:     limit,
	}
	if filters.AppID != "" {
		opts.AppID = &filters.AppID
	}
	if filters.UserID != "" {
		opts.UserID = &filters.UserID
	}

	results, err := a.store.VectorSearch(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "vector search failed")
	}

	items := make([]*RetrievedItem, 0, len(results))
	for _, r := range results {
		if r.Score <= threshold {
			continue
		}
		chunk := r.Chunk
		items = append(items, &RetrievedItem{
			Source:      SourceVector,
			ExternalRef: strconv.FormatInt(chunk.ContentID, 10) + "#" + strconv.Itoa(chunk.ChunkIndex),
			Text:        chunk.Text,
			Score:       clamp01(r.Score),
			CreatedAt:   chunk.CreatedAt(),
			Metadata: map[string]string{
				"content_id":  strconv.FormatInt(chunk.ContentID, 10),
				"chunk_index": strconv.Itoa(chunk.ChunkIndex),
				"source":      string(r.Source),
				"link":        r.Link,
			},
		})
	}
	return items, nil
}
