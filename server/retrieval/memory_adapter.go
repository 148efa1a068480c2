package retrieval

import (
	"context"
	"errors"

	"github.com/hrygo/recall/plugin/ai/memory"
	aierrors "github.com/hrygo/recall/server/internal/errors"
)

// MemoryClient is the slice of the memory service client the adapter uses.
type MemoryClient interface {
	Search(ctx context.Context, req *memory.SearchRequest) ([]memory.Memory, error)
}

// LongTermMemoryAdapter searches the external semantic memory service.
// Retries happen inside the client. A transient failure that outlived them is
// reported as TRANSPORT_RETRYABLE; other errors are returned as is.
type LongTermMemoryAdapter struct {
	client MemoryClient
	limit  int
}

// NewLongTermMemoryAdapter creates a LongTermMemoryAdapter.
func NewLongTermMemoryAdapter(client MemoryClient, limit int) *LongTermMemoryAdapter {
	return &LongTermMemoryAdapter{client: client, limit: limit}
}

// Search returns memories for userID, optionally scoped to appID.
func (a *LongTermMemoryAdapter) Search(ctx context.Context, query, userID, appID string) ([]*RetrievedItem, error) {
	memories, err := a.client.Search(ctx, &memory.SearchRequest{
		Query:  query,
		UserID: userID,
		AppID:  appID,
		TopK:   a.limit,
	})
	if err != nil {
		var exhausted *memory.RetriesExhaustedError
		if errors.As(err, &exhausted) {
			return nil, aierrors.Wrap(err, aierrors.ErrCodeTransportRetryable, "memory service unavailable after retries")
		}
		return nil, err
	}

	items := make([]*RetrievedItem, 0, len(memories))
	for i := range memories {
		m := &memories[i]
		if m.Memory == "" {
			continue
		}
		items = append(items, &RetrievedItem{
			Source:      SourceMemory,
			ExternalRef: m.ID,
			Text:        m.Memory,
			Score:       clamp01(m.Score),
			CreatedAt:   m.CreatedAt(),
			Metadata: map[string]string{
				"memory_id": m.ID,
				"source":    m.Metadata.Source,
				"type":      m.Metadata.Type,
				"link":      m.Metadata.Link,
			},
		})
	}
	return items, nil
}
