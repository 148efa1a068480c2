package ai

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	pluginai "github.com/hrygo/recall/plugin/ai"
	"github.com/hrygo/recall/plugin/ai/timeout"
	"github.com/hrygo/recall/plugin/ai/vector"
	"github.com/hrygo/recall/store"
)

// ContentWriter is the slice of the store the indexer writes.
type ContentWriter interface {
	ReplaceContentChunks(ctx context.Context, contentID int64, chunks []*store.ContentChunk) error
	UpdateContentEmbedding(ctx context.Context, id int64, embedding []float32) error
}

// Indexer handles embedding generation and storage for content rows.
type Indexer struct {
	embedder pluginai.EmbeddingService
	store    ContentWriter
}

// NewIndexer creates a new indexer.
func NewIndexer(embedder pluginai.EmbeddingService, store ContentWriter) *Indexer {
	return &Indexer{
		embedder: embedder,
		store:    store,
	}
}

// IndexContent chunks, embeds and stores one content row. Chunks are replaced
// wholesale; the row's own embedding is the mean of its chunk vectors.
func (x *Indexer) IndexContent(ctx context.Context, c *store.Content) (int, error) {
	if c == nil {
		return 0, errors.New("content is nil")
	}
	texts := ChunkDocument(c.Text)
	if len(texts) == 0 {
		return 0, errors.Errorf("content %d has no text", c.ID)
	}

	ectx, cancel := context.WithTimeout(ctx, timeout.EmbeddingTimeout)
	embeddings, err := x.embedder.EmbedBatch(ectx, texts)
	cancel()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to embed content %d", c.ID)
	}
	if len(embeddings) != len(texts) {
		return 0, errors.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(texts))
	}

	chunks := make([]*store.ContentChunk, len(texts))
	for i, text := range texts {
		if err := vector.ValidateDimensions(embeddings[i]); err != nil {
			return 0, errors.Wrapf(err, "chunk %d of content %d", i, c.ID)
		}
		chunks[i] = &store.ContentChunk{
			ContentID:  c.ID,
			AppID:      c.AppID,
			UserID:     c.UserID,
			ChunkIndex: i,
			Text:       text,
			Embedding:  embeddings[i],
			Model:      x.embedder.Model(),
			CreatedTs:  c.CreatedTs,
		}
	}

	if err := x.store.ReplaceContentChunks(ctx, c.ID, chunks); err != nil {
		return 0, errors.Wrap(err, "failed to store chunks")
	}
	if err := x.store.UpdateContentEmbedding(ctx, c.ID, averageEmbeddings(embeddings)); err != nil {
		return 0, errors.Wrap(err, "failed to update content embedding")
	}

	slog.Debug("content indexed",
		"content_id", c.ID,
		"app_id", c.AppID,
		"chunks", len(chunks))
	return len(chunks), nil
}

// averageEmbeddings computes the element-wise average of multiple embeddings.
func averageEmbeddings(embeddings [][]float32) []float32 {
	if len(embeddings) == 0 {
		return nil
	}

	// All embeddings should have the same dimension
	n := len(embeddings[0])
	if n == 0 {
		return nil
	}

	result := make([]float32, n)
	for _, emb := range embeddings {
		for i := 0; i < n; i++ {
			result[i] += emb[i]
		}
	}

	count := float32(len(embeddings))
	for i := 0; i < n; i++ {
		result[i] /= count
	}
	return result
}
