package store

import (
	"context"
	"time"
)

// ContentChunk is an embeddable segment of a content row.
type ContentChunk struct {
	ID         int64
	ContentID  int64
	AppID      string
	UserID     string
	ChunkIndex int
	Text       string
	Embedding  []float32 // 1536-dimensional vector
	Model      string
	// CreatedTs mirrors the parent content's publication time; nil when unknown.
	CreatedTs *int64
}

// CreatedAt returns the publication time, or nil when unknown.
func (c *ContentChunk) CreatedAt() *time.Time {
	if c.CreatedTs == nil {
		return nil
	}
	t := time.Unix(*c.CreatedTs, 0).UTC()
	return &t
}

// ChunkWithScore represents a vector search result with similarity score.
type ChunkWithScore struct {
	Chunk  *ContentChunk
	Source ContentSource
	Link   string
	// Score is 1 - cosine distance.
	Score float64
}

// VectorSearchOptions represents the options for vector search.
type VectorSearchOptions struct {
	AppID  *string
	UserID *string
	Vector []float32
	// Threshold drops results whose score is not strictly greater than it.
	Threshold float64
	Limit     int
}

// ReplaceContentChunks replaces every chunk of a content row.
func (s *Store) ReplaceContentChunks(ctx context.Context, contentID int64, chunks []*ContentChunk) error {
	return s.driver.ReplaceContentChunks(ctx, contentID, chunks)
}

// VectorSearch performs nearest-neighbour search over content chunks.
func (s *Store) VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*ChunkWithScore, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	return s.driver.VectorSearch(ctx, opts)
}
