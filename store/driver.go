package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Content model related methods.
	UpsertContent(ctx context.Context, upsert *Content) (*Content, error)
	ListContents(ctx context.Context, find *FindContent) ([]*Content, error)
	ListContentInWindow(ctx context.Context, window *ListContentWindow) ([]*Content, error)
	UpdateContentEmbedding(ctx context.Context, id int64, embedding []float32) error
	FindContentsWithoutEmbedding(ctx context.Context, find *FindContentsWithoutEmbedding) ([]*Content, error)
	DeleteContent(ctx context.Context, id int64) error

	// Retrieval over content rows.
	HybridSearch(ctx context.Context, opts *HybridSearchOptions) ([]*ContentWithScore, error)
	FullTextSearch(ctx context.Context, opts *FullTextSearchOptions) ([]*ContentWithScore, error)

	// ContentChunk model related methods.
	ReplaceContentChunks(ctx context.Context, contentID int64, chunks []*ContentChunk) error
	VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*ChunkWithScore, error)
}
