package store

import (
	"context"
	"time"
)

// ContentSource identifies the platform a piece of persona content was ingested from.
type ContentSource string

const (
	SourceTwitter   ContentSource = "twitter"
	SourceInstagram ContentSource = "instagram"
	SourceYouTube   ContentSource = "youtube"
	SourceLinkedIn  ContentSource = "linkedin"
	SourceBlog      ContentSource = "blog"
	SourcePodcast   ContentSource = "podcast"
	SourceDocument  ContentSource = "document"
)

// KnownSources lists every content source the store accepts.
var KnownSources = []ContentSource{
	SourceTwitter, SourceInstagram, SourceYouTube, SourceLinkedIn, SourceBlog, SourcePodcast, SourceDocument,
}

// Valid reports whether s is one of KnownSources.
func (s ContentSource) Valid() bool {
	for _, known := range KnownSources {
		if s == known {
			return true
		}
	}
	return false
}

// ContentType describes the shape of a content row independent of its source.
type ContentType string

const (
	ContentTypePost    ContentType = "post"
	ContentTypeVideo   ContentType = "video"
	ContentTypeArticle ContentType = "article"
	ContentTypeEpisode ContentType = "episode"
	ContentTypeFile    ContentType = "file"
)

// Content is a normalized row of persona content, unique per (AppID, Source, ExternalID).
type Content struct {
	ID          int64
	AppID       string
	UserID      string
	Source      ContentSource
	ExternalID  string
	ContentType ContentType
	Text        string
	Link        string
	// Embedding is the whole-document vector used by hybrid search; nil until backfilled.
	Embedding []float32
	// CreatedTs is the platform publication time in unix seconds; nil when the platform did not report one.
	CreatedTs  *int64
	IngestedTs int64
}

// CreatedAt returns the publication time, or nil when unknown.
func (c *Content) CreatedAt() *time.Time {
	if c.CreatedTs == nil {
		return nil
	}
	t := time.Unix(*c.CreatedTs, 0).UTC()
	return &t
}

// ContentWithScore represents a ranked content row.
type ContentWithScore struct {
	Content *Content
	Score   float64
}

// FindContent is the find condition for content rows.
type FindContent struct {
	ID         *int64
	AppID      *string
	Source     *ContentSource
	ExternalID *string
	Limit      int
}

// ListContentWindow selects content published inside [Start, End].
// Rows without a publication time are always included and sort after dated rows.
type ListContentWindow struct {
	AppID   string
	Start   time.Time
	End     time.Time
	Sources []ContentSource
	Limit   int
}

// FindContentsWithoutEmbedding selects content rows whose embedding has not been backfilled yet.
type FindContentsWithoutEmbedding struct {
	AppID *string
	Limit int
}

// HybridSearchOptions represents the options for weighted keyword + vector search.
type HybridSearchOptions struct {
	AppID         string
	Keyword       string
	Vector        []float32
	KeywordWeight float64
	VectorWeight  float64
	// MinVectorScore keeps rows without a keyword hit only when their similarity reaches it.
	MinVectorScore float64
	Sources        []ContentSource
	Limit          int
}

// FullTextSearchOptions represents the options for full-text ranked search.
type FullTextSearchOptions struct {
	AppID   string
	Query   string
	Sources []ContentSource
	Limit   int
}

// UpsertContent inserts a content row or updates the existing one with the same (AppID, Source, ExternalID).
func (s *Store) UpsertContent(ctx context.Context, upsert *Content) (*Content, error) {
	if upsert.IngestedTs == 0 {
		upsert.IngestedTs = time.Now().Unix()
	}
	return s.driver.UpsertContent(ctx, upsert)
}

// ListContents lists content rows.
func (s *Store) ListContents(ctx context.Context, find *FindContent) ([]*Content, error) {
	return s.driver.ListContents(ctx, find)
}

// GetContent returns a single content row, or nil when missing.
func (s *Store) GetContent(ctx context.Context, find *FindContent) (*Content, error) {
	find.Limit = 1
	list, err := s.driver.ListContents(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// ListContentInWindow returns content inside a time window, newest first, undated rows last.
func (s *Store) ListContentInWindow(ctx context.Context, window *ListContentWindow) ([]*Content, error) {
	if window.Limit <= 0 {
		window.Limit = 20
	}
	return s.driver.ListContentInWindow(ctx, window)
}

// UpdateContentEmbedding stores the whole-document embedding of a content row.
func (s *Store) UpdateContentEmbedding(ctx context.Context, id int64, embedding []float32) error {
	return s.driver.UpdateContentEmbedding(ctx, id, embedding)
}

// FindContentsWithoutEmbedding returns content rows that still need an embedding.
func (s *Store) FindContentsWithoutEmbedding(ctx context.Context, find *FindContentsWithoutEmbedding) ([]*Content, error) {
	if find.Limit <= 0 {
		find.Limit = 100
	}
	return s.driver.FindContentsWithoutEmbedding(ctx, find)
}

// HybridSearch ranks content by keyword tier and vector similarity.
func (s *Store) HybridSearch(ctx context.Context, opts *HybridSearchOptions) ([]*ContentWithScore, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	return s.driver.HybridSearch(ctx, opts)
}

// FullTextSearch ranks content by full-text relevance alone.
func (s *Store) FullTextSearch(ctx context.Context, opts *FullTextSearchOptions) ([]*ContentWithScore, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	return s.driver.FullTextSearch(ctx, opts)
}

// DeleteContent deletes a content row and its chunks.
func (s *Store) DeleteContent(ctx context.Context, id int64) error {
	return s.driver.DeleteContent(ctx, id)
}
