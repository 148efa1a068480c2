package retrieval

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/hrygo/recall/plugin/ai/vector"
	"github.com/hrygo/recall/server/internal/observability"
	"github.com/hrygo/recall/store"
)

// RelationalStore is the slice of the store the hybrid and temporal adapters read.
type RelationalStore interface {
	HybridSearch(ctx context.Context, opts *store.HybridSearchOptions) ([]*store.ContentWithScore, error)
	FullTextSearch(ctx context.Context, opts *store.FullTextSearchOptions) ([]*store.ContentWithScore, error)
	ListContentInWindow(ctx context.Context, window *store.ListContentWindow) ([]*store.Content, error)
}

// Weights of the keyword tier and the vector similarity in the hybrid score.
type Weights struct {
	Keyword float64
	Vector  float64
}

// DefaultWeights 默认混合权重
var DefaultWeights = Weights{Keyword: 0.3, Vector: 0.7}

// HybridFilters scopes a hybrid search.
type HybridFilters struct {
	AppID   string
	Sources []string
	Limit   int
}

// HybridRelationalSearch ranks content rows by keyword tier and vector similarity.
// It degrades to full-text rank instead of failing.
type HybridRelationalSearch struct {
	store          RelationalStore
	minVectorScore float64
}

// NewHybridRelationalSearch creates a HybridRelationalSearch. Rows without a keyword hit
// need a cosine similarity of at least minVectorScore.
func NewHybridRelationalSearch(s RelationalStore, minVectorScore float64) *HybridRelationalSearch {
	return &HybridRelationalSearch{store: s, minVectorScore: minVectorScore}
}

// Search scores rows as keywordTier*weights.Keyword + cosine*weights.Vector.
// A nil or malformed embedding falls back to full-text rank. The only error
// returned is the context's, so the caller can tell a timeout from an empty result.
func (h *HybridRelationalSearch) Search(ctx context.Context, keyword string, embedding []float32, filters HybridFilters, weights Weights) ([]*RetrievedItem, error) {
	if filters.Limit <= 0 {
		filters.Limit = 10
	}
	if weights.Keyword == 0 && weights.Vector == 0 {
		weights = DefaultWeights
	}
	sources := toContentSources(filters.Sources)

	if embedding != nil {
		if err := vector.ValidateDimensions(embedding); err != nil {
			h.log(ctx, "hybrid search embedding rejected, using full-text", err)
			embedding = nil
		}
	}

	if embedding != nil {
		results, err := h.store.HybridSearch(ctx, &store.HybridSearchOptions{
			AppID:          filters.AppID,
			Keyword:        keyword,
			Vector:         embedding,
			KeywordWeight:  weights.Keyword,
			VectorWeight:   weights.Vector,
			MinVectorScore: h.minVectorScore,
			Sources:        sources,
			Limit:          filters.Limit,
		})
		if err == nil {
			return contentItems(SourceHybrid, results), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		h.log(ctx, "hybrid search failed, degrading to full-text", err)
	}

	results, err := h.store.FullTextSearch(ctx, &store.FullTextSearchOptions{
		AppID:   filters.AppID,
		Query:   keyword,
		Sources: sources,
		Limit:   filters.Limit,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		h.log(ctx, "full-text search failed, returning no hybrid results", err)
		return []*RetrievedItem{}, nil
	}
	return contentItems(SourceHybrid, results), nil
}

func (h *HybridRelationalSearch) log(ctx context.Context, msg string, err error) {
	if reqCtx, ok := observability.FromContext(ctx); ok {
		reqCtx.Warn(ctx, msg,
			slog.String(observability.LogFieldAdapter, SourceHybrid),
			slog.String("error", err.Error()))
		return
	}
	slog.Warn(msg, observability.LogFieldAdapter, SourceHybrid, "error", err)
}

func toContentSources(in []string) []store.ContentSource {
	if len(in) == 0 {
		return nil
	}
	out := make([]store.ContentSource, 0, len(in))
	for _, s := range in {
		if cs := store.ContentSource(s); cs.Valid() {
			out = append(out, cs)
		}
	}
	return out
}

func contentItems(source string, results []*store.ContentWithScore) []*RetrievedItem {
	items := make([]*RetrievedItem, 0, len(results))
	for _, r := range results {
		items = append(items, contentItem(source, r.Content, r.Score))
	}
	return items
}

func contentItem(source string, c *store.Content, score float64) *RetrievedItem {
	return &RetrievedItem{
		Source:      source,
		ExternalRef: strconv.FormatInt(c.ID, 10),
		Text:        c.Text,
		Score:       clamp01(score),
		CreatedAt:   c.CreatedAt(),
		Metadata: map[string]string{
			"content_id":   strconv.FormatInt(c.ID, 10),
			"source":       string(c.Source),
			"external_id":  c.ExternalID,
			"content_type": string(c.ContentType),
			"link":         c.Link,
		},
	}
}
