// Package embedding backfills chunk embeddings for content rows ingested
// without them, and mirrors each row into long-term memory.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/recall/plugin/ai/memory"
	"github.com/hrygo/recall/store"
)

// ContentSource lists rows still waiting for an embedding.
type ContentSource interface {
	FindContentsWithoutEmbedding(ctx context.Context, find *store.FindContentsWithoutEmbedding) ([]*store.Content, error)
}

// ContentIndexer is implemented by server/ai.Indexer.
type ContentIndexer interface {
	IndexContent(ctx context.Context, c *store.Content) (int, error)
}

// MemoryWriter is implemented by memory.Client.
type MemoryWriter interface {
	Add(ctx context.Context, req *memory.AddRequest) error
}

// Stats summarizes one backfill pass.
type Stats struct {
	Found    int
	Indexed  int
	Chunks   int
	Failed   int
	Mirrored int
}

// Runner is the embedding backfill task.
type Runner struct {
	source      ContentSource
	indexer     ContentIndexer
	memory      MemoryWriter
	appID       string
	interval    time.Duration
	batchSize   int
	concurrency int
	trigger     chan struct{}
	running     atomic.Bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithInterval sets the time between passes.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithBatchSize sets how many rows one pass fetches.
func WithBatchSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithConcurrency bounds parallel embedding calls.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithMemory mirrors indexed rows into the long-term memory service.
func WithMemory(w MemoryWriter) Option {
	return func(r *Runner) { r.memory = w }
}

// WithAppID restricts the backfill to one persona app.
func WithAppID(appID string) Option {
	return func(r *Runner) { r.appID = appID }
}

// NewRunner creates a vector embedding runner.
// Defaults are tuned for small hosts: small batches, three concurrent calls.
func NewRunner(source ContentSource, indexer ContentIndexer, opts ...Option) *Runner {
	r := &Runner{
		source:      source,
		indexer:     indexer,
		interval:    2 * time.Minute,
		batchSize:   32,
		concurrency: 3,
		trigger:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the background task. It blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	// Process once on startup
	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-r.trigger:
			r.RunOnce(ctx)
		case <-ctx.Done():
			slog.Info("embedding runner stopped")
			return
		}
	}
}

// Trigger asks a running Run loop for an immediate pass. It never blocks.
func (r *Runner) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// RunOnce processes pending rows once. Overlapping calls return immediately with zero Stats.
func (r *Runner) RunOnce(ctx context.Context) Stats {
	if !r.running.CompareAndSwap(false, true) {
		return Stats{}
	}
	defer r.running.Store(false)

	find := &store.FindContentsWithoutEmbedding{Limit: r.batchSize}
	if r.appID != "" {
		find.AppID = &r.appID
	}
	rows, err := r.source.FindContentsWithoutEmbedding(ctx, find)
	if err != nil {
		slog.Error("failed to find content without embedding", "error", err)
		return Stats{}
	}
	if len(rows) == 0 {
		return Stats{}
	}

	slog.Info("processing content for embedding", "count", len(rows))
	start := time.Now()

	var indexed, chunks, failed, mirrored atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, c := range rows {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			n, err := r.indexer.IndexContent(gctx, c)
			if err != nil {
				failed.Add(1)
				slog.Warn("failed to index content", "content_id", c.ID, "error", err)
				return nil
			}
			indexed.Add(1)
			chunks.Add(int64(n))
			if r.mirror(gctx, c) {
				mirrored.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats := Stats{
		Found:    len(rows),
		Indexed:  int(indexed.Load()),
		Chunks:   int(chunks.Load()),
		Failed:   int(failed.Load()),
		Mirrored: int(mirrored.Load()),
	}
	slog.Info("embedding pass finished",
		"progress", fmt.Sprintf("%d/%d", stats.Indexed, stats.Found),
		"failed", stats.Failed,
		"mirrored", stats.Mirrored,
		"duration_ms", time.Since(start).Milliseconds())
	return stats
}

// mirror writes the row into long-term memory; the memory client retries on its own.
func (r *Runner) mirror(ctx context.Context, c *store.Content) bool {
	if r.memory == nil || c.UserID == "" {
		return false
	}
	err := r.memory.Add(ctx, &memory.AddRequest{
		UserID: c.UserID,
		Text:   c.Text,
		Metadata: memory.Metadata{
			AppID:     c.AppID,
			Source:    string(c.Source),
			Type:      string(c.ContentType),
			Link:      c.Link,
			Timestamp: memory.FormatTimestamp(c.CreatedAt()),
		},
	})
	if err != nil {
		slog.Warn("failed to mirror content into memory", "content_id", c.ID, "error", err)
		return false
	}
	return true
}
