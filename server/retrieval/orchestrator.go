package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/recall/plugin/ai/classifier"
	"github.com/hrygo/recall/plugin/ai/timeout"
	aierrors "github.com/hrygo/recall/server/internal/errors"
	"github.com/hrygo/recall/server/internal/observability"
	"github.com/hrygo/recall/server/queryengine"
)

// QueryClassifier turns query text into a QueryAnalysis. It must never fail.
type QueryClassifier interface {
	Classify(ctx context.Context, query string) *classifier.QueryAnalysis
}

// Embedder embeds the query for vector and hybrid lookups.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher is implemented by VectorSearchAdapter.
type VectorSearcher interface {
	Query(ctx context.Context, embedding []float32, filters VectorFilters, limit int, threshold float64) ([]*RetrievedItem, error)
}

// HybridSearcher is implemented by HybridRelationalSearch.
type HybridSearcher interface {
	Search(ctx context.Context, keyword string, embedding []float32, filters HybridFilters, weights Weights) ([]*RetrievedItem, error)
}

// TemporalFetcher is implemented by TemporalRetriever.
type TemporalFetcher interface {
	Fetch(ctx context.Context, appID string, window queryengine.TimeWindow, sources []string, limit int) ([]*RetrievedItem, error)
}

// LongTermSearcher is implemented by LongTermMemoryAdapter.
type LongTermSearcher interface {
	Search(ctx context.Context, query, userID, appID string) ([]*RetrievedItem, error)
}

// Deps wires an Orchestrator. Nil adapters are treated as unavailable and never planned.
type Deps struct {
	Classifier QueryClassifier
	Embedder   Embedder
	Vector     VectorSearcher
	Hybrid     HybridSearcher
	Temporal   TemporalFetcher
	Memory     LongTermSearcher
	Config     *queryengine.Config
	Metrics    *observability.Metrics
	Logger     *slog.Logger
}

// Orchestrator 检索编排器
// Classifies a query, fans out to the planned adapters concurrently and merges
// what survives. It keeps no per-request state and is safe for concurrent use.
type Orchestrator struct {
	deps    Deps
	config  *queryengine.Config
	planner *queryengine.Planner
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewOrchestrator creates an Orchestrator. It panics when Classifier is nil or the config is invalid.
func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.Classifier == nil {
		panic("retrieval: nil classifier")
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = queryengine.DefaultConfig()
	}
	m := deps.Metrics
	if m == nil {
		m = observability.GlobalMetrics()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		deps:    deps,
		config:  cfg,
		planner: queryengine.NewPlanner(cfg),
		metrics: m,
		logger:  logger,
	}
}

type adapterOutcome struct {
	items []*RetrievedItem
	err   error
}

// Retrieve always returns a result. Adapter failures, timeouts and caller
// cancellation drop the affected adapters; the worst case is an empty result
// with ConfidenceNone.
func (o *Orchestrator) Retrieve(ctx context.Context, query, userID, appID string) *RetrievalResult {
	reqCtx, ok := observability.FromContext(ctx)
	if !ok {
		reqCtx = observability.NewRequestContext(o.logger, userID, appID)
		ctx = observability.WithRequestContext(ctx, reqCtx)
	}
	start := time.Now()

	analysis := o.classify(ctx, reqCtx, query)
	plan := o.planner.Plan(analysis, query)

	result := &RetrievalResult{
		RequestID:           reqCtx.RequestID,
		Items:               []*RetrievedItem{},
		ConfidenceLevel:     ConfidenceNone,
		SourcesUsed:         []string{},
		DroppedSources:      []string{},
		QueryAnalysis:       analysis,
		RequiresAggregation: analysis.RequiresAggregation,
		Strategy:            plan.Strategy,
	}

	if plan.Skip {
		o.metrics.RecordSkipped()
		result.Latency = time.Since(start)
		reqCtx.Info(ctx, "retrieval skipped",
			slog.String(observability.LogFieldIntent, string(analysis.Intent)),
			slog.Bool("requires_private_info", analysis.RequiresPrivateInfo))
		return result
	}

	adapters := o.available(plan)
	outcomes := make([]adapterOutcome, len(adapters))

	// One embedding per request, shared by vector and hybrid.
	embed := sync.OnceValues(func() ([]float32, error) {
		ectx, cancel := context.WithTimeout(ctx, o.config.Timeouts.Vector)
		defer cancel()
		return o.deps.Embedder.Embed(ectx, plan.Query)
	})

	var g errgroup.Group
	for i, a := range adapters {
		g.Go(func() error {
			outcomes[i] = o.run(ctx, reqCtx, a, plan, func(actx context.Context) ([]*RetrievedItem, error) {
				return o.call(actx, a, plan, userID, appID, embed)
			})
			return nil
		})
	}
	_ = g.Wait()

	lists := make([][]*RetrievedItem, 0, len(adapters))
	for i, a := range adapters {
		if outcomes[i].err != nil {
			result.DroppedSources = append(result.DroppedSources, string(a))
			continue
		}
		lists = append(lists, outcomes[i].items)
	}

	items := Merge(lists...)
	if limit := o.config.Limits.MaxResults; len(items) > limit {
		items = items[:limit]
	}
	result.Items = items
	result.SourcesUsed = SourcesOf(items)
	result.TotalResults = len(items)
	result.ConfidenceLevel = CalibrateConfidence(items, o.config.Confidence)
	result.Latency = time.Since(start)

	o.metrics.RecordRequest(string(result.ConfidenceLevel), result.Latency)
	reqCtx.Info(ctx, "retrieval finished",
		slog.String(observability.LogFieldIntent, string(analysis.Intent)),
		slog.String("strategy", plan.Strategy),
		slog.Int(observability.LogFieldResultCount, result.TotalResults),
		slog.String("confidence", string(result.ConfidenceLevel)),
		slog.Any("dropped", result.DroppedSources),
		slog.Int64(observability.LogFieldDuration, result.Latency.Milliseconds()))
	return result
}

// errorReportingClassifier is implemented by classifier.Classifier; it lets
// the orchestrator log classification failures with their error code.
type errorReportingClassifier interface {
	ClassifyWithError(ctx context.Context, query string) (*classifier.QueryAnalysis, error)
}

func (o *Orchestrator) classify(ctx context.Context, reqCtx *observability.RequestContext, query string) *classifier.QueryAnalysis {
	c, ok := o.deps.Classifier.(errorReportingClassifier)
	if !ok {
		if analysis := o.deps.Classifier.Classify(ctx, query); analysis != nil {
			return analysis
		}
		return classifier.DefaultAnalysis()
	}

	analysis, err := c.ClassifyWithError(ctx, query)
	if err != nil {
		// No LLM configured is a deployment choice, not a failure.
		if !errors.Is(err, classifier.ErrDisabled) {
			cerr := aierrors.ClassificationFailed(err)
			reqCtx.Warn(ctx, "query classification failed, using default",
				slog.String(observability.LogFieldQuery, truncate(query, timeout.MaxTruncateLength)),
				slog.String(observability.LogFieldErrorCode, string(cerr.Code)),
				slog.String("error", cerr.Error()))
		}
		return classifier.DefaultAnalysis()
	}
	if analysis == nil {
		return classifier.DefaultAnalysis()
	}
	return analysis
}

// available filters the plan down to adapters that are wired.
func (o *Orchestrator) available(plan *queryengine.Plan) []queryengine.Adapter {
	out := make([]queryengine.Adapter, 0, len(plan.Adapters))
	for _, a := range plan.Adapters {
		switch a {
		case queryengine.AdapterVector:
			if o.deps.Vector == nil || o.deps.Embedder == nil {
				continue
			}
		case queryengine.AdapterMemory:
			if o.deps.Memory == nil {
				continue
			}
		case queryengine.AdapterHybrid:
			if o.deps.Hybrid == nil {
				continue
			}
		case queryengine.AdapterTemporal:
			if o.deps.Temporal == nil || plan.Window == nil {
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

func (o *Orchestrator) call(ctx context.Context, a queryengine.Adapter, plan *queryengine.Plan, userID, appID string, embed func() ([]float32, error)) ([]*RetrievedItem, error) {
	cfg := o.config
	switch a {
	case queryengine.AdapterVector:
		vec, err := embed()
		if err != nil {
			return nil, err
		}
		return o.deps.Vector.Query(ctx, vec, VectorFilters{UserID: userID, AppID: appID},
			cfg.Limits.VectorLimit, cfg.Scoring.VectorThreshold)

	case queryengine.AdapterHybrid:
		var vec []float32
		if o.deps.Embedder != nil {
			// Hybrid degrades to full-text when the embedding is missing or late.
			vec = awaitEmbedding(ctx, embed, cfg.Timeouts.Hybrid/hybridEmbeddingShare)
		}
		return o.deps.Hybrid.Search(ctx, plan.Keyword, vec,
			HybridFilters{AppID: appID, Sources: plan.Sources, Limit: cfg.Limits.HybridLimit},
			Weights{Keyword: cfg.Scoring.KeywordWeight, Vector: cfg.Scoring.VectorWeight})

	case queryengine.AdapterTemporal:
		return o.deps.Temporal.Fetch(ctx, appID, *plan.Window, plan.Sources, cfg.Limits.TemporalLimit)

	case queryengine.AdapterMemory:
		return o.deps.Memory.Search(ctx, plan.Query, userID, appID)
	}
	return nil, aierrors.InvalidArgument("unknown adapter " + string(a))
}

// hybridEmbeddingShare is the fraction of the hybrid budget spent waiting
// for the shared embedding; the rest is left for the full-text query.
const hybridEmbeddingShare = 2

// awaitEmbedding waits at most budget for the shared embedding. Any failure or
// a missed budget yields nil.
func awaitEmbedding(ctx context.Context, embed func() ([]float32, error), budget time.Duration) []float32 {
	ready := make(chan []float32, 1)
	go func() {
		v, err := embed()
		if err != nil {
			v = nil
		}
		ready <- v
	}()

	t := time.NewTimer(budget)
	defer t.Stop()
	select {
	case v := <-ready:
		return v
	case <-t.C:
		return nil
	case <-ctx.Done():
		return nil
	}
}

func (o *Orchestrator) timeoutFor(a queryengine.Adapter) time.Duration {
	t := o.config.Timeouts
	switch a {
	case queryengine.AdapterVector:
		return t.Vector
	case queryengine.AdapterHybrid:
		return t.Hybrid
	case queryengine.AdapterTemporal:
		return t.Temporal
	case queryengine.AdapterMemory:
		return t.Memory
	}
	return timeout.AdapterTimeout
}

// run bounds one adapter call. The result is abandoned at the deadline even if
// the adapter does not honour its context; the buffered channel lets it exit.
func (o *Orchestrator) run(ctx context.Context, reqCtx *observability.RequestContext, a queryengine.Adapter, plan *queryengine.Plan, fn func(context.Context) ([]*RetrievedItem, error)) adapterOutcome {
	actx, cancel := context.WithTimeout(ctx, o.timeoutFor(a))
	defer cancel()

	start := time.Now()
	done := make(chan adapterOutcome, 1)
	go func() {
		items, err := fn(actx)
		done <- adapterOutcome{items: items, err: err}
	}()

	var out adapterOutcome
	select {
	case out = <-done:
	case <-actx.Done():
		out.err = actx.Err()
	}
	elapsed := time.Since(start)

	if out.err == nil {
		o.metrics.RecordAdapterCall(string(a), elapsed, len(out.items), nil, false)
		reqCtx.Debug(ctx, "adapter finished",
			slog.String(observability.LogFieldAdapter, string(a)),
			slog.Int(observability.LogFieldResultCount, len(out.items)),
			slog.Int64(observability.LogFieldDuration, elapsed.Milliseconds()))
		return out
	}

	var wrapped *aierrors.AIError
	timedOut := false
	switch {
	case ctx.Err() != nil:
		wrapped = aierrors.ContextCanceled(out.err)
	case errors.Is(out.err, context.DeadlineExceeded) || errors.Is(actx.Err(), context.DeadlineExceeded):
		wrapped = aierrors.AdapterTimeout(string(a), out.err)
		timedOut = true
	default:
		wrapped = aierrors.AdapterFailed(string(a), out.err)
	}
	wrapped.WithContext("adapter", string(a))
	out.err = wrapped

	o.metrics.RecordAdapterCall(string(a), elapsed, 0, wrapped, timedOut)
	reqCtx.Warn(ctx, "adapter dropped",
		slog.String(observability.LogFieldAdapter, string(a)),
		slog.String(observability.LogFieldQuery, truncate(plan.Query, timeout.MaxTruncateLength)),
		slog.String(observability.LogFieldErrorCode, string(wrapped.Code)),
		slog.String("error", wrapped.Error()),
		slog.Int64(observability.LogFieldDuration, elapsed.Milliseconds()))
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
