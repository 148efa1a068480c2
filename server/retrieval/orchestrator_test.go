package retrieval

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/recall/plugin/ai"
	"github.com/hrygo/recall/plugin/ai/classifier"
	"github.com/hrygo/recall/server/internal/observability"
	"github.com/hrygo/recall/server/queryengine"
	"github.com/hrygo/recall/store"
	storetest "github.com/hrygo/recall/store/test"
)

type staticClassifier struct {
	analysis *classifier.QueryAnalysis
}

func (s staticClassifier) Classify(context.Context, string) *classifier.QueryAnalysis {
	return s.analysis
}

type embedFunc func(ctx context.Context, text string) ([]float32, error)

func (f embedFunc) Embed(ctx context.Context, text string) ([]float32, error) { return f(ctx, text) }

type vectorFunc func(ctx context.Context, emb []float32) ([]*RetrievedItem, error)

func (f vectorFunc) Query(ctx context.Context, emb []float32, _ VectorFilters, _ int, _ float64) ([]*RetrievedItem, error) {
	return f(ctx, emb)
}

type hybridFunc func(ctx context.Context, keyword string, emb []float32) ([]*RetrievedItem, error)

func (f hybridFunc) Search(ctx context.Context, keyword string, emb []float32, _ HybridFilters, _ Weights) ([]*RetrievedItem, error) {
	return f(ctx, keyword, emb)
}

type memoryFunc func(ctx context.Context, query string) ([]*RetrievedItem, error)

func (f memoryFunc) Search(ctx context.Context, query, _, _ string) ([]*RetrievedItem, error) {
	return f(ctx, query)
}

type mockTemporal struct{ mock.Mock }

func (m *mockTemporal) Fetch(ctx context.Context, appID string, window queryengine.TimeWindow, sources []string, limit int) ([]*RetrievedItem, error) {
	args := m.Called(ctx, appID, window, sources, limit)
	res, _ := args.Get(0).([]*RetrievedItem)
	return res, args.Error(1)
}

type mockVectorSearcher struct{ mock.Mock }

func (m *mockVectorSearcher) Query(ctx context.Context, emb []float32, f VectorFilters, limit int, threshold float64) ([]*RetrievedItem, error) {
	args := m.Called(ctx, emb, f, limit, threshold)
	res, _ := args.Get(0).([]*RetrievedItem)
	return res, args.Error(1)
}

type mockLongTerm struct{ mock.Mock }

func (m *mockLongTerm) Search(ctx context.Context, query, userID, appID string) ([]*RetrievedItem, error) {
	args := m.Called(ctx, query, userID, appID)
	res, _ := args.Get(0).([]*RetrievedItem)
	return res, args.Error(1)
}

type scriptedLLM struct {
	content string
	err     error
}

func (s scriptedLLM) CompleteJSON(context.Context, *ai.StructuredRequest) (string, error) {
	return s.content, s.err
}

func (scriptedLLM) Model() string { return "scripted" }

func staticEmbedder() embedFunc {
	return func(context.Context, string) ([]float32, error) { return fullVector(), nil }
}

func returning(items ...*RetrievedItem) memoryFunc {
	return func(context.Context, string) ([]*RetrievedItem, error) { return items, nil }
}

func analysisFor(intent classifier.Intent, entities ...string) *classifier.QueryAnalysis {
	a := classifier.DefaultAnalysis()
	a.Intent = intent
	a.Entities = entities
	a.Fallback = false
	return a
}

func TestRetrieve_GuardrailSkipsAllAdapters(t *testing.T) {
	for name, analysis := range map[string]*classifier.QueryAnalysis{
		"uncertainty": analysisFor(classifier.IntentUncertaintyTest),
		"private": func() *classifier.QueryAnalysis {
			a := analysisFor(classifier.IntentFactualLookup, "password")
			a.RequiresPrivateInfo = true
			return a
		}(),
	} {
		t.Run(name, func(t *testing.T) {
			vec := &mockVectorSearcher{}
			mem := &mockLongTerm{}
			tmp := &mockTemporal{}
			var embedCalls atomic.Int32
			metrics := observability.NewMetrics(10)

			o := NewOrchestrator(Deps{
				Classifier: staticClassifier{analysis},
				Embedder: embedFunc(func(context.Context, string) ([]float32, error) {
					embedCalls.Add(1)
					return fullVector(), nil
				}),
				Vector:   vec,
				Memory:   mem,
				Temporal: tmp,
				Metrics:  metrics,
			})

			res := o.Retrieve(context.Background(), "What is my bank PIN?", "u1", "app")

			assert.Empty(t, res.Items)
			assert.NotNil(t, res.Items)
			assert.Equal(t, ConfidenceNone, res.ConfidenceLevel)
			assert.Empty(t, res.SourcesUsed)
			assert.Equal(t, queryengine.StrategySkip, res.Strategy)
			assert.Zero(t, embedCalls.Load())
			vec.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			mem.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			tmp.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			assert.Equal(t, int64(1), metrics.Snapshot().RequestSkipped)
		})
	}
}

func TestRetrieve_DedupesAcrossAdapters(t *testing.T) {
	o := NewOrchestrator(Deps{
		Classifier: staticClassifier{analysisFor(classifier.IntentOpinionQuery)},
		Embedder:   staticEmbedder(),
		Vector: vectorFunc(func(context.Context, []float32) ([]*RetrievedItem, error) {
			return []*RetrievedItem{item(SourceVector, "1#0", "Remote work is the future", 0.7, nil)}, nil
		}),
		Memory:  returning(item(SourceMemory, "m1", "remote WORK is the   future", 0.85, nil)),
		Metrics: observability.NewMetrics(10),
	})

	res := o.Retrieve(context.Background(), "What do you think about remote work?", "u1", "app")

	require.Len(t, res.Items, 1)
	assert.Equal(t, 0.85, res.Items[0].Score)
	assert.Equal(t, []string{SourceMemory, SourceVector}, res.SourcesUsed)
	assert.Equal(t, []string{SourceMemory, SourceVector}, res.Items[0].Sources)
	assert.Equal(t, 1, res.TotalResults)
	assert.Empty(t, res.DroppedSources)
}

func TestRetrieve_SharesOneEmbedding(t *testing.T) {
	var calls atomic.Int32
	var hybridGot []float32
	o := NewOrchestrator(Deps{
		Classifier: staticClassifier{analysisFor(classifier.IntentFactualLookup, "rust")},
		Embedder: embedFunc(func(context.Context, string) ([]float32, error) {
			calls.Add(1)
			return fullVector(), nil
		}),
		Vector: vectorFunc(func(context.Context, []float32) ([]*RetrievedItem, error) { return nil, nil }),
		Hybrid: hybridFunc(func(_ context.Context, keyword string, emb []float32) ([]*RetrievedItem, error) {
			assert.Equal(t, "rust", keyword)
			hybridGot = emb
			return []*RetrievedItem{item(SourceHybrid, "9", "rust ownership thread", 0.9, nil)}, nil
		}),
		Metrics: observability.NewMetrics(10),
	})

	res := o.Retrieve(context.Background(), "Have you written about Rust?", "u1", "app")

	assert.Equal(t, int32(1), calls.Load())
	assert.Len(t, hybridGot, len(fullVector()))
	assert.Equal(t, queryengine.StrategyBaselineHybrid, res.Strategy)
	assert.Equal(t, []string{SourceHybrid}, res.SourcesUsed)
}

func TestRetrieve_EmbeddingFailureDropsVectorOnly(t *testing.T) {
	hybridEmb := []float32{1}
	o := NewOrchestrator(Deps{
		Classifier: staticClassifier{analysisFor(classifier.IntentContentSearch, "pasta")},
		Embedder: embedFunc(func(context.Context, string) ([]float32, error) {
			return nil, errors.New("embedding provider down")
		}),
		Vector: vectorFunc(func(context.Context, []float32) ([]*RetrievedItem, error) {
			t.Error("vector must not run without an embedding")
			return nil, nil
		}),
		Hybrid: hybridFunc(func(_ context.Context, _ string, emb []float32) ([]*RetrievedItem, error) {
			hybridEmb = emb
			return []*RetrievedItem{item(SourceHybrid, "3", "pasta recipe", 0.4, nil)}, nil
		}),
		Metrics: observability.NewMetrics(10),
	})

	res := o.Retrieve(context.Background(), "Find your pasta recipe", "u1", "app")

	assert.Nil(t, hybridEmb)
	assert.Equal(t, []string{SourceVector}, res.DroppedSources)
	assert.Equal(t, []string{SourceHybrid}, res.SourcesUsed)
}

func TestRetrieve_SlowEmbeddingDegradesHybridToFullText(t *testing.T) {
	cfg := queryengine.DefaultConfig()
	cfg.Timeouts.Vector = 300 * time.Millisecond
	cfg.Timeouts.Hybrid = 300 * time.Millisecond
	cfg.Timeouts.Memory = 300 * time.Millisecond
	cfg.Timeouts.Temporal = 300 * time.Millisecond

	var gotEmb atomic.Bool
	o := NewOrchestrator(Deps{
		Classifier: staticClassifier{analysisFor(classifier.IntentContentSearch, "pasta")},
		// Hangs until its deadline.
		Embedder: embedFunc(func(ctx context.Context, _ string) ([]float32, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
		Vector: vectorFunc(func(context.Context, []float32) ([]*RetrievedItem, error) {
			t.Error("vector must not run without an embedding")
			return nil, nil
		}),
		Hybrid: hybridFunc(func(_ context.Context, _ string, emb []float32) ([]*RetrievedItem, error) {
			if emb != nil {
				gotEmb.Store(true)
				return nil, nil
			}
			return []*RetrievedItem{item(SourceHybrid, "3", "pasta recipe", 0.4, nil)}, nil
		}),
		Config:  cfg,
		Metrics: observability.NewMetrics(10),
	})

	res := o.Retrieve(context.Background(), "Find your pasta recipe", "u1", "app")

	assert.False(t, gotEmb.Load())
	assert.Equal(t, []string{SourceVector}, res.DroppedSources)
	assert.Equal(t, []string{SourceHybrid}, res.SourcesUsed)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "pasta recipe", res.Items[0].Text)
}

func TestRetrieve_WrongWidthEmbeddingNeverReachesStore(t *testing.T) {
	s := &mockVectorStore{}
	o := NewOrchestrator(Deps{
		Classifier: staticClassifier{analysisFor(classifier.IntentCasual)},
		Embedder: embedFunc(func(context.Context, string) ([]float32, error) {
			return make([]float32, 768), nil
		}),
		Vector:  NewVectorSearchAdapter(s),
		Memory:  returning(item(SourceMemory, "m", "hello", 0.6, nil)),
		Metrics: observability.NewMetrics(10),
	})

	res := o.Retrieve(context.Background(), "hi", "u1", "app")

	assert.Equal(t, []string{SourceVector}, res.DroppedSources)
	assert.Equal(t, []string{SourceMemory}, res.SourcesUsed)
	s.AssertNotCalled(t, "VectorSearch", mock.Anything, mock.Anything)
}

func TestRetrieve_ClassifierFailureStillWellFormed(t *testing.T) {
	cls := classifier.New(scriptedLLM{err: errors.New("model overloaded")})
	mem := &mockLongTerm{}
	mem.On("Search", mock.Anything, "hello there", "u1", "app").Return([]*RetrievedItem{}, nil)

	o := NewOrchestrator(Deps{Classifier: cls, Memory: mem, Metrics: observability.NewMetrics(10)})
	res := o.Retrieve(context.Background(), "hello there", "u1", "app")

	require.NotNil(t, res)
	require.NotNil(t, res.QueryAnalysis)
	assert.True(t, res.QueryAnalysis.Fallback)
	assert.Equal(t, classifier.IntentCasual, res.QueryAnalysis.Intent)
	assert.Equal(t, queryengine.StrategyBaseline, res.Strategy)
	assert.Equal(t, ConfidenceNone, res.ConfidenceLevel)
	assert.NotEmpty(t, res.RequestID)
	mem.AssertExpectations(t)
}

func TestRetrieve_ClassifierFailureLoggedWithCode(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	o := NewOrchestrator(Deps{
		Classifier: classifier.New(scriptedLLM{err: errors.New("model overloaded")}),
		Metrics:    observability.NewMetrics(10),
		Logger:     logger,
	})
	o.Retrieve(context.Background(), "hello there", "u1", "app")

	assert.Contains(t, buf.String(), `"error_code":"CLASSIFICATION_FAILED"`)
	assert.Contains(t, buf.String(), "model overloaded")
}

func TestRetrieve_DisabledClassifierIsNotAFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	o := NewOrchestrator(Deps{
		Classifier: classifier.New(nil),
		Metrics:    observability.NewMetrics(10),
		Logger:     logger,
	})
	res := o.Retrieve(context.Background(), "hello there", "u1", "app")

	assert.Equal(t, classifier.IntentCasual, res.QueryAnalysis.Intent)
	assert.NotContains(t, buf.String(), "CLASSIFICATION_FAILED")
}

func TestRetrieve_AdaptersRunConcurrently(t *testing.T) {
	const d = 200 * time.Millisecond
	sleep := func(ctx context.Context) error {
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	start := time.Now()
	var vecStart, memStart, hybStart time.Time
	var mu sync.Mutex
	mark := func(p *time.Time) {
		mu.Lock()
		*p = time.Now()
		mu.Unlock()
	}

	o := NewOrchestrator(Deps{
		Classifier: staticClassifier{analysisFor(classifier.IntentFactualLookup, "chess")},
		Embedder:   staticEmbedder(),
		Vector: vectorFunc(func(ctx context.Context, _ []float32) ([]*RetrievedItem, error) {
			mark(&vecStart)
			return []*RetrievedItem{item(SourceVector, "1#0", "chess openings", 0.6, nil)}, sleep(ctx)
		}),
		Hybrid: hybridFunc(func(ctx context.Context, _ string, _ []float32) ([]*RetrievedItem, error) {
			mark(&hybStart)
			return []*RetrievedItem{item(SourceHybrid, "2", "chess clubs", 0.6, nil)}, sleep(ctx)
		}),
		Memory: memoryFunc(func(ctx context.Context, _ string) ([]*RetrievedItem, error) {
			mark(&memStart)
			return []*RetrievedItem{item(SourceMemory, "m", "plays chess", 0.6, nil)}, sleep(ctx)
		}),
		Metrics: observability.NewMetrics(10),
	})

	res := o.Retrieve(context.Background(), "Do you play chess?", "u1", "app")

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, d)
	assert.Less(t, elapsed, 2*d)
	assert.Len(t, res.Items, 3)
	mu.Lock()
	defer mu.Unlock()
	assert.WithinDuration(t, vecStart, memStart, d/2)
	assert.WithinDuration(t, vecStart, hybStart, d/2)
}

func TestRetrieve_TimedOutAdapterIsDropped(t *testing.T) {
	cfg := queryengine.DefaultConfig()
	cfg.Timeouts.Memory = 50 * time.Millisecond
	metrics := observability.NewMetrics(10)

	o := NewOrchestrator(Deps{
		Classifier: staticClassifier{analysisFor(classifier.IntentCasual)},
		Embedder:   staticEmbedder(),
		Vector: vectorFunc(func(context.Context, []float32) ([]*RetrievedItem, error) {
			return []*RetrievedItem{item(SourceVector, "1#0", "fast answer", 0.9, nil)}, nil
		}),
		// Ignores its context on purpose.
		Memory: memoryFunc(func(context.Context, string) ([]*RetrievedItem, error) {
			time.Sleep(400 * time.Millisecond)
			return []*RetrievedItem{item(SourceMemory, "m", "late answer", 0.9, nil)}, nil
		}),
		Config:  cfg,
		Metrics: metrics,
	})

	start := time.Now()
	res := o.Retrieve(context.Background(), "quick one", "u1", "app")

	assert.Less(t, time.Since(start), 300*time.Millisecond)
	assert.Equal(t, []string{SourceMemory}, res.DroppedSources)
	assert.Equal(t, []string{SourceVector}, res.SourcesUsed)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "fast answer", res.Items[0].Text)

	snap := metrics.Snapshot()
	require.Contains(t, snap.Adapters, SourceMemory)
	assert.Equal(t, int64(1), snap.Adapters[SourceMemory].TimeoutCount)
	assert.Equal(t, int64(0), snap.Adapters[SourceVector].ErrorCount)
}

func TestRetrieve_FailedAdapterIsDropped(t *testing.T) {
	mem := &mockLongTerm{}
	mem.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("401 unauthorized"))

	o := NewOrchestrator(Deps{
		Classifier: staticClassifier{analysisFor(classifier.IntentCasual)},
		Embedder:   staticEmbedder(),
		Vector: vectorFunc(func(context.Context, []float32) ([]*RetrievedItem, error) {
			return []*RetrievedItem{item(SourceVector, "1#0", "a", 0.9, nil), item(SourceVector, "2#0", "b", 0.85, nil)}, nil
		}),
		Memory:  mem,
		Metrics: observability.NewMetrics(10),
	})

	res := o.Retrieve(context.Background(), "anything", "u1", "app")

	assert.Equal(t, []string{SourceMemory}, res.DroppedSources)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, ConfidenceMedium, res.ConfidenceLevel)
}

func TestRetrieve_CancellationReachesAdapters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var sawCancel atomic.Int32
	block := func(actx context.Context) ([]*RetrievedItem, error) {
		defer wg.Done()
		<-actx.Done()
		if errors.Is(actx.Err(), context.Canceled) {
			sawCancel.Add(1)
		}
		return nil, actx.Err()
	}
	wg.Add(2)

	o := NewOrchestrator(Deps{
		Classifier: staticClassifier{analysisFor(classifier.IntentCasual)},
		Embedder:   staticEmbedder(),
		Vector:     vectorFunc(func(actx context.Context, _ []float32) ([]*RetrievedItem, error) { return block(actx) }),
		Memory:     memoryFunc(func(actx context.Context, _ string) ([]*RetrievedItem, error) { return block(actx) }),
		Metrics:    observability.NewMetrics(10),
	})

	time.AfterFunc(30*time.Millisecond, cancel)
	res := o.Retrieve(ctx, "hello", "u1", "app")

	wg.Wait()
	assert.Equal(t, int32(2), sawCancel.Load())
	assert.ElementsMatch(t, []string{SourceVector, SourceMemory}, res.DroppedSources)
	assert.Empty(t, res.Items)
	assert.Equal(t, ConfidenceNone, res.ConfidenceLevel)
}

func TestRetrieve_TruncatesToMaxResults(t *testing.T) {
	cfg := queryengine.DefaultConfig()
	cfg.Limits.MaxResults = 2
	o := NewOrchestrator(Deps{
		Classifier: staticClassifier{analysisFor(classifier.IntentCasual)},
		Memory: returning(
			item(SourceMemory, "a", "one", 0.3, nil),
			item(SourceMemory, "b", "two", 0.9, nil),
			item(SourceMemory, "c", "three", 0.6, nil),
		),
		Config:  cfg,
		Metrics: observability.NewMetrics(10),
	})

	res := o.Retrieve(context.Background(), "list", "u1", "app")

	require.Len(t, res.Items, 2)
	assert.Equal(t, "two", res.Items[0].Text)
	assert.Equal(t, "three", res.Items[1].Text)
	assert.Equal(t, 2, res.TotalResults)
}

func TestRetrieve_ReusesRequestContext(t *testing.T) {
	reqCtx := observability.NewRequestContextWithID(nil, "req-42", "u1", "app")
	ctx := observability.WithRequestContext(context.Background(), reqCtx)
	o := NewOrchestrator(Deps{
		Classifier: staticClassifier{analysisFor(classifier.IntentUncertaintyTest)},
		Metrics:    observability.NewMetrics(10),
	})

	assert.Equal(t, "req-42", o.Retrieve(ctx, "q", "u1", "app").RequestID)
}

func TestRetrieve_RecentPostsEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewTestingStore(ctx, t)
	now := time.Now()

	_, err := s.UpsertContent(ctx, &store.Content{
		AppID: "app", UserID: "u1", Source: store.SourceTwitter, ExternalID: "tw-1",
		ContentType: store.ContentTypePost, Text: "Shipped a tiny AI agent that files my receipts",
		CreatedTs: unix(now.Add(-3 * 24 * time.Hour)),
	})
	require.NoError(t, err)
	_, err = s.UpsertContent(ctx, &store.Content{
		AppID: "app", UserID: "u1", Source: store.SourceTwitter, ExternalID: "tw-old",
		ContentType: store.ContentTypePost, Text: "An old thread about compilers",
		CreatedTs: unix(now.Add(-40 * 24 * time.Hour)),
	})
	require.NoError(t, err)

	llm := scriptedLLM{content: `{"intent":"recent_events","entities":["AI"],
		"temporal":{"type":"relative","recency":"recent","days":7,"year":null},
		"contentTypes":["post"],"sources":[],"requiresAggregation":false,
		"expectedAnswerType":"list","confidenceRequired":"medium","requiresPrivateInfo":false}`}

	o := NewOrchestrator(Deps{
		Classifier: classifier.New(llm),
		Embedder:   staticEmbedder(),
		Vector: vectorFunc(func(context.Context, []float32) ([]*RetrievedItem, error) {
			return []*RetrievedItem{item(SourceVector, "77#0", "My take on AI regulation", 0.81, nil)}, nil
		}),
		Temporal: NewTemporalRetriever(s),
		Metrics:  observability.NewMetrics(10),
	})

	res := o.Retrieve(ctx, "What did you post about AI last week?", "u1", "app")

	require.NotNil(t, res.QueryAnalysis)
	assert.Equal(t, classifier.IntentRecentEvents, res.QueryAnalysis.Intent)
	require.NotNil(t, res.QueryAnalysis.TemporalConstraint)
	require.NotNil(t, res.QueryAnalysis.TemporalConstraint.RecencyDays)
	assert.Equal(t, 7, *res.QueryAnalysis.TemporalConstraint.RecencyDays)
	assert.Contains(t, res.SourcesUsed, SourceTemporal)

	var texts []string
	for _, it := range res.Items {
		texts = append(texts, it.Text)
	}
	assert.Contains(t, texts, "Shipped a tiny AI agent that files my receipts")
	assert.NotContains(t, texts, "An old thread about compilers")
	assert.Equal(t, queryengine.StrategyBaselineTemporal, res.Strategy)
}

func TestRetrieve_CasualEndToEnd(t *testing.T) {
	llm := scriptedLLM{content: `{"intent":"casual_conversation","entities":[],"temporal":null,
		"contentTypes":[],"sources":[],"requiresAggregation":false,
		"expectedAnswerType":"conversation","confidenceRequired":"low","requiresPrivateInfo":false}`}

	o := NewOrchestrator(Deps{
		Classifier: classifier.New(llm),
		Memory:     returning(),
		Metrics:    observability.NewMetrics(10),
	})

	res := o.Retrieve(context.Background(), "Hey, how's it going?", "u1", "app")

	require.NotNil(t, res.QueryAnalysis)
	assert.Equal(t, classifier.IntentCasual, res.QueryAnalysis.Intent)
	assert.Equal(t, classifier.ConfidenceRequiredLow, res.QueryAnalysis.ConfidenceRequired)
	assert.Empty(t, res.QueryAnalysis.Entities)
	assert.False(t, res.QueryAnalysis.Fallback)
	assert.Nil(t, res.QueryAnalysis.TemporalConstraint)
}

func TestNewOrchestrator_PanicsWithoutClassifier(t *testing.T) {
	assert.Panics(t, func() { NewOrchestrator(Deps{}) })
}
