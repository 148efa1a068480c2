package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/recall/plugin/ai/memory"
	"github.com/hrygo/recall/plugin/ai/vector"
	aierrors "github.com/hrygo/recall/server/internal/errors"
	"github.com/hrygo/recall/server/queryengine"
	"github.com/hrygo/recall/store"
)

type mockVectorStore struct{ mock.Mock }

func (m *mockVectorStore) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.ChunkWithScore, error) {
	args := m.Called(ctx, opts)
	res, _ := args.Get(0).([]*store.ChunkWithScore)
	return res, args.Error(1)
}

type mockRelationalStore struct{ mock.Mock }

func (m *mockRelationalStore) HybridSearch(ctx context.Context, opts *store.HybridSearchOptions) ([]*store.ContentWithScore, error) {
	args := m.Called(ctx, opts)
	res, _ := args.Get(0).([]*store.ContentWithScore)
	return res, args.Error(1)
}

func (m *mockRelationalStore) FullTextSearch(ctx context.Context, opts *store.FullTextSearchOptions) ([]*store.ContentWithScore, error) {
	args := m.Called(ctx, opts)
	res, _ := args.Get(0).([]*store.ContentWithScore)
	return res, args.Error(1)
}

func (m *mockRelationalStore) ListContentInWindow(ctx context.Context, window *store.ListContentWindow) ([]*store.Content, error) {
	args := m.Called(ctx, window)
	res, _ := args.Get(0).([]*store.Content)
	return res, args.Error(1)
}

type mockMemoryClient struct{ mock.Mock }

func (m *mockMemoryClient) Search(ctx context.Context, req *memory.SearchRequest) ([]memory.Memory, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).([]memory.Memory)
	return res, args.Error(1)
}

func fullVector() []float32 {
	v := make([]float32, vector.Dimensions)
	v[0] = 1
	return v
}

func unix(t time.Time) *int64 {
	v := t.Unix()
	return &v
}

func TestVectorAdapter_RejectsWrongDimensionsBeforeStore(t *testing.T) {
	s := &mockVectorStore{}
	a := NewVectorSearchAdapter(s)

	for _, emb := range [][]float32{nil, make([]float32, 768), make([]float32, vector.Dimensions+1)} {
		items, err := a.Query(context.Background(), emb, VectorFilters{AppID: "app"}, 10, 0.3)
		require.Error(t, err)
		assert.Nil(t, items)
		assert.True(t, IsValidationError(err))
	}
	s.AssertNotCalled(t, "VectorSearch", mock.Anything, mock.Anything)
}

func TestVectorAdapter_FiltersAndMaps(t *testing.T) {
	s := &mockVectorStore{}
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Unix()
	s.On("VectorSearch", mock.Anything, mock.MatchedBy(func(o *store.VectorSearchOptions) bool {
		return o.AppID != nil && *o.AppID == "app" && o.UserID != nil && *o.UserID == "u1" && o.Limit == 5 && o.Threshold == 0.3
	})).Return([]*store.ChunkWithScore{
		{Chunk: &store.ContentChunk{ContentID: 7, ChunkIndex: 2, Text: "near", CreatedTs: &created}, Source: store.SourceBlog, Link: "https://x/7", Score: 0.9},
		{Chunk: &store.ContentChunk{ContentID: 8, Text: "edge"}, Score: 0.3},
	}, nil)

	items, err := NewVectorSearchAdapter(s).Query(context.Background(), fullVector(), VectorFilters{UserID: "u1", AppID: "app"}, 5, 0.3)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, SourceVector, items[0].Source)
	assert.Equal(t, "7#2", items[0].ExternalRef)
	assert.Equal(t, "blog", items[0].Metadata["source"])
	assert.Equal(t, "https://x/7", items[0].Metadata["link"])
	s.AssertExpectations(t)
}

func TestVectorAdapter_StoreErrorPropagates(t *testing.T) {
	s := &mockVectorStore{}
	s.On("VectorSearch", mock.Anything, mock.Anything).Return(nil, errors.New("pool exhausted"))

	_, err := NewVectorSearchAdapter(s).Query(context.Background(), fullVector(), VectorFilters{}, 5, 0.3)

	require.Error(t, err)
	assert.False(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "pool exhausted")
}

func TestHybridSearch_PassesWeights(t *testing.T) {
	s := &mockRelationalStore{}
	s.On("HybridSearch", mock.Anything, mock.MatchedBy(func(o *store.HybridSearchOptions) bool {
		return o.Keyword == "golang" && o.KeywordWeight == 0.3 && o.VectorWeight == 0.7 &&
			o.MinVectorScore == 0.3 && len(o.Sources) == 1 && o.Sources[0] == store.SourceBlog
	})).Return([]*store.ContentWithScore{
		{Content: &store.Content{ID: 1, Text: "golang rocks", Source: store.SourceBlog}, Score: 0.93},
	}, nil)

	items, err := NewHybridRelationalSearch(s, 0.3).Search(context.Background(), "golang", fullVector(),
		HybridFilters{AppID: "app", Sources: []string{"blog", "myspace"}}, Weights{})

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, SourceHybrid, items[0].Source)
	assert.Equal(t, "1", items[0].ExternalRef)
	s.AssertNotCalled(t, "FullTextSearch", mock.Anything, mock.Anything)
}

func TestHybridSearch_DegradesToFullText(t *testing.T) {
	s := &mockRelationalStore{}
	s.On("HybridSearch", mock.Anything, mock.Anything).Return(nil, errors.New("operator does not exist: vector <=> vector"))
	s.On("FullTextSearch", mock.Anything, mock.MatchedBy(func(o *store.FullTextSearchOptions) bool {
		return o.Query == "golang" && o.AppID == "app"
	})).Return([]*store.ContentWithScore{
		{Content: &store.Content{ID: 2, Text: "golang notes"}, Score: 0.4},
	}, nil)

	items, err := NewHybridRelationalSearch(s, 0.3).Search(context.Background(), "golang", fullVector(), HybridFilters{AppID: "app"}, DefaultWeights)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "2", items[0].ExternalRef)
	s.AssertExpectations(t)
}

func TestHybridSearch_NoEmbeddingUsesFullText(t *testing.T) {
	s := &mockRelationalStore{}
	s.On("FullTextSearch", mock.Anything, mock.Anything).Return([]*store.ContentWithScore{}, nil)

	for _, emb := range [][]float32{nil, {0.1, 0.2}} {
		items, err := NewHybridRelationalSearch(s, 0.3).Search(context.Background(), "golang", emb, HybridFilters{AppID: "app"}, DefaultWeights)
		require.NoError(t, err)
		assert.Empty(t, items)
	}
	s.AssertNotCalled(t, "HybridSearch", mock.Anything, mock.Anything)
	s.AssertNumberOfCalls(t, "FullTextSearch", 2)
}

func TestHybridSearch_TotalFailureIsEmptyNotError(t *testing.T) {
	s := &mockRelationalStore{}
	s.On("HybridSearch", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))
	s.On("FullTextSearch", mock.Anything, mock.Anything).Return(nil, errors.New("boom again"))

	items, err := NewHybridRelationalSearch(s, 0.3).Search(context.Background(), "golang", fullVector(), HybridFilters{AppID: "app"}, DefaultWeights)

	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestHybridSearch_ContextErrorSurfaces(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &mockRelationalStore{}
	s.On("HybridSearch", mock.Anything, mock.Anything).Return(nil, context.Canceled)

	_, err := NewHybridRelationalSearch(s, 0.3).Search(ctx, "golang", fullVector(), HybridFilters{AppID: "app"}, DefaultWeights)

	assert.ErrorIs(t, err, context.Canceled)
	s.AssertNotCalled(t, "FullTextSearch", mock.Anything, mock.Anything)
}

func TestTemporalRetriever_ScoresByPositionInWindow(t *testing.T) {
	end := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	window := queryengine.TimeWindow{Start: end.Add(-10 * 24 * time.Hour), End: end}

	s := &mockRelationalStore{}
	s.On("ListContentInWindow", mock.Anything, mock.MatchedBy(func(w *store.ListContentWindow) bool {
		return w.AppID == "app" && w.Start.Equal(window.Start) && w.End.Equal(window.End) && w.Limit == 20
	})).Return([]*store.Content{
		{ID: 1, Text: "newest", CreatedTs: unix(end)},
		{ID: 2, Text: "middle", CreatedTs: unix(end.Add(-5 * 24 * time.Hour))},
		{ID: 3, Text: "oldest", CreatedTs: unix(window.Start)},
		{ID: 4, Text: "undated"},
	}, nil)

	items, err := NewTemporalRetriever(s).Fetch(context.Background(), "app", window, nil, 0)

	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.InDelta(t, 1.0, items[0].Score, 1e-9)
	assert.InDelta(t, 0.75, items[1].Score, 1e-9)
	assert.InDelta(t, 0.5, items[2].Score, 1e-9)
	assert.InDelta(t, 0.5, items[3].Score, 1e-9)
	assert.Nil(t, items[3].CreatedAt)
	for _, it := range items {
		assert.Equal(t, SourceTemporal, it.Source)
	}

	// undated rows stay after dated ones of equal score once merged
	merged := Merge(items)
	assert.Equal(t, "undated", merged[len(merged)-1].Text)
}

func TestTemporalRetriever_InvertedWindow(t *testing.T) {
	s := &mockRelationalStore{}
	now := time.Now()

	_, err := NewTemporalRetriever(s).Fetch(context.Background(), "app", queryengine.TimeWindow{Start: now, End: now.Add(-time.Hour)}, nil, 5)

	assert.True(t, IsValidationError(err))
	s.AssertNotCalled(t, "ListContentInWindow", mock.Anything, mock.Anything)
}

func TestLongTermMemoryAdapter_MapsMemories(t *testing.T) {
	c := &mockMemoryClient{}
	c.On("Search", mock.Anything, &memory.SearchRequest{Query: "q", UserID: "u1", AppID: "app", TopK: 10}).Return([]memory.Memory{
		{ID: "m1", Memory: "likes hiking", Score: 1.7, Metadata: memory.Metadata{Source: "twitter", Timestamp: "1767225600"}},
		{ID: "m2", Memory: ""},
		{ID: "m3", Memory: "dislikes rain", Score: -0.2},
	}, nil)

	items, err := NewLongTermMemoryAdapter(c, 10).Search(context.Background(), "q", "u1", "app")

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 1.0, items[0].Score)
	assert.Equal(t, "twitter", items[0].Metadata["source"])
	require.NotNil(t, items[0].CreatedAt)
	assert.Equal(t, int64(1767225600), items[0].CreatedAt.Unix())
	assert.Equal(t, 0.0, items[1].Score)
	assert.Nil(t, items[1].CreatedAt)
}

func TestLongTermMemoryAdapter_ErrorPropagates(t *testing.T) {
	c := &mockMemoryClient{}
	c.On("Search", mock.Anything, mock.Anything).Return(nil, &memory.StatusError{StatusCode: 401})

	_, err := NewLongTermMemoryAdapter(c, 10).Search(context.Background(), "q", "u1", "")

	var se *memory.StatusError
	assert.ErrorAs(t, err, &se)
	assert.False(t, aierrors.IsCode(err, aierrors.ErrCodeTransportRetryable))
}

func TestLongTermMemoryAdapter_ExhaustedRetriesAreTransportRetryable(t *testing.T) {
	c := &mockMemoryClient{}
	c.On("Search", mock.Anything, mock.Anything).Return(nil, &memory.RetriesExhaustedError{
		Op: "memory search", Attempts: 3, Err: &memory.StatusError{StatusCode: 503},
	})

	_, err := NewLongTermMemoryAdapter(c, 10).Search(context.Background(), "q", "u1", "app")

	require.Error(t, err)
	assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeTransportRetryable))
	var se *memory.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 503, se.StatusCode)
}
