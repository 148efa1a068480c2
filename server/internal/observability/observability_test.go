package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	reqCtx := NewRequestContext(logger, "user-1", "app-1")
	require.NotEmpty(t, reqCtx.RequestID)

	ctx := WithRequestContext(context.Background(), reqCtx)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, reqCtx, got)

	reqCtx.Warn(ctx, "adapter failed", slog.String(LogFieldAdapter, "vector"))
	out := buf.String()
	assert.Contains(t, out, `"request_id":"`+reqCtx.RequestID+`"`)
	assert.Contains(t, out, `"app_id":"app-1"`)
	assert.Contains(t, out, `"adapter":"vector"`)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

func TestNewRequestContextWithIDDefaults(t *testing.T) {
	reqCtx := NewRequestContextWithID(nil, "", "u", "a")
	assert.NotEmpty(t, reqCtx.RequestID)
	assert.NotNil(t, reqCtx.Logger)
}

func TestMetrics(t *testing.T) {
	m := NewMetrics(2)

	m.RecordAdapterCall("vector", 20*time.Millisecond, 3, nil, false)
	m.RecordAdapterCall("vector", 40*time.Millisecond, 0, errors.New("boom"), true)
	m.RecordAdapterCall("memory", 10*time.Millisecond, 1, nil, false)
	m.RecordRequest("high", time.Second)
	m.RecordRequest("none", time.Second)
	m.RecordRequest("high", time.Second)
	m.RecordSkipped()

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.RequestTotal)
	assert.Equal(t, int64(1), snap.RequestSkipped)
	assert.Equal(t, int64(2), snap.Confidence["high"])
	assert.Equal(t, 2, snap.DurationCount)

	vector := snap.Adapters["vector"]
	require.NotNil(t, vector)
	assert.Equal(t, int64(2), vector.CallCount)
	assert.Equal(t, int64(1), vector.ErrorCount)
	assert.Equal(t, int64(1), vector.TimeoutCount)
	assert.Equal(t, int64(3), vector.ItemCount)
	assert.Equal(t, int64(30), vector.AverageDuration)
	assert.InDelta(t, 50.0, vector.SuccessRate(), 0.001)

	assert.Equal(t, []string{"memory", "vector"}, m.GetAllAdapters())

	m.Reset()
	assert.Equal(t, int64(0), m.GetRequestTotal())
	assert.Empty(t, m.GetAllAdapters())
}

func TestMetricsConcurrent(t *testing.T) {
	m := NewMetrics(100)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordAdapterCall("temporal", time.Millisecond, 1, nil, false)
			m.RecordRequest("low", time.Millisecond)
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, int64(50), snap.Adapters["temporal"].CallCount)
	assert.Equal(t, int64(50), snap.Confidence["low"])
}
