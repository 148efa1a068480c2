package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects and aggregates metrics for retrieval requests and adapter calls.
type Metrics struct {
	mu sync.Mutex

	requestTotal   atomic.Int64
	requestSkipped atomic.Int64 // short-circuited without touching adapters

	adapterMetrics    map[string]*AdapterMetrics
	confidenceMetrics map[string]*atomic.Int64

	// Request durations, bounded FIFO.
	durations    []time.Duration
	maxDurations int
}

// AdapterMetrics represents metrics for a specific retrieval adapter.
type AdapterMetrics struct {
	callCount     atomic.Int64
	totalDuration atomic.Int64 // milliseconds
	errorCount    atomic.Int64
	timeoutCount  atomic.Int64
	itemCount     atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		adapterMetrics:    make(map[string]*AdapterMetrics),
		confidenceMetrics: make(map[string]*atomic.Int64),
		durations:         make([]time.Duration, 0, maxDurations),
		maxDurations:      maxDurations,
	}
}

var globalMetrics = NewMetrics(1000)

// GlobalMetrics returns the global metrics instance.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// RecordRequest records a finished retrieval request with its confidence level.
func (m *Metrics) RecordRequest(confidence string, duration time.Duration) {
	m.requestTotal.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()
	counter, ok := m.confidenceMetrics[confidence]
	if !ok {
		counter = &atomic.Int64{}
		m.confidenceMetrics[confidence] = counter
	}
	counter.Add(1)

	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
}

// RecordSkipped records a request that short-circuited before fan-out.
func (m *Metrics) RecordSkipped() {
	m.requestSkipped.Add(1)
}

// RecordAdapterCall records one adapter invocation and its outcome.
func (m *Metrics) RecordAdapterCall(adapter string, duration time.Duration, items int, err error, timedOut bool) {
	am := m.GetAdapterMetrics(adapter)
	am.callCount.Add(1)
	am.totalDuration.Add(duration.Milliseconds())
	am.itemCount.Add(int64(items))
	if err != nil {
		am.errorCount.Add(1)
	}
	if timedOut {
		am.timeoutCount.Add(1)
	}
}

// GetRequestTotal returns the total number of requests.
func (m *Metrics) GetRequestTotal() int64 {
	return m.requestTotal.Load()
}

// GetAdapterMetrics returns metrics for a specific adapter, creating them if needed.
func (m *Metrics) GetAdapterMetrics(adapter string) *AdapterMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	am, ok := m.adapterMetrics[adapter]
	if !ok {
		am = &AdapterMetrics{}
		m.adapterMetrics[adapter] = am
	}
	return am
}

// GetAllAdapters returns all adapters that have been recorded, sorted.
func (m *Metrics) GetAllAdapters() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.adapterMetrics))
	for name := range m.adapterMetrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset resets all metrics (useful for testing).
func (m *Metrics) Reset() {
	m.requestTotal.Store(0)
	m.requestSkipped.Store(0)

	m.mu.Lock()
	m.adapterMetrics = make(map[string]*AdapterMetrics)
	m.confidenceMetrics = make(map[string]*atomic.Int64)
	m.durations = make([]time.Duration, 0, m.maxDurations)
	m.mu.Unlock()
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	adapters := make(map[string]*AdapterMetricsSnapshot, len(m.adapterMetrics))
	for name, am := range m.adapterMetrics {
		count := am.callCount.Load()
		var avg int64
		if count > 0 {
			avg = am.totalDuration.Load() / count
		}
		adapters[name] = &AdapterMetricsSnapshot{
			CallCount:       count,
			ErrorCount:      am.errorCount.Load(),
			TimeoutCount:    am.timeoutCount.Load(),
			ItemCount:       am.itemCount.Load(),
			AverageDuration: avg,
		}
	}

	confidence := make(map[string]int64, len(m.confidenceMetrics))
	for level, counter := range m.confidenceMetrics {
		confidence[level] = counter.Load()
	}

	return &MetricsSnapshot{
		RequestTotal:   m.requestTotal.Load(),
		RequestSkipped: m.requestSkipped.Load(),
		Adapters:       adapters,
		Confidence:     confidence,
		DurationCount:  len(m.durations),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RequestTotal   int64                              `json:"request_total"`
	RequestSkipped int64                              `json:"request_skipped"`
	Adapters       map[string]*AdapterMetricsSnapshot `json:"adapters"`
	Confidence     map[string]int64                   `json:"confidence"`
	DurationCount  int                                `json:"duration_count"`
}

// AdapterMetricsSnapshot represents metrics for a specific adapter.
type AdapterMetricsSnapshot struct {
	CallCount       int64 `json:"call_count"`
	ErrorCount      int64 `json:"error_count"`
	TimeoutCount    int64 `json:"timeout_count"`
	ItemCount       int64 `json:"item_count"`
	AverageDuration int64 `json:"average_duration_ms"`
}

// SuccessRate returns the adapter success rate as a percentage (0-100).
func (s *AdapterMetricsSnapshot) SuccessRate() float64 {
	if s.CallCount == 0 {
		return 100.0
	}
	return float64(s.CallCount-s.ErrorCount) / float64(s.CallCount) * 100.0
}
