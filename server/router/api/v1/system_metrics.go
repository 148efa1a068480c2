package v1

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
)

// MetricsOverviewResponse represents the overview response of retrieval metrics
type MetricsOverviewResponse struct {
	TotalRequests   int64             `json:"total_requests"`
	SkippedRequests int64             `json:"skipped_requests"`
	Confidence      map[string]int64  `json:"confidence"`
	Adapters        []AdapterOverview `json:"adapters"`
}

// AdapterOverview summarizes one retrieval adapter.
type AdapterOverview struct {
	Name         string  `json:"name"`
	CallCount    int64   `json:"call_count"`
	ErrorCount   int64   `json:"error_count"`
	TimeoutCount int64   `json:"timeout_count"`
	SuccessRate  float64 `json:"success_rate"`
	AvgLatencyMs int64   `json:"avg_latency_ms"`
	ItemCount    int64   `json:"item_count"`
}

// GetMetricsOverview returns the in-process retrieval metrics since start.
// GET /api/v1/system/metrics/overview
func (s *APIV1Service) GetMetricsOverview(c echo.Context) error {
	snap := s.Metrics.Snapshot()

	adapters := make([]AdapterOverview, 0, len(snap.Adapters))
	for name, am := range snap.Adapters {
		adapters = append(adapters, AdapterOverview{
			Name:         name,
			CallCount:    am.CallCount,
			ErrorCount:   am.ErrorCount,
			TimeoutCount: am.TimeoutCount,
			SuccessRate:  am.SuccessRate(),
			AvgLatencyMs: am.AverageDuration,
			ItemCount:    am.ItemCount,
		})
	}
	sort.Slice(adapters, func(i, j int) bool { return adapters[i].Name < adapters[j].Name })

	return c.JSON(http.StatusOK, MetricsOverviewResponse{
		TotalRequests:   snap.RequestTotal,
		SkippedRequests: snap.RequestSkipped,
		Confidence:      snap.Confidence,
		Adapters:        adapters,
	})
}
