package v1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/recall/internal/profile"
	"github.com/hrygo/recall/server/internal/observability"
	"github.com/hrygo/recall/server/retrieval"
)

// Retriever is implemented by retrieval.Orchestrator.
type Retriever interface {
	Retrieve(ctx context.Context, query, userID, appID string) *retrieval.RetrievalResult
}

// BackfillTrigger is implemented by the embedding runner.
type BackfillTrigger interface {
	Trigger()
}

type APIV1Service struct {
	Profile   *profile.Profile
	Retriever Retriever
	Metrics   *observability.Metrics
	// Backfill is optional; nil disables POST /api/v1/backfill.
	Backfill BackfillTrigger
}

func NewAPIV1Service(profile *profile.Profile, retriever Retriever, metrics *observability.Metrics) *APIV1Service {
	if metrics == nil {
		metrics = observability.GlobalMetrics()
	}
	return &APIV1Service{
		Profile:   profile,
		Retriever: retriever,
		Metrics:   metrics,
	}
}

// RegisterRoutes mounts the JSON API under /api/v1.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	g := echoServer.Group("/api/v1")
	g.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(_ string) (bool, error) {
			return true, nil
		},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"*"},
	}))

	g.POST("/retrieve", s.Retrieve)
	g.GET("/system/metrics/overview", s.GetMetricsOverview)
	g.POST("/backfill", s.TriggerBackfill)
	g.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}
