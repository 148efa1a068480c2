package v1

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/recall/plugin/ai/timeout"
	"github.com/hrygo/recall/server/internal/observability"
)

// RetrieveRequest is the body of POST /api/v1/retrieve.
type RetrieveRequest struct {
	Query  string `json:"query"`
	UserID string `json:"userId"`
	AppID  string `json:"appId"`
}

// Retrieve runs one retrieval. Only malformed requests fail; every retrieval
// outcome, including an empty one, is a 200.
// POST /api/v1/retrieve
func (s *APIV1Service) Retrieve(c echo.Context) error {
	var req RetrieveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "query is required"})
	}
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "userId is required"})
	}

	reqCtx := observability.NewRequestContextWithID(slog.Default(),
		c.Request().Header.Get(echo.HeaderXRequestID), req.UserID, req.AppID)
	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout.RetrieveTimeout)
	defer cancel()
	ctx = observability.WithRequestContext(ctx, reqCtx)
	c.Response().Header().Set(echo.HeaderXRequestID, reqCtx.RequestID)

	result := s.Retriever.Retrieve(ctx, req.Query, req.UserID, req.AppID)
	return c.JSON(http.StatusOK, result)
}

// TriggerBackfill asks the embedding runner for an immediate pass.
// POST /api/v1/backfill
func (s *APIV1Service) TriggerBackfill(c echo.Context) error {
	if s.Backfill == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "embedding backfill is disabled"})
	}
	s.Backfill.Trigger()
	return c.JSON(http.StatusAccepted, map[string]string{"status": "scheduled"})
}
