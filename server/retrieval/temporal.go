package retrieval

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"

	aierrors "github.com/hrygo/recall/server/internal/errors"
	"github.com/hrygo/recall/server/queryengine"
	"github.com/hrygo/recall/store"
)

const (
	// temporalFloorScore is the score at the window start and for undated rows.
	temporalFloorScore   = 0.5
	defaultTemporalLimit = 20
)

// TemporalRetriever fetches content rows by creation time.
type TemporalRetriever struct {
	store RelationalStore
}

// NewTemporalRetriever creates a TemporalRetriever.
func NewTemporalRetriever(s RelationalStore) *TemporalRetriever {
	return &TemporalRetriever{store: s}
}

// Fetch returns rows created inside window, newest first. Rows with no timestamp
// are included and sorted after every dated row; callers wanting a strict window
// must drop items whose CreatedAt is nil.
func (r *TemporalRetriever) Fetch(ctx context.Context, appID string, window queryengine.TimeWindow, sources []string, limit int) ([]*RetrievedItem, error) {
	if window.End.Before(window.Start) {
		return nil, aierrors.InvalidArgument("temporal window ends before it starts")
	}
	if limit <= 0 {
		limit = defaultTemporalLimit
	}

	rows, err := r.store.ListContentInWindow(ctx, &store.ListContentWindow{
		AppID:   appID,
		Start:   window.Start,
		End:     window.End,
		Sources: toContentSources(sources),
		Limit:   limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "temporal fetch failed")
	}

	items := make([]*RetrievedItem, 0, len(rows))
	for _, c := range rows {
		items = append(items, contentItem(SourceTemporal, c, recencyScore(c, window)))
	}
	return items, nil
}

// recencyScore is 1.0 at the window end falling linearly to 0.5 at the start.
func recencyScore(c *store.Content, window queryengine.TimeWindow) float64 {
	created := c.CreatedAt()
	if created == nil {
		return temporalFloorScore
	}
	span := window.Duration()
	if span <= 0 {
		return 1
	}
	pos := float64(created.Sub(window.Start)) / float64(span)
	return temporalFloorScore + (1-temporalFloorScore)*clamp01(pos)
}

// IsValidationError reports whether err was raised before any store access.
func IsValidationError(err error) bool {
	var aiErr *aierrors.AIError
	return errors.As(err, &aiErr) && aiErr.Code == aierrors.ErrCodeInvalidArgument
}
