package classifier

import (
	"strings"
	"time"
)

const (
	minYear = 1900
	maxYear = 2100
)

// RawTemporal is the temporal hint produced by the model: a type plus a day count or a year.
type RawTemporal struct {
	Type    string `json:"type"`
	Recency string `json:"recency"`
	Days    *int   `json:"days"`
	Year    *int   `json:"year"`
}

// DeriveTemporal converts a raw hint into a concrete window relative to now.
// It is pure: the same (raw, now) always yields the same constraint.
// A nil result means the hint carried no usable window.
func DeriveTemporal(raw *RawTemporal, now time.Time) *TemporalConstraint {
	if raw == nil {
		return nil
	}

	typ := TemporalType(strings.ToLower(strings.TrimSpace(raw.Type)))
	switch typ {
	case TemporalRelative, TemporalAbsolute:
	default:
		// Infer from whichever field is present.
		switch {
		case raw.Days != nil:
			typ = TemporalRelative
		case raw.Year != nil:
			typ = TemporalAbsolute
		default:
			return nil
		}
	}
	// An absolute hint without a year cannot be placed on the calendar.
	if typ == TemporalAbsolute && raw.Year == nil && raw.Days != nil {
		typ = TemporalRelative
	}

	recency := parseRecency(raw.Recency)

	if typ == TemporalRelative {
		if raw.Days == nil || *raw.Days <= 0 {
			return nil
		}
		days := *raw.Days
		if recency == RecencyAny {
			recency = RecencyRecent
		}
		return &TemporalConstraint{
			Type:        TemporalRelative,
			Recency:     recency,
			RecencyDays: &days,
			StartDate:   now.Add(-time.Duration(days) * 24 * time.Hour),
			EndDate:     now,
		}
	}

	if raw.Year == nil || *raw.Year < minYear || *raw.Year > maxYear {
		return nil
	}
	year := *raw.Year
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return &TemporalConstraint{
		Type:      TemporalAbsolute,
		Recency:   recency,
		Year:      &year,
		StartDate: start,
		EndDate:   start.AddDate(1, 0, 0).Add(-time.Nanosecond),
	}
}
