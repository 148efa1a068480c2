// Package classifier maps a free-text query to a structured QueryAnalysis.
package classifier

import (
	"strings"
	"time"
)

// Intent is the closed set of query intents.
type Intent string

const (
	IntentFactualLookup      Intent = "factual_lookup"
	IntentRecentEvents       Intent = "recent_events"
	IntentHistoricalTimeline Intent = "historical_timeline"
	IntentPersonalityQuery   Intent = "personality_query"
	IntentOpinionQuery       Intent = "opinion_query"
	IntentContentSearch      Intent = "content_search"
	IntentAnalyticsQuery     Intent = "analytics_query"
	IntentCasual             Intent = "casual_conversation"
	IntentUncertaintyTest    Intent = "uncertainty_test"
	IntentStoryRequest       Intent = "story_request"
)

// AllIntents lists every intent in schema order.
var AllIntents = []Intent{
	IntentFactualLookup,
	IntentRecentEvents,
	IntentHistoricalTimeline,
	IntentPersonalityQuery,
	IntentOpinionQuery,
	IntentContentSearch,
	IntentAnalyticsQuery,
	IntentCasual,
	IntentUncertaintyTest,
	IntentStoryRequest,
}

// ParseIntent maps model output to an Intent. Unknown values map to casual conversation.
func ParseIntent(s string) Intent {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, i := range AllIntents {
		if string(i) == s {
			return i
		}
	}
	return IntentCasual
}

// IsTemporal reports whether the intent asks about when things happened.
func (i Intent) IsTemporal() bool {
	return i == IntentRecentEvents || i == IntentHistoricalTimeline
}

// AnswerType is the shape of answer the query expects.
type AnswerType string

const (
	AnswerFact         AnswerType = "fact"
	AnswerList         AnswerType = "list"
	AnswerSummary      AnswerType = "summary"
	AnswerTimeline     AnswerType = "timeline"
	AnswerOpinion      AnswerType = "opinion"
	AnswerNumber       AnswerType = "number"
	AnswerConversation AnswerType = "conversation"
	AnswerUnknown      AnswerType = "unknown"
)

var allAnswerTypes = []AnswerType{
	AnswerFact, AnswerList, AnswerSummary, AnswerTimeline,
	AnswerOpinion, AnswerNumber, AnswerConversation, AnswerUnknown,
}

func parseAnswerType(s string) AnswerType {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range allAnswerTypes {
		if string(a) == s {
			return a
		}
	}
	return AnswerUnknown
}

// ConfidenceRequirement is how well supported an answer must be before it is stated.
type ConfidenceRequirement string

const (
	ConfidenceRequiredHigh   ConfidenceRequirement = "high"
	ConfidenceRequiredMedium ConfidenceRequirement = "medium"
	ConfidenceRequiredLow    ConfidenceRequirement = "low"
)

func parseConfidenceRequirement(s string) ConfidenceRequirement {
	switch ConfidenceRequirement(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceRequiredHigh:
		return ConfidenceRequiredHigh
	case ConfidenceRequiredMedium:
		return ConfidenceRequiredMedium
	default:
		return ConfidenceRequiredLow
	}
}

// TemporalType distinguishes calendar windows from windows relative to now.
type TemporalType string

const (
	TemporalAbsolute TemporalType = "absolute"
	TemporalRelative TemporalType = "relative"
)

// Recency is the coarse time orientation of a query.
type Recency string

const (
	RecencyRecent     Recency = "recent"
	RecencyHistorical Recency = "historical"
	RecencyAny        Recency = "any"
)

func parseRecency(s string) Recency {
	switch Recency(strings.ToLower(strings.TrimSpace(s))) {
	case RecencyRecent:
		return RecencyRecent
	case RecencyHistorical:
		return RecencyHistorical
	default:
		return RecencyAny
	}
}

// TemporalConstraint is a derived date window. StartDate and EndDate are always
// computed from Type, RecencyDays and Year, never taken from model output.
type TemporalConstraint struct {
	Type        TemporalType `json:"type"`
	Recency     Recency      `json:"recency"`
	RecencyDays *int         `json:"recencyDays,omitempty"` // set iff relative
	Year        *int         `json:"year,omitempty"`        // set iff absolute
	StartDate   time.Time    `json:"startDate"`
	EndDate     time.Time    `json:"endDate"`
}

// QueryAnalysis is the structured classification of a query.
type QueryAnalysis struct {
	Intent              Intent                `json:"intent"`
	Entities            []string              `json:"entities"`
	TemporalConstraint  *TemporalConstraint   `json:"temporalConstraint,omitempty"`
	ContentTypeFilter   []string              `json:"contentTypeFilter"`
	SourceFilter        []string              `json:"sourceFilter"`
	RequiresAggregation bool                  `json:"requiresAggregation"`
	ExpectedAnswerType  AnswerType            `json:"expectedAnswerType"`
	ConfidenceRequired  ConfidenceRequirement `json:"confidenceRequired"`
	RequiresPrivateInfo bool                  `json:"requiresPrivateInfo"`

	// Fallback is true when the static default was returned.
	Fallback bool `json:"fallback,omitempty"`
}

// ShortCircuits reports whether retrieval must be skipped for this analysis.
func (a *QueryAnalysis) ShortCircuits() bool {
	return a.Intent == IntentUncertaintyTest || a.RequiresPrivateInfo
}

// DefaultAnalysis is returned whenever classification fails.
func DefaultAnalysis() *QueryAnalysis {
	return &QueryAnalysis{
		Intent:             IntentCasual,
		Entities:           []string{},
		ContentTypeFilter:  []string{},
		SourceFilter:       []string{},
		ExpectedAnswerType: AnswerConversation,
		ConfidenceRequired: ConfidenceRequiredLow,
		Fallback:           true,
	}
}
