// Package retrieval fans a classified query out to the content stores and
// merges what comes back into one ranked, confidence-tagged result.
package retrieval

import (
	"time"

	"github.com/hrygo/recall/plugin/ai/classifier"
	"github.com/hrygo/recall/server/queryengine"
)

// Source identifiers carried on every RetrievedItem.
const (
	SourceVector   = string(queryengine.AdapterVector)
	SourceMemory   = string(queryengine.AdapterMemory)
	SourceHybrid   = string(queryengine.AdapterHybrid)
	SourceTemporal = string(queryengine.AdapterTemporal)
)

// ConfidenceLevel 置信度等级
type ConfidenceLevel string

const (
	ConfidenceNone   ConfidenceLevel = "none"
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// Rank orders levels: none < low < medium < high.
func (c ConfidenceLevel) Rank() int {
	switch c {
	case ConfidenceLow:
		return 1
	case ConfidenceMedium:
		return 2
	case ConfidenceHigh:
		return 3
	default:
		return 0
	}
}

// RetrievedItem is one normalized hit. Items are built per request and never mutated after return.
type RetrievedItem struct {
	Source string `json:"source"`
	// Sources lists every adapter that produced this text; set by Merge.
	Sources     []string          `json:"sources"`
	ExternalRef string            `json:"externalRef"`
	Text        string            `json:"text"`
	Score       float64           `json:"score"`
	CreatedAt   *time.Time        `json:"createdAt,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// RetrievalResult is the output of one Retrieve call.
type RetrievalResult struct {
	RequestID           string                    `json:"requestId"`
	Items               []*RetrievedItem          `json:"items"`
	ConfidenceLevel     ConfidenceLevel           `json:"confidenceLevel"`
	SourcesUsed         []string                  `json:"sourcesUsed"`
	DroppedSources      []string                  `json:"droppedSources"`
	TotalResults        int                       `json:"totalResults"`
	QueryAnalysis       *classifier.QueryAnalysis `json:"queryAnalysis"`
	RequiresAggregation bool                      `json:"requiresAggregation"`
	Strategy            string                    `json:"strategy"`
	Latency             time.Duration             `json:"latency"`
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
