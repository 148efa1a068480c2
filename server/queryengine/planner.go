package queryengine

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/hrygo/recall/plugin/ai/classifier"
)

// Adapter names a retrieval backend.
type Adapter string

const (
	AdapterVector   Adapter = "vector"
	AdapterMemory   Adapter = "memory"
	AdapterHybrid   Adapter = "hybrid"
	AdapterTemporal Adapter = "temporal"
)

// Strategy names
const (
	StrategySkip                   = "guardrail_skip"
	StrategyBaseline               = "baseline"
	StrategyBaselineHybrid         = "baseline_hybrid"
	StrategyBaselineTemporal       = "baseline_temporal"
	StrategyBaselineHybridTemporal = "baseline_hybrid_temporal"
)

// TimeWindow 时间窗口
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t is inside the window, bounds included.
func (w *TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Duration 获取时间窗口持续时间
func (w *TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Plan 检索计划
// Adapters are launched together; order carries no meaning.
type Plan struct {
	Strategy string
	Skip     bool
	Adapters []Adapter
	// Query is what vector and memory search embed, truncated to the configured length.
	Query string
	// Keyword drives hybrid keyword tiers; empty when hybrid is off.
	Keyword string
	Window  *TimeWindow
	Sources []string
}

// Has reports whether the plan runs the adapter.
func (p *Plan) Has(a Adapter) bool {
	for _, x := range p.Adapters {
		if x == a {
			return true
		}
	}
	return false
}

// Planner 检索策略规划器
// Maps a QueryAnalysis to the set of adapters a request fans out to.
type Planner struct {
	config    *Config
	stopWords map[string]struct{}
}

// NewPlanner 创建规划器
func NewPlanner(config *Config) *Planner {
	if config == nil {
		config = DefaultConfig()
	}
	if err := ValidateConfig(config); err != nil {
		panic(fmt.Sprintf("invalid config: %v", err))
	}

	words := []string{
		"a", "an", "the", "and", "or", "of", "to", "in", "on", "at", "for", "with", "about",
		"is", "are", "was", "were", "be", "do", "did", "does", "have", "has", "had",
		"what", "when", "where", "who", "why", "how", "which",
		"you", "your", "yours", "i", "me", "my", "we", "our",
		"tell", "say", "said", "think", "post", "posted", "write", "wrote", "any", "ever",
	}
	stop := make(map[string]struct{}, len(words))
	for _, w := range words {
		stop[w] = struct{}{}
	}
	return &Planner{config: config, stopWords: stop}
}

// hybridIntents 开启混合检索的意图
var hybridIntents = map[classifier.Intent]bool{
	classifier.IntentFactualLookup:    true,
	classifier.IntentContentSearch:    true,
	classifier.IntentOpinionQuery:     true,
	classifier.IntentAnalyticsQuery:   true,
	classifier.IntentPersonalityQuery: true,
	classifier.IntentStoryRequest:     true,
}

// Plan builds the retrieval plan for one request.
func (p *Planner) Plan(analysis *classifier.QueryAnalysis, query string) *Plan {
	if analysis.ShortCircuits() {
		return &Plan{Strategy: StrategySkip, Skip: true}
	}

	plan := &Plan{
		Adapters: []Adapter{AdapterVector, AdapterMemory},
		Query:    truncateRunes(strings.TrimSpace(query), p.config.Limits.MaxQueryLength),
		Sources:  analysis.SourceFilter,
	}

	hybrid := false
	if hybridIntents[analysis.Intent] {
		plan.Keyword = p.keyword(analysis, plan.Query)
		if plan.Keyword != "" {
			plan.Adapters = append(plan.Adapters, AdapterHybrid)
			hybrid = true
		}
	}

	temporal := false
	if tc := analysis.TemporalConstraint; tc != nil && analysis.Intent.IsTemporal() {
		plan.Window = &TimeWindow{Start: tc.StartDate, End: tc.EndDate}
		plan.Adapters = append(plan.Adapters, AdapterTemporal)
		temporal = true
	}

	switch {
	case hybrid && temporal:
		plan.Strategy = StrategyBaselineHybridTemporal
	case hybrid:
		plan.Strategy = StrategyBaselineHybrid
	case temporal:
		plan.Strategy = StrategyBaselineTemporal
	default:
		plan.Strategy = StrategyBaseline
	}
	return plan
}

// keyword prefers classifier entities and falls back to the query minus stop words.
func (p *Planner) keyword(analysis *classifier.QueryAnalysis, query string) string {
	if len(analysis.Entities) > 0 {
		return strings.Join(analysis.Entities, " ")
	}

	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '\''
	})
	kept := words[:0]
	for _, w := range words {
		w = strings.Trim(w, "-'")
		if w == "" {
			continue
		}
		if _, stop := p.stopWords[w]; stop {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// GetStrategyDescription 获取策略描述
func GetStrategyDescription(strategy string) string {
	descriptions := map[string]string{
		StrategySkip:                   "guardrail: retrieval skipped",
		StrategyBaseline:               "vector + long-term memory",
		StrategyBaselineHybrid:         "vector + long-term memory + hybrid keyword",
		StrategyBaselineTemporal:       "vector + long-term memory + time window",
		StrategyBaselineHybridTemporal: "vector + long-term memory + hybrid keyword + time window",
	}

	if desc, ok := descriptions[strategy]; ok {
		return desc
	}

	return fmt.Sprintf("unknown strategy: %s", strategy)
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
