package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/hrygo/recall/plugin/ai"
	"github.com/hrygo/recall/plugin/ai/cache"
	"github.com/hrygo/recall/plugin/ai/timeout"
)

// SchemaName identifies the structured output format on the provider side.
const SchemaName = "query_analysis"

// ErrDisabled is returned by ClassifyWithError when no LLM is configured.
var ErrDisabled = errors.New("classifier has no LLM configured")

// Classifier turns a query into a QueryAnalysis using a structured LLM call.
type Classifier struct {
	llm      ai.LLMService
	cache    *cache.LRUCache[*RawAnalysis]
	cacheTTL time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithClock overrides the time source used to derive temporal windows.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

// WithCache caches raw classifications per normalized query.
func WithCache(capacity int, ttl time.Duration) Option {
	return func(c *Classifier) {
		c.cache = cache.NewLRUCache[*RawAnalysis](capacity, ttl)
		c.cacheTTL = ttl
	}
}

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) { c.timeout = d }
}

// New creates a Classifier. A nil llm makes every call return the default analysis.
func New(llm ai.LLMService, opts ...Option) *Classifier {
	c := &Classifier{
		llm:     llm,
		timeout: timeout.ClassificationTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify never fails: any error yields DefaultAnalysis.
func (c *Classifier) Classify(ctx context.Context, query string) *QueryAnalysis {
	analysis, err := c.ClassifyWithError(ctx, query)
	if err != nil {
		if !errors.Is(err, ErrDisabled) {
			slog.Warn("query classification failed, using default",
				"error", err,
				"query", truncateForLog(query, timeout.MaxTruncateLength))
		}
		return DefaultAnalysis()
	}
	return analysis
}

// ClassifyWithError is Classify with the failure surfaced.
func (c *Classifier) ClassifyWithError(ctx context.Context, query string) (*QueryAnalysis, error) {
	if c.llm == nil {
		return nil, ErrDisabled
	}
	key := c.normalize(query)
	if key == "" {
		return nil, errors.New("empty query")
	}

	if c.cache != nil {
		if raw, ok := c.cache.Get(key); ok {
			return Build(raw, c.now()), nil
		}
	}

	raw, err := c.classifyRaw(ctx, query)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Set(key, raw, c.cacheTTL)
	}
	return Build(raw, c.now()), nil
}

func (c *Classifier) classifyRaw(ctx context.Context, query string) (*RawAnalysis, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	content, err := c.llm.CompleteJSON(ctx, &ai.StructuredRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildUserPrompt(query),
		SchemaName:   SchemaName,
		Schema:       analysisSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("classification request failed: %w", err)
	}

	raw, err := ParseRaw(content)
	if err != nil {
		slog.Warn("failed to parse classification response",
			"content", truncateForLog(content, timeout.MaxTruncateLength),
			"error", err)
		return nil, fmt.Errorf("parse response failed: %w", err)
	}

	slog.Debug("query classification completed",
		"query", truncateForLog(query, 30),
		"intent", raw.Intent,
		"latency_ms", time.Since(start).Milliseconds())
	return raw, nil
}

// normalize produces the cache key: case-folded with whitespace collapsed.
// A Caser is stateful, so each call gets its own.
func (c *Classifier) normalize(query string) string {
	return cases.Fold().String(strings.Join(strings.Fields(query), " "))
}

// Build turns a validated raw analysis into a QueryAnalysis. raw is not modified.
func Build(raw *RawAnalysis, now time.Time) *QueryAnalysis {
	a := &QueryAnalysis{
		Intent:              ParseIntent(raw.Intent),
		Entities:            cleanList(raw.Entities, false),
		TemporalConstraint:  DeriveTemporal(raw.Temporal, now),
		ContentTypeFilter:   cleanList(raw.ContentTypes, true),
		SourceFilter:        cleanList(raw.Sources, true),
		RequiresAggregation: raw.RequiresAggregation,
		ExpectedAnswerType:  parseAnswerType(raw.ExpectedAnswerType),
		ConfidenceRequired:  parseConfidenceRequirement(raw.ConfidenceRequired),
		RequiresPrivateInfo: raw.RequiresPrivateInfo,
	}
	if a.Intent == IntentAnalyticsQuery {
		a.RequiresAggregation = true
	}
	if a.RequiresPrivateInfo {
		a.ConfidenceRequired = ConfidenceRequiredHigh
	}
	return a
}

// cleanList trims, drops empties and de-duplicates case-insensitively in order.
// The result is never nil.
func cleanList(in []string, lower bool) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if lower {
			s = strings.ToLower(s)
		}
		k := strings.ToLower(s)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}

func truncateForLog(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
