// Package memory is a client for the external long-term semantic memory service.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hrygo/recall/plugin/ai/timeout"
)

const (
	searchPath = "/v1/memories/search/"
	addPath    = "/v1/memories/"

	defaultTopK = 10
	maxBodyLog  = 512
)

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	// RPS limits outgoing requests; zero disables limiting.
	RPS  float64
	TopK int

	HTTPClient   *http.Client
	ReadPolicy   RetryPolicy
	IngestPolicy RetryPolicy

	// AttemptTimeout bounds one ingestion attempt.
	AttemptTimeout time.Duration

	// ReadAttemptTimeout bounds one search attempt. Keep it below the
	// caller's search budget divided by ReadPolicy.MaxAttempts, or a hung
	// first attempt leaves no room for a retry.
	ReadAttemptTimeout time.Duration
}

// Client talks to the memory service. It is safe for concurrent use.
type Client struct {
	baseURL        string
	apiKey         string
	topK           int
	http           *http.Client
	limiter        *rate.Limiter
	readPolicy     RetryPolicy
	ingestPolicy   RetryPolicy
	attemptTimeout time.Duration
	readTimeout    time.Duration
}

// Metadata is attached to every memory on ingestion and echoed on search.
type Metadata struct {
	AppID     string `json:"app_id,omitempty"`
	Source    string `json:"source,omitempty"`
	Type      string `json:"type,omitempty"`
	Link      string `json:"link,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Memory is a single search hit.
type Memory struct {
	ID       string   `json:"id"`
	Memory   string   `json:"memory"`
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// CreatedAt parses Metadata.Timestamp as RFC 3339 or unix seconds.
func (m *Memory) CreatedAt() *time.Time {
	return parseTimestamp(m.Metadata.Timestamp)
}

// SearchRequest scopes a search to one user and optionally one app.
type SearchRequest struct {
	Query  string
	UserID string
	AppID  string
	Source string
	TopK   int
}

// AddRequest ingests one piece of content as a memory.
type AddRequest struct {
	UserID   string
	Text     string
	Metadata Metadata
}

// NewClient creates a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("memory service base URL is required")
	}

	c := &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		topK:           cfg.TopK,
		http:           cfg.HTTPClient,
		readPolicy:     cfg.ReadPolicy,
		ingestPolicy:   cfg.IngestPolicy,
		attemptTimeout: cfg.AttemptTimeout,
		readTimeout:    cfg.ReadAttemptTimeout,
	}
	if c.topK <= 0 {
		c.topK = defaultTopK
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.readPolicy.MaxAttempts == 0 {
		c.readPolicy = ReadPolicy
	}
	if c.ingestPolicy.MaxAttempts == 0 {
		c.ingestPolicy = IngestPolicy
	}
	if c.attemptTimeout == 0 {
		c.attemptTimeout = timeout.MemoryRequestTimeout
	}
	if c.readTimeout == 0 {
		c.readTimeout = timeout.MemoryReadAttemptTimeout
	}
	if cfg.RPS > 0 {
		burst := int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return c, nil
}

type searchBody struct {
	Query   string         `json:"query"`
	UserID  string         `json:"user_id"`
	Filters map[string]any `json:"filters,omitempty"`
	TopK    int            `json:"top_k"`
}

// Search returns memories relevant to the query, best first.
func (c *Client) Search(ctx context.Context, req *SearchRequest) ([]Memory, error) {
	if req.UserID == "" {
		return nil, errors.New("memory search requires a user id")
	}

	body := searchBody{
		Query:  req.Query,
		UserID: req.UserID,
		TopK:   req.TopK,
	}
	if body.TopK <= 0 {
		body.TopK = c.topK
	}
	var conds []map[string]string
	if req.AppID != "" {
		conds = append(conds, map[string]string{"app_id": req.AppID})
	}
	if req.Source != "" {
		conds = append(conds, map[string]string{"source": req.Source})
	}
	if len(conds) > 0 {
		body.Filters = map[string]any{"AND": conds}
	}

	var memories []Memory
	err := c.readPolicy.Do(ctx, "memory search", c.readTimeout, func(ctx context.Context) error {
		raw, err := c.post(ctx, searchPath, body)
		if err != nil {
			return err
		}
		memories, err = decodeMemories(raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return memories, nil
}

type addBody struct {
	Messages []addMessage `json:"messages"`
	UserID   string       `json:"user_id"`
	Metadata Metadata     `json:"metadata"`
}

type addMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Add ingests content under the ingestion retry policy.
func (c *Client) Add(ctx context.Context, req *AddRequest) error {
	if req.UserID == "" {
		return errors.New("memory add requires a user id")
	}
	body := addBody{
		Messages: []addMessage{{Role: "user", Content: req.Text}},
		UserID:   req.UserID,
		Metadata: req.Metadata,
	}
	return c.ingestPolicy.Do(ctx, "memory add", c.attemptTimeout, func(ctx context.Context) error {
		_, err := c.post(ctx, addPath, body)
		return err
	})
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Token "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(respBody) > maxBodyLog {
			respBody = respBody[:maxBodyLog]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// decodeMemories accepts both a bare array and {"results": [...]}.
func decodeMemories(raw []byte) ([]Memory, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []Memory{}, nil
	}
	if raw[0] == '[' {
		var list []Memory
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode memory search response: %w", err)
		}
		return list, nil
	}
	var wrapped struct {
		Results []Memory `json:"results"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode memory search response: %w", err)
	}
	if wrapped.Results == nil {
		return []Memory{}, nil
	}
	return wrapped.Results, nil
}
