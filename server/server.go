// Package server composes the store, the AI plugins and the retrieval core
// into the recall HTTP service.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/recall/internal/profile"
	pluginai "github.com/hrygo/recall/plugin/ai"
	"github.com/hrygo/recall/plugin/ai/classifier"
	"github.com/hrygo/recall/plugin/ai/memory"
	serverai "github.com/hrygo/recall/server/ai"
	"github.com/hrygo/recall/server/internal/observability"
	"github.com/hrygo/recall/server/queryengine"
	"github.com/hrygo/recall/server/retrieval"
	ratelimit "github.com/hrygo/recall/server/middleware"
	apiv1 "github.com/hrygo/recall/server/router/api/v1"
	"github.com/hrygo/recall/server/runner/embedding"
	"github.com/hrygo/recall/store"
)

const (
	embeddingCacheSize      = 1000
	embeddingCacheTTL       = time.Hour
	classificationCacheSize = 500
	classificationCacheTTL  = 10 * time.Minute
	clientRPS               = 10
	clientBurst             = 20
)

// Server owns the HTTP surface and the background backfill of one recall instance.
type Server struct {
	Profile      *profile.Profile
	Store        *store.Store
	Orchestrator *retrieval.Orchestrator
	// Runner is nil when no embedding provider is configured.
	Runner  *embedding.Runner
	Metrics *observability.Metrics

	echoServer   *echo.Echo
	runnerCancel context.CancelFunc
}

// NewServer wires every component from the profile. Missing AI or memory
// configuration disables the affected adapters instead of failing.
func NewServer(ctx context.Context, p *profile.Profile, s *store.Store, cfg *queryengine.Config) (*Server, error) {
	if cfg == nil {
		cfg = queryengine.DefaultConfig()
	}
	if err := queryengine.ValidateConfig(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid retrieval config")
	}
	metrics := observability.GlobalMetrics()

	deps := retrieval.Deps{
		Vector:   retrieval.NewVectorSearchAdapter(s),
		Hybrid:   retrieval.NewHybridRelationalSearch(s, cfg.Scoring.MinVectorScore),
		Temporal: retrieval.NewTemporalRetriever(s),
		Config:   cfg,
		Metrics:  metrics,
	}

	var embedder pluginai.EmbeddingService
	var llm pluginai.LLMService
	aiConfig := pluginai.NewConfigFromProfile(p)
	if err := aiConfig.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid ai config")
	}
	if aiConfig.Enabled {
		inner, err := pluginai.NewEmbeddingService(&aiConfig.Embedding)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create embedding service")
		}
		embedder = pluginai.NewCachedEmbeddingService(inner, embeddingCacheSize, embeddingCacheTTL)
		deps.Embedder = embedder

		llm, err = pluginai.NewLLMService(&aiConfig.LLM)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create llm service")
		}
	} else {
		slog.Warn("AI disabled: queries classify as casual and vector search is off")
	}
	deps.Classifier = classifier.New(llm, classifier.WithCache(classificationCacheSize, classificationCacheTTL))

	var memClient *memory.Client
	if p.IsMemoryEnabled() {
		var err error
		memClient, err = memory.NewClient(memory.Config{
			BaseURL: p.MemoryBaseURL,
			APIKey:  p.MemoryAPIKey,
			RPS:     p.MemoryRPS,
			TopK:    cfg.Limits.MemoryLimit,

			ReadAttemptTimeout: memoryReadAttemptTimeout(cfg),
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create memory client")
		}
		deps.Memory = retrieval.NewLongTermMemoryAdapter(memClient, cfg.Limits.MemoryLimit)
	}

	srv := &Server{
		Profile:      p,
		Store:        s,
		Orchestrator: retrieval.NewOrchestrator(deps),
		Metrics:      metrics,
	}

	if embedder != nil {
		opts := []embedding.Option{}
		if memClient != nil {
			opts = append(opts, embedding.WithMemory(memClient))
		}
		srv.Runner = embedding.NewRunner(s, serverai.NewIndexer(embedder, s), opts...)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(ratelimit.NewRateLimiter(clientRPS, clientBurst).Middleware())
	svc := apiv1.NewAPIV1Service(p, srv.Orchestrator, metrics)
	if srv.Runner != nil {
		svc.Backfill = srv.Runner
	}
	svc.RegisterRoutes(e)
	srv.echoServer = e

	return srv, nil
}

// memoryReadAttemptTimeout splits the memory adapter budget so every read
// attempt, plus headroom for backoff, fits inside it.
func memoryReadAttemptTimeout(cfg *queryengine.Config) time.Duration {
	return cfg.Timeouts.Memory / time.Duration(memory.ReadPolicy.MaxAttempts+1)
}

// Start launches the backfill runner and serves HTTP. It returns once the listener is up.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.Profile.Addr, strconv.Itoa(s.Profile.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}
	s.echoServer.Listener = listener

	if s.Runner != nil {
		runnerCtx, cancel := context.WithCancel(ctx)
		s.runnerCancel = cancel
		go s.Runner.Run(runnerCtx)
	}

	go func() {
		if err := s.echoServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	slog.Info(fmt.Sprintf("recall listening on %s", listener.Addr()))
	return nil
}

// Shutdown stops the runner, drains HTTP and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if s.runnerCancel != nil {
		s.runnerCancel()
	}
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", slog.String("error", err.Error()))
	}
	slog.Info("recall stopped properly")
}
