package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/neargravity/semguard/internal/config"
	dbRedis "github.com/neargravity/semguard/internal/db/redis"
	"github.com/neargravity/semguard/internal/domain"
	"github.com/neargravity/semguard/internal/domain/analysis"
	logpkg "github.com/neargravity/semguard/internal/logger"
	"github.com/neargravity/semguard/internal/metrics"
	"github.com/neargravity/semguard/internal/repository/embcache"
	"github.com/neargravity/semguard/internal/transport/brave"
	chiTransport "github.com/neargravity/semguard/internal/transport/chi"
	"github.com/neargravity/semguard/internal/transport/near"
	openaiEmb "github.com/neargravity/semguard/internal/transport/openai"
	guarduc "github.com/neargravity/semguard/internal/usecase/guard"
	healthuc "github.com/neargravity/semguard/internal/usecase/health"
	semanticuc "github.com/neargravity/semguard/internal/usecase/semantic"
	"github.com/neargravity/semguard/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting semguard API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("chain_network", cfg.Chain.Network),
	)

	// Register metrics explicitly (no init())
	metrics.Register()

	// Embedding cache store is optional: with no addrs configured the
	// service embeds without a cache. The "valkey" driver is accepted as
	// an alias, the same client speaks both protocols.
	var store *dbRedis.Store
	if len(cfg.Database.Addrs) > 0 {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		ctx := context.Background()
		readiness := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, readiness); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		logger.Info("Connected to cache store")
	} else {
		logger.Warn("No cache store configured, embedding cache disabled")
	}

	// Embedder chain: OpenAI-compatible provider wrapped in the TTL cache.
	baseEmbedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = baseEmbedder
	if store != nil {
		cacheTTL := time.Duration(cfg.Embedding.CacheTTLSec) * time.Second
		embedder = embcache.New(baseEmbedder, store, cacheTTL, metrics.EmbeddingCacheTotal, logger)
	}
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Bool("cached", store != nil),
	)

	// The engine itself: pure, configured once from the analysis section.
	engine := semanticuc.New().
		WithMaxDocuments(cfg.Analysis.MaxDocuments).
		WithSeverityPolicy(analysis.SeverityPolicy{
			MediumDelta: cfg.Analysis.MediumDelta,
			HighDelta:   cfg.Analysis.HighDelta,
		})

	// NEAR client: view reads need only a contract id, submissions also
	// need the relayer.
	var chainClient *near.Client
	if cfg.Chain.ContractID != "" {
		chainClient = near.NewClient(near.Config{
			Network:    cfg.Chain.Network,
			RPCURL:     cfg.Chain.RPCURL,
			RelayerURL: cfg.Chain.RelayerURL,
			ContractID: cfg.Chain.ContractID,
			Timeout:    time.Duration(cfg.Chain.TimeoutSec) * time.Second,
			Logger:     logger,
		})
		logger.Info("Chain client created",
			zap.String("network", cfg.Chain.Network),
			zap.String("contract", cfg.Chain.ContractID),
			zap.Bool("recording", cfg.Chain.RelayerURL != ""),
		)
	}

	// Guard flow needs the search provider.
	var guardSvc *guarduc.Service
	if cfg.Search.APIKey != "" {
		searcher := brave.NewClient(brave.Config{
			APIKey:  cfg.Search.APIKey,
			BaseURL: cfg.Search.BaseURL,
			Timeout: time.Duration(cfg.Search.TimeoutSec) * time.Second,
		})
		guardSvc = guarduc.New(searcher, batchEmbedder(embedder), engine).
			WithResultCount(cfg.Search.ResultCount).
			WithDefaultThreshold(cfg.Analysis.Threshold)
		if chainClient != nil && cfg.Chain.RelayerURL != "" {
			guardSvc = guardSvc.WithRecorder(chainClient)
		}
	} else {
		logger.Warn("No search API key configured, guard flow disabled")
	}

	// Health service. Pass nil interfaces (not typed nil pointers!) for
	// absent components — a typed nil wrapped in an interface is != nil.
	var dbPinger healthuc.DBPinger
	if store != nil {
		dbPinger = store
	}
	var chainChecker healthuc.ChainChecker
	if chainClient != nil {
		chainChecker = chainClient
	}
	healthSvc := healthuc.New(dbPinger, baseEmbedder, chainChecker)

	// HTTP server. Same typed-nil care for the optional route providers.
	var guardRunner chiTransport.GuardRunner
	if guardSvc != nil {
		guardRunner = guardSvc
	}
	var reader chiTransport.AnalysisReader
	if chainClient != nil {
		reader = chainClient
	}
	server := chiTransport.NewServer(engine, guardRunner, reader, healthSvc, logger).
		WithDefaultThreshold(cfg.Analysis.Threshold)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// batchEmbedder adapts an Embedder to the guard's batch contract, using the
// native batch path when the implementation has one.
func batchEmbedder(e domain.Embedder) guarduc.Embedder {
	if be, ok := e.(domain.BatchEmbedder); ok {
		return be
	}
	return fallbackBatcher{e: e}
}

type fallbackBatcher struct{ e domain.Embedder }

func (f fallbackBatcher) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	return domain.BatchFallback(ctx, f.e, texts)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
