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

	"github.com/jobpay/matchflow/internal/config"
	dbRedis "github.com/jobpay/matchflow/internal/db/redis"
	"github.com/jobpay/matchflow/internal/domain"
	logpkg "github.com/jobpay/matchflow/internal/logger"
	"github.com/jobpay/matchflow/internal/metrics"
	"github.com/jobpay/matchflow/internal/repository/embcache"
	"github.com/jobpay/matchflow/internal/repository/joblock"
	matchscorerepo "github.com/jobpay/matchflow/internal/repository/matchscore"
	profilerepo "github.com/jobpay/matchflow/internal/repository/profile"
	queuerepo "github.com/jobpay/matchflow/internal/repository/queue"
	runrepo "github.com/jobpay/matchflow/internal/repository/run"
	taskrepo "github.com/jobpay/matchflow/internal/repository/task"
	chiTransport "github.com/jobpay/matchflow/internal/transport/chi"
	"github.com/jobpay/matchflow/internal/transport/gateway"
	openaiEmb "github.com/jobpay/matchflow/internal/transport/openai"
	dispatchuc "github.com/jobpay/matchflow/internal/usecase/dispatch"
	healthuc "github.com/jobpay/matchflow/internal/usecase/health"
	matchinguc "github.com/jobpay/matchflow/internal/usecase/matching"
	pipelineuc "github.com/jobpay/matchflow/internal/usecase/pipeline"
	profilesuc "github.com/jobpay/matchflow/internal/usecase/profiles"
	"github.com/jobpay/matchflow/internal/version"
)

// jobLockTTL bounds how long a crashed worker can hold a job. Matching a
// pool takes seconds; the TTL only matters after a crash mid-run.
const jobLockTTL = 2 * time.Minute

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

	logger.Info("Starting matchflow pipeline server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Key prefix override must land before any repository builds a key.
	if cfg.Storage.KeyPrefix != "" {
		domain.KeyPrefix = cfg.Storage.KeyPrefix
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	// Embedder chain: OpenAI -> Cached
	baseEmbedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	embedder := embcache.New(baseEmbedder, store, metrics.EmbeddingCacheTotal, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Repositories
	profileRepo := profilerepo.New(store)
	runRepo := runrepo.New(store)
	scoreRepo := matchscorerepo.New(store)
	taskRepo := taskrepo.New(store)
	workQueue := queuerepo.New(store)
	lock := joblock.New(store, jobLockTTL)

	// Use case services
	engine := matchinguc.New(embedder, cfg.Matching, logger)
	dispatcher := dispatchuc.New(gateway.Providers(cfg.Notify, logger), logger)
	pipeSvc := pipelineuc.New(pipelineuc.Deps{
		Runs:       runRepo,
		Profiles:   profileRepo,
		Scores:     scoreRepo,
		Tasks:      taskRepo,
		Queue:      workQueue,
		Lock:       lock,
		Engine:     engine,
		Dispatcher: dispatcher,
	}, cfg.Matching, cfg.Notify, logger)
	profilesSvc := profilesuc.New(profileRepo, logger)
	healthSvc := healthuc.New(store, baseEmbedder, workQueue)

	// Worker pools: matching loop, notify loops, delayed-queue mover
	workerCtx, stopWorkers := context.WithCancel(ctx)
	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		if err := pipeSvc.RunWorkers(workerCtx); err != nil {
			logger.Error("Worker pool exited", zap.Error(err))
		}
	}()

	// HTTP server
	server := chiTransport.NewServer(profilesSvc, pipeSvc, healthSvc, logger)

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

	// Stop workers after the HTTP surface is down; in-flight items finish
	// their current attempt.
	stopWorkers()
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		logger.Warn("Workers did not stop before shutdown deadline")
	}

	logger.Info("Server stopped gracefully")
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
