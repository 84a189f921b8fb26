package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Baah-Danso-Kenneth/StackNStay/internal/config"
	"github.com/Baah-Danso-Kenneth/StackNStay/internal/conversation"
	"github.com/Baah-Danso-Kenneth/StackNStay/internal/corpus"
	"github.com/Baah-Danso-Kenneth/StackNStay/internal/db"
	dbRedis "github.com/Baah-Danso-Kenneth/StackNStay/internal/db/redis"
	"github.com/Baah-Danso-Kenneth/StackNStay/internal/domain"
	"github.com/Baah-Danso-Kenneth/StackNStay/internal/index"
	memIndex "github.com/Baah-Danso-Kenneth/StackNStay/internal/index/memory"
	redisIndex "github.com/Baah-Danso-Kenneth/StackNStay/internal/index/redis"
	logpkg "github.com/Baah-Danso-Kenneth/StackNStay/internal/logger"
	"github.com/Baah-Danso-Kenneth/StackNStay/internal/metrics"
	"github.com/Baah-Danso-Kenneth/StackNStay/internal/router"
	chiTransport "github.com/Baah-Danso-Kenneth/StackNStay/internal/transport/chi"
	openaiTransport "github.com/Baah-Danso-Kenneth/StackNStay/internal/transport/openai"
	"github.com/Baah-Danso-Kenneth/StackNStay/internal/version"
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

	logger.Info("Starting StackNStay retrieval API",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index_driver", cfg.Index.Driver),
	)

	// Register provider metrics explicitly (no init())
	metrics.RegisterProviderMetrics()

	// Build embedder pair — documents and queries may carry different
	// instruction prefixes, but share one provider client config.
	docEmbedder := buildEmbedder(cfg.Embedding, cfg.Embedding.DocumentInstruction, logger)
	queryEmbedder := buildEmbedder(cfg.Embedding, cfg.Embedding.QueryInstruction, logger)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	completer := openaiTransport.NewCompleter(&openaiTransport.CompleterConfig{
		APIKey:      cfg.Completion.APIKey,
		BaseURL:     cfg.Completion.BaseURL,
		Model:       cfg.Completion.Model,
		Temperature: cfg.Completion.Temperature,
		MaxTokens:   cfg.Completion.MaxTokens,
		Provider:    cfg.Completion.Provider,
		Logger:      logger,
	})

	// Pick the index backend once at startup; everything downstream sees
	// only the SimilarityIndex interface.
	var (
		propIndex index.SimilarityIndex
		knowIndex index.SimilarityIndex
		convStore conversation.Store
		store     db.Store
	)
	switch cfg.Index.Driver {
	case "redis":
		redisStore, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create redis store", zap.Error(err))
		}
		store = redisStore

		ctx := context.Background()
		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Redis not ready", zap.Error(err))
		}
		logger.Info("Connected to redis")

		hnsw := redisIndex.HNSWConfig{M: cfg.Index.HNSWM, EFConstruct: cfg.Index.HNSWEFConstruct}
		propIndex = redisIndex.New(redisStore, corpus.Properties, cfg.Embedding.Dimensions, hnsw,
			docEmbedder, queryEmbedder, logger)
		knowIndex = redisIndex.New(redisStore, corpus.Knowledge, cfg.Embedding.Dimensions, hnsw,
			docEmbedder, queryEmbedder, logger)
		convStore = conversation.NewRedisStore(redisStore)

	case "memory":
		propIndex = memIndex.New(docEmbedder, queryEmbedder,
			filepath.Join(cfg.Snapshot.Dir, corpus.Properties), logger)
		knowIndex = memIndex.New(docEmbedder, queryEmbedder,
			filepath.Join(cfg.Snapshot.Dir, corpus.Knowledge), logger)
		convStore = conversation.NewMemoryStore()

	default:
		logger.Fatal("Unknown index driver", zap.String("driver", cfg.Index.Driver))
	}
	if store != nil {
		defer store.Close()
	}

	properties := corpus.NewPropertyStore(propIndex, logger)
	knowledge := corpus.NewKnowledgeStore(knowIndex, logger)

	// Restore prior state where the backend has any. A cold start is fine;
	// the admin endpoints rebuild on demand.
	startCtx := context.Background()
	for _, c := range []*corpus.Store{properties, knowledge} {
		if _, err := c.Load(startCtx); err != nil {
			logger.Warn("corpus load failed, starting cold",
				zap.String("corpus", c.Name()), zap.Error(err))
		}
	}

	chatRouter := router.New(completer, properties, knowledge, convStore, logger)
	server := chiTransport.NewServer(properties, knowledge, chatRouter, cfg.Knowledge.Path, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

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

// buildEmbedder assembles the embedder chain: OpenAI -> Instruction prefix.
func buildEmbedder(cfg config.EmbeddingConfig, instruction string, logger *zap.Logger) domain.BatchEmbedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Logger:     logger,
	})

	if instruction != "" {
		return domain.NewInstructionEmbedder(base, instruction)
	}
	return base
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
