// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ni30kp/lula-Task/internal/analysis"
	"github.com/ni30kp/lula-Task/internal/cache"
	"github.com/ni30kp/lula-Task/internal/classify"
	"github.com/ni30kp/lula-Task/internal/config"
	"github.com/ni30kp/lula-Task/internal/handler"
	"github.com/ni30kp/lula-Task/internal/jobs"
	"github.com/ni30kp/lula-Task/internal/llm"
	"github.com/ni30kp/lula-Task/internal/middleware"
	natsclient "github.com/ni30kp/lula-Task/internal/nats"
	"github.com/ni30kp/lula-Task/internal/recommend"
	"github.com/ni30kp/lula-Task/internal/similarity"
	"github.com/ni30kp/lula-Task/internal/store"
	"github.com/ni30kp/lula-Task/pkg/logger"
	"github.com/ni30kp/lula-Task/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "support-intelligence", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to Postgres
	db, err := store.New(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Error("failed to connect to postgres", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	// Connect to NATS
	natsClient, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", zap.Error(err))
		os.Exit(1)
	}
	defer natsClient.Close()

	streamManager := natsclient.NewStreamManager(natsClient)
	if err := streamManager.EnsureStream(ctx); err != nil {
		log.Error("failed to ensure stream", zap.Error(err))
		os.Exit(1)
	}

	// Redis is best effort: analysis runs uncached without it.
	redisCache := cache.New(cfg.RedisAddr, cfg.RedisPassword, log)
	defer redisCache.Close()
	if err := redisCache.Ping(ctx); err != nil {
		log.Warn("redis unreachable, running without cache", zap.Error(err))
	}

	// Model clients. Severity scoring prefers Anthropic; embeddings
	// always come from OpenAI. Either may be absent, each branch has a
	// deterministic fallback.
	var scorerClient llm.Client
	if cfg.AnthropicAPIKey != "" {
		scorerClient, err = llm.NewAnthropicClient(cfg.AnthropicAPIKey)
		if err != nil {
			log.Warn("failed to create Anthropic client, rule-based severity only", zap.Error(err))
		}
	}
	var embedder llm.Embedder
	if cfg.OpenAIAPIKey != "" {
		openaiClient, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
		if err != nil {
			log.Warn("failed to create OpenAI client, lexical similarity only", zap.Error(err))
		} else {
			embedder = openaiClient
			if scorerClient == nil {
				scorerClient = openaiClient
			}
		}
	}

	// Analysis pipeline
	var scorer classify.Scorer
	if scorerClient != nil {
		scorer = classify.NewLLMScorer(scorerClient)
	}
	classifier := classify.New(classify.DefaultRules(), scorer, log)

	simEngine := similarity.New(db, embedder, redisCache, similarity.Config{
		TopK:     cfg.SimilarityTopK,
		MinScore: cfg.SimilarityMinScore,
		CacheTTL: cfg.SimilarCacheTTL,
	}, log)

	synthesizer := recommend.New(recommend.Config{ReuseThreshold: cfg.ReuseThreshold})

	history := analysis.NewCachedHistory(db, redisCache, cfg.HistoryCacheTTL)

	orchestrator := analysis.New(history, classifier, simEngine, synthesizer, db, analysis.Config{
		Deadline:         cfg.AnalysisDeadline,
		MaxBudget:        cfg.AnalysisMaxBudget,
		SynthesisReserve: cfg.SynthesisReserve,
		TopK:             cfg.SimilarityTopK,
	}, log)

	enqueuer := jobs.NewEnqueuer(db, streamManager, cfg.MaxRetries, log)

	// Handlers
	healthHandler := handler.NewHealthHandler(db, redisCache, natsClient.IsConnected, log)
	issueHandler := handler.NewIssueHandler(db, orchestrator, log)
	messageHandler := handler.NewMessageHandler(db, log)
	summaryHandler := handler.NewSummaryHandler(db, enqueuer, log)
	recommendationHandler := handler.NewRecommendationHandler(db, log)

	// Router
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// Mutating endpoints additionally need the write scope.
	write := middleware.RequireScope("support:write")

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/issues", func(r chi.Router) {
			r.With(write).Post("/", issueHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.With(write).Post("/analyze", issueHandler.Analyze)
				r.With(write).Put("/status", issueHandler.UpdateStatus)
				r.With(write).Post("/messages", messageHandler.Append)
				r.With(write).Post("/conversation-closed", summaryHandler.ConversationClosed)
				r.Get("/summary", summaryHandler.GetSummary)
				r.Get("/recommendations", recommendationHandler.ListForIssue)
			})
		})

		r.With(write).Post("/recommendations/{id}/used", recommendationHandler.MarkUsed)
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
