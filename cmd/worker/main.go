// Package main is the entry point for the summarization worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ni30kp/lula-Task/internal/config"
	"github.com/ni30kp/lula-Task/internal/jobs"
	"github.com/ni30kp/lula-Task/internal/llm"
	natsclient "github.com/ni30kp/lula-Task/internal/nats"
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

	log.Info("starting summarization worker", zap.Int("workers", cfg.WorkerCount))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "support-intelligence-worker", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	db, err := store.New(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Error("failed to connect to postgres", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()

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

	// AckWait doubles as the transport-level lease: it must outlive one
	// processing attempt so a live worker is never preempted mid-job.
	consumer, err := streamManager.SummarizeConsumer(ctx, cfg.ClaimLease, cfg.MaxRetries+1)
	if err != nil {
		log.Error("failed to create consumer", zap.Error(err))
		os.Exit(1)
	}

	var summaryClient llm.Client
	if cfg.AnthropicAPIKey != "" {
		summaryClient, err = llm.NewAnthropicClient(cfg.AnthropicAPIKey)
		if err != nil {
			log.Warn("failed to create Anthropic client, extractive summaries only", zap.Error(err))
		}
	} else if cfg.OpenAIAPIKey != "" {
		summaryClient, err = llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
		if err != nil {
			log.Warn("failed to create OpenAI client, extractive summaries only", zap.Error(err))
		}
	}

	summarizer := jobs.NewSummarizer(summaryClient, log)
	pool := jobs.NewPool(db, summarizer, streamManager, jobs.PoolConfig{
		Workers:     cfg.WorkerCount,
		MaxRetries:  cfg.MaxRetries,
		ClaimLease:  cfg.ClaimLease,
		BackoffBase: cfg.RetryBackoffBase,
		BackoffMax:  cfg.RetryBackoffMax,
	}, log)

	// Metrics endpoint for the worker process.
	metricsServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics server error", zap.Error(err))
		}
	}()

	if err := pool.Run(ctx, consumer); err != nil {
		log.Error("worker pool stopped", zap.Error(err))
	}

	log.Info("shutting down worker")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	log.Info("worker stopped")
}
