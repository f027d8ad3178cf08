// cmd/fileagent/main.go
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"fileagent/internal/archive"
	"fileagent/internal/audit"
	"fileagent/internal/config"
	"fileagent/internal/decision"
	"fileagent/internal/executor"
	"fileagent/internal/llm"
	"fileagent/internal/pipeline"
	"fileagent/internal/watcher"
	"fileagent/pkg/messaging"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	sinks := []audit.Sink{}
	fileSink, err := audit.NewFileSink(cfg.Audit.LogFile)
	if err != nil {
		logger.Fatal("failed to open audit log", zap.Error(err))
	}
	sinks = append(sinks, fileSink)

	if cfg.Audit.PostgresDSN != "" {
		pgSink, err := audit.NewPostgresSink(cfg.Audit.PostgresDSN)
		if err != nil {
			logger.Fatal("failed to connect postgres audit sink", zap.Error(err))
		}
		sinks = append(sinks, pgSink)
	}

	auditor, err := audit.NewLogger(logger, sinks...)
	if err != nil {
		logger.Fatal("failed to build audit logger", zap.Error(err))
	}
	if err := auditor.Start(); err != nil {
		logger.Fatal("failed to start audit logger", zap.Error(err))
	}

	var classifier llm.Classifier
	var summarizer llm.Summarizer
	if cfg.OpenAI.APIKey != "" {
		client, err := llm.NewOpenAIClient(cfg.OpenAI, cfg.Decision.MaxAttempts-1)
		if err != nil {
			logger.Fatal("failed to build OpenAI client", zap.Error(err))
		}
		classifier = client
		summarizer = client
	} else {
		logger.Warn("no OpenAI API key configured; classification and summarization disabled")
	}

	var publisher executor.Publisher
	if cfg.RabbitMQ.URI != "" {
		rabbit, err := messaging.NewRabbitMQClient(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			logger.Fatal("failed to connect to RabbitMQ", zap.Error(err))
		}
		defer rabbit.Close()
		if err := rabbit.SetupInfrastructure(); err != nil {
			logger.Fatal("failed to set up RabbitMQ infrastructure", zap.Error(err))
		}
		publisher = rabbit
	}

	var archiver executor.Archiver
	if cfg.S3.Bucket != "" {
		s3arch, err := archive.NewS3Archiver(cfg.S3)
		if err != nil {
			logger.Fatal("failed to initialize S3 archiver", zap.Error(err))
		}
		archiver = s3arch
	}

	w, err := watcher.New(cfg.Watcher, logger)
	if err != nil {
		logger.Fatal("failed to start watcher", zap.Error(err))
	}
	defer w.Close()

	engine := decision.NewEngine(cfg.Decision, cfg.OpenAI.RetryDelay, classifier, logger)
	exec := executor.New(cfg.Watcher.Root, summarizer, publisher, archiver, logger)
	gate := pipeline.NewReadinessGate(cfg.Pipeline.PollInterval, cfg.Pipeline.ReadyTimeout)
	sampler := pipeline.NewSampler(cfg.Decision.SampleExtensions, cfg.Pipeline.MaxPreviewBytes)
	debouncer := pipeline.NewDebouncer(cfg.Pipeline.QuietWindow, auditor, logger)
	coord := pipeline.NewCoordinator(cfg.Watcher.Root, gate, sampler, engine, exec,
		auditor, cfg.Pipeline.MaxWorkers, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go w.Run(ctx)
	go debouncer.Run(ctx, w.Events())

	logger.Info("watching for file events",
		zap.String("root", cfg.Watcher.Root),
		zap.Duration("quiet_window", cfg.Pipeline.QuietWindow))

	// blocks until shutdown, then flushes aborted records for in-flight paths
	coord.Run(ctx, debouncer.Settled())

	if err := auditor.Stop(5 * time.Second); err != nil {
		logger.Error("audit logger shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
