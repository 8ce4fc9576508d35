package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/rajinder-mohan/yt2txt/internal/config"
	"github.com/rajinder-mohan/yt2txt/internal/db"
	"github.com/rajinder-mohan/yt2txt/internal/db/repository"
	"github.com/rajinder-mohan/yt2txt/internal/downloader"
	"github.com/rajinder-mohan/yt2txt/internal/generator"
	"github.com/rajinder-mohan/yt2txt/internal/handler"
	"github.com/rajinder-mohan/yt2txt/internal/middleware"
	"github.com/rajinder-mohan/yt2txt/internal/queue"
	"github.com/rajinder-mohan/yt2txt/internal/service"
	"github.com/rajinder-mohan/yt2txt/internal/transcriber"
	"github.com/rajinder-mohan/yt2txt/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		logger.Log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close(pool)

	logger.Log.Info("database connection established",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Name),
	)

	videoRepo := repository.NewVideoRepository(pool)
	promptRepo := repository.NewPromptRepository(pool)
	contentRepo := repository.NewGeneratedContentRepository(pool)

	dl, err := downloader.New(downloader.Config{
		AudioDir:      cfg.Downloader.AudioDir,
		MaxAudioBytes: cfg.Downloader.MaxAudioBytes,
		HTTPTimeout:   cfg.Downloader.HTTPTimeout,
	})
	if err != nil {
		logger.Log.Fatal("failed to initialize downloader", zap.Error(err))
	}

	tr := transcriber.New(transcriber.Config{
		APIKey:   cfg.Deepgram.APIKey,
		BaseURL:  cfg.Deepgram.BaseURL,
		Model:    cfg.Deepgram.Model,
		Language: cfg.Deepgram.Language,
		Timeout:  cfg.Deepgram.Timeout,
	}, nil)

	pipeline := service.NewPipeline(videoRepo, dl, tr, service.PipelineConfig{
		RequestDelay:         cfg.Pipeline.RequestDelay,
		CallTimeout:          cfg.Pipeline.CallTimeout,
		StaleProcessingAfter: cfg.Pipeline.StaleProcessingAfter,
	})

	generation := service.NewGenerationService(
		videoRepo,
		promptRepo,
		contentRepo,
		generator.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model),
	)

	// The async path is optional: without a broker, synchronous
	// transcription and everything else still works.
	var publisher *queue.Publisher
	if cfg.RabbitMQ.Host != "" {
		publisher, err = queue.NewPublisher(&cfg.RabbitMQ)
		if err != nil {
			logger.Log.Warn("rabbitmq unavailable, async transcription disabled", zap.Error(err))
			publisher = nil
		} else {
			defer func() { _ = publisher.Close() }()
		}
	}

	handlers := &handler.Handlers{
		Prompts: handler.NewPromptHandler(promptRepo),
		Content: handler.NewContentHandler(generation, contentRepo),
		Auth:    middleware.NewAPIKeyAuth(cfg.Auth.APIKeys),
	}
	if publisher != nil {
		handlers.Transcription = handler.NewTranscriptionHandler(pipeline, videoRepo, publisher)
		handlers.Health = handler.NewHealthHandler(pool, publisher)
	} else {
		handlers.Transcription = handler.NewTranscriptionHandler(pipeline, videoRepo, nil)
		handlers.Health = handler.NewHealthHandler(pool, nil)
	}

	if len(cfg.Auth.APIKeys) == 0 {
		logger.Log.Warn("no API keys configured, /api/v1 endpoints will reject all requests")
	}

	router := handler.NewRouter(handlers)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Log.Info("server starting", zap.Int("port", cfg.Server.Port))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("server error", zap.Error(err))
		}
	case sig := <-shutdown:
		logger.Log.Info("shutdown signal received", zap.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("graceful shutdown failed", zap.Error(err))
			if err := server.Close(); err != nil {
				logger.Log.Error("failed to close server", zap.Error(err))
			}
			os.Exit(1)
		}

		logger.Log.Info("server stopped gracefully")
	}
}
