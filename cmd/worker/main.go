package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/rajinder-mohan/yt2txt/internal/config"
	"github.com/rajinder-mohan/yt2txt/internal/db"
	"github.com/rajinder-mohan/yt2txt/internal/db/repository"
	"github.com/rajinder-mohan/yt2txt/internal/downloader"
	"github.com/rajinder-mohan/yt2txt/internal/queue"
	"github.com/rajinder-mohan/yt2txt/internal/service"
	"github.com/rajinder-mohan/yt2txt/internal/transcriber"
	"github.com/rajinder-mohan/yt2txt/pkg/logger"
)

// The worker drains the transcription job queue and periodically reclaims
// orphaned processing attempts.
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		logger.Log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close(pool)

	videoRepo := repository.NewVideoRepository(pool)

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

	handleJob := func(ctx context.Context, job *queue.TranscribeJob) error {
		var result *service.Result
		var err error
		if job.AllowRetry {
			result, err = pipeline.Retry(ctx, job.VideoID)
		} else {
			result, err = pipeline.Transcribe(ctx, job.VideoID)
		}
		if err != nil {
			return err
		}

		logger.Log.Info("job processed",
			zap.String("job_id", job.ID.String()),
			zap.String("video_id", result.VideoID),
			zap.String("status", string(result.Status)),
			zap.Bool("from_cache", result.FromCache),
		)
		return nil
	}

	// Queued jobs observe the same inter-call spacing as a synchronous batch.
	consumer, err := queue.NewConsumer(&cfg.RabbitMQ,
		queue.Throttle(handleJob, cfg.Pipeline.RequestDelay))
	if err != nil {
		logger.Log.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	defer func() { _ = consumer.Close() }()

	reconciler := service.NewReconciler(videoRepo,
		cfg.Pipeline.StaleProcessingAfter, cfg.Pipeline.ReconcileInterval)
	go reconciler.Run(ctx)

	logger.Log.Info("worker started",
		zap.String("queue", cfg.RabbitMQ.Queue))

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Log.Fatal("consumer stopped", zap.Error(err))
	}

	logger.Log.Info("worker stopped gracefully")
}
