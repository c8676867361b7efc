package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vidstash/vidstash/internal/api"
	"github.com/vidstash/vidstash/internal/api/handler"
	"github.com/vidstash/vidstash/internal/config"
	"github.com/vidstash/vidstash/internal/downloader"
	"github.com/vidstash/vidstash/internal/pipeline"
	"github.com/vidstash/vidstash/internal/repository"
	"github.com/vidstash/vidstash/internal/storage"
	"github.com/vidstash/vidstash/internal/thumbnail"
	"github.com/vidstash/vidstash/internal/transfer"
	"github.com/vidstash/vidstash/internal/worker"
	"github.com/vidstash/vidstash/pkg/classify"
	"github.com/vidstash/vidstash/pkg/ffmpeg"
	"github.com/vidstash/vidstash/pkg/scrape"
	"github.com/vidstash/vidstash/pkg/videoai"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("vidstash %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting vidstash",
		"version", Version,
		"build_time", BuildTime,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Storage.TempPath, 0755); err != nil {
		logger.Error("failed to create temp directory", "error", err)
		os.Exit(1)
	}

	// Repositories
	bookmarkRepo, err := repository.NewSQLiteBookmarkRepository(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open database", "error", err, "path", cfg.Database.Path)
		os.Exit(1)
	}
	defer bookmarkRepo.Close()
	jobRepo := repository.NewInMemoryJobRepository()

	// External clients
	scraperClient := scrape.NewClient(cfg.Scraper)
	blobStore := storage.NewHTTPBlobStore(cfg.Blob)

	var analyzerClient videoai.Client
	if cfg.VideoAI.BaseURL != "" {
		analyzerClient = videoai.NewClient(cfg.VideoAI)
	} else {
		logger.Warn("video analyzer not configured, analysis stage disabled")
	}

	var classifierClient classify.Client
	if cfg.Classifier.BaseURL != "" {
		classifierClient = classify.NewClient(cfg.Classifier)
	} else {
		logger.Warn("classifier not configured, classification stage disabled")
	}

	// Media plumbing
	dl := downloader.NewHTTPDownloader(cfg.Transfer.UserAgent, 10*time.Second, cfg.Transfer.DownloadTimeout)

	var extractor ffmpeg.FrameExtractor
	if processor, err := ffmpeg.NewVideoProcessor(); err != nil {
		logger.Warn("ffmpeg not available, thumbnail frame extraction disabled", "error", err)
	} else {
		extractor = processor
	}

	transferer := transfer.New(dl, blobStore, cfg.Transfer, cfg.Blob.SignedURLTTL, cfg.Storage.TempPath, logger)
	thumbnails := thumbnail.New(dl, blobStore, extractor, cfg.Thumbnail, cfg.Blob.SignedURLTTL, cfg.Storage.TempPath, logger)

	// Pipeline and workers
	pipe := pipeline.New(bookmarkRepo, scraperClient, transferer, thumbnails,
		analyzerClient, classifierClient, logger)

	pool := worker.NewPool(
		worker.Config{
			Workers:      cfg.Worker.Count,
			PollInterval: cfg.Worker.PollInterval,
		},
		jobRepo,
		bookmarkRepo,
		pipe,
		logger,
	)
	pool.Start()

	// HTTP layer
	bookmarkHandler := handler.NewBookmarkHandler(bookmarkRepo, jobRepo, cfg.Worker.MaxRetries, logger)
	healthHandler := handler.NewHealthHandler(jobRepo, bookmarkRepo)
	router := api.NewRouter(bookmarkHandler, healthHandler, cfg.Server.APIKey, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Let in-flight enrichment runs finish.
	if err := pool.Stop(25 * time.Second); err != nil {
		logger.Error("worker pool shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
