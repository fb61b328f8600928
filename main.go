// Package main provides the entry point for the StoryReel Composer API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/storyreel/composer-api/internal/compose"
	"github.com/storyreel/composer-api/internal/config"
	"github.com/storyreel/composer-api/internal/export"
	"github.com/storyreel/composer-api/internal/job"
	"github.com/storyreel/composer-api/internal/media"
	"github.com/storyreel/composer-api/internal/pipeline"
	"github.com/storyreel/composer-api/internal/server"
	"github.com/storyreel/composer-api/internal/silence"
	"github.com/storyreel/composer-api/internal/stitch"
	"github.com/storyreel/composer-api/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting Composer API",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("temp_dir", cfg.TempDir),
		slog.String("output_dir", cfg.OutputDir),
		slog.String("quality", cfg.Quality),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)

	// Initialize storage
	var store storage.Storage
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return fmt.Errorf("create S3 storage: %w", err)
		}
		store = s3Store
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
	} else {
		localStore, err := storage.NewLocalStorage(cfg.TempDir)
		if err != nil {
			return fmt.Errorf("create local storage: %w", err)
		}
		store = localStore
		logger.Info("local storage configured",
			slog.String("temp_dir", cfg.TempDir),
		)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	// Media tooling
	prober := media.NewFFprobeProber(cfg.FFprobePath)
	synth := silence.NewWAVSynthesizer()
	exporter := export.NewExporter(cfg.FFmpegPath, logger)

	// Composition pipeline
	quality := export.QualityHighest
	if cfg.Quality == "default" {
		quality = export.QualityDefault
	}
	merger := compose.NewMerger(prober, synth, exporter, cfg.TempDir, logger)
	stitcher := stitch.NewStitcher(prober, exporter, logger,
		stitch.WithExportOptions(export.Options{Quality: quality, NetworkOptimized: true}),
	)
	batch := pipeline.New(merger, stitcher, cfg.TempDir, logger)

	// Initialize job repository and service
	repo := job.NewMemoryRepository()
	svc := job.NewComposeService(repo, store, batch, cfg.OutputDir, logger)

	// Initialize HTTP handlers and router
	handlers := server.NewHandlers(svc, logger)
	router := server.NewRouter(handlers, logger, server.DefaultConfig())

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // Allow for long compositions
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
