// Package bootstrap provides dependency initialization for the Composer API.
package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/storyreel/composer-api/internal/compose"
	"github.com/storyreel/composer-api/internal/config"
	"github.com/storyreel/composer-api/internal/export"
	"github.com/storyreel/composer-api/internal/job"
	"github.com/storyreel/composer-api/internal/media"
	"github.com/storyreel/composer-api/internal/pipeline"
	"github.com/storyreel/composer-api/internal/silence"
	"github.com/storyreel/composer-api/internal/stitch"
	"github.com/storyreel/composer-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	ComposeService *job.ComposeService
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.OutputDir, 0750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	// Media tooling
	prober := media.NewFFprobeProber(cfg.FFprobePath)
	synth := silence.NewWAVSynthesizer()
	exporter := export.NewExporter(cfg.FFmpegPath, logger)

	// Composition pipeline
	merger := compose.NewMerger(prober, synth, exporter, cfg.TempDir, logger)
	stitcher := stitch.NewStitcher(prober, exporter, logger,
		stitch.WithExportOptions(export.Options{
			Quality:          exportQuality(cfg.Quality),
			NetworkOptimized: true,
		}),
	)
	batch := pipeline.New(merger, stitcher, cfg.TempDir, logger)

	// Initialize job repository and service
	repo := job.NewMemoryRepository()
	svc := job.NewComposeService(repo, store, batch, cfg.OutputDir, logger)

	return &Dependencies{
		ComposeService: svc,
	}, nil
}

// exportQuality maps the configured preset name to an encoding quality.
func exportQuality(name string) export.Quality {
	if strings.ToLower(name) == "default" {
		return export.QualityDefault
	}
	return export.QualityHighest
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
