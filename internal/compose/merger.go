package compose

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/storyreel/composer-api/internal/export"
	"github.com/storyreel/composer-api/internal/media"
	"github.com/storyreel/composer-api/internal/reconcile"
	"github.com/storyreel/composer-api/internal/silence"
	"github.com/storyreel/composer-api/internal/timeline"
)

// MergedClip is the output of one pair merge: a file on disk plus the
// metadata the stitcher needs to assemble it. The stored pixels keep the
// source orientation; Rotation is the display transform still to be applied,
// and Width/Height are the coded frame dimensions. The caller owns the
// file's lifetime.
type MergedClip struct {
	Path     string
	Duration float64
	Rotation int
	Width    int
	Height   int
}

// Exporter is the encoding dependency of the merger.
type Exporter interface {
	Export(ctx context.Context, tl *timeline.Timeline, outputPath string, opts export.Options) error
}

// Compile-time check that the ffmpeg exporter satisfies the port.
var _ Exporter = (*export.Exporter)(nil)

// Merger merges one visual clip with one narration clip into a single MP4.
type Merger struct {
	prober   media.Prober
	synth    silence.Synthesizer
	exporter Exporter
	tempDir  string
	logger   *slog.Logger
}

// NewMerger creates a new Merger. Intermediate silence files are written to
// tempDir.
func NewMerger(prober media.Prober, synth silence.Synthesizer, exporter Exporter, tempDir string, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{
		prober:   prober,
		synth:    synth,
		exporter: exporter,
		tempDir:  tempDir,
		logger:   logger,
	}
}

// Merge resolves both sources, reconciles their durations, composes the
// two-track timeline and exports it to outputPath. Errors propagate typed to
// the caller, which decides whether to abort or skip.
func (m *Merger) Merge(ctx context.Context, videoPath, audioPath, outputPath string) (*MergedClip, error) {
	videoClip, err := m.prober.Probe(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("probe video %s: %w", videoPath, err)
	}
	audioClip, err := m.prober.Probe(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("probe audio %s: %w", audioPath, err)
	}

	plan := reconcile.NewPlan(videoClip.Duration, audioClip.Duration)
	m.logger.Debug("reconciliation plan",
		slog.String("video", videoPath),
		slog.String("audio", audioPath),
		slog.String("strategy", plan.Strategy.String()),
		slog.Float64("unified_duration", plan.UnifiedDuration),
	)

	tl, temps, err := BuildTimeline(ctx, videoClip, audioClip, plan, m.synth, m.tempDir)
	defer func() {
		for _, p := range temps {
			_ = os.Remove(p)
		}
	}()
	if err != nil {
		return nil, err
	}

	opts := export.Options{Quality: export.QualityHighest, NetworkOptimized: true}
	if err := m.exporter.Export(ctx, tl, outputPath, opts); err != nil {
		return nil, err
	}

	return &MergedClip{
		Path:     outputPath,
		Duration: plan.UnifiedDuration,
		Rotation: videoClip.Rotation,
		Width:    videoClip.Width,
		Height:   videoClip.Height,
	}, nil
}
