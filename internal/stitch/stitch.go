// Package stitch concatenates already-merged clips into one continuous
// output timeline.
package stitch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/storyreel/composer-api/internal/compose"
	"github.com/storyreel/composer-api/internal/export"
	"github.com/storyreel/composer-api/internal/media"
	"github.com/storyreel/composer-api/internal/timeline"
)

// ErrNoValidClips is returned when no clip in the list could be inserted
// into the composition.
var ErrNoValidClips = errors.New("no valid clips to stitch")

// Exporter is the encoding dependency of the stitcher.
type Exporter interface {
	Export(ctx context.Context, tl *timeline.Timeline, outputPath string, opts export.Options) error
}

// Result is the outcome of a stitch: the finished file, its total duration
// and the indices of input clips that were skipped.
type Result struct {
	OutputPath string
	Duration   float64
	Skipped    []int
}

// Stitcher builds a single two-track composition from an ordered clip list.
type Stitcher struct {
	prober   media.Prober
	exporter Exporter
	opts     export.Options
	logger   *slog.Logger
}

// StitcherOption is a function that configures a Stitcher instance.
type StitcherOption func(*Stitcher)

// WithExportOptions overrides the encoding options used for the final export.
func WithExportOptions(opts export.Options) StitcherOption {
	return func(s *Stitcher) {
		s.opts = opts
	}
}

// NewStitcher creates a new Stitcher.
func NewStitcher(prober media.Prober, exporter Exporter, logger *slog.Logger, opts ...StitcherOption) *Stitcher {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stitcher{
		prober:   prober,
		exporter: exporter,
		opts:     export.Options{Quality: export.QualityHighest, NetworkOptimized: true},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stitch concatenates clips strictly in input order into outputPath. Clips
// missing a video or audio track are skipped and stitching continues; the
// composite video track carries the first inserted clip's orientation and
// frame dimensions, later clips' own transforms are ignored and their frames
// are scaled and letterboxed to fit. Fatal only when nothing could be
// inserted or the export itself fails.
func (s *Stitcher) Stitch(ctx context.Context, clips []compose.MergedClip, outputPath string) (*Result, error) {
	tl := timeline.New()

	var currentTime float64
	var skipped []int
	inserted := 0

	for i, clip := range clips {
		probed, err := s.prober.Probe(ctx, clip.Path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			s.logger.Warn("skipping unreadable clip",
				slog.Int("index", i),
				slog.String("path", clip.Path),
				slog.String("error", err.Error()),
			)
			skipped = append(skipped, i)
			continue
		}
		if !probed.HasVideo || !probed.HasAudio {
			s.logger.Warn("skipping clip with missing track",
				slog.Int("index", i),
				slog.String("path", clip.Path),
				slog.Bool("has_video", probed.HasVideo),
				slog.Bool("has_audio", probed.HasAudio),
			)
			skipped = append(skipped, i)
			continue
		}

		if inserted == 0 {
			// The first inserted clip governs the composite: its transform
			// is applied to the whole output, and its frame becomes the
			// target every later clip is scaled and letterboxed into.
			tl.Rotation = clip.Rotation
			tl.Width = probed.Width
			tl.Height = probed.Height
		}

		entries := []timeline.Entry{
			{Track: timeline.Video, Source: clip.Path, SourceRange: timeline.Range{Duration: clip.Duration}, At: currentTime},
			{Track: timeline.Audio, Source: clip.Path, SourceRange: timeline.Range{Duration: clip.Duration}, At: currentTime},
		}
		for _, e := range entries {
			if err := tl.Insert(e); err != nil {
				return nil, err
			}
		}

		currentTime += clip.Duration
		inserted++
	}

	if inserted == 0 {
		return nil, ErrNoValidClips
	}

	if err := s.exporter.Export(ctx, tl, outputPath, s.opts); err != nil {
		return nil, err
	}

	s.logger.Info("stitched composition",
		slog.String("output", outputPath),
		slog.Int("clips", inserted),
		slog.Int("skipped", len(skipped)),
		slog.Float64("duration", currentTime),
	)

	return &Result{
		OutputPath: outputPath,
		Duration:   currentTime,
		Skipped:    skipped,
	}, nil
}
