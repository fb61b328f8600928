// Package pipeline runs the batch merge-then-stitch flow: every clip pair is
// merged sequentially, per-pair failures are tolerated, the successful subset
// is stitched into the final reel, and all intermediate artifacts are removed
// on every exit path.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/storyreel/composer-api/internal/compose"
	"github.com/storyreel/composer-api/internal/stitch"
)

// ClipPair references one scene's visual clip and narration audio. Both
// paths are the pipeline's own temporary copies; the pipeline deletes them
// once the pair has been consumed, whether the merge succeeded or not.
type ClipPair struct {
	VideoPath string
	AudioPath string
}

// Merger merges one pair into a single clip file.
type Merger interface {
	Merge(ctx context.Context, videoPath, audioPath, outputPath string) (*compose.MergedClip, error)
}

// Stitcher concatenates merged clips into the final output.
type Stitcher interface {
	Stitch(ctx context.Context, clips []compose.MergedClip, outputPath string) (*stitch.Result, error)
}

// Result is the outcome of one batch run. SkippedPairs lists the original
// indices of pairs that did not make it into the final output, whether they
// failed at merge or were skipped at stitch.
type Result struct {
	OutputPath   string
	Duration     float64
	SkippedPairs []int
}

// Pipeline is the top-level batch entry point.
type Pipeline struct {
	merger   Merger
	stitcher Stitcher
	tempDir  string
	logger   *slog.Logger
}

// New creates a new Pipeline. Intermediate merged clips are written to
// tempDir under collision-free names.
func New(merger Merger, stitcher Stitcher, tempDir string, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		merger:   merger,
		stitcher: stitcher,
		tempDir:  tempDir,
		logger:   logger,
	}
}

// Run merges every pair in order, stitches the successful subset into
// outputPath and returns the batch result. Pairs are processed strictly
// sequentially so at most one encoder session is active at a time. The final
// output file is owned by the caller; everything else is deleted before Run
// returns.
func (p *Pipeline) Run(ctx context.Context, pairs []ClipPair, outputPath string) (*Result, error) {
	var merged []compose.MergedClip
	// pairIndex maps each merged clip back to its original pair index.
	var pairIndex []int
	var skipped []int

	defer func() {
		for _, clip := range merged {
			_ = os.Remove(clip.Path)
		}
	}()

	// Pairs not yet consumed still get their sources removed if the batch
	// aborts early.
	next := 0
	defer func() {
		for _, pair := range pairs[next:] {
			p.removePairSources(pair)
		}
	}()

	for i, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("batch cancelled at pair %d: %w", i, err)
		}

		mergePath := filepath.Join(p.tempDir, fmt.Sprintf("merge-%s.mp4", uuid.NewString()))
		clip, err := p.merger.Merge(ctx, pair.VideoPath, pair.AudioPath, mergePath)
		next = i + 1
		p.removePairSources(pair)

		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			p.logger.Warn("pair merge failed, continuing batch",
				slog.Int("pair", i),
				slog.String("video", pair.VideoPath),
				slog.String("audio", pair.AudioPath),
				slog.String("error", err.Error()),
			)
			skipped = append(skipped, i)
			continue
		}

		merged = append(merged, *clip)
		pairIndex = append(pairIndex, i)
	}

	if len(merged) == 0 {
		return nil, fmt.Errorf("%w: all %d pairs failed", stitch.ErrNoValidClips, len(pairs))
	}

	res, err := p.stitcher.Stitch(ctx, merged, outputPath)
	if err != nil {
		return nil, err
	}

	for _, j := range res.Skipped {
		skipped = append(skipped, pairIndex[j])
	}
	sort.Ints(skipped)

	p.logger.Info("batch complete",
		slog.String("output", res.OutputPath),
		slog.Int("pairs", len(pairs)),
		slog.Int("skipped", len(skipped)),
		slog.Float64("duration", res.Duration),
	)

	return &Result{
		OutputPath:   res.OutputPath,
		Duration:     res.Duration,
		SkippedPairs: skipped,
	}, nil
}

// removePairSources deletes a pair's two source temp copies.
func (p *Pipeline) removePairSources(pair ClipPair) {
	for _, path := range []string{pair.VideoPath, pair.AudioPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			p.logger.Warn("failed to remove pair source",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
	}
}
