package compose

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/storyreel/composer-api/internal/export"
	"github.com/storyreel/composer-api/internal/media"
	"github.com/storyreel/composer-api/internal/silence"
	"github.com/storyreel/composer-api/internal/timeline"
)

// stubProber returns canned clips keyed by path.
type stubProber struct {
	clips map[string]media.Clip
	err   error
}

func (s *stubProber) Probe(_ context.Context, path string) (media.Clip, error) {
	if s.err != nil {
		return media.Clip{}, s.err
	}
	c, ok := s.clips[path]
	if !ok {
		return media.Clip{}, media.ErrNoDuration
	}
	return c, nil
}

// captureExporter records the timeline it was asked to encode.
type captureExporter struct {
	tl *timeline.Timeline
}

func (c *captureExporter) Export(_ context.Context, tl *timeline.Timeline, _ string, _ export.Options) error {
	c.tl = tl
	return nil
}

func TestMerger_RotationTravelsOnClipNotTimeline(t *testing.T) {
	// A rotated source must come out of the merge with upright-encoded
	// pixels and the transform on the MergedClip, so the stitch stage
	// applies it exactly once.
	prober := &stubProber{clips: map[string]media.Clip{
		"v.mp4": {Path: "v.mp4", Duration: 5, HasVideo: true, Width: 1920, Height: 1080, Rotation: 90},
		"a.m4a": {Path: "a.m4a", Duration: 5, HasAudio: true, SampleRate: 44100, Channels: 2},
	}}
	exp := &captureExporter{}
	m := NewMerger(prober, silence.NewWAVSynthesizer(), exp, t.TempDir(), nil)

	clip, err := m.Merge(context.Background(), "v.mp4", "a.m4a", "out.mp4")
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	if exp.tl.Rotation != 0 {
		t.Errorf("merge timeline rotation = %d, want 0", exp.tl.Rotation)
	}
	if clip.Rotation != 90 {
		t.Errorf("MergedClip.Rotation = %d, want 90", clip.Rotation)
	}
	if clip.Width != 1920 || clip.Height != 1080 {
		t.Errorf("MergedClip frame = %dx%d, want 1920x1080", clip.Width, clip.Height)
	}
}

func TestMerger_ProbeErrorPropagates(t *testing.T) {
	probeErr := errors.New("boom")
	m := NewMerger(
		&stubProber{err: probeErr},
		silence.NewWAVSynthesizer(),
		export.NewExporter("definitely-not-ffmpeg", nil),
		t.TempDir(),
		nil,
	)

	_, err := m.Merge(context.Background(), "v.mp4", "a.m4a", "out.mp4")
	if !errors.Is(err, probeErr) {
		t.Errorf("expected probe error, got %v", err)
	}
}

func TestMerger_MissingTrackPropagates(t *testing.T) {
	prober := &stubProber{clips: map[string]media.Clip{
		"v.mp4": {Path: "v.mp4", Duration: 5, HasVideo: true},
		"a.m4a": {Path: "a.m4a", Duration: 5}, // no audio stream
	}}
	m := NewMerger(prober, silence.NewWAVSynthesizer(), export.NewExporter("definitely-not-ffmpeg", nil), t.TempDir(), nil)

	_, err := m.Merge(context.Background(), "v.mp4", "a.m4a", "out.mp4")
	if !errors.Is(err, ErrAudioTrackNotFound) {
		t.Errorf("expected ErrAudioTrackNotFound, got %v", err)
	}
}

func TestMerger_ExportErrorPropagates(t *testing.T) {
	prober := &stubProber{clips: map[string]media.Clip{
		"v.mp4": {Path: "v.mp4", Duration: 5, HasVideo: true},
		"a.m4a": {Path: "a.m4a", Duration: 5, HasAudio: true},
	}}
	m := NewMerger(prober, silence.NewWAVSynthesizer(), export.NewExporter("definitely-not-ffmpeg", nil), t.TempDir(), nil)

	_, err := m.Merge(context.Background(), "v.mp4", "a.m4a", filepath.Join(t.TempDir(), "out.mp4"))
	if !errors.Is(err, export.ErrExportFailed) {
		t.Errorf("expected ErrExportFailed, got %v", err)
	}
}

func TestMerger_CleansUpSilenceIntermediates(t *testing.T) {
	tempDir := t.TempDir()
	prober := &stubProber{clips: map[string]media.Clip{
		"v.mp4": {Path: "v.mp4", Duration: 10, HasVideo: true},
		"a.m4a": {Path: "a.m4a", Duration: 6, HasAudio: true, SampleRate: 44100, Channels: 2},
	}}
	m := NewMerger(prober, silence.NewWAVSynthesizer(), export.NewExporter("definitely-not-ffmpeg", nil), tempDir, nil)

	// Export fails, but the synthesized silence file must still be removed.
	_, _ = m.Merge(context.Background(), "v.mp4", "a.m4a", filepath.Join(t.TempDir(), "out.mp4"))

	leftovers, err := filepath.Glob(filepath.Join(tempDir, "gap-*.wav"))
	if err != nil {
		t.Fatal(err)
	}
	if len(leftovers) != 0 {
		t.Errorf("silence intermediates left behind: %v", leftovers)
	}
}
