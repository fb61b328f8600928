package pipeline

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/storyreel/composer-api/internal/compose"
	"github.com/storyreel/composer-api/internal/stitch"
)

// stubMerger fails any pair whose video path matches failOn, and writes a
// real file for successful merges so cleanup can be observed.
type stubMerger struct {
	failOn   map[string]error
	duration float64
	merged   []string
}

func (m *stubMerger) Merge(_ context.Context, videoPath, _, outputPath string) (*compose.MergedClip, error) {
	if err, ok := m.failOn[videoPath]; ok {
		return nil, err
	}
	if err := os.WriteFile(outputPath, []byte("clip"), 0600); err != nil {
		return nil, err
	}
	m.merged = append(m.merged, outputPath)
	return &compose.MergedClip{Path: outputPath, Duration: m.duration}, nil
}

// stubStitcher records the clips it received and writes the final file.
type stubStitcher struct {
	clips   []compose.MergedClip
	skipped []int
	err     error
}

func (s *stubStitcher) Stitch(_ context.Context, clips []compose.MergedClip, outputPath string) (*stitch.Result, error) {
	s.clips = clips
	if s.err != nil {
		return nil, s.err
	}
	if err := os.WriteFile(outputPath, []byte("reel"), 0600); err != nil {
		return nil, err
	}
	var total float64
	for i, c := range clips {
		if contains(s.skipped, i) {
			continue
		}
		total += c.Duration
	}
	return &stitch.Result{OutputPath: outputPath, Duration: total, Skipped: s.skipped}, nil
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// writePairs creates real source temp copies for n pairs.
func writePairs(t *testing.T, dir string, n int) []ClipPair {
	t.Helper()
	pairs := make([]ClipPair, n)
	for i := range pairs {
		v := filepath.Join(dir, "src-video-"+string(rune('a'+i))+".mp4")
		a := filepath.Join(dir, "src-audio-"+string(rune('a'+i))+".m4a")
		for _, p := range []string{v, a} {
			if err := os.WriteFile(p, []byte("src"), 0600); err != nil {
				t.Fatal(err)
			}
		}
		pairs[i] = ClipPair{VideoPath: v, AudioPath: a}
	}
	return pairs
}

// residualCount counts leftover files in dir, excluding the final output.
func residualCount(t *testing.T, dir, finalOutput string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for _, e := range entries {
		if filepath.Join(dir, e.Name()) != finalOutput {
			count++
		}
	}
	return count
}

func TestRun_HappyPath(t *testing.T) {
	dir := t.TempDir()
	pairs := writePairs(t, dir, 3)
	merger := &stubMerger{duration: 2.5}
	stitcher := &stubStitcher{}
	out := filepath.Join(dir, "reel.mp4")

	res, err := New(merger, stitcher, dir, nil).Run(context.Background(), pairs, out)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if math.Abs(res.Duration-7.5) > 1e-9 {
		t.Errorf("Duration = %v, want 7.5", res.Duration)
	}
	if len(res.SkippedPairs) != 0 {
		t.Errorf("SkippedPairs = %v, want none", res.SkippedPairs)
	}
	if _, err := os.Stat(out); err != nil {
		t.Error("final output missing")
	}
	// Only the final output persists.
	if n := residualCount(t, dir, out); n != 0 {
		t.Errorf("%d residual files left in temp dir", n)
	}
}

func TestRun_PartialFailureTolerated(t *testing.T) {
	dir := t.TempDir()
	pairs := writePairs(t, dir, 5)
	merger := &stubMerger{
		duration: 2.0,
		failOn:   map[string]error{pairs[2].VideoPath: compose.ErrAudioTrackNotFound},
	}
	stitcher := &stubStitcher{}
	out := filepath.Join(dir, "reel.mp4")

	res, err := New(merger, stitcher, dir, nil).Run(context.Background(), pairs, out)
	if err != nil {
		t.Fatalf("Run() error = %v (batch must not abort)", err)
	}

	if len(res.SkippedPairs) != 1 || res.SkippedPairs[0] != 2 {
		t.Errorf("SkippedPairs = %v, want [2]", res.SkippedPairs)
	}
	// The remaining four pairs reach the stitcher in original relative order.
	if len(stitcher.clips) != 4 {
		t.Fatalf("stitched clips = %d, want 4", len(stitcher.clips))
	}
	wantOrder := []string{merger.merged[0], merger.merged[1], merger.merged[2], merger.merged[3]}
	for i, c := range stitcher.clips {
		if c.Path != wantOrder[i] {
			t.Errorf("clip %d = %s, want %s", i, c.Path, wantOrder[i])
		}
	}
	if n := residualCount(t, dir, out); n != 0 {
		t.Errorf("%d residual files left in temp dir", n)
	}
}

func TestRun_TotalFailure(t *testing.T) {
	dir := t.TempDir()
	pairs := writePairs(t, dir, 3)
	failAll := make(map[string]error)
	for _, p := range pairs {
		failAll[p.VideoPath] = compose.ErrVideoTrackNotFound
	}
	merger := &stubMerger{failOn: failAll}
	out := filepath.Join(dir, "reel.mp4")

	_, err := New(merger, &stubStitcher{}, dir, nil).Run(context.Background(), pairs, out)
	if !errors.Is(err, stitch.ErrNoValidClips) {
		t.Fatalf("expected ErrNoValidClips, got %v", err)
	}

	// No residual temp files, and no final output either.
	if n := residualCount(t, dir, ""); n != 0 {
		t.Errorf("%d residual files after total failure", n)
	}
}

func TestRun_MergedClipsDeletedOnStitchFailure(t *testing.T) {
	dir := t.TempDir()
	pairs := writePairs(t, dir, 2)
	merger := &stubMerger{duration: 1}
	stitcher := &stubStitcher{err: stitch.ErrNoValidClips}
	out := filepath.Join(dir, "reel.mp4")

	_, err := New(merger, stitcher, dir, nil).Run(context.Background(), pairs, out)
	if err == nil {
		t.Fatal("expected stitch failure to propagate")
	}

	if n := residualCount(t, dir, ""); n != 0 {
		t.Errorf("%d residual files after stitch failure", n)
	}
}

func TestRun_StitchSkipsMapBackToPairIndices(t *testing.T) {
	dir := t.TempDir()
	pairs := writePairs(t, dir, 4)
	// Pair 1 fails at merge; the stitcher then skips its input index 1,
	// which corresponds to original pair 2.
	merger := &stubMerger{
		duration: 1,
		failOn:   map[string]error{pairs[1].VideoPath: compose.ErrAudioTrackNotFound},
	}
	stitcher := &stubStitcher{skipped: []int{1}}
	out := filepath.Join(dir, "reel.mp4")

	res, err := New(merger, stitcher, dir, nil).Run(context.Background(), pairs, out)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []int{1, 2}
	if len(res.SkippedPairs) != len(want) {
		t.Fatalf("SkippedPairs = %v, want %v", res.SkippedPairs, want)
	}
	for i := range want {
		if res.SkippedPairs[i] != want[i] {
			t.Errorf("SkippedPairs = %v, want %v", res.SkippedPairs, want)
		}
	}
}

func TestRun_SourceCopiesDeletedEvenOnFailure(t *testing.T) {
	dir := t.TempDir()
	pairs := writePairs(t, dir, 2)
	merger := &stubMerger{
		duration: 1,
		failOn:   map[string]error{pairs[0].VideoPath: compose.ErrVideoTrackNotFound},
	}
	out := filepath.Join(dir, "reel.mp4")

	_, err := New(merger, &stubStitcher{}, dir, nil).Run(context.Background(), pairs, out)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, p := range pairs {
		for _, src := range []string{p.VideoPath, p.AudioPath} {
			if _, statErr := os.Stat(src); !os.IsNotExist(statErr) {
				t.Errorf("source temp copy %s not deleted", src)
			}
		}
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	pairs := writePairs(t, dir, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&stubMerger{duration: 1}, &stubStitcher{}, dir, nil).Run(ctx, pairs, filepath.Join(dir, "reel.mp4"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	// Source copies are still cleaned up.
	if n := residualCount(t, dir, ""); n != 0 {
		t.Errorf("%d residual files after cancellation", n)
	}
}

func TestRun_MergeOutputsUniquelyNamed(t *testing.T) {
	dir := t.TempDir()
	pairs := writePairs(t, dir, 3)
	merger := &stubMerger{duration: 1}
	out := filepath.Join(dir, "reel.mp4")

	if _, err := New(merger, &stubStitcher{}, dir, nil).Run(context.Background(), pairs, out); err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool)
	for _, p := range merger.merged {
		if seen[p] {
			t.Errorf("duplicate merge output name %s", p)
		}
		seen[p] = true
		if !strings.HasPrefix(filepath.Base(p), "merge-") {
			t.Errorf("unexpected merge output name %s", p)
		}
	}
}
