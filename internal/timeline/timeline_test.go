package timeline

import (
	"errors"
	"math"
	"testing"
)

func TestInsert_MonotonicPerTrack(t *testing.T) {
	tl := New()

	if err := tl.Insert(Entry{Track: Video, Source: "a.mp4", SourceRange: Range{0, 3}, At: 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tl.Insert(Entry{Track: Video, Source: "b.mp4", SourceRange: Range{0, 4.5}, At: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Overlapping insertion on the same track is rejected.
	err := tl.Insert(Entry{Track: Video, Source: "c.mp4", SourceRange: Range{0, 1}, At: 5})
	if !errors.Is(err, ErrNonMonotonic) {
		t.Fatalf("expected ErrNonMonotonic, got %v", err)
	}

	// The audio track has its own cursor.
	if err := tl.Insert(Entry{Track: Audio, Source: "a.mp4", SourceRange: Range{0, 3}, At: 0}); err != nil {
		t.Fatalf("unexpected error on audio track: %v", err)
	}
}

func TestInsert_ToleratesEpsilonOverlap(t *testing.T) {
	tl := New()
	_ = tl.Insert(Entry{Track: Audio, Source: "a.wav", SourceRange: Range{0, 2}, At: 0})

	// Sub-millisecond overlap from float accumulation is not an error.
	if err := tl.Insert(Entry{Track: Audio, Source: "b.wav", SourceRange: Range{0, 2}, At: 1.9995}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTrackDuration(t *testing.T) {
	tl := New()
	_ = tl.Insert(Entry{Track: Video, Source: "a.mp4", SourceRange: Range{0, 3}, At: 0})
	_ = tl.Insert(Entry{Track: Video, Source: "b.mp4", SourceRange: Range{0, 4.5}, At: 3})
	_ = tl.Insert(Entry{Track: Video, Source: "c.mp4", SourceRange: Range{0, 2}, At: 7.5})

	if got := tl.TrackDuration(Video); math.Abs(got-9.5) > 1e-9 {
		t.Errorf("TrackDuration(Video) = %v, want 9.5", got)
	}
	if got := tl.TrackDuration(Audio); got != 0 {
		t.Errorf("TrackDuration(Audio) = %v, want 0", got)
	}
}

func TestTrackDuration_Scaled(t *testing.T) {
	tl := New()

	// A 10s source scaled by 10/14 spans 14s of output.
	scale := 10.0 / 14.0
	_ = tl.Insert(Entry{Track: Video, Source: "a.mp4", SourceRange: Range{0, 10}, At: 0, TimeScale: scale})

	if got := tl.TrackDuration(Video); math.Abs(got-14.0) > 1e-9 {
		t.Errorf("TrackDuration(Video) = %v, want 14.0", got)
	}
}

func TestSources_DistinctFirstUseOrder(t *testing.T) {
	tl := New()
	_ = tl.Insert(Entry{Track: Audio, Source: "silence.wav", SourceRange: Range{0, 2}, At: 0})
	_ = tl.Insert(Entry{Track: Audio, Source: "narration.m4a", SourceRange: Range{0, 6}, At: 2})
	_ = tl.Insert(Entry{Track: Audio, Source: "silence.wav", SourceRange: Range{0, 2}, At: 8})
	_ = tl.Insert(Entry{Track: Video, Source: "scene.mp4", SourceRange: Range{0, 10}, At: 0})

	got := tl.Sources()
	want := []string{"silence.wav", "narration.m4a", "scene.mp4"}
	if len(got) != len(want) {
		t.Fatalf("Sources() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sources()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDuration_LongerTrackWins(t *testing.T) {
	tl := New()
	_ = tl.Insert(Entry{Track: Video, Source: "a.mp4", SourceRange: Range{0, 10}, At: 0})
	_ = tl.Insert(Entry{Track: Audio, Source: "a.m4a", SourceRange: Range{0, 6}, At: 0})

	if got := tl.Duration(); got != 10 {
		t.Errorf("Duration() = %v, want 10", got)
	}
}

func TestEmpty(t *testing.T) {
	tl := New()
	if !tl.Empty() {
		t.Error("new timeline should be empty")
	}
	_ = tl.Insert(Entry{Track: Video, Source: "a.mp4", SourceRange: Range{0, 1}, At: 0})
	if tl.Empty() {
		t.Error("timeline with entries should not be empty")
	}
}
