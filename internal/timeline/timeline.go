// Package timeline provides the composition timeline model: an ordered set of
// track insertions describing how source content maps onto the output's time
// axis. A timeline is append-only; the exporter lowers it into a single
// encoder invocation.
package timeline

import (
	"errors"
	"fmt"
	"math"
)

// epsilon is the tolerance, in seconds, for insertion-point overlap checks.
const epsilon = 0.001

// ErrNonMonotonic is returned when an entry would start before the end of the
// previous entry on the same track.
var ErrNonMonotonic = errors.New("timeline: insertion point overlaps previous entry")

// TrackKind identifies which output track an entry belongs to.
type TrackKind int

const (
	// Video is the single video track of a composition.
	Video TrackKind = iota
	// Audio is the single audio track of a composition.
	Audio
)

// String returns the track kind name for logging.
func (k TrackKind) String() string {
	switch k {
	case Video:
		return "video"
	case Audio:
		return "audio"
	default:
		return "unknown"
	}
}

// Range is a time range within a source file, in seconds.
type Range struct {
	Start    float64
	Duration float64
}

// Entry maps one source range onto the output time axis.
type Entry struct {
	// Track is the output track this entry belongs to.
	Track TrackKind
	// Source is the path of the source media file.
	Source string
	// SourceRange is the portion of the source to insert.
	SourceRange Range
	// At is the insertion point on the output time axis, seconds.
	At float64
	// TimeScale maps the source timebase onto the output: an entry with
	// TimeScale s occupies SourceRange.Duration/s seconds of output. Zero
	// means unscaled (same as 1).
	TimeScale float64
}

// OutputDuration returns the span this entry occupies on the output axis.
func (e Entry) OutputDuration() float64 {
	scale := e.TimeScale
	if scale == 0 {
		scale = 1
	}
	return e.SourceRange.Duration / scale
}

// Timeline is an append-only two-track composition. Insertion points on each
// track are monotonically non-decreasing and non-overlapping.
type Timeline struct {
	entries []Entry

	// Rotation is the orientation, in degrees clockwise, applied to the
	// composite video track. For stitched output this is the first clip's
	// transform; later clips' own transforms are ignored so the whole output
	// has one consistent viewing orientation.
	Rotation int

	// Width and Height are the coded frame dimensions every video entry is
	// normalized to before concatenation. Concatenation requires uniform
	// segment dimensions; smaller or differently-shaped sources are scaled
	// and letterboxed into this frame. Zero means sources are encoded at
	// their stored dimensions.
	Width  int
	Height int
}

// New creates an empty timeline.
func New() *Timeline {
	return &Timeline{}
}

// Insert appends an entry. It returns ErrNonMonotonic if the entry would
// start, beyond tolerance, before the end of the last entry on its track.
func (t *Timeline) Insert(e Entry) error {
	end := t.TrackDuration(e.Track)
	if e.At < end-epsilon {
		return fmt.Errorf("%w: %s track at %.3fs, previous end %.3fs",
			ErrNonMonotonic, e.Track, e.At, end)
	}
	t.entries = append(t.entries, e)
	return nil
}

// Entries returns the entries for one track, in insertion order.
func (t *Timeline) Entries(kind TrackKind) []Entry {
	var out []Entry
	for _, e := range t.entries {
		if e.Track == kind {
			out = append(out, e)
		}
	}
	return out
}

// TrackDuration returns the end of the last entry on a track: its insertion
// point plus its scaled range length. Empty tracks have duration 0.
func (t *Timeline) TrackDuration(kind TrackKind) float64 {
	var end float64
	for _, e := range t.entries {
		if e.Track != kind {
			continue
		}
		if d := e.At + e.OutputDuration(); d > end {
			end = d
		}
	}
	return end
}

// Duration returns the longer of the two track durations.
func (t *Timeline) Duration() float64 {
	return math.Max(t.TrackDuration(Video), t.TrackDuration(Audio))
}

// Sources returns the distinct source paths referenced by the timeline, in
// first-use order. The exporter uses this as the encoder input list.
func (t *Timeline) Sources() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range t.entries {
		if !seen[e.Source] {
			seen[e.Source] = true
			out = append(out, e.Source)
		}
	}
	return out
}

// Empty reports whether the timeline has no entries.
func (t *Timeline) Empty() bool {
	return len(t.entries) == 0
}
