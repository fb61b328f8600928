// Package reconcile decides how to equalize a video track's and an audio
// track's durations before they are composed into a single clip.
//
// The adopted policy is asymmetric: narration audio is never time-stretched.
// When the audio outlasts the video, the video is retimed to span the audio;
// when the video outlasts the audio, the audio is padded with silence on both
// sides. An alternate policy that scales whichever track is shorter toward
// max(video, audio) exists in earlier versions of the product; the two are not
// output-compatible and must not be mixed.
package reconcile

import "math"

// Epsilon is the duration tolerance, in seconds, below which two track
// durations are considered equal.
const Epsilon = 0.001

// Strategy identifies how a clip pair's durations are reconciled.
type Strategy int

const (
	// Identity leaves both tracks untouched.
	Identity Strategy = iota
	// Stretch retimes the video track to span the audio duration.
	Stretch
	// Pad inserts silence symmetrically around the audio track.
	Pad
)

// String returns the strategy name for logging.
func (s Strategy) String() string {
	switch s {
	case Identity:
		return "identity"
	case Stretch:
		return "stretch"
	case Pad:
		return "pad"
	default:
		return "unknown"
	}
}

// Plan describes the concrete operations needed to reconcile one clip pair.
// It is a pure value; applying it is the composer's job.
type Plan struct {
	// Strategy is the reconciliation strategy for this pair.
	Strategy Strategy
	// VideoScale is the factor mapping the original video timebase onto the
	// unified duration. 1 for Identity and Pad; videoDuration/audioDuration
	// (< 1 when the video is slowed down) for Stretch.
	VideoScale float64
	// PadBefore is the silence duration inserted before the audio, seconds.
	PadBefore float64
	// PadAfter is the silence duration inserted after the audio, seconds.
	PadAfter float64
	// UnifiedDuration is the duration both tracks span after reconciliation.
	UnifiedDuration float64
}

// NewPlan computes the reconciliation plan for one video/audio duration pair.
// It is deterministic and never truncates content: the unified duration is
// always at least max(videoDuration, audioDuration) minus Epsilon.
func NewPlan(videoDuration, audioDuration float64) Plan {
	if math.Abs(videoDuration-audioDuration) <= Epsilon {
		return Plan{
			Strategy:        Identity,
			VideoScale:      1,
			UnifiedDuration: videoDuration,
		}
	}

	if audioDuration > videoDuration {
		return Plan{
			Strategy:        Stretch,
			VideoScale:      videoDuration / audioDuration,
			UnifiedDuration: audioDuration,
		}
	}

	gap := (videoDuration - audioDuration) / 2
	return Plan{
		Strategy:        Pad,
		VideoScale:      1,
		PadBefore:       gap,
		PadAfter:        gap,
		UnifiedDuration: videoDuration,
	}
}
