// Package compose builds two-track timelines for single clip pairs and
// orchestrates their export into merged clip files.
package compose

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/storyreel/composer-api/internal/media"
	"github.com/storyreel/composer-api/internal/reconcile"
	"github.com/storyreel/composer-api/internal/silence"
	"github.com/storyreel/composer-api/internal/timeline"
)

// Static errors for composition.
var (
	// ErrVideoTrackNotFound is returned when the visual source has no video stream.
	ErrVideoTrackNotFound = errors.New("video track not found")
	// ErrAudioTrackNotFound is returned when the narration source has no audio stream.
	ErrAudioTrackNotFound = errors.New("audio track not found")
)

// Default silence format when the narration stream does not report one.
const (
	defaultSampleRate = 44100
	defaultChannels   = 2
)

// BuildTimeline composes one video and one audio track for a clip pair,
// applying the reconciliation plan. Under a Pad plan it synthesizes the
// silence segment into silenceDir and returns its path so the caller can
// delete it once the timeline has been exported.
//
// The source's display rotation is deliberately not placed on the timeline:
// merged intermediates keep the stored pixel orientation, and the transform
// travels on MergedClip so the final assembly applies it exactly once.
func BuildTimeline(ctx context.Context, video, audio media.Clip, plan reconcile.Plan, synth silence.Synthesizer, silenceDir string) (*timeline.Timeline, []string, error) {
	if !video.HasVideo {
		return nil, nil, fmt.Errorf("%w: %s", ErrVideoTrackNotFound, video.Path)
	}
	if !audio.HasAudio {
		return nil, nil, fmt.Errorf("%w: %s", ErrAudioTrackNotFound, audio.Path)
	}

	tl := timeline.New()

	videoEntry := timeline.Entry{
		Track:       timeline.Video,
		Source:      video.Path,
		SourceRange: timeline.Range{Start: 0, Duration: video.Duration},
		At:          0,
	}
	if plan.Strategy == reconcile.Stretch {
		videoEntry.TimeScale = plan.VideoScale
	}
	if err := tl.Insert(videoEntry); err != nil {
		return nil, nil, err
	}

	if plan.Strategy != reconcile.Pad {
		err := tl.Insert(timeline.Entry{
			Track:       timeline.Audio,
			Source:      audio.Path,
			SourceRange: timeline.Range{Start: 0, Duration: audio.Duration},
			At:          0,
		})
		if err != nil {
			return nil, nil, err
		}
		return tl, nil, nil
	}

	// Pad: one synthesized silence segment, spliced in before and after the
	// narration so the audio track spans the full video duration.
	rate := audio.SampleRate
	if rate == 0 {
		rate = defaultSampleRate
	}
	channels := audio.Channels
	if channels == 0 {
		channels = defaultChannels
	}

	gapPath := filepath.Join(silenceDir, fmt.Sprintf("gap-%s.wav", uuid.NewString()))
	if err := synth.Generate(ctx, gapPath, plan.PadBefore, rate, channels); err != nil {
		return nil, nil, err
	}

	entries := []timeline.Entry{
		{Track: timeline.Audio, Source: gapPath, SourceRange: timeline.Range{Duration: plan.PadBefore}, At: 0},
		{Track: timeline.Audio, Source: audio.Path, SourceRange: timeline.Range{Duration: audio.Duration}, At: plan.PadBefore},
		{Track: timeline.Audio, Source: gapPath, SourceRange: timeline.Range{Duration: plan.PadAfter}, At: plan.PadBefore + audio.Duration},
	}
	for _, e := range entries {
		if err := tl.Insert(e); err != nil {
			return nil, []string{gapPath}, err
		}
	}

	return tl, []string{gapPath}, nil
}
