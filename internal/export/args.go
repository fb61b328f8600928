package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/storyreel/composer-api/internal/timeline"
)

// Output audio format. Intermediate silence files may arrive as PCM WAV at
// other layouts; every audio entry is resampled to this before concatenation
// so the concat filter sees uniform inputs.
const (
	outputSampleRate = 44100
	audioBitrate     = "128k"
)

// contiguityEpsilon bounds how far an entry's insertion point may drift from
// the end of the previous entry and still be expressible as a concat chain.
const contiguityEpsilon = 0.01

// buildArgs lowers a timeline into a single ffmpeg invocation. It is a pure
// function; table tests cover each timeline shape.
//
// Every input is opened with -noautorotate so that sources keep their stored
// pixel orientation; the timeline's composite rotation is then applied once,
// as a transpose of the concatenated video track. This is what guarantees the
// stitched output follows the first clip's orientation and ignores the rest.
func buildArgs(tl *timeline.Timeline, outputPath string, opts Options) ([]string, error) {
	if tl == nil || tl.Empty() {
		return nil, fmt.Errorf("%w: empty timeline", ErrSessionCreate)
	}

	video := tl.Entries(timeline.Video)
	audio := tl.Entries(timeline.Audio)
	if len(video) == 0 || len(audio) == 0 {
		return nil, fmt.Errorf("%w: timeline needs one video and one audio track, got %d/%d entries",
			ErrSessionCreate, len(video), len(audio))
	}
	if err := checkContiguous(video); err != nil {
		return nil, err
	}
	if err := checkContiguous(audio); err != nil {
		return nil, err
	}

	sources := tl.Sources()
	inputIndex := make(map[string]int, len(sources))
	for i, src := range sources {
		inputIndex[src] = i
	}

	args := []string{"-y"}
	for _, src := range sources {
		args = append(args, "-noautorotate", "-i", src)
	}

	filter := buildFilterGraph(video, audio, inputIndex, tl)

	args = append(args,
		"-filter_complex", filter,
		"-map", "[vout]",
		"-map", "[aout]",
		"-c:v", "libx264",
	)
	args = append(args, qualityArgs(opts.Quality)...)
	args = append(args,
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", audioBitrate,
		"-ar", fmt.Sprintf("%d", outputSampleRate),
	)
	if opts.NetworkOptimized {
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, outputPath)

	return args, nil
}

// checkContiguous verifies that a track's entries form a gapless chain: each
// insertion point equals the end of the previous entry. Only such tracks can
// be lowered into a concat chain.
func checkContiguous(entries []timeline.Entry) error {
	var cursor float64
	for i, e := range entries {
		if math.Abs(e.At-cursor) > contiguityEpsilon {
			return fmt.Errorf("%w: %s entry %d at %.3fs, expected %.3fs",
				ErrSessionCreate, e.Track, i, e.At, cursor)
		}
		cursor = e.At + e.OutputDuration()
	}
	return nil
}

// buildFilterGraph produces the -filter_complex expression realizing both
// tracks, labeled [vout] and [aout].
func buildFilterGraph(video, audio []timeline.Entry, inputIndex map[string]int, tl *timeline.Timeline) string {
	var parts []string

	videoLabels := make([]string, len(video))
	for i, e := range video {
		label := fmt.Sprintf("[v%d]", i)
		parts = append(parts, fmt.Sprintf("[%d:v]%s%s", inputIndex[e.Source], videoChain(e, tl.Width, tl.Height), label))
		videoLabels[i] = label
	}

	audioLabels := make([]string, len(audio))
	for i, e := range audio {
		label := fmt.Sprintf("[a%d]", i)
		parts = append(parts, fmt.Sprintf("[%d:a]%s%s", inputIndex[e.Source], audioChain(e), label))
		audioLabels[i] = label
	}

	vout := "[vcat]"
	if len(video) == 1 {
		vout = videoLabels[0]
	} else {
		parts = append(parts, fmt.Sprintf("%sconcat=n=%d:v=1:a=0[vcat]",
			strings.Join(videoLabels, ""), len(video)))
	}

	if rot := rotateFilter(tl.Rotation); rot != "" {
		parts = append(parts, fmt.Sprintf("%s%s[vout]", vout, rot))
	} else {
		parts = append(parts, fmt.Sprintf("%snull[vout]", vout))
	}

	if len(audio) == 1 {
		parts = append(parts, fmt.Sprintf("%sanull[aout]", audioLabels[0]))
	} else {
		parts = append(parts, fmt.Sprintf("%sconcat=n=%d:v=0:a=1[aout]",
			strings.Join(audioLabels, ""), len(audio)))
	}

	return strings.Join(parts, ";")
}

// videoChain builds the per-entry video filter chain: source range trim,
// timestamp normalization, the optional retime, and frame normalization to
// the timeline's target dimensions. The concat filter rejects segments whose
// dimensions or sample aspect ratios differ, so when a target frame is set
// every entry is scaled into it and letterboxed as needed.
func videoChain(e timeline.Entry, width, height int) string {
	filters := []string{
		fmt.Sprintf("trim=start=%s:duration=%s", ftoa(e.SourceRange.Start), ftoa(e.SourceRange.Duration)),
		"setpts=PTS-STARTPTS",
	}
	if e.TimeScale != 0 && math.Abs(e.TimeScale-1) > 1e-9 {
		// Scale s stretches the entry to Duration/s seconds of output.
		filters = append(filters, fmt.Sprintf("setpts=PTS/%s", ftoa(e.TimeScale)))
	}
	if width > 0 && height > 0 {
		filters = append(filters,
			fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", width, height),
			fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2", width, height),
			"setsar=1",
		)
	}
	return strings.Join(filters, ",")
}

// audioChain builds the per-entry audio filter chain. Entries are resampled
// to the output layout so silence WAVs and narration concatenate cleanly.
func audioChain(e timeline.Entry) string {
	return strings.Join([]string{
		fmt.Sprintf("atrim=start=%s:duration=%s", ftoa(e.SourceRange.Start), ftoa(e.SourceRange.Duration)),
		"asetpts=PTS-STARTPTS",
		fmt.Sprintf("aresample=%d", outputSampleRate),
		"aformat=channel_layouts=stereo",
	}, ",")
}

// rotateFilter maps a clockwise display rotation to its transpose chain.
func rotateFilter(rotation int) string {
	switch rotation {
	case 90:
		return "transpose=1"
	case 180:
		return "transpose=1,transpose=1"
	case 270:
		return "transpose=2"
	default:
		return ""
	}
}

func qualityArgs(q Quality) []string {
	switch q {
	case QualityHighest:
		return []string{"-preset", "slow", "-crf", "18"}
	default:
		return []string{"-preset", "fast", "-crf", "23"}
	}
}

// ftoa formats a duration or scale with enough precision for sub-frame
// accuracy without trailing float noise.
func ftoa(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", v), "0"), ".")
}
