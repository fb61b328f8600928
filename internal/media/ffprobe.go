package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Static errors for media probing.
var (
	// ErrFFprobeExecution is returned when the ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrNoDuration is returned when a source reports no usable duration.
	ErrNoDuration = errors.New("source has no duration")
)

// Prober resolves a source file's track metadata.
type Prober interface {
	// Probe inspects the file at path and returns its resolved clip
	// attributes. The returned clip is a value; callers may retain it after
	// the source file has been consumed.
	Probe(ctx context.Context, path string) (Clip, error)
}

// Compile-time check that FFprobeProber implements Prober.
var _ Prober = (*FFprobeProber)(nil)

// FFprobeProber implements Prober using the ffprobe CLI.
type FFprobeProber struct {
	ffprobePath string
}

// NewFFprobeProber creates a new FFprobeProber.
// If ffprobePath is empty, it defaults to "ffprobe" (found via PATH).
func NewFFprobeProber(ffprobePath string) *FFprobeProber {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFprobeProber{ffprobePath: ffprobePath}
}

// probeOutput mirrors the subset of ffprobe's JSON output the engine needs.
type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	SampleRate   string `json:"sample_rate"`
	Channels     int    `json:"channels"`
	Duration     string `json:"duration"`
	Tags         map[string]string `json:"tags"`
	SideDataList []struct {
		SideDataType string  `json:"side_data_type"`
		Rotation     float64 `json:"rotation"`
	} `json:"side_data_list"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

// Probe implements Prober.
func (p *FFprobeProber) Probe(ctx context.Context, path string) (Clip, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Clip{}, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return Clip{}, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	return parseProbeOutput(path, stdout.Bytes())
}

// parseProbeOutput builds a Clip from raw ffprobe JSON.
func parseProbeOutput(path string, raw []byte) (Clip, error) {
	var out probeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return Clip{}, fmt.Errorf("%w: parse output: %w", ErrFFprobeExecution, err)
	}

	clip := Clip{Path: path}

	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			clip.HasVideo = true
			clip.Width = s.Width
			clip.Height = s.Height
			clip.Rotation = streamRotation(s)
		case "audio":
			clip.HasAudio = true
			clip.Channels = s.Channels
			if rate, err := strconv.Atoi(s.SampleRate); err == nil {
				clip.SampleRate = rate
			}
		}
		if clip.Duration == 0 {
			if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
				clip.Duration = d
			}
		}
	}

	// The container duration is authoritative when present.
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil && d > 0 {
		clip.Duration = d
	}

	if clip.Duration <= 0 {
		return Clip{}, fmt.Errorf("%w: %s", ErrNoDuration, path)
	}

	return clip, nil
}

// streamRotation extracts the display rotation of a video stream, normalized
// to a clockwise angle in {0, 90, 180, 270}. Newer ffprobe reports rotation
// via the Display Matrix side data (counter-clockwise, possibly negative);
// older files carry a "rotate" stream tag.
func streamRotation(s probeStream) int {
	for _, sd := range s.SideDataList {
		if strings.EqualFold(sd.SideDataType, "Display Matrix") {
			return normalizeRotation(-sd.Rotation)
		}
	}
	if tag, ok := s.Tags["rotate"]; ok {
		if r, err := strconv.ParseFloat(tag, 64); err == nil {
			return normalizeRotation(r)
		}
	}
	return 0
}

func normalizeRotation(deg float64) int {
	r := int(math.Round(deg)) % 360
	if r < 0 {
		r += 360
	}
	// Snap to the nearest quarter turn; containers only express these.
	return ((r + 45) / 90 % 4) * 90
}
