// Package silence synthesizes fixed-duration silent audio files used to pad
// narration tracks. Silence is written directly as zero-filled PCM in a
// single pass; no encoder session or real-time capture is involved, and the
// frame count is exact by construction.
package silence

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
)

// ErrSilenceGeneration is returned when a silent segment cannot be produced,
// typically because the requested format is invalid.
var ErrSilenceGeneration = errors.New("silence generation failed")

// Synthesizer produces silent audio files that can be spliced into a
// composition by exact time range.
type Synthesizer interface {
	// Generate writes a silent audio file of exactly
	// round(duration*sampleRate) sample frames to path.
	Generate(ctx context.Context, path string, duration float64, sampleRate, channels int) error
}

// Compile-time check that WAVSynthesizer implements Synthesizer.
var _ Synthesizer = (*WAVSynthesizer)(nil)

// WAVSynthesizer writes silence as 16-bit little-endian PCM in a WAV
// container. WAV is used for intermediates because its duration is exact to
// the sample frame; the exporter transcodes it to AAC alongside the narration.
type WAVSynthesizer struct{}

// NewWAVSynthesizer creates a new WAVSynthesizer.
func NewWAVSynthesizer() *WAVSynthesizer {
	return &WAVSynthesizer{}
}

const (
	bytesPerSample = 2 // 16-bit PCM
	// zeroChunkFrames bounds the write buffer so long silences do not hold
	// the whole payload in memory.
	zeroChunkFrames = 65536
)

// Frames returns the exact number of sample frames a silent segment of the
// given duration contains at the given sample rate.
func Frames(duration float64, sampleRate int) int {
	return int(math.Round(duration * float64(sampleRate)))
}

// Generate implements Synthesizer.
func (s *WAVSynthesizer) Generate(ctx context.Context, path string, duration float64, sampleRate, channels int) error {
	if duration <= 0 || sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("%w: duration=%.3f sample_rate=%d channels=%d",
			ErrSilenceGeneration, duration, sampleRate, channels)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("silence generation cancelled: %w", err)
	}

	frames := Frames(duration, sampleRate)
	dataSize := frames * channels * bytesPerSample

	f, err := os.Create(path) // #nosec G304 - path is generated by trusted internal code
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrSilenceGeneration, path, err)
	}

	if err := writeWAV(f, dataSize, sampleRate, channels); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("%w: %w", ErrSilenceGeneration, err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("%w: close %s: %w", ErrSilenceGeneration, path, err)
	}

	return nil
}

// writeWAV writes a canonical 44-byte RIFF/WAVE header followed by dataSize
// zero bytes of PCM payload.
func writeWAV(f *os.File, dataSize, sampleRate, channels int) error {
	byteRate := sampleRate * channels * bytesPerSample
	blockAlign := channels * bytesPerSample

	var header [44]byte
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(header[20:22], 1)  // audio format: PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bytesPerSample*8)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))

	if _, err := f.Write(header[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	zeros := make([]byte, min(dataSize, zeroChunkFrames*blockAlign))
	remaining := dataSize
	for remaining > 0 {
		n := min(remaining, len(zeros))
		if _, err := f.Write(zeros[:n]); err != nil {
			return fmt.Errorf("write payload: %w", err)
		}
		remaining -= n
	}

	return nil
}
