// Package media provides the source clip model and ffprobe-backed metadata
// resolution for the composition engine.
package media

// Clip is an immutable reference to a source media file with its lazily
// resolved attributes. Clips are created when a pair is registered for
// merging and are read-only thereafter.
type Clip struct {
	// Path is the local filesystem path of the source.
	Path string
	// Duration is the container duration in seconds.
	Duration float64
	// HasVideo reports whether the source carries a video stream.
	HasVideo bool
	// HasAudio reports whether the source carries an audio stream.
	HasAudio bool
	// Rotation is the display orientation of the video stream in degrees
	// clockwise (0, 90, 180 or 270). Audio-only sources have rotation 0.
	Rotation int
	// Width and Height are the coded dimensions of the video stream.
	Width  int
	Height int
	// SampleRate and Channels describe the audio stream, when present.
	SampleRate int
	Channels   int
}

// Portrait reports whether the clip displays taller than wide once its
// rotation is applied.
func (c Clip) Portrait() bool {
	w, h := c.Width, c.Height
	if c.Rotation == 90 || c.Rotation == 270 {
		w, h = h, w
	}
	return h > w
}
