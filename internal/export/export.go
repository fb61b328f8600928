// Package export encodes composition timelines into MP4 container files. A
// timeline is lowered into a single ffmpeg invocation; each export runs as a
// one-shot session with an explicit state machine so a composition can never
// be encoded twice concurrently.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/storyreel/composer-api/internal/timeline"
)

// Static errors for export operations.
var (
	// ErrSessionCreate is returned when a timeline cannot be lowered into an
	// encoder invocation. This indicates a configuration or format
	// incompatibility, not a transient failure.
	ErrSessionCreate = errors.New("export session creation failed")
	// ErrExportInProgress is returned when Run is called on a session that is
	// already exporting.
	ErrExportInProgress = errors.New("export already in progress")
	// ErrSessionConsumed is returned when Run is called on a session that has
	// already completed or failed.
	ErrSessionConsumed = errors.New("export session already consumed")
	// ErrExportFailed wraps the underlying encoder error.
	ErrExportFailed = errors.New("export failed")
)

// Quality selects the encoder quality preset.
type Quality string

const (
	// QualityDefault balances speed and size.
	QualityDefault Quality = "default"
	// QualityHighest is the highest available preset, used for final output.
	QualityHighest Quality = "highest"
)

// Options configures one export.
type Options struct {
	// Quality is the encoder quality preset.
	Quality Quality
	// NetworkOptimized writes the MP4 with the moov atom first so playback
	// can start before the whole file is fetched.
	NetworkOptimized bool
}

// State is the lifecycle state of an export session.
type State int

const (
	// StateNotStarted is the initial session state.
	StateNotStarted State = iota
	// StateExporting is the only suspending state.
	StateExporting
	// StateCompleted means the output file was written.
	StateCompleted
	// StateFailed means the encoder failed; no partial output remains.
	StateFailed
)

// Exporter creates export sessions backed by the ffmpeg CLI.
type Exporter struct {
	ffmpegPath string
	logger     *slog.Logger
}

// NewExporter creates a new Exporter.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewExporter(ffmpegPath string, logger *slog.Logger) *Exporter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{ffmpegPath: ffmpegPath, logger: logger}
}

// Export lowers the timeline and runs the session to completion.
func (e *Exporter) Export(ctx context.Context, tl *timeline.Timeline, outputPath string, opts Options) error {
	sess, err := e.NewSession(tl, outputPath, opts)
	if err != nil {
		return err
	}
	return sess.Run(ctx)
}

// NewSession lowers a timeline into an encoder invocation without running it.
// Returns ErrSessionCreate if the timeline cannot be encoded.
func (e *Exporter) NewSession(tl *timeline.Timeline, outputPath string, opts Options) (*Session, error) {
	args, err := buildArgs(tl, outputPath, opts)
	if err != nil {
		return nil, err
	}
	return &Session{
		ffmpegPath: e.ffmpegPath,
		args:       args,
		outputPath: outputPath,
		logger:     e.logger,
	}, nil
}

// Session is a one-shot export of a single composition.
type Session struct {
	ffmpegPath string
	args       []string
	outputPath string
	logger     *slog.Logger

	mu    sync.Mutex
	state State
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run executes the export. It may be called exactly once; a concurrent call
// returns ErrExportInProgress and a later call returns ErrSessionConsumed.
// On failure, any partial output file is removed.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateExporting:
		s.mu.Unlock()
		return ErrExportInProgress
	case StateCompleted, StateFailed:
		s.mu.Unlock()
		return ErrSessionConsumed
	}
	s.state = StateExporting
	s.mu.Unlock()

	err := s.run(ctx)

	s.mu.Lock()
	if err != nil {
		s.state = StateFailed
	} else {
		s.state = StateCompleted
	}
	s.mu.Unlock()

	return err
}

func (s *Session) run(ctx context.Context) error {
	s.logger.Debug("running ffmpeg export",
		slog.String("output", s.outputPath),
		slog.Int("args", len(s.args)),
	)

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, s.ffmpegPath, s.args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// A failed export must not leave a half-written file behind.
		_ = os.Remove(s.outputPath)

		if ctx.Err() != nil {
			return fmt.Errorf("%w: cancelled: %w", ErrExportFailed, ctx.Err())
		}
		return fmt.Errorf("%w: %w", ErrExportFailed, &FFmpegError{
			Args:   s.args,
			Stderr: stderr.String(),
			Err:    err,
		})
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr
// output for diagnostics.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
