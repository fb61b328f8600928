// Package job provides the composition job aggregate: the state of one
// story-reel request as it moves through the merge-and-stitch pipeline, plus
// the repository port and the service orchestrating the work.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/storyreel/composer-api/internal/job/id"
)

// Status represents the current state of a composition job.
type Status string

const (
	// StatusQueued indicates the job is waiting to be processed.
	StatusQueued Status = "QUEUED"
	// StatusRunning indicates the batch pipeline is processing the job.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the reel was produced successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job encountered a fatal error.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was manually cancelled.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusQueued:    {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// SceneStatus represents the status of a single scene pair within a job.
type SceneStatus string

const (
	// ScenePending indicates the scene is waiting to be merged.
	ScenePending SceneStatus = "PENDING"
	// SceneMerging indicates the scene pair is being merged.
	SceneMerging SceneStatus = "MERGING"
	// SceneMerged indicates the scene made it into the final reel.
	SceneMerged SceneStatus = "MERGED"
	// SceneSkipped indicates the scene failed and the batch continued
	// without it.
	SceneSkipped SceneStatus = "SKIPPED"
)

// Scene tracks one visual clip / narration pair inside a job.
type Scene struct {
	// Index is the position of this scene in the story.
	Index int
	// Status is the current processing status.
	Status SceneStatus
	// VideoPath and AudioPath are the temp copies of the scene's sources.
	VideoPath string
	AudioPath string
	// Error contains any error message if the scene was skipped.
	Error string
}

// Job represents one story composition request.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Scenes contains the clip pairs being composed, in story order.
	Scenes []Scene
	// Progress is the percentage of completion (0-100).
	Progress int
	// Error contains any error message if the job failed.
	Error string
	// OutputPath is the path of the finished reel.
	OutputPath string
	// Duration is the final reel duration in seconds.
	Duration float64
	// PushToS3 indicates whether to upload the reel to S3.
	PushToS3 bool
	// ReelURL is the S3 URL if PushToS3 was true.
	ReelURL string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial QUEUED status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial QUEUED
// status. Useful for testing or when the ID is externally generated.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusQueued,
		Scenes:    make([]Scene, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from QUEUED to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetScenes sets the scenes for this job.
func (j *Job) SetScenes(scenes []Scene) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Scenes = scenes
	j.UpdatedAt = time.Now()
}

// UpdateScene updates a specific scene by index.
func (j *Job) UpdateScene(index int, scene Scene) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if index >= 0 && index < len(j.Scenes) {
		j.Scenes[index] = scene
		j.UpdatedAt = time.Now()
	}
}

// MarkScenes sets the status of every scene, marking the given indices as
// skipped and the rest with the fallback status.
func (j *Job) MarkScenes(skipped []int, fallback SceneStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	isSkipped := make(map[int]bool, len(skipped))
	for _, i := range skipped {
		isSkipped[i] = true
	}
	for i := range j.Scenes {
		if isSkipped[i] {
			j.Scenes[i].Status = SceneSkipped
		} else {
			j.Scenes[i].Status = fallback
		}
	}
	j.UpdatedAt = time.Now()
}

// UpdateProgress sets the progress percentage (0-100).
func (j *Job) UpdateProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Progress = progress
	j.UpdatedAt = time.Now()
}

// SetOutput records the finished reel's path, duration and optional S3 URL.
func (j *Job) SetOutput(path string, duration float64, url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputPath = path
	j.Duration = duration
	j.ReelURL = url
	j.UpdatedAt = time.Now()
}

// SkippedScenes returns the indices of scenes that were skipped.
func (j *Job) SkippedScenes() []int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var out []int
	for i, s := range j.Scenes {
		if s.Status == SceneSkipped {
			out = append(out, i)
		}
	}
	return out
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	scenes := make([]Scene, len(j.Scenes))
	copy(scenes, j.Scenes)

	return &Job{
		ID:          j.ID,
		Status:      j.Status,
		Scenes:      scenes,
		Progress:    j.Progress,
		Error:       j.Error,
		OutputPath:  j.OutputPath,
		Duration:    j.Duration,
		PushToS3:    j.PushToS3,
		ReelURL:     j.ReelURL,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
