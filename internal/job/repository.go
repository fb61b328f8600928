package job

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned when no composition job exists for an ID.
var ErrJobNotFound = errors.New("job not found")

// Repository is the persistence port for composition jobs. The HTTP layer
// polls it for reel status while the pipeline updates it from another
// goroutine, so implementations must be safe for concurrent use.
type Repository interface {
	// Save persists a composition job, replacing any existing job with the
	// same ID.
	Save(ctx context.Context, job *Job) error

	// FindByID retrieves a composition job by its unique identifier.
	// Returns ErrJobNotFound if the job does not exist.
	FindByID(ctx context.Context, id string) (*Job, error)

	// List returns all composition jobs.
	List(ctx context.Context) ([]*Job, error)

	// Delete removes a composition job.
	// Returns ErrJobNotFound if the job does not exist.
	Delete(ctx context.Context, id string) error
}
