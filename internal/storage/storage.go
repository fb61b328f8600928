// Package storage handles the files a composition touches: decoded scene
// payloads and merged intermediates on local disk during processing, and the
// finished reel in S3 when delivery is requested.
package storage

import (
	"context"
	"io"
)

// Storage is the file-handling port of the composition service. Scene
// payloads are written as temp files the pipeline consumes; the finished
// reel can optionally be pushed to S3.
type Storage interface {
	// SaveTemp writes data to a temporary file and returns its path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp opens a temporary file for reading.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the given temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// UploadToS3 uploads a finished reel under key and returns its URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
