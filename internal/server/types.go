// Package server provides the HTTP server for the Composer API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// SceneRequest is one scene in a composition request.
type SceneRequest struct {
	// VideoBase64 is the base64-encoded visual clip.
	VideoBase64 string `json:"video_base64" validate:"required,base64"`
	// AudioBase64 is the base64-encoded narration audio.
	AudioBase64 string `json:"audio_base64" validate:"required,base64"`
}

// CreateCompositionRequest is the HTTP request body for creating a composition.
type CreateCompositionRequest struct {
	// Scenes are the clip pairs to merge and stitch, in story order.
	Scenes []SceneRequest `json:"scenes" validate:"required,min=1,dive"`
	// PushToS3 indicates whether to upload the finished reel to S3.
	PushToS3 bool `json:"push_to_s3"`
}

// CreateCompositionResponse is the HTTP response after creating a composition.
type CreateCompositionResponse struct {
	// ID is the unique identifier for the created composition job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// CompositionResponse is the HTTP response for getting composition details.
type CompositionResponse struct {
	// ID is the unique identifier for the composition job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// Duration is the finished reel duration in seconds.
	Duration float64 `json:"duration,omitempty"`
	// SkippedScenes lists scene indices left out of the reel.
	SkippedScenes []int `json:"skipped_scenes,omitempty"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// ReelBase64 is the base64-encoded reel content (if push_to_s3=false and completed).
	ReelBase64 string `json:"reel_base64,omitempty"`
	// ReelURL is the S3 URL of the reel (if push_to_s3=true and completed).
	ReelURL string `json:"reel_url,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
