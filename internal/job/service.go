package job

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/storyreel/composer-api/internal/pipeline"
	"github.com/storyreel/composer-api/internal/storage"
)

// SceneInput is one scene's source payloads.
type SceneInput struct {
	// VideoBase64 is the base64-encoded visual clip.
	VideoBase64 string
	// AudioBase64 is the base64-encoded narration audio.
	AudioBase64 string
}

// ComposeInput contains the input parameters for a composition job.
type ComposeInput struct {
	// Scenes are the clip pairs, in story order.
	Scenes []SceneInput
	// PushToS3 indicates whether to upload the finished reel to S3.
	PushToS3 bool
}

// ComposeOutput contains the result of a composition job.
type ComposeOutput struct {
	// JobID is the unique identifier for the job.
	JobID string
	// Status is the final job status.
	Status Status
	// ReelPath is the local path of the finished reel.
	ReelPath string
	// ReelURL is the S3 URL of the reel (if pushed to S3).
	ReelURL string
	// Duration is the reel duration in seconds.
	Duration float64
	// SkippedScenes lists the scene indices left out of the reel.
	SkippedScenes []int
	// Error contains any error message if the job failed.
	Error string
}

// Batch is the pipeline dependency of the service.
type Batch interface {
	Run(ctx context.Context, pairs []pipeline.ClipPair, outputPath string) (*pipeline.Result, error)
}

// ComposeService orchestrates composition jobs: it materializes scene
// payloads as temp copies, runs the batch pipeline over them, tracks job
// state and optionally uploads the finished reel.
type ComposeService struct {
	repo      Repository
	store     storage.Storage
	batch     Batch
	outputDir string
	logger    *slog.Logger
}

// NewComposeService creates a new ComposeService. Finished reels are written
// to outputDir.
func NewComposeService(repo Repository, store storage.Storage, batch Batch, outputDir string, logger *slog.Logger) *ComposeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComposeService{
		repo:      repo,
		store:     store,
		batch:     batch,
		outputDir: outputDir,
		logger:    logger,
	}
}

// CreateJob creates a new job in QUEUED status and persists it.
func (s *ComposeService) CreateJob(ctx context.Context, input ComposeInput) (*Job, error) {
	job := New()
	job.PushToS3 = input.PushToS3

	scenes := make([]Scene, len(input.Scenes))
	for i := range scenes {
		scenes[i] = Scene{Index: i, Status: ScenePending}
	}
	job.Scenes = scenes

	s.logger.Info("creating composition job",
		slog.String("job_id", job.ID),
		slog.Int("scenes", len(scenes)),
		slog.Bool("push_to_s3", input.PushToS3),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return job, nil
}

// GetJob retrieves a job by ID.
func (s *ComposeService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ProcessExistingJob runs the full composition workflow for a job created by
// CreateJob. It is intended to run in a background goroutine with a detached
// context.
func (s *ComposeService) ProcessExistingJob(ctx context.Context, jobID string, input ComposeInput) (*ComposeOutput, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if err := job.Start(); err != nil {
		return nil, fmt.Errorf("start job %s: %w", jobID, err)
	}
	_ = s.repo.Save(ctx, job)

	out, err := s.process(ctx, job, input)
	if err != nil {
		_ = job.Fail(err.Error())
		_ = s.repo.Save(ctx, job)
		s.logger.Error("composition failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return &ComposeOutput{JobID: jobID, Status: job.GetStatus(), Error: err.Error()}, err
	}

	_ = s.repo.Save(ctx, job)
	return out, nil
}

func (s *ComposeService) process(ctx context.Context, job *Job, input ComposeInput) (*ComposeOutput, error) {
	// Materialize every scene payload as a pair of temp copies. A scene that
	// fails to decode keeps its slot so skip reporting stays index-aligned;
	// the pipeline will fail its merge and continue.
	pairs := make([]pipeline.ClipPair, len(input.Scenes))
	for i, scene := range input.Scenes {
		videoPath, vErr := s.saveScenePayload(ctx, job.ID, i, "video", scene.VideoBase64)
		audioPath, aErr := s.saveScenePayload(ctx, job.ID, i, "audio", scene.AudioBase64)
		if vErr != nil || aErr != nil {
			s.logger.Warn("scene payload unusable",
				slog.String("job_id", job.ID),
				slog.Int("scene", i),
			)
		}
		pairs[i] = pipeline.ClipPair{VideoPath: videoPath, AudioPath: audioPath}
		job.UpdateScene(i, Scene{Index: i, Status: SceneMerging, VideoPath: videoPath, AudioPath: audioPath})
	}
	job.UpdateProgress(10)
	_ = s.repo.Save(ctx, job)

	outputPath := filepath.Join(s.outputDir, job.ID+".mp4")
	res, err := s.batch.Run(ctx, pairs, outputPath)
	if err != nil {
		return nil, err
	}

	job.MarkScenes(res.SkippedPairs, SceneMerged)
	job.UpdateProgress(90)
	_ = s.repo.Save(ctx, job)

	var reelURL string
	if job.PushToS3 {
		reelURL, err = s.uploadReel(ctx, job.ID, res.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("upload reel: %w", err)
		}
	}

	job.SetOutput(res.OutputPath, res.Duration, reelURL)
	if err := job.Complete(); err != nil {
		return nil, err
	}
	job.UpdateProgress(100)

	s.logger.Info("composition complete",
		slog.String("job_id", job.ID),
		slog.Float64("duration", res.Duration),
		slog.Int("skipped_scenes", len(res.SkippedPairs)),
	)

	return &ComposeOutput{
		JobID:         job.ID,
		Status:        StatusCompleted,
		ReelPath:      res.OutputPath,
		ReelURL:       reelURL,
		Duration:      res.Duration,
		SkippedScenes: res.SkippedPairs,
	}, nil
}

// saveScenePayload decodes one base64 payload into a temp copy owned by the
// pipeline.
func (s *ComposeService) saveScenePayload(ctx context.Context, jobID string, index int, kind, payload string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("decode scene %d %s: %w", index, kind, err)
	}
	name := fmt.Sprintf("%s_scene%03d_%s", jobID, index, kind)
	path, err := s.store.SaveTemp(ctx, name, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("save scene %d %s: %w", index, kind, err)
	}
	return path, nil
}

// uploadReel pushes the finished reel to S3 and returns its URL.
func (s *ComposeService) uploadReel(ctx context.Context, jobID, path string) (string, error) {
	f, err := s.store.LoadTemp(ctx, path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	return s.store.UploadToS3(ctx, "reels/"+jobID+".mp4", f)
}
