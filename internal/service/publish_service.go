package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/duetly/api/internal/model"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// TaskTypePublish is the asynq task type for publish jobs.
const TaskTypePublish = "publish:process"

// ErrNotPublishable is returned when the session has no completed take.
var ErrNotPublishable = fmt.Errorf("session has no completed take to publish")

// ErrEmptyCaption is returned when publish is attempted without a caption.
var ErrEmptyCaption = fmt.Errorf("caption must not be empty")

// publishJobTTL keeps finished job records queryable for a day.
const publishJobTTL = 24 * time.Hour

// PublishService manages publish jobs. Publishing is a discrete one-shot
// action: jobs carry MaxRetry(0) and a failed job is only retried when the
// user submits publish again.
type PublishService struct {
	redis       *redis.Client
	asynqClient *asynq.Client
	sessions    *SessionService
}

func NewPublishService(redisClient *redis.Client, asynqClient *asynq.Client, sessions *SessionService) *PublishService {
	return &PublishService{
		redis:       redisClient,
		asynqClient: asynqClient,
		sessions:    sessions,
	}
}

// StartPublish validates the session is publishable and enqueues the job.
func (s *PublishService) StartPublish(ctx context.Context, userID, sessionID string) (*model.PublishStartResponse, error) {
	sess, err := s.sessions.Session(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID() != userID {
		return nil, ErrSessionNotFound
	}
	if sess.State() != model.SessionComplete {
		return nil, ErrNotPublishable
	}
	if strings.TrimSpace(sess.Preview().Metadata().Caption) == "" {
		return nil, ErrEmptyCaption
	}

	jobID := uuid.New().String()
	now := time.Now()

	job := &model.PublishJob{
		ID:        jobID,
		SessionID: sessionID,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}
	if err := s.saveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"jobId":   jobID,
		"payload": model.PublishJobPayload{SessionID: sessionID, UserID: userID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}

	// One attempt per user action: failures wait for a manual retry.
	_, err = s.asynqClient.Enqueue(asynq.NewTask(TaskTypePublish, payload),
		asynq.Queue("publish"),
		asynq.MaxRetry(0),
		asynq.Retention(publishJobTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.PublishStartResponse{
		JobID:     jobID,
		SessionID: sessionID,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}, nil
}

// GetJob returns the current publish job record.
func (s *PublishService) GetJob(ctx context.Context, jobID string) (*model.PublishJob, error) {
	data, err := s.redis.Get(ctx, publishJobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("job not found")
		}
		return nil, err
	}

	var job model.PublishJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// MarkRunning records that the worker picked the job up (called by worker).
func (s *PublishService) MarkRunning(ctx context.Context, jobID string) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.Status = model.JobStatusRunning
	job.Attempt++
	now := time.Now()
	job.StartedAt = &now
	return s.saveJob(ctx, job)
}

// CompleteJob marks the job succeeded with the published reference.
func (s *PublishService) CompleteJob(ctx context.Context, jobID, publishedID string) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.Status = model.JobStatusSucceeded
	job.PublishedID = publishedID
	now := time.Now()
	job.CompletedAt = &now
	return s.saveJob(ctx, job)
}

// FailJob marks the job failed with its publish error classification. The
// artifact and metadata are untouched, so a retryable failure can be
// re-submitted with identical arguments.
func (s *PublishService) FailJob(ctx context.Context, jobID string, code model.PublishErrorCode, message string, retryable bool) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.Status = model.JobStatusFailed
	job.ErrorCode = code
	job.Error = &message
	job.Retryable = retryable
	now := time.Now()
	job.CompletedAt = &now
	return s.saveJob(ctx, job)
}

func (s *PublishService) saveJob(ctx context.Context, job *model.PublishJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, publishJobKey(job.ID), data, publishJobTTL).Err()
}

func publishJobKey(jobID string) string {
	return fmt.Sprintf("publishjob:%s", jobID)
}
