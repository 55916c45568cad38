package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/duetly/api/internal/client"
	"github.com/duetly/api/internal/engine"
	"github.com/duetly/api/internal/model"
	"github.com/duetly/api/internal/service"
	"github.com/duetly/api/internal/websocket"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// PublishWorker ships a completed duet to the external publish service:
// artifact bytes go to object storage, the publish collaborator gets the
// artifact URL plus composition facts and metadata, and the session is
// destroyed on success. Failures leave the artifact and metadata untouched
// so the user can retry without re-recording.
type PublishWorker struct {
	sessions  *service.SessionService
	publisher client.Publisher
	storage   client.StorageClient
	publishes *service.PublishService
	hub       *websocket.Hub
}

// NewPublishWorker creates a new publish worker.
func NewPublishWorker(sessions *service.SessionService, publisher client.Publisher, storage client.StorageClient, publishes *service.PublishService, hub *websocket.Hub) *PublishWorker {
	return &PublishWorker{
		sessions:  sessions,
		publisher: publisher,
		storage:   storage,
		publishes: publishes,
		hub:       hub,
	}
}

// ProcessTask handles one publish attempt.
func (w *PublishWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload struct {
		JobID   string          `json:"jobId"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	jobID := taskPayload.JobID
	log.Printf("Starting publish job: %s", jobID)

	var payload model.PublishJobPayload
	if err := json.Unmarshal(taskPayload.Payload, &payload); err != nil {
		w.failJob(ctx, jobID, payload.SessionID, model.PublishUnknown, "Invalid payload", false)
		return fmt.Errorf("failed to unmarshal publish payload: %w", err)
	}

	if err := w.publishes.MarkRunning(ctx, jobID); err != nil {
		log.Printf("Failed to mark publish job %s running: %v", jobID, err)
	}

	sess, err := w.sessions.Session(payload.SessionID)
	if err != nil {
		w.failJob(ctx, jobID, payload.SessionID, model.PublishUnknown, "Session no longer exists", false)
		return err
	}

	preview := sess.Preview()
	artifact := preview.Artifact()
	data := preview.ArtifactData()
	if artifact == nil || len(data) == 0 {
		w.failJob(ctx, jobID, payload.SessionID, model.PublishUnknown, "No assembled artifact", false)
		return fmt.Errorf("session %s has no artifact", payload.SessionID)
	}

	artifactURL, err := w.uploadArtifact(ctx, payload.UserID, artifact, data)
	if err != nil {
		// Storage failures are network territory: the artifact stays
		// client-side and the user may retry.
		w.failJob(ctx, jobID, payload.SessionID, model.PublishNetworkFailure, err.Error(), true)
		return err
	}

	metadata := preview.Metadata()
	req := &client.PublishRequest{
		OriginalVideoID: sess.Original().ID,
		ArtifactURL:     artifactURL,
		DurationMs:      artifact.DurationMs,
		Style:           artifact.Style,
		AudioSourceMode: artifact.AudioSourceMode,
		Caption:         metadata.Caption,
		Tags:            metadata.Tags,
		UserID:          payload.UserID,
	}

	result, err := w.publish(ctx, req)
	if err != nil {
		code, message, retryable := classifyPublishError(err)
		w.failJob(ctx, jobID, payload.SessionID, code, message, retryable)
		return err
	}

	if err := w.publishes.CompleteJob(ctx, jobID, result.PublishedID); err != nil {
		log.Printf("Failed to record publish job %s completion: %v", jobID, err)
	}
	w.hub.BroadcastComplete(payload.SessionID, result)
	w.sessions.DestroyAfterPublish(ctx, payload.SessionID)

	log.Printf("Publish job %s completed (published %s)", jobID, result.PublishedID)
	return nil
}

// uploadArtifact stores the assembled bytes and returns their URL. With no
// storage configured a mock URL keeps the flow alive in development.
func (w *PublishWorker) uploadArtifact(ctx context.Context, userID string, artifact *model.DuetArtifact, data []byte) (string, error) {
	key := fmt.Sprintf("duets/%s/%s.webm", userID, artifact.ID)
	if w.storage == nil {
		return fmt.Sprintf("https://cdn.duetly.app/%s", key), nil
	}
	url, err := w.storage.Upload(ctx, key, bytes.NewReader(data), "video/webm")
	if err != nil {
		return "", fmt.Errorf("failed to upload artifact: %w", err)
	}
	return url, nil
}

// publish calls the external collaborator, or fabricates a success when it
// is not configured (development mode).
func (w *PublishWorker) publish(ctx context.Context, req *client.PublishRequest) (*client.PublishResponse, error) {
	if w.publisher == nil || !w.publisher.IsConfigured() {
		return &client.PublishResponse{
			PublishedID: uuid.New().String(),
			ContentURL:  req.ArtifactURL,
		}, nil
	}
	return w.publisher.Publish(ctx, req)
}

func (w *PublishWorker) failJob(ctx context.Context, jobID, sessionID string, code model.PublishErrorCode, message string, retryable bool) {
	if err := w.publishes.FailJob(ctx, jobID, code, message, retryable); err != nil {
		log.Printf("Failed to record publish job %s failure: %v", jobID, err)
	}
	if sessionID != "" {
		w.hub.BroadcastError(sessionID, string(code), message)
	}
}

func classifyPublishError(err error) (model.PublishErrorCode, string, bool) {
	if pe, ok := engine.AsPublishError(err); ok {
		message := pe.Message
		if message == "" {
			message = pe.Error()
		}
		return pe.Code, message, pe.Retryable()
	}
	return model.PublishUnknown, err.Error(), true
}
