package model

import "time"

// DuetArtifact is the single assembled recording produced when a take
// completes. Exactly one exists per completed session; a retake discards it.
type DuetArtifact struct {
	ID              string          `json:"id"`
	PreviewURL      string          `json:"previewUrl"`
	Style           DuetStyle       `json:"style"`
	AudioSourceMode AudioSourceMode `json:"audioSourceMode"`
	DurationMs      int64           `json:"durationMs"`
	SizeBytes       int64           `json:"sizeBytes"`
	ChunkCount      int             `json:"chunkCount"`
	AssembledAt     time.Time       `json:"assembledAt"`
}

// DuetMetadata is the user-editable caption/tag set, independent of the artifact.
type DuetMetadata struct {
	Caption string   `json:"caption"`
	Tags    []string `json:"tags"`
}

// UpdateMetadataRequest edits the pending duet's caption and tags.
type UpdateMetadataRequest struct {
	Caption *string   `json:"caption,omitempty"`
	Tags    *[]string `json:"tags,omitempty"`
}

// PreviewResponse is returned by the preview endpoint once a take has completed.
type PreviewResponse struct {
	State    PreviewState  `json:"state"`
	Artifact *DuetArtifact `json:"artifact,omitempty"`
	Metadata DuetMetadata  `json:"metadata"`
}

// PublishJob tracks a single publish attempt. Publishing is a discrete
// one-shot action: failed jobs are retried only by the user, never by backoff.
type PublishJob struct {
	ID          string           `json:"id"`
	SessionID   string           `json:"sessionId"`
	Status      JobStatus        `json:"status"`
	ErrorCode   PublishErrorCode `json:"errorCode,omitempty"`
	Error       *string          `json:"error,omitempty"`
	Retryable   bool             `json:"retryable"`
	PublishedID string           `json:"publishedId,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	StartedAt   *time.Time       `json:"startedAt,omitempty"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
	Attempt     int              `json:"attempt"`
}

// PublishJobPayload is the asynq task payload for a publish job.
type PublishJobPayload struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

// PublishStartResponse acknowledges an enqueued publish.
type PublishStartResponse struct {
	JobID     string    `json:"jobId"`
	SessionID string    `json:"sessionId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}
