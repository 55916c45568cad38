package model

import "time"

// OriginalVideoRef describes the video being duetted. It is supplied by the
// caller when the recorder is opened and is read-only for the session's lifetime.
type OriginalVideoRef struct {
	ID            string `json:"id" validate:"required"`
	SourceURL     string `json:"sourceUrl" validate:"required,url"`
	DurationMs    int64  `json:"durationMs" validate:"required,gt=0"`
	CreatorID     string `json:"creatorId" validate:"required"`
	CreatorHandle string `json:"creatorHandle" validate:"required"`
	ThumbnailURL  string `json:"thumbnailUrl,omitempty"`
}

// CaptureReport is the recording client's account of its camera/microphone
// state, gathered before the recorder is opened. Permission is re-validated on
// every open; it is never cached across sessions.
type CaptureReport struct {
	Permission PermissionState `json:"permission" validate:"required,oneof=granted denied prompt"`
	HasCamera  bool            `json:"hasCamera"`
	HasMic     bool            `json:"hasMic"`
}

// OpenSessionRequest opens a recorder for an original video.
type OpenSessionRequest struct {
	Original OriginalVideoRef `json:"original" validate:"required"`
	Style    DuetStyle        `json:"style" validate:"required,oneof=side_by_side react_respond picture_in_picture"`
	Capture  CaptureReport    `json:"capture" validate:"required"`
}

// SessionSnapshot is the externally visible view of a recording session.
type SessionSnapshot struct {
	ID             string           `json:"id"`
	UserID         string           `json:"userId"`
	State          SessionState     `json:"state"`
	Style          DuetStyle        `json:"style"`
	Original       OriginalVideoRef `json:"original"`
	ElapsedMs      int64            `json:"elapsedMs"`
	ChunkCount     int              `json:"chunkCount"`
	Mix            MixState         `json:"mix"`
	Preview        PreviewState     `json:"preview"`
	PreviewURL     string           `json:"previewUrl,omitempty"`
	ErrorCode      string           `json:"errorCode,omitempty"`
	ErrorMessage   string           `json:"errorMessage,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
	AcquireCount   int              `json:"acquireCount"`
	HasArtifact    bool             `json:"hasArtifact"`
	ArtifactMs     int64            `json:"artifactMs,omitempty"`
	PublishedRefID string           `json:"publishedRefId,omitempty"`
}

// MixState mirrors the audio mix controller's policy container.
type MixState struct {
	Mode          AudioSourceMode `json:"mode"`
	MicGain       int             `json:"micGain"`
	OriginalGain  int             `json:"originalGain"`
	MicMuted      bool            `json:"micMuted"`
	OriginalMuted bool            `json:"originalMuted"`
}

// UpdateMixRequest adjusts the audio mix policy. Pointer fields are optional;
// absent fields keep their current value.
type UpdateMixRequest struct {
	Mode          *AudioSourceMode `json:"mode,omitempty" validate:"omitempty,oneof=original_only both voiceover_only"`
	MicGain       *int             `json:"micGain,omitempty" validate:"omitempty,min=0,max=100"`
	OriginalGain  *int             `json:"originalGain,omitempty" validate:"omitempty,min=0,max=100"`
	MicMuted      *bool            `json:"micMuted,omitempty"`
	OriginalMuted *bool            `json:"originalMuted,omitempty"`
}

// DeviceLostRequest is the client's report that the capture device disappeared
// mid-take (unplugged camera, revoked permission).
type DeviceLostRequest struct {
	Reason string `json:"reason,omitempty"`
}
