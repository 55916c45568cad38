package model

// Duet styles
type DuetStyle string

const (
	StyleSideBySide       DuetStyle = "side_by_side"
	StyleReactRespond     DuetStyle = "react_respond"
	StylePictureInPicture DuetStyle = "picture_in_picture"
)

var ValidDuetStyles = []DuetStyle{
	StyleSideBySide, StyleReactRespond, StylePictureInPicture,
}

// IsValid reports whether s is a known duet style.
func (s DuetStyle) IsValid() bool {
	for _, v := range ValidDuetStyles {
		if s == v {
			return true
		}
	}
	return false
}

// Audio source modes
type AudioSourceMode string

const (
	AudioOriginalOnly  AudioSourceMode = "original_only"
	AudioBoth          AudioSourceMode = "both"
	AudioVoiceoverOnly AudioSourceMode = "voiceover_only"
)

var ValidAudioSourceModes = []AudioSourceMode{
	AudioOriginalOnly, AudioBoth, AudioVoiceoverOnly,
}

// IsValid reports whether m is a known audio source mode.
func (m AudioSourceMode) IsValid() bool {
	for _, v := range ValidAudioSourceModes {
		if m == v {
			return true
		}
	}
	return false
}

// Session states
type SessionState string

const (
	SessionIdle       SessionState = "idle"
	SessionRecording  SessionState = "recording"
	SessionPaused     SessionState = "paused"
	SessionStopping   SessionState = "stopping"
	SessionProcessing SessionState = "processing"
	SessionComplete   SessionState = "complete"
	SessionError      SessionState = "error"
)

// Device error codes, surfaced when camera/microphone acquisition fails
type DeviceErrorCode string

const (
	DevicePermissionDenied DeviceErrorCode = "permission_denied"
	DeviceNotFound         DeviceErrorCode = "no_device"
	DeviceBusy             DeviceErrorCode = "device_busy"
	DeviceUnknown          DeviceErrorCode = "unknown"
)

// Capture permission states reported by the recording client
type PermissionState string

const (
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
	PermissionPrompt  PermissionState = "prompt"
)

// Publish error codes
type PublishErrorCode string

const (
	PublishNetworkFailure PublishErrorCode = "network_failure"
	PublishRejected       PublishErrorCode = "rejected"
	PublishUnknown        PublishErrorCode = "unknown"
)

// Preview workflow visibility
type PreviewState string

const (
	PreviewHidden  PreviewState = "hidden"
	PreviewVisible PreviewState = "visible"
)

// Job status
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)
