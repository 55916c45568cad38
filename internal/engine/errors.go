package engine

import (
	"errors"
	"fmt"

	"github.com/duetly/api/internal/model"
)

// DeviceError classifies a camera/microphone acquisition or mid-take device
// failure. Acquisition failures are fatal to opening the recorder: no session
// is constructed.
type DeviceError struct {
	Code model.DeviceErrorCode
	Err  error
}

func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("device %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("device %s", e.Code)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// NewDeviceError wraps err with a device error classification.
func NewDeviceError(code model.DeviceErrorCode, err error) *DeviceError {
	return &DeviceError{Code: code, Err: err}
}

// AsDeviceError extracts a DeviceError from err's chain, if present.
func AsDeviceError(err error) (*DeviceError, bool) {
	var de *DeviceError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// PublishError classifies a failed publish attempt. NetworkFailure and
// Unknown are retryable without re-recording; Rejected requires the user to
// change metadata or content first.
type PublishError struct {
	Code    model.PublishErrorCode
	Message string
	Err     error
}

func (e *PublishError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("publish %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("publish %s: %v", e.Code, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Retryable reports whether the same artifact may be re-submitted unchanged.
func (e *PublishError) Retryable() bool {
	return e.Code != model.PublishRejected
}

// AsPublishError extracts a PublishError from err's chain, if present.
func AsPublishError(err error) (*PublishError, bool) {
	var pe *PublishError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// ErrMixLocked is returned when the audio source mode is changed after the
// session reached processing and the pipeline did not retain source tracks.
// It is rejected locally and never reaches the network.
var ErrMixLocked = errors.New("audio mix is locked after processing")

// ErrSessionClosed is returned by any operation on a closed session.
var ErrSessionClosed = errors.New("session is closed")

// InvalidTransitionError reports a state machine operation that is not legal
// from the session's current state.
type InvalidTransitionError struct {
	From model.SessionState
	Op   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s from state %q", e.Op, e.From)
}

// AsInvalidTransition extracts an InvalidTransitionError from err's chain.
func AsInvalidTransition(err error) (*InvalidTransitionError, bool) {
	var te *InvalidTransitionError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
