package session

import (
	"errors"
	"fmt"

	"github.com/vtprobe/vtprobe-go/pkg/hal"
)

// Session errors.
var (
	ErrInvalidConfig    = errors.New("invalid session config")
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrLockTimeout      = errors.New("timeout waiting to lock device opening")
	ErrAlreadyOpen      = errors.New("device already open")
	ErrExecutorStopped  = errors.New("callback executor not running")
	ErrNotOpen          = errors.New("device not open")
	ErrNoActiveStream   = errors.New("no active capture session")
	ErrConfigureFailed  = errors.New("capture session configure failed")
	ErrSubmitFailed     = errors.New("repeating request submission failed")
	ErrResubmitFailed   = errors.New("tag written but repeating request resubmission failed")
	ErrClosed           = errors.New("session closed")
)

// DeviceError reports a device error or disconnect callback.
type DeviceError struct {
	DeviceID string

	// Code is the HAL error code; zero for a disconnect.
	Code int

	// Disconnected is set when the device went away rather than failed.
	Disconnected bool
}

func (e *DeviceError) Error() string {
	if e.Disconnected {
		return fmt.Sprintf("device %s disconnected", e.DeviceID)
	}
	return fmt.Sprintf("device %s error %d (%s)", e.DeviceID, e.Code, hal.ErrorCodeName(e.Code))
}
