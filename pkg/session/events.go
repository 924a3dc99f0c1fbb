package session

import (
	"time"

	"github.com/vtprobe/vtprobe-go/pkg/hal"
)

// EventType identifies a lifecycle notification.
type EventType uint8

const (
	// EventStateChanged reports a state transition.
	EventStateChanged EventType = iota

	// EventDeviceFailed reports a device error or disconnect. Err is a
	// *DeviceError.
	EventDeviceFailed

	// EventStreamFailed reports a configure failure (ErrConfigureFailed).
	EventStreamFailed

	// EventSubmitted reports a repeating request submission.
	EventSubmitted

	// EventSubmitFailed reports a failed repeating submission.
	EventSubmitFailed

	// EventCaptureCompleted reports a completed single capture.
	EventCaptureCompleted
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventStateChanged:
		return "STATE_CHANGED"
	case EventDeviceFailed:
		return "DEVICE_FAILED"
	case EventStreamFailed:
		return "STREAM_FAILED"
	case EventSubmitted:
		return "SUBMITTED"
	case EventSubmitFailed:
		return "SUBMIT_FAILED"
	case EventCaptureCompleted:
		return "CAPTURE_COMPLETED"
	default:
		return "UNKNOWN"
	}
}

// Event is a lifecycle notification delivered to EventHandlers.
type Event struct {
	Type     EventType
	Time     time.Time
	DeviceID string

	// Generation is the open attempt the event belongs to.
	Generation uint64

	// From and To are set for EventStateChanged.
	From    State
	To      State
	Trigger EventKind

	// Err is set for failure events.
	Err error

	// Result is set for EventCaptureCompleted.
	Result hal.Metadata
}

// EventHandler receives lifecycle notifications. Handlers run synchronously
// on the goroutine that caused the event, often the callback worker, and
// must not block or call back into blocking Manager methods.
type EventHandler func(Event)
