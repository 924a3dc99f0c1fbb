package log

import (
	"time"
)

// Event is one entry of a session trace.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the session manager instance (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// DeviceID is the device the event concerns, if any.
	DeviceID string `cbor:"5,keyasint,omitempty"`

	// Generation is the open attempt the event belongs to.
	Generation uint64 `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	StateChange *StateChangeEvent `cbor:"10,keyasint,omitempty"` // Lifecycle state
	Access      *AccessEvent      `cbor:"11,keyasint,omitempty"` // Tag read/write
	Capture     *CaptureEvent     `cbor:"12,keyasint,omitempty"` // Request submission
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"` // Errors at any layer
}

// Layer indicates which component captured the event.
type Layer uint8

const (
	// LayerHAL is the hardware abstraction boundary (callbacks, handles).
	LayerHAL Layer = 0
	// LayerAccessor is the typed registry accessor.
	LayerAccessor Layer = 1
	// LayerSession is the session lifecycle manager.
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerHAL:
		return "HAL"
	case LayerAccessor:
		return "ACCESSOR"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryState indicates a lifecycle state change.
	CategoryState Category = 0
	// CategoryAccess indicates a tag read or write.
	CategoryAccess Category = 1
	// CategoryCapture indicates a request submission or capture result.
	CategoryCapture Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryState:
		return "STATE"
	case CategoryAccess:
		return "ACCESS"
	case CategoryCapture:
		return "CAPTURE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory parses a category name as printed by String.
func ParseCategory(s string) (Category, bool) {
	for c := CategoryState; c <= CategoryError; c++ {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// StateChangeEvent captures lifecycle transitions.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Trigger is the lifecycle event that caused the change.
	Trigger string `cbor:"3,keyasint,omitempty"`
}

// AccessOp distinguishes reads from writes.
type AccessOp uint8

const (
	// AccessRead is a typed registry read.
	AccessRead AccessOp = 0
	// AccessWrite is a typed write into the pending request.
	AccessWrite AccessOp = 1
)

// String returns the operation name.
func (o AccessOp) String() string {
	switch o {
	case AccessRead:
		return "READ"
	case AccessWrite:
		return "WRITE"
	default:
		return "UNKNOWN"
	}
}

// AccessEvent captures one typed tag access.
type AccessEvent struct {
	Op AccessOp `cbor:"1,keyasint"`

	// Registry is the registry name (Chars, Result, Request).
	Registry string `cbor:"2,keyasint"`

	// Name is the tag name.
	Name string `cbor:"3,keyasint"`

	// Shape is TYPE/CARDINALITY, e.g. "BYTE/ARRAY".
	Shape string `cbor:"4,keyasint"`

	// Value is the formatted value, "null" when absent.
	Value string `cbor:"5,keyasint,omitempty"`

	// Failure is the failure reason, empty on success.
	Failure string `cbor:"6,keyasint,omitempty"`
}

// CaptureKind distinguishes repeating submissions from single captures.
type CaptureKind uint8

const (
	// CaptureRepeating is a repeating request submission.
	CaptureRepeating CaptureKind = 0
	// CaptureSingle is a one-shot capture.
	CaptureSingle CaptureKind = 1
)

// String returns the capture kind name.
func (k CaptureKind) String() string {
	switch k {
	case CaptureRepeating:
		return "REPEATING"
	case CaptureSingle:
		return "SINGLE"
	default:
		return "UNKNOWN"
	}
}

// CaptureEvent captures a request submission or a completed capture.
type CaptureEvent struct {
	Kind CaptureKind `cbor:"1,keyasint"`

	// Entries is the number of entries in the result (completed captures).
	Entries int `cbor:"2,keyasint,omitempty"`

	// Completed is set when the event reports a capture result.
	Completed bool `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the device error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
