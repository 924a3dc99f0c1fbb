package session

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned for a lifecycle event that is not valid in
// the current state.
var ErrInvalidTransition = errors.New("invalid state transition")

// State is the lifecycle state of the probed device.
type State uint8

const (
	// StateClosed means no device handle is held.
	StateClosed State = iota

	// StateOpening means an open was issued and its callback is pending.
	StateOpening

	// StateOpen means the device is open and no stream is configured.
	StateOpen

	// StateConfiguringStream means a capture session is being configured.
	StateConfiguringStream

	// StateStreamActive means the preview stream is running.
	StateStreamActive

	// StateClosing means handles are being released.
	StateClosing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpening:
		return "OPENING"
	case StateOpen:
		return "OPEN"
	case StateConfiguringStream:
		return "CONFIGURING_STREAM"
	case StateStreamActive:
		return "STREAM_ACTIVE"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// live reports whether a device handle is (or is about to be) held.
func (s State) live() bool {
	switch s {
	case StateOpening, StateOpen, StateConfiguringStream, StateStreamActive:
		return true
	default:
		return false
	}
}

// EventKind is a lifecycle event driving the state machine.
type EventKind uint8

const (
	// EventOpenRequested is an operator open.
	EventOpenRequested EventKind = iota + 1

	// EventOpenFailed is a synchronous failure of the HAL open call.
	EventOpenFailed

	// EventOpened is the device's opened callback.
	EventOpened

	// EventDisconnected is the device's disconnected callback.
	EventDisconnected

	// EventDeviceError is the device's error callback.
	EventDeviceError

	// EventConfigureRequested starts stream configuration.
	EventConfigureRequested

	// EventConfigured is the session's configured callback.
	EventConfigured

	// EventConfigureFailed is the session's configure-failed callback or a
	// synchronous configuration failure.
	EventConfigureFailed

	// EventCloseRequested is an operator close.
	EventCloseRequested

	// EventCloseCompleted marks all handles released.
	EventCloseCompleted
)

// String returns the event name.
func (e EventKind) String() string {
	switch e {
	case EventOpenRequested:
		return "OPEN_REQUESTED"
	case EventOpenFailed:
		return "OPEN_FAILED"
	case EventOpened:
		return "OPENED"
	case EventDisconnected:
		return "DISCONNECTED"
	case EventDeviceError:
		return "DEVICE_ERROR"
	case EventConfigureRequested:
		return "CONFIGURE_REQUESTED"
	case EventConfigured:
		return "CONFIGURED"
	case EventConfigureFailed:
		return "CONFIGURE_FAILED"
	case EventCloseRequested:
		return "CLOSE_REQUESTED"
	case EventCloseCompleted:
		return "CLOSE_COMPLETED"
	default:
		return "UNKNOWN"
	}
}

// Transition returns the state reached by applying ev in from.
// It has no side effects. Pairs not listed below return ErrInvalidTransition.
//
//	CLOSED             + OPEN_REQUESTED       -> OPENING
//	OPENING            + OPEN_FAILED          -> CLOSED
//	OPENING            + OPENED               -> OPEN
//	live               + DISCONNECTED         -> CLOSED
//	live               + DEVICE_ERROR         -> CLOSED
//	OPEN               + CONFIGURE_REQUESTED  -> CONFIGURING_STREAM
//	CONFIGURING_STREAM + CONFIGURED           -> STREAM_ACTIVE
//	CONFIGURING_STREAM + CONFIGURE_FAILED     -> OPEN
//	CLOSED             + CLOSE_REQUESTED      -> CLOSED
//	live               + CLOSE_REQUESTED      -> CLOSING
//	CLOSING            + CLOSE_COMPLETED      -> CLOSED
//
// where live is OPENING, OPEN, CONFIGURING_STREAM or STREAM_ACTIVE.
func Transition(from State, ev EventKind) (State, error) {
	switch ev {
	case EventOpenRequested:
		if from == StateClosed {
			return StateOpening, nil
		}
	case EventOpenFailed:
		if from == StateOpening {
			return StateClosed, nil
		}
	case EventOpened:
		if from == StateOpening {
			return StateOpen, nil
		}
	case EventDisconnected, EventDeviceError:
		if from.live() {
			return StateClosed, nil
		}
	case EventConfigureRequested:
		if from == StateOpen {
			return StateConfiguringStream, nil
		}
	case EventConfigured:
		if from == StateConfiguringStream {
			return StateStreamActive, nil
		}
	case EventConfigureFailed:
		if from == StateConfiguringStream {
			return StateOpen, nil
		}
	case EventCloseRequested:
		if from == StateClosed {
			return StateClosed, nil
		}
		if from.live() {
			return StateClosing, nil
		}
	case EventCloseCompleted:
		if from == StateClosing {
			return StateClosed, nil
		}
	}
	return from, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, ev, from)
}
