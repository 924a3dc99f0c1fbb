// Package hal defines the contract vtprobe drives on a camera-like hardware
// abstraction layer.
//
// The layer is asynchronous: opening a device and configuring a capture
// session complete through callbacks. Every call that registers callbacks
// takes an Executor, and implementations must deliver those callbacks through
// it rather than on the calling goroutine. vtprobe passes its single
// background worker, which serializes all callbacks.
//
// # Metadata
//
// Static characteristics, per-frame results and requests are all Metadata
// stores addressed by Key. A Key carries the tag name plus the expected
// element type and array-ness. Stores apply runtime validation:
//
//	Get(key) == (nil, nil)              key has no value here
//	Get(key) == (_, ErrTypeMismatch)    name defined with another shape
//	Get(key) == (_, ErrNotExposed)      store refuses to expose the key
//
// Raw values use the Go types of tag.Value: int8, []int8, int32, []int32,
// int64, []int64, float32, []float32. Keys enumerated by the store may carry
// other types (strings, rationals, ...); those appear only through Entries.
package hal

import (
	"errors"
	"fmt"

	"github.com/vtprobe/vtprobe-go/pkg/tag"
)

// HAL errors.
var (
	// ErrTypeMismatch means the name exists with an incompatible shape.
	ErrTypeMismatch = errors.New("key/type mismatch")

	// ErrNotExposed means the store does not expose the key at all.
	ErrNotExposed = errors.New("key not exposed")

	// ErrUnknownDevice means the device ID is not known to the manager.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrDeviceClosed means the handle was already closed.
	ErrDeviceClosed = errors.New("device closed")

	// ErrSessionClosed means the capture session was already closed.
	ErrSessionClosed = errors.New("session closed")
)

// Device error codes delivered by DeviceCallbacks.OnError.
const (
	ErrorCameraInUse     = 1
	ErrorMaxCamerasInUse = 2
	ErrorCameraDisabled  = 3
	ErrorCameraDevice    = 4
	ErrorCameraService   = 5
)

// ErrorCodeName returns a short name for a device error code.
func ErrorCodeName(code int) string {
	switch code {
	case ErrorCameraInUse:
		return "CAMERA_IN_USE"
	case ErrorMaxCamerasInUse:
		return "MAX_CAMERAS_IN_USE"
	case ErrorCameraDisabled:
		return "CAMERA_DISABLED"
	case ErrorCameraDevice:
		return "CAMERA_DEVICE"
	case ErrorCameraService:
		return "CAMERA_SERVICE"
	default:
		return fmt.Sprintf("ERROR(%d)", code)
	}
}

// Key is the registry-native typed key a TagSpec resolves to.
type Key struct {
	Name  string
	Type  tag.ValueType
	Array bool
}

// KeyFor resolves a tag spec into a key.
func KeyFor(spec tag.TagSpec) Key {
	return Key{Name: spec.Name, Type: spec.Type, Array: spec.Cardinality == tag.Array}
}

// Shape returns the key's value shape.
func (k Key) Shape() tag.Shape {
	c := tag.Single
	if k.Array {
		c = tag.Array
	}
	return tag.Shape{Type: k.Type, Cardinality: c}
}

// String renders the key the way HAL debug output does, e.g.
// "Key(com.vendor.mode, byte[])".
func (k Key) String() string {
	return fmt.Sprintf("Key(%s, %s)", k.Name, k.TypeName())
}

// TypeName returns the element type name with "[]" for arrays.
func (k Key) TypeName() string {
	var name string
	switch k.Type {
	case tag.Byte:
		name = "byte"
	case tag.Int32:
		name = "int"
	case tag.Int64:
		name = "long"
	case tag.Float:
		name = "float"
	default:
		name = "unknown"
	}
	if k.Array {
		name += "[]"
	}
	return name
}

// Entry is one enumerated name/value pair of a store.
type Entry struct {
	// Name is the tag name.
	Name string

	// TypeName describes the stored type (e.g. "byte[]", "int", "string").
	TypeName string

	// Value is the raw stored value.
	Value any

	// Err is set when the value could not be read.
	Err error
}

// Metadata is a typed, read-only metadata store.
type Metadata interface {
	// Get returns the raw value for key, nil when absent.
	Get(key Key) (any, error)

	// Entries enumerates every entry the store exposes.
	Entries() []Entry
}

// Template selects the request template used to build a request.
type Template uint8

const (
	// TemplatePreview is the repeating preview template.
	TemplatePreview Template = 1
)

// Surface is an opaque output target for a capture stream.
type Surface interface {
	// ID identifies the surface for diagnostics.
	ID() string

	// SetBufferSize fixes the surface resolution.
	SetBufferSize(width, height int)
}

// Request is an immutable, submitted request snapshot.
type Request interface {
	Metadata

	// Targets returns the output surfaces of the request.
	Targets() []Surface
}

// RequestBuilder is the mutable per-frame request registry.
type RequestBuilder interface {
	Metadata

	// AddTarget adds an output surface.
	AddTarget(s Surface)

	// Set writes a raw value of the key's shape.
	Set(key Key, value any) error

	// Build snapshots the current contents.
	Build() (Request, error)
}

// Executor runs callbacks in order on a serialized context.
// Post returns false if the executor no longer accepts work.
type Executor interface {
	Post(fn func()) bool
}

// DeviceCallbacks receives device lifecycle notifications.
type DeviceCallbacks struct {
	OnOpened       func(d Device)
	OnDisconnected func(d Device)
	OnError        func(d Device, code int)
}

// SessionCallbacks receives capture session configuration notifications.
type SessionCallbacks struct {
	OnConfigured      func(s Session)
	OnConfigureFailed func(s Session)
}

// CaptureCallback receives the result of a completed capture.
type CaptureCallback func(s Session, req Request, result Metadata)

// Manager enumerates devices and opens them.
type Manager interface {
	// DeviceIDs lists the available device IDs.
	DeviceIDs() ([]string, error)

	// Characteristics returns the static capability registry of a device.
	Characteristics(id string) (Metadata, error)

	// Open starts opening a device. The outcome is delivered through cb.
	Open(id string, cb DeviceCallbacks, exec Executor) error
}

// Device is an open device handle.
type Device interface {
	ID() string

	// CreateRequest returns a builder seeded from a template.
	CreateRequest(t Template) (RequestBuilder, error)

	// CreateSession starts configuring a capture session over the targets.
	CreateSession(targets []Surface, cb SessionCallbacks, exec Executor) error

	Close() error
}

// Session is a configured capture session.
type Session interface {
	// SetRepeating replaces the repeating request.
	SetRepeating(req Request) error

	// Capture submits a single request alongside the repeating one.
	Capture(req Request, cb CaptureCallback, exec Executor) error

	Close() error
}

// PermissionChecker reports whether camera access was granted by the host.
type PermissionChecker interface {
	HasCameraPermission() bool
}

// PermissionFunc adapts a function to PermissionChecker.
type PermissionFunc func() bool

// HasCameraPermission calls f.
func (f PermissionFunc) HasCameraPermission() bool { return f() }

// AlwaysPermitted grants permission unconditionally.
var AlwaysPermitted PermissionChecker = PermissionFunc(func() bool { return true })
