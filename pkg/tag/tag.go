package tag

import (
	"errors"
	"fmt"
	"strings"
)

// Tag errors.
var (
	ErrEmptyName          = errors.New("tag name is empty")
	ErrInvalidName        = errors.New("invalid tag name")
	ErrUnknownValueType   = errors.New("unknown value type")
	ErrUnknownCardinality = errors.New("unknown cardinality")
	ErrUnknownRegistry    = errors.New("unknown registry")
)

// DefaultName is the tag probed when the operator leaves the name blank.
const DefaultName = "com.kdiwin.control.source.available_input_sources"

// ValueType is the element type of a tag value.
type ValueType uint8

const (
	// Byte is a signed 8-bit element, reported unsigned.
	Byte ValueType = iota

	// Int32 is a signed 32-bit element.
	Int32

	// Int64 is a signed 64-bit element.
	Int64

	// Float is a 32-bit IEEE 754 element.
	Float
)

// ValueTypes lists every value type in menu order.
var ValueTypes = []ValueType{Byte, Int32, Int64, Float}

// String returns the value type name.
func (t ValueType) String() string {
	switch t {
	case Byte:
		return "BYTE"
	case Int32:
		return "INT32"
	case Int64:
		return "INT64"
	case Float:
		return "FLOAT"
	default:
		return "UNKNOWN"
	}
}

// ParseValueType parses a value type name, case-insensitively.
func ParseValueType(s string) (ValueType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BYTE", "U8", "I8":
		return Byte, nil
	case "INT32", "INT", "I32":
		return Int32, nil
	case "INT64", "LONG", "I64":
		return Int64, nil
	case "FLOAT", "F32":
		return Float, nil
	default:
		return 0, fmt.Errorf("%w: %q (use: byte, int32, int64, float)", ErrUnknownValueType, s)
	}
}

// Cardinality says whether a tag holds one element or an array of them.
type Cardinality uint8

const (
	// Single is a scalar value.
	Single Cardinality = iota

	// Array is a variable-length array value.
	Array
)

// Cardinalities lists every cardinality in menu order.
var Cardinalities = []Cardinality{Single, Array}

// String returns the cardinality name.
func (c Cardinality) String() string {
	switch c {
	case Single:
		return "SINGLE"
	case Array:
		return "ARRAY"
	default:
		return "UNKNOWN"
	}
}

// Sibling returns the other cardinality.
func (c Cardinality) Sibling() Cardinality {
	if c == Array {
		return Single
	}
	return Array
}

// ParseCardinality parses a cardinality name, case-insensitively.
func ParseCardinality(s string) (Cardinality, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SINGLE", "SCALAR", "ONE":
		return Single, nil
	case "ARRAY", "LIST", "MANY":
		return Array, nil
	default:
		return 0, fmt.Errorf("%w: %q (use: single, array)", ErrUnknownCardinality, s)
	}
}

// Shape is the (type, cardinality) pair of a tag value.
type Shape struct {
	Type        ValueType
	Cardinality Cardinality
}

// Shapes lists all eight shapes.
var Shapes = []Shape{
	{Byte, Single}, {Byte, Array},
	{Int32, Single}, {Int32, Array},
	{Int64, Single}, {Int64, Array},
	{Float, Single}, {Float, Array},
}

// IsArray reports whether the shape is an array shape.
func (s Shape) IsArray() bool { return s.Cardinality == Array }

// String returns the shape as "TYPE/CARDINALITY".
func (s Shape) String() string {
	return s.Type.String() + "/" + s.Cardinality.String()
}

// RegistryKind identifies one of the three metadata registries.
type RegistryKind uint8

const (
	// StaticCapabilities is the read-only per-device capability registry.
	StaticCapabilities RegistryKind = iota

	// DynamicResult is the read-only per-frame result registry.
	DynamicResult

	// MutableRequest is the writable per-frame request registry.
	MutableRequest
)

// String returns the registry name.
func (r RegistryKind) String() string {
	switch r {
	case StaticCapabilities:
		return "Chars"
	case DynamicResult:
		return "Result"
	case MutableRequest:
		return "Request"
	default:
		return "Unknown"
	}
}

// ParseRegistryKind parses a registry name.
func ParseRegistryKind(s string) (RegistryKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "static", "chars", "characteristics", "capabilities":
		return StaticCapabilities, nil
	case "result", "dynamic":
		return DynamicResult, nil
	case "request", "mutable":
		return MutableRequest, nil
	default:
		return 0, fmt.Errorf("%w: %q (use: chars, result, request)", ErrUnknownRegistry, s)
	}
}

// TagSpec identifies a metadata slot uniformly across all three registries.
type TagSpec struct {
	Name        string
	Type        ValueType
	Cardinality Cardinality
}

// NewTagSpec validates the name and returns a TagSpec.
// A blank name is an error; callers that want the default substitute it first.
func NewTagSpec(name string, t ValueType, c Cardinality) (TagSpec, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return TagSpec{}, ErrEmptyName
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return TagSpec{}, fmt.Errorf("%w: %q contains whitespace", ErrInvalidName, name)
	}
	return TagSpec{Name: name, Type: t, Cardinality: c}, nil
}

// Shape returns the value shape of s.
func (s TagSpec) Shape() Shape {
	return Shape{Type: s.Type, Cardinality: s.Cardinality}
}

// WithCardinality returns a copy with a different cardinality.
func (s TagSpec) WithCardinality(c Cardinality) TagSpec {
	s.Cardinality = c
	return s
}

// String returns "name (TYPE/CARDINALITY)".
func (s TagSpec) String() string {
	return fmt.Sprintf("%s (%s)", s.Name, s.Shape())
}
