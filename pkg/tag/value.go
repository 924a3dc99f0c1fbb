package tag

import (
	"errors"
	"fmt"
)

// ErrValueShape is returned when a raw value does not match any shape.
var ErrValueShape = errors.New("value does not match shape")

// Value is a decoded tag value: one of the eight shapes, or absent.
// The zero Value is an absent Byte/Single.
type Value struct {
	shape Shape
	raw   any // nil when absent
}

// ByteValue returns a Byte/Single value.
func ByteValue(v int8) Value { return Value{shape: Shape{Byte, Single}, raw: v} }

// ByteArray returns a Byte/Array value.
func ByteArray(v []int8) Value { return Value{shape: Shape{Byte, Array}, raw: nonNil(v)} }

// Int32Value returns an Int32/Single value.
func Int32Value(v int32) Value { return Value{shape: Shape{Int32, Single}, raw: v} }

// Int32Array returns an Int32/Array value.
func Int32Array(v []int32) Value { return Value{shape: Shape{Int32, Array}, raw: nonNil(v)} }

// Int64Value returns an Int64/Single value.
func Int64Value(v int64) Value { return Value{shape: Shape{Int64, Single}, raw: v} }

// Int64Array returns an Int64/Array value.
func Int64Array(v []int64) Value { return Value{shape: Shape{Int64, Array}, raw: nonNil(v)} }

// FloatValue returns a Float/Single value.
func FloatValue(v float32) Value { return Value{shape: Shape{Float, Single}, raw: v} }

// FloatArray returns a Float/Array value.
func FloatArray(v []float32) Value { return Value{shape: Shape{Float, Array}, raw: nonNil(v)} }

// Absent returns the absent value for a shape.
func Absent(s Shape) Value { return Value{shape: s} }

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

// FromRaw wraps a raw registry value of the given shape.
// A nil raw value yields Absent(s). Anything else must be the Go type the
// shape maps to (int8, []int8, int32, []int32, int64, []int64, float32,
// []float32).
func FromRaw(s Shape, raw any) (Value, error) {
	if raw == nil {
		return Absent(s), nil
	}
	switch s {
	case Shape{Byte, Single}:
		if v, ok := raw.(int8); ok {
			return ByteValue(v), nil
		}
	case Shape{Byte, Array}:
		if v, ok := raw.([]int8); ok {
			return ByteArray(v), nil
		}
	case Shape{Int32, Single}:
		if v, ok := raw.(int32); ok {
			return Int32Value(v), nil
		}
	case Shape{Int32, Array}:
		if v, ok := raw.([]int32); ok {
			return Int32Array(v), nil
		}
	case Shape{Int64, Single}:
		if v, ok := raw.(int64); ok {
			return Int64Value(v), nil
		}
	case Shape{Int64, Array}:
		if v, ok := raw.([]int64); ok {
			return Int64Array(v), nil
		}
	case Shape{Float, Single}:
		if v, ok := raw.(float32); ok {
			return FloatValue(v), nil
		}
	case Shape{Float, Array}:
		if v, ok := raw.([]float32); ok {
			return FloatArray(v), nil
		}
	}
	return Value{}, fmt.Errorf("%w: %T for %s", ErrValueShape, raw, s)
}

// ShapeOf returns the shape of a raw Go value, or false if it has none.
func ShapeOf(raw any) (Shape, bool) {
	switch raw.(type) {
	case int8:
		return Shape{Byte, Single}, true
	case []int8:
		return Shape{Byte, Array}, true
	case int32:
		return Shape{Int32, Single}, true
	case []int32:
		return Shape{Int32, Array}, true
	case int64:
		return Shape{Int64, Single}, true
	case []int64:
		return Shape{Int64, Array}, true
	case float32:
		return Shape{Float, Single}, true
	case []float32:
		return Shape{Float, Array}, true
	default:
		return Shape{}, false
	}
}

// Shape returns the value's shape.
func (v Value) Shape() Shape { return v.shape }

// IsAbsent reports whether the registry held no value.
func (v Value) IsAbsent() bool { return v.raw == nil }

// Raw returns the underlying Go value, or nil when absent.
func (v Value) Raw() any { return v.raw }

// Len returns the number of elements: 0 when absent, 1 for scalars.
func (v Value) Len() int {
	switch r := v.raw.(type) {
	case nil:
		return 0
	case []int8:
		return len(r)
	case []int32:
		return len(r)
	case []int64:
		return len(r)
	case []float32:
		return len(r)
	default:
		return 1
	}
}

// Bytes returns the byte elements reinterpreted as unsigned.
// Scalars yield a one-element slice; non-byte values yield nil.
func (v Value) Bytes() []uint8 {
	switch r := v.raw.(type) {
	case int8:
		return []uint8{uint8(r)}
	case []int8:
		out := make([]uint8, len(r))
		for i, b := range r {
			out[i] = uint8(b)
		}
		return out
	default:
		return nil
	}
}
