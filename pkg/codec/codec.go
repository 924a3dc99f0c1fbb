// Package codec converts between operator-entered text and tag values.
//
// Encoding accepts the eight tag shapes:
//
//	"0x1F" or "31"      Byte/Single (truncated to signed 8 bits)
//	"1, 2, 0xff"        Byte/Array
//	"-7"                Int32/Single or Int64/Single
//	"1,2,3"             Int32/Array or Int64/Array
//	"1.5" / "1.5,NaN"   Float/Single / Float/Array
//
// Array segments are trimmed and empty segments are dropped, so "1,,2," is
// [1 2] and "," is a zero-length array. Formatting is the inverse: arrays are
// joined with ", ", bytes are rendered unsigned (0-255), and an absent value
// renders as AbsentText.
package codec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vtprobe/vtprobe-go/pkg/tag"
)

// AbsentText is the rendering of an absent value.
// It never collides with numeric output.
const AbsentText = "null"

// Codec errors.
var (
	ErrEmptyInput   = errors.New("value is empty")
	ErrInvalidToken = errors.New("invalid numeric token")
	ErrUnknownShape = errors.New("unknown value shape")
)

// ParseError reports a token that could not be decoded for a shape.
type ParseError struct {
	// Token is the offending (trimmed) input segment.
	Token string

	// Shape is the shape being decoded.
	Shape tag.Shape

	// Err is the underlying cause (strconv error, ErrEmptyInput, ...).
	Err error
}

func (e *ParseError) Error() string {
	if errors.Is(e.Err, ErrEmptyInput) {
		return fmt.Sprintf("parse %s: %v", e.Shape, e.Err)
	}
	return fmt.Sprintf("parse %s: token %q: %v", e.Shape, e.Token, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CheckInput enforces the operator precondition that write text is not blank.
func CheckInput(text string, shape tag.Shape) error {
	if strings.TrimSpace(text) == "" {
		return &ParseError{Shape: shape, Err: ErrEmptyInput}
	}
	return nil
}

// Encode decodes text into a value of the given shape.
func Encode(text string, shape tag.Shape) (tag.Value, error) {
	text = strings.TrimSpace(text)

	if shape.IsArray() {
		return encodeArray(splitList(text), shape)
	}

	switch shape.Type {
	case tag.Byte:
		b, err := parseByte(text, shape)
		if err != nil {
			return tag.Value{}, err
		}
		return tag.ByteValue(b), nil
	case tag.Int32:
		n, err := parseInt32(text, shape)
		if err != nil {
			return tag.Value{}, err
		}
		return tag.Int32Value(n), nil
	case tag.Int64:
		n, err := parseInt64(text, shape)
		if err != nil {
			return tag.Value{}, err
		}
		return tag.Int64Value(n), nil
	case tag.Float:
		f, err := parseFloat(text, shape)
		if err != nil {
			return tag.Value{}, err
		}
		return tag.FloatValue(f), nil
	default:
		return tag.Value{}, fmt.Errorf("%w: %s", ErrUnknownShape, shape)
	}
}

func encodeArray(parts []string, shape tag.Shape) (tag.Value, error) {
	switch shape.Type {
	case tag.Byte:
		out := make([]int8, len(parts))
		for i, p := range parts {
			b, err := parseByte(p, shape)
			if err != nil {
				return tag.Value{}, err
			}
			out[i] = b
		}
		return tag.ByteArray(out), nil
	case tag.Int32:
		out := make([]int32, len(parts))
		for i, p := range parts {
			n, err := parseInt32(p, shape)
			if err != nil {
				return tag.Value{}, err
			}
			out[i] = n
		}
		return tag.Int32Array(out), nil
	case tag.Int64:
		out := make([]int64, len(parts))
		for i, p := range parts {
			n, err := parseInt64(p, shape)
			if err != nil {
				return tag.Value{}, err
			}
			out[i] = n
		}
		return tag.Int64Array(out), nil
	case tag.Float:
		out := make([]float32, len(parts))
		for i, p := range parts {
			f, err := parseFloat(p, shape)
			if err != nil {
				return tag.Value{}, err
			}
			out[i] = f
		}
		return tag.FloatArray(out), nil
	default:
		return tag.Value{}, fmt.Errorf("%w: %s", ErrUnknownShape, shape)
	}
}

// splitList splits comma-separated text, trimming and dropping empty segments.
func splitList(s string) []string {
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// parseByte parses a decimal or 0x-prefixed hex literal as a 32-bit integer
// and keeps the low 8 bits.
func parseByte(s string, shape tag.Shape) (int8, error) {
	var n int64
	var err error

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err = strconv.ParseInt(s[2:], 16, 32)
	} else {
		n, err = strconv.ParseInt(s, 10, 32)
	}
	if err != nil {
		return 0, &ParseError{Token: s, Shape: shape, Err: unwrapNum(err)}
	}
	return int8(n), nil
}

func parseInt32(s string, shape tag.Shape) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, &ParseError{Token: s, Shape: shape, Err: unwrapNum(err)}
	}
	return int32(n), nil
}

func parseInt64(s string, shape tag.Shape) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &ParseError{Token: s, Shape: shape, Err: unwrapNum(err)}
	}
	return n, nil
}

func parseFloat(s string, shape tag.Shape) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, &ParseError{Token: s, Shape: shape, Err: unwrapNum(err)}
	}
	return float32(f), nil
}

// unwrapNum maps strconv errors onto ErrInvalidToken while keeping range errors.
func unwrapNum(err error) error {
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		if errors.Is(numErr.Err, strconv.ErrRange) {
			return strconv.ErrRange
		}
		return ErrInvalidToken
	}
	return err
}
