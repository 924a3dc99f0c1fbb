package accessor

import (
	"errors"
	"fmt"

	"github.com/vtprobe/vtprobe-go/pkg/codec"
	"github.com/vtprobe/vtprobe-go/pkg/hal"
	"github.com/vtprobe/vtprobe-go/pkg/tag"
)

// Accessor errors.
var (
	ErrRegistryUnavailable = errors.New("registry unavailable")
	ErrHALPanic            = errors.New("hal panic")
)

// Reason classifies an access failure.
type Reason uint8

const (
	// ReasonTypeMismatch means the name exists with an incompatible shape.
	ReasonTypeMismatch Reason = iota + 1

	// ReasonNotExposed means the registry does not expose the key.
	ReasonNotExposed

	// ReasonUnknown is any other runtime fault from the HAL.
	ReasonUnknown
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonTypeMismatch:
		return "TYPE_MISMATCH"
	case ReasonNotExposed:
		return "NOT_EXPOSED"
	case ReasonUnknown:
		return "UNKNOWN"
	default:
		return "NONE"
	}
}

// Failure is a structured access failure.
type Failure struct {
	Reason   Reason
	Registry tag.RegistryKind
	Key      hal.Key
	Err      error
}

func (f *Failure) Error() string {
	switch f.Reason {
	case ReasonTypeMismatch, ReasonNotExposed:
		return fmt.Sprintf("%s (key/type mismatch or not exposed in %s)", f.Reason, f.Registry)
	default:
		return fmt.Sprintf("Error: %v", f.Err)
	}
}

func (f *Failure) Unwrap() error { return f.Err }

// Outcome is the result of one typed lookup.
type Outcome struct {
	// Key is the resolved registry key.
	Key hal.Key

	// Value is the decoded value; meaningful only when Failure is nil.
	Value tag.Value

	// Failure is set when the lookup failed.
	Failure *Failure
}

// OK reports whether the lookup produced a value (absent included).
func (o Outcome) OK() bool { return o.Failure == nil }

// Text renders the value, or the failure reason.
func (o Outcome) Text() string {
	if o.Failure != nil {
		return o.Failure.Error()
	}
	return codec.Format(o.Value)
}

// Report is the complete result of a registry read.
type Report struct {
	Registry tag.RegistryKind
	Spec     tag.TagSpec

	// Primary is the lookup under the requested shape.
	Primary Outcome

	// CrossCheck holds the BYTE/ARRAY and BYTE/SINGLE lookups for byte
	// tags, in that order. Empty for other types.
	CrossCheck []Outcome
}

// Read looks spec up in store.
func Read(store hal.Metadata, kind tag.RegistryKind, spec tag.TagSpec) Report {
	r := Report{
		Registry: kind,
		Spec:     spec,
		Primary:  Lookup(store, kind, hal.KeyFor(spec)),
	}
	if spec.Type == tag.Byte {
		r.CrossCheck = crossCheck(store, kind, spec)
	}
	return r
}

// Lookup performs one typed lookup. Nothing the store does escapes as a
// panic; it becomes a Failure.
func Lookup(store hal.Metadata, kind tag.RegistryKind, key hal.Key) Outcome {
	out := Outcome{Key: key}

	if store == nil {
		out.Failure = &Failure{Reason: ReasonUnknown, Registry: kind, Key: key, Err: ErrRegistryUnavailable}
		return out
	}

	raw, err := safeGet(store, key)
	if err != nil {
		out.Failure = classify(kind, key, err)
		return out
	}

	v, err := tag.FromRaw(key.Shape(), raw)
	if err != nil {
		out.Failure = &Failure{Reason: ReasonTypeMismatch, Registry: kind, Key: key, Err: fmt.Errorf("%w: %w", hal.ErrTypeMismatch, err)}
		return out
	}
	out.Value = v
	return out
}

func crossCheck(store hal.Metadata, kind tag.RegistryKind, spec tag.TagSpec) []Outcome {
	return []Outcome{
		Lookup(store, kind, hal.KeyFor(spec.WithCardinality(tag.Array))),
		Lookup(store, kind, hal.KeyFor(spec.WithCardinality(tag.Single))),
	}
}

func safeGet(store hal.Metadata, key hal.Key) (raw any, err error) {
	defer func() {
		if r := recover(); r != nil {
			raw = nil
			err = fmt.Errorf("%w: %v", ErrHALPanic, r)
		}
	}()
	return store.Get(key)
}

func safeSet(b hal.RequestBuilder, key hal.Key, value any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHALPanic, r)
		}
	}()
	return b.Set(key, value)
}

func classify(kind tag.RegistryKind, key hal.Key, err error) *Failure {
	f := &Failure{Reason: ReasonUnknown, Registry: kind, Key: key, Err: err}
	switch {
	case errors.Is(err, hal.ErrTypeMismatch):
		f.Reason = ReasonTypeMismatch
	case errors.Is(err, hal.ErrNotExposed):
		f.Reason = ReasonNotExposed
	}
	return f
}
