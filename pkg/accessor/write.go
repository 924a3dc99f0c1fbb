package accessor

import (
	"github.com/vtprobe/vtprobe-go/pkg/codec"
	"github.com/vtprobe/vtprobe-go/pkg/hal"
	"github.com/vtprobe/vtprobe-go/pkg/tag"
)

// WriteReport describes a successful write into a request builder.
type WriteReport struct {
	Spec tag.TagSpec
	Key  hal.Key

	// Value is the value that was set.
	Value tag.Value

	// ReadBack holds the BYTE/ARRAY and BYTE/SINGLE lookups of the key in
	// the builder after the write, for byte tags.
	ReadBack []Outcome
}

// Write decodes text for spec and sets it on the request builder.
//
// Blank text and malformed numbers fail with *codec.ParseError before the
// builder is touched. A builder rejection fails with *Failure. On error the
// builder is unchanged.
func Write(b hal.RequestBuilder, spec tag.TagSpec, text string) (WriteReport, error) {
	shape := spec.Shape()
	key := hal.KeyFor(spec)

	if err := codec.CheckInput(text, shape); err != nil {
		return WriteReport{}, err
	}
	v, err := codec.Encode(text, shape)
	if err != nil {
		return WriteReport{}, err
	}

	if b == nil {
		return WriteReport{}, &Failure{Reason: ReasonUnknown, Registry: tag.MutableRequest, Key: key, Err: ErrRegistryUnavailable}
	}
	if err := safeSet(b, key, v.Raw()); err != nil {
		return WriteReport{}, classify(tag.MutableRequest, key, err)
	}

	wr := WriteReport{Spec: spec, Key: key, Value: v}
	if spec.Type == tag.Byte {
		wr.ReadBack = crossCheck(b, tag.MutableRequest, spec)
	}
	return wr, nil
}
