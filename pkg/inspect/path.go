// Package inspect renders registry operations for the operator.
//
// The inspect package offers a unified interface for:
//   - Parsing tag targets (e.g., "com.kdiwin.control.source.mode:int[]")
//   - Completing tag names from a device's characteristics
//   - Reading static characteristics, results and the pending request
//   - Formatting output as report lines
package inspect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vtprobe/vtprobe-go/pkg/hal"
	"github.com/vtprobe/vtprobe-go/pkg/tag"
)

// Target errors.
var (
	ErrEmptyTarget   = errors.New("empty target")
	ErrInvalidTarget = errors.New("invalid target format")
)

// ParseTarget parses a target string into a TagSpec. Parts left out take
// their value from def.
//
// Supported formats:
//   - "name" - type and cardinality from def
//   - "name:type" - single value, e.g. "com.x.mode:int32"
//   - "name:type[]" - array value, e.g. "com.x.window:int[]"
//   - "name:type:cardinality" - e.g. "com.x.window:float:array"
func ParseTarget(s string, def tag.TagSpec) (tag.TagSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return tag.TagSpec{}, ErrEmptyTarget
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return tag.TagSpec{}, fmt.Errorf("%w: %q has too many parts", ErrInvalidTarget, s)
	}

	typ, card := def.Type, def.Cardinality
	if len(parts) >= 2 {
		t := strings.TrimSpace(parts[1])
		card = tag.Single
		if strings.HasSuffix(t, "[]") {
			t = strings.TrimSuffix(t, "[]")
			card = tag.Array
		}
		vt, err := tag.ParseValueType(t)
		if err != nil {
			return tag.TagSpec{}, fmt.Errorf("%w: %w", ErrInvalidTarget, err)
		}
		typ = vt
	}
	if len(parts) == 3 {
		if card == tag.Array {
			return tag.TagSpec{}, fmt.Errorf("%w: %q gives the cardinality twice", ErrInvalidTarget, s)
		}
		c, err := tag.ParseCardinality(parts[2])
		if err != nil {
			return tag.TagSpec{}, fmt.Errorf("%w: %w", ErrInvalidTarget, err)
		}
		card = c
	}

	spec, err := tag.NewTagSpec(parts[0], typ, card)
	if err != nil {
		return tag.TagSpec{}, fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	return spec, nil
}

// FormatTarget renders spec in the "name:type" or "name:type[]" form
// accepted by ParseTarget.
func FormatTarget(spec tag.TagSpec) string {
	return spec.Name + ":" + hal.KeyFor(spec).TypeName()
}
