package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vtprobe/vtprobe-go/pkg/tag"
)

// Format renders a value for display.
func Format(v tag.Value) string {
	if v.IsAbsent() {
		return AbsentText
	}

	switch r := v.Raw().(type) {
	case int8:
		return strconv.FormatUint(uint64(uint8(r)), 10)
	case []int8:
		return join(r, func(b int8) string { return strconv.FormatUint(uint64(uint8(b)), 10) })
	case int32:
		return strconv.FormatInt(int64(r), 10)
	case []int32:
		return join(r, func(n int32) string { return strconv.FormatInt(int64(n), 10) })
	case int64:
		return strconv.FormatInt(r, 10)
	case []int64:
		return join(r, func(n int64) string { return strconv.FormatInt(n, 10) })
	case float32:
		return formatFloat(r)
	case []float32:
		return join(r, formatFloat)
	default:
		return AbsentText
	}
}

// FormatRaw renders a raw registry value of any of the eight Go shapes.
// Values outside the eight shapes fall back to fmt-style rendering.
func FormatRaw(raw any) string {
	if raw == nil {
		return AbsentText
	}
	shape, ok := tag.ShapeOf(raw)
	if !ok {
		return fallback(raw)
	}
	v, err := tag.FromRaw(shape, raw)
	if err != nil {
		return fallback(raw)
	}
	return Format(v)
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

func join[T any](items []T, fn func(T) string) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fn(it)
	}
	return strings.Join(parts, ", ")
}

func fallback(raw any) string {
	return fmt.Sprintf("%v", raw)
}
