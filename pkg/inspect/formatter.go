package inspect

import (
	"fmt"
	"strings"

	"github.com/vtprobe/vtprobe-go/pkg/accessor"
	"github.com/vtprobe/vtprobe-go/pkg/codec"
	"github.com/vtprobe/vtprobe-go/pkg/hal"
	"github.com/vtprobe/vtprobe-go/pkg/tag"
)

// ErrorText replaces a value that could not be read in a dump.
const ErrorText = "<error>"

// Formatter formats inspection output.
type Formatter struct {
	// ShowKey includes the resolved registry key line
	ShowKey bool

	// ShowCrossCheck includes the BYTE/ARRAY and BYTE/SINGLE lines for byte tags
	ShowCrossCheck bool
}

// NewFormatter creates a new Formatter with default settings.
func NewFormatter() *Formatter {
	return &Formatter{
		ShowKey:        true,
		ShowCrossCheck: true,
	}
}

// FormatValue formats a raw registry value for display.
// Numeric arrays are bracketed; opaque values use their natural rendering.
func (f *Formatter) FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return codec.AbsentText
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case []string:
		return "[" + strings.Join(v, ", ") + "]"
	case fmt.Stringer:
		return v.String()
	}

	if shape, ok := tag.ShapeOf(value); ok {
		s := codec.FormatRaw(value)
		if shape.IsArray() {
			return "[" + s + "]"
		}
		return s
	}
	return fmt.Sprintf("%v", value)
}

// FormatEntry formats one dump line: "name [type]: value".
func (f *Formatter) FormatEntry(e hal.Entry) string {
	value := ErrorText
	if e.Err == nil {
		value = f.FormatValue(e.Value)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Name, e.TypeName, value)
}

// RequestLine describes a read or write before it runs.
func (f *Formatter) RequestLine(kind tag.RegistryKind, op string, spec tag.TagSpec) string {
	return fmt.Sprintf("%s %s: key=%s, type=%s, cardinality=%s",
		registryTitle(kind), op, spec.Name, spec.Type, spec.Cardinality)
}

// KeyLine shows the resolved registry key.
func (f *Formatter) KeyLine(kind tag.RegistryKind, key hal.Key) string {
	return fmt.Sprintf("%s.Key = %s", registryTitle(kind), key)
}

// FormatOutcome formats one lookup: "Chars[name] (BYTE/SINGLE) => value".
func (f *Formatter) FormatOutcome(kind tag.RegistryKind, o accessor.Outcome) string {
	return fmt.Sprintf("%s[%s] (%s) => %s", kind, o.Key.Name, o.Key.Shape(), o.Text())
}

// FormatReport returns the lines describing a read. Static reads show the
// resolved key only for byte tags.
func (f *Formatter) FormatReport(r accessor.Report) []string {
	var lines []string
	if f.ShowKey && (r.Registry != tag.StaticCapabilities || r.Spec.Type == tag.Byte) {
		lines = append(lines, f.KeyLine(r.Registry, r.Primary.Key))
	}
	lines = append(lines, f.FormatOutcome(r.Registry, r.Primary))
	if f.ShowCrossCheck {
		for _, o := range r.CrossCheck {
			lines = append(lines, f.FormatOutcome(r.Registry, o))
		}
	}
	return lines
}

// FormatWrite returns the lines describing a successful write.
func (f *Formatter) FormatWrite(wr accessor.WriteReport) []string {
	var lines []string
	if f.ShowKey {
		lines = append(lines, f.KeyLine(tag.MutableRequest, wr.Key))
	}
	lines = append(lines, fmt.Sprintf("Set Request %s: %s = %s", wr.Key.TypeName(), wr.Spec.Name, codec.Format(wr.Value)))
	if f.ShowCrossCheck {
		for _, o := range wr.ReadBack {
			lines = append(lines, f.FormatOutcome(tag.MutableRequest, o))
		}
	}
	return lines
}

func registryTitle(kind tag.RegistryKind) string {
	switch kind {
	case tag.StaticCapabilities:
		return "CameraCharacteristics"
	case tag.DynamicResult:
		return "CaptureResult"
	case tag.MutableRequest:
		return "CaptureRequest"
	default:
		return kind.String()
	}
}
