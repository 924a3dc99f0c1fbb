package sim

import (
	"embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vtprobe/vtprobe-go/pkg/codec"
	"github.com/vtprobe/vtprobe-go/pkg/tag"
)

//go:embed profiles/*.yaml
var profileFS embed.FS

// Profile errors.
var (
	ErrNoDevices      = errors.New("profile has no devices")
	ErrDuplicateID    = errors.New("duplicate device id")
	ErrDuplicateEntry = errors.New("duplicate entry")
	ErrBadValue       = errors.New("value does not fit entry type")
)

// Profile describes the devices of a simulated HAL.
type Profile struct {
	Devices []DeviceProfile `yaml:"devices"`
}

// DeviceProfile describes one simulated device.
type DeviceProfile struct {
	ID string `yaml:"id"`

	// Characteristics is the static capability registry.
	Characteristics []EntryDef `yaml:"characteristics"`

	// Result lists entries every capture result carries in addition to the
	// echoed request values.
	Result []EntryDef `yaml:"result"`

	// Request defines the request tags. Entries with a value seed the
	// preview template; entries without one only fix the tag's shape.
	Request []EntryDef `yaml:"request"`

	// OpenError, when non-zero, makes every open fail with this code.
	OpenError int `yaml:"open_error"`

	// OpenDelay postpones the open callback.
	OpenDelay time.Duration `yaml:"open_delay"`

	// ConfigureFail makes every capture session configuration fail.
	ConfigureFail bool `yaml:"configure_fail"`

	// DisconnectAfterOpen delivers a disconnect right after the open.
	DisconnectAfterOpen bool `yaml:"disconnect_after_open"`
}

// EntryDef is one registry entry.
type EntryDef struct {
	Name string `yaml:"name"`

	// Type is byte, int32, int64 or float for typed tags. Any other name
	// (string, rational, ...) defines an opaque entry that only shows up in
	// enumeration.
	Type string `yaml:"type"`

	Array bool `yaml:"array"`

	// Value is a number, a list of numbers, or operator text such as
	// "0x1F" or "1, 2, 3". Omitted means the tag is defined but unset.
	Value any `yaml:"value"`

	// Hidden makes the store refuse to expose the key.
	Hidden bool `yaml:"hidden"`
}

// LoadError describes a profile that could not be loaded.
type LoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *LoadError) Unwrap() error { return e.Cause }

// ParseProfile parses and validates a profile from YAML bytes.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if err := p.Validate(); err != nil {
		return nil, &LoadError{Message: "invalid profile", Cause: err}
	}
	return &p, nil
}

// LoadProfile loads a profile from a file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	p, err := ParseProfile(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
		}
		return nil, err
	}
	return p, nil
}

// DefaultProfile returns the built-in two-device profile.
func DefaultProfile() *Profile {
	data, err := profileFS.ReadFile("profiles/default.yaml")
	if err != nil {
		panic(fmt.Sprintf("sim: embedded profile missing: %v", err))
	}
	p, err := ParseProfile(data)
	if err != nil {
		panic(fmt.Sprintf("sim: embedded profile invalid: %v", err))
	}
	return p
}

// Validate checks device ids and that every typed value fits its entry.
func (p *Profile) Validate() error {
	if len(p.Devices) == 0 {
		return ErrNoDevices
	}
	ids := make(map[string]bool, len(p.Devices))
	for _, d := range p.Devices {
		if d.ID == "" {
			return fmt.Errorf("device: %w", tag.ErrEmptyName)
		}
		if ids[d.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateID, d.ID)
		}
		ids[d.ID] = true

		for section, defs := range map[string][]EntryDef{
			"characteristics": d.Characteristics,
			"result":          d.Result,
			"request":         d.Request,
		} {
			if _, err := newStore(defs); err != nil {
				return fmt.Errorf("device %q %s: %w", d.ID, section, err)
			}
		}
	}
	return nil
}

// Device returns the profile of a device id.
func (p *Profile) Device(id string) (DeviceProfile, bool) {
	for _, d := range p.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return DeviceProfile{}, false
}

// shape returns the typed shape of the entry, or false for opaque entries.
func (d EntryDef) shape() (tag.Shape, bool) {
	vt, err := tag.ParseValueType(d.Type)
	if err != nil {
		return tag.Shape{}, false
	}
	c := tag.Single
	if d.Array {
		c = tag.Array
	}
	return tag.Shape{Type: vt, Cardinality: c}, true
}

// toRaw converts a YAML-decoded value into the raw Go value of shape.
func toRaw(shape tag.Shape, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok {
		val, err := codec.Encode(s, shape)
		if err != nil {
			return nil, err
		}
		return val.Raw(), nil
	}

	if !shape.IsArray() {
		return scalar(shape.Type, v)
	}

	list, ok := v.([]any)
	if !ok {
		list = []any{v}
	}
	switch shape.Type {
	case tag.Byte:
		return convertList[int8](shape.Type, list)
	case tag.Int32:
		return convertList[int32](shape.Type, list)
	case tag.Int64:
		return convertList[int64](shape.Type, list)
	case tag.Float:
		return convertList[float32](shape.Type, list)
	default:
		return nil, fmt.Errorf("%w: %s", ErrBadValue, shape)
	}
}

func convertList[T int8 | int32 | int64 | float32](t tag.ValueType, list []any) ([]T, error) {
	out := make([]T, 0, len(list))
	for _, item := range list {
		x, err := scalar(t, item)
		if err != nil {
			return nil, err
		}
		out = append(out, x.(T))
	}
	return out, nil
}

func scalar(t tag.ValueType, v any) (any, error) {
	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	case float64:
		f = n
	default:
		return nil, fmt.Errorf("%w: %v (%T) for %s", ErrBadValue, v, v, t)
	}

	switch t {
	case tag.Byte:
		// 0-255 as well as -128-127, stored as the signed byte.
		if f != math.Trunc(f) || f < math.MinInt8 || f > math.MaxUint8 {
			return nil, fmt.Errorf("%w: %v for %s", ErrBadValue, v, t)
		}
		return int8(int16(f)), nil
	case tag.Int32:
		if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
			return nil, fmt.Errorf("%w: %v for %s", ErrBadValue, v, t)
		}
		return int32(f), nil
	case tag.Int64:
		if n, ok := v.(int); ok {
			return int64(n), nil
		}
		if n, ok := v.(int64); ok {
			return n, nil
		}
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return nil, fmt.Errorf("%w: %v for %s", ErrBadValue, v, t)
		}
		return int64(f), nil
	case tag.Float:
		return float32(f), nil
	default:
		return nil, fmt.Errorf("%w: %v for %s", ErrBadValue, v, t)
	}
}
