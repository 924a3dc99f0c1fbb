package sim

import (
	"fmt"
	"slices"
	"sync"

	"github.com/vtprobe/vtprobe-go/pkg/hal"
	"github.com/vtprobe/vtprobe-go/pkg/tag"
)

type entry struct {
	name     string
	typeName string
	shape    tag.Shape
	typed    bool
	raw      any
	hidden   bool
}

// Store is an in-memory metadata registry.
//
// A typed entry answers Get only under its own shape; any other shape yields
// hal.ErrTypeMismatch. Opaque entries (strings and the like) mismatch every
// typed key. Unknown names are absent.
type Store struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*entry
}

func newStore(defs []EntryDef) (*Store, error) {
	s := &Store{entries: make(map[string]*entry, len(defs))}
	for _, d := range defs {
		if d.Name == "" {
			return nil, tag.ErrEmptyName
		}
		if _, dup := s.entries[d.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, d.Name)
		}

		e := &entry{name: d.Name, typeName: d.Type, hidden: d.Hidden, raw: d.Value}
		if shape, ok := d.shape(); ok {
			raw, err := toRaw(shape, d.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", d.Name, err)
			}
			e.shape = shape
			e.typed = true
			e.raw = raw
			e.typeName = hal.Key{Type: shape.Type, Array: shape.IsArray()}.TypeName()
		}
		s.order = append(s.order, d.Name)
		s.entries[d.Name] = e
	}
	return s, nil
}

// NewStore builds a store from entry definitions.
func NewStore(defs ...EntryDef) (*Store, error) {
	return newStore(defs)
}

// Get implements hal.Metadata.
func (s *Store) Get(key hal.Key) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key.Name]
	if !ok {
		return nil, nil
	}
	if e.hidden {
		return nil, fmt.Errorf("%w: %s", hal.ErrNotExposed, key)
	}
	if !e.typed || e.shape != key.Shape() {
		return nil, fmt.Errorf("%w: %s is %s", hal.ErrTypeMismatch, key, e.typeName)
	}
	return cloneRaw(e.raw), nil
}

// Entries implements hal.Metadata.
func (s *Store) Entries() []hal.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]hal.Entry, 0, len(s.order))
	for _, name := range s.order {
		e := s.entries[name]
		he := hal.Entry{Name: e.name, TypeName: e.typeName}
		if e.hidden {
			he.Err = fmt.Errorf("%w: %s", hal.ErrNotExposed, e.name)
		} else {
			he.Value = cloneRaw(e.raw)
		}
		out = append(out, he)
	}
	return out
}

// set writes a typed value. A name already defined with another shape is a
// mismatch and leaves the store untouched.
func (s *Store) set(key hal.Key, value any) error {
	shape, ok := tag.ShapeOf(value)
	if !ok || shape != key.Shape() {
		return fmt.Errorf("%w: %T for %s", hal.ErrTypeMismatch, value, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key.Name]; ok {
		if e.hidden {
			return fmt.Errorf("%w: %s", hal.ErrNotExposed, key)
		}
		if !e.typed || e.shape != shape {
			return fmt.Errorf("%w: %s is %s", hal.ErrTypeMismatch, key, e.typeName)
		}
		e.raw = cloneRaw(value)
		return nil
	}

	s.order = append(s.order, key.Name)
	s.entries[key.Name] = &entry{
		name:     key.Name,
		typeName: key.TypeName(),
		shape:    shape,
		typed:    true,
		raw:      cloneRaw(value),
	}
	return nil
}

func (s *Store) clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := &Store{
		order:   slices.Clone(s.order),
		entries: make(map[string]*entry, len(s.entries)),
	}
	for name, e := range s.entries {
		cp := *e
		cp.raw = cloneRaw(e.raw)
		c.entries[name] = &cp
	}
	return c
}

// overlay copies every typed, visible entry of src that does not conflict
// with an existing definition.
func (s *Store) overlay(src *Store) {
	src.mu.RLock()
	defer src.mu.RUnlock()

	for _, name := range src.order {
		e := src.entries[name]
		if !e.typed || e.hidden || e.raw == nil {
			continue
		}
		_ = s.set(hal.Key{Name: name, Type: e.shape.Type, Array: e.shape.IsArray()}, e.raw)
	}
}

func cloneRaw(raw any) any {
	switch v := raw.(type) {
	case []int8:
		return slices.Clone(v)
	case []int32:
		return slices.Clone(v)
	case []int64:
		return slices.Clone(v)
	case []float32:
		return slices.Clone(v)
	default:
		return raw
	}
}

var _ hal.Metadata = (*Store)(nil)
