package sim

import "sync"

// Surface is an in-memory preview target.
type Surface struct {
	id string

	mu     sync.Mutex
	width  int
	height int
}

// NewSurface creates a surface with no buffer size.
func NewSurface(id string) *Surface {
	return &Surface{id: id}
}

// ID implements hal.Surface.
func (s *Surface) ID() string { return s.id }

// SetBufferSize implements hal.Surface.
func (s *Surface) SetBufferSize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
}

// Size returns the configured buffer size.
func (s *Surface) Size() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}
