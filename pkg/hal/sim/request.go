package sim

import (
	"slices"
	"sync"

	"github.com/vtprobe/vtprobe-go/pkg/hal"
)

// RequestBuilder is the simulated mutable request.
type RequestBuilder struct {
	*Store

	mu       sync.Mutex
	template hal.Template
	targets  []hal.Surface
}

// Template returns the template the builder was seeded from.
func (b *RequestBuilder) Template() hal.Template { return b.template }

// AddTarget implements hal.RequestBuilder.
func (b *RequestBuilder) AddTarget(s hal.Surface) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.targets = append(b.targets, s)
}

// Set implements hal.RequestBuilder.
func (b *RequestBuilder) Set(key hal.Key, value any) error {
	return b.Store.set(key, value)
}

// Build implements hal.RequestBuilder.
func (b *RequestBuilder) Build() (hal.Request, error) {
	b.mu.Lock()
	targets := slices.Clone(b.targets)
	b.mu.Unlock()

	return &Request{Store: b.Store.clone(), targets: targets}, nil
}

// Request is an immutable request snapshot.
type Request struct {
	*Store
	targets []hal.Surface
}

// Targets implements hal.Request.
func (r *Request) Targets() []hal.Surface { return slices.Clone(r.targets) }

var (
	_ hal.RequestBuilder = (*RequestBuilder)(nil)
	_ hal.Request        = (*Request)(nil)
)
