package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/vtprobe/vtprobe-go/pkg/hal"
)

// Manager is a simulated device manager driven by a Profile.
//
// Callbacks are always delivered through the Executor passed with the call.
// If the executor refuses the callback it is dropped, as a real HAL drops
// callbacks for a dead handler.
type Manager struct {
	profile *Profile
	logger  *slog.Logger

	mu     sync.Mutex
	active map[string]*Device
	opens  int
}

// NewManager creates a manager for profile. A nil logger disables logging.
func NewManager(profile *Profile, logger *slog.Logger) *Manager {
	return &Manager{
		profile: profile,
		logger:  logger,
		active:  make(map[string]*Device),
	}
}

// DeviceIDs implements hal.Manager.
func (m *Manager) DeviceIDs() ([]string, error) {
	ids := make([]string, 0, len(m.profile.Devices))
	for _, d := range m.profile.Devices {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// Characteristics implements hal.Manager.
func (m *Manager) Characteristics(id string) (hal.Metadata, error) {
	dp, ok := m.profile.Device(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", hal.ErrUnknownDevice, id)
	}
	return newStore(dp.Characteristics)
}

// Open implements hal.Manager.
func (m *Manager) Open(id string, cb hal.DeviceCallbacks, exec hal.Executor) error {
	dp, ok := m.profile.Device(id)
	if !ok {
		return fmt.Errorf("%w: %q", hal.ErrUnknownDevice, id)
	}

	m.mu.Lock()
	m.opens++
	if _, busy := m.active[id]; busy {
		m.mu.Unlock()
		m.debugLog("open: device busy", "device", id)
		d := &Device{manager: m, profile: dp, cb: cb, exec: exec, closed: true}
		m.deliver(exec, dp.OpenDelay, func() { call2(cb.OnError, hal.Device(d), hal.ErrorCameraInUse) })
		return nil
	}
	d := &Device{manager: m, profile: dp, cb: cb, exec: exec}
	if dp.OpenError == 0 {
		m.active[id] = d
	}
	m.mu.Unlock()

	m.debugLog("open", "device", id, "delay", dp.OpenDelay)

	if dp.OpenError != 0 {
		m.deliver(exec, dp.OpenDelay, func() { call2(cb.OnError, hal.Device(d), dp.OpenError) })
		return nil
	}
	m.deliver(exec, dp.OpenDelay, func() {
		call(cb.OnOpened, hal.Device(d))
		if dp.DisconnectAfterOpen {
			d.disconnect()
		}
	})
	return nil
}

// Active returns the open device with id, or nil.
func (m *Manager) Active(id string) *Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[id]
}

// Opens returns how many Open calls the manager has accepted.
func (m *Manager) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// Disconnect simulates the device going away.
func (m *Manager) Disconnect(id string) bool {
	d := m.Active(id)
	if d == nil {
		return false
	}
	d.disconnect()
	return true
}

// Fail simulates a fatal device error.
func (m *Manager) Fail(id string, code int) bool {
	d := m.Active(id)
	if d == nil {
		return false
	}
	d.exec.Post(func() { call2(d.cb.OnError, hal.Device(d), code) })
	return true
}

func (m *Manager) release(d *Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active[d.profile.ID] == d {
		delete(m.active, d.profile.ID)
	}
}

func (m *Manager) deliver(exec hal.Executor, delay time.Duration, fn func()) {
	if delay <= 0 {
		exec.Post(fn)
		return
	}
	time.AfterFunc(delay, func() { exec.Post(fn) })
}

// debugLog logs a debug message if logging is enabled.
func (m *Manager) debugLog(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug("sim: "+msg, args...)
	}
}

// Device is a simulated open device.
type Device struct {
	manager *Manager
	profile DeviceProfile
	cb      hal.DeviceCallbacks
	exec    hal.Executor

	mu      sync.Mutex
	closed  bool
	session *Session
}

// ID implements hal.Device.
func (d *Device) ID() string { return d.profile.ID }

// CreateRequest implements hal.Device.
func (d *Device) CreateRequest(t hal.Template) (hal.RequestBuilder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, hal.ErrDeviceClosed
	}

	s, err := newStore(d.profile.Request)
	if err != nil {
		return nil, err
	}
	return &RequestBuilder{Store: s, template: t}, nil
}

// CreateSession implements hal.Device. A new session replaces and closes
// the previous one.
func (d *Device) CreateSession(targets []hal.Surface, cb hal.SessionCallbacks, exec hal.Executor) error {
	if len(targets) == 0 {
		return errors.New("sim: session needs at least one target")
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return hal.ErrDeviceClosed
	}
	prev := d.session
	s := &Session{device: d, targets: slices.Clone(targets)}
	d.session = s
	d.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}

	d.manager.debugLog("create session", "device", d.ID(), "targets", len(targets))

	if d.profile.ConfigureFail {
		exec.Post(func() { call(cb.OnConfigureFailed, hal.Session(s)) })
		return nil
	}
	exec.Post(func() { call(cb.OnConfigured, hal.Session(s)) })
	return nil
}

// Close implements hal.Device.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return hal.ErrDeviceClosed
	}
	d.closed = true
	s := d.session
	d.session = nil
	d.mu.Unlock()

	if s != nil {
		_ = s.Close()
	}
	d.manager.release(d)
	d.manager.debugLog("device closed", "device", d.ID())
	return nil
}

// Closed reports whether the device was closed.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Session returns the current capture session, or nil.
func (d *Device) Session() *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

func (d *Device) disconnect() {
	d.exec.Post(func() { call(d.cb.OnDisconnected, hal.Device(d)) })
}

// Session is a simulated capture session.
type Session struct {
	device  *Device
	targets []hal.Surface

	mu        sync.Mutex
	closed    bool
	repeating hal.Request
	submits   int
	captures  int
}

// SetRepeating implements hal.Session.
func (s *Session) SetRepeating(req hal.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return hal.ErrSessionClosed
	}
	if req == nil {
		return errors.New("sim: nil request")
	}
	s.repeating = req
	s.submits++
	return nil
}

// Capture implements hal.Session. The result echoes the typed request
// values on top of the device's result entries.
func (s *Session) Capture(req hal.Request, cb hal.CaptureCallback, exec hal.Executor) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return hal.ErrSessionClosed
	}
	s.captures++
	s.mu.Unlock()

	result, err := newStore(s.device.profile.Result)
	if err != nil {
		return err
	}
	if r, ok := req.(*Request); ok {
		result.overlay(r.Store)
	}

	exec.Post(func() {
		if cb != nil {
			cb(s, req, result)
		}
	})
	return nil
}

// Close implements hal.Session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return hal.ErrSessionClosed
	}
	s.closed = true
	return nil
}

// Repeating returns the last submitted repeating request.
func (s *Session) Repeating() hal.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repeating
}

// Submits returns how many repeating requests were submitted.
func (s *Session) Submits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submits
}

// Captures returns how many single captures were submitted.
func (s *Session) Captures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captures
}

// Targets returns the session's output surfaces.
func (s *Session) Targets() []hal.Surface { return slices.Clone(s.targets) }

func call[T any](fn func(T), arg T) {
	if fn != nil {
		fn(arg)
	}
}

func call2[T, U any](fn func(T, U), a T, b U) {
	if fn != nil {
		fn(a, b)
	}
}

var (
	_ hal.Manager = (*Manager)(nil)
	_ hal.Device  = (*Device)(nil)
	_ hal.Session = (*Session)(nil)
)
