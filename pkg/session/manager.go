package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vtprobe/vtprobe-go/pkg/accessor"
	"github.com/vtprobe/vtprobe-go/pkg/hal"
	"github.com/vtprobe/vtprobe-go/pkg/log"
	"github.com/vtprobe/vtprobe-go/pkg/report"
	"github.com/vtprobe/vtprobe-go/pkg/tag"
)

// Defaults.
const (
	DefaultDeviceID      = "0"
	DefaultOpenTimeout   = 2500 * time.Millisecond
	DefaultPreviewWidth  = 1280
	DefaultPreviewHeight = 720
)

// openPending marks the lock as held by an open whose generation is not
// assigned yet.
const openPending = closeOwner - 1

// Config configures a Manager.
type Config struct {
	// Cameras is the HAL device manager. Required.
	Cameras hal.Manager

	// Executor delivers HAL callbacks, normally the background worker.
	// Required.
	Executor hal.Executor

	// Permission gates Open. If nil, access is always permitted.
	Permission hal.PermissionChecker

	// Surface is the preview target. When set, the stream is configured
	// automatically once the device opens.
	Surface hal.Surface

	// OpenTimeout bounds the wait for the open/close lock in Open.
	OpenTimeout time.Duration

	// PreviewWidth and PreviewHeight fix the preview buffer size.
	PreviewWidth  int
	PreviewHeight int

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// Trace receives the structured session trace. If nil, tracing is
	// disabled.
	Trace log.Logger

	// Reporter receives operator-facing lifecycle lines. Optional.
	Reporter *report.Reporter
}

// resources are the handles of one open generation.
type resources struct {
	gen      uint64
	deviceID string
	device   hal.Device
	session  hal.Session
	builder  hal.RequestBuilder
	teardown chan struct{}
}

type stateChange struct {
	from, to State
	trigger  EventKind
	gen      uint64
	deviceID string
}

// Manager owns the device lifecycle: open, stream configuration, repeating
// request submission and close.
//
// Operator methods may be called from any goroutine except the callback
// executor. HAL callbacks run on the executor and are matched against the
// generation of the open that issued them; callbacks from an older
// generation are ignored and any handle they deliver is closed.
type Manager struct {
	cameras     hal.Manager
	exec        hal.Executor
	permission  hal.PermissionChecker
	surface     hal.Surface
	openTimeout time.Duration
	width       int
	height      int
	logger      *slog.Logger
	trace       log.Logger
	reporter    *report.Reporter
	traceID     string

	lock *openLock

	// reqMu serializes access to the pending request builder.
	reqMu sync.Mutex

	mu       sync.Mutex
	state    State
	gen      uint64
	res      resources
	changed  chan struct{}
	handlers []EventHandler
}

// NewManager creates a Manager in StateClosed.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Cameras == nil {
		return nil, fmt.Errorf("%w: Cameras is required", ErrInvalidConfig)
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("%w: Executor is required", ErrInvalidConfig)
	}

	m := &Manager{
		cameras:     cfg.Cameras,
		exec:        cfg.Executor,
		permission:  cfg.Permission,
		surface:     cfg.Surface,
		openTimeout: cfg.OpenTimeout,
		width:       cfg.PreviewWidth,
		height:      cfg.PreviewHeight,
		logger:      cfg.Logger,
		trace:       log.OrNoop(cfg.Trace),
		reporter:    cfg.Reporter,
		traceID:     uuid.NewString(),
		lock:        newOpenLock(),
		state:       StateClosed,
		changed:     make(chan struct{}),
	}
	if m.permission == nil {
		m.permission = hal.AlwaysPermitted
	}
	if m.openTimeout <= 0 {
		m.openTimeout = DefaultOpenTimeout
	}
	if m.width <= 0 || m.height <= 0 {
		m.width, m.height = DefaultPreviewWidth, DefaultPreviewHeight
	}
	return m, nil
}

// TraceID returns the session trace id carried by every trace event.
func (m *Manager) TraceID() string { return m.traceID }

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// DeviceID returns the id of the device being opened or open, or "".
func (m *Manager) DeviceID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.res.deviceID
}

// Generation returns the current open generation.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// OnEvent registers a lifecycle handler.
func (m *Manager) OnEvent(h EventHandler) {
	if h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
}

// Wait blocks until the state is one of states, or ctx is done.
func (m *Manager) Wait(ctx context.Context, states ...State) (State, error) {
	for {
		m.mu.Lock()
		st := m.state
		ch := m.changed
		m.mu.Unlock()

		if slices.Contains(states, st) {
			return st, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// Open starts opening deviceID ("" selects DefaultDeviceID).
//
// Open returns once the HAL open is issued; the outcome arrives through
// callbacks and is observable via State, Wait and OnEvent. It fails with
// ErrPermissionDenied without side effects, with ErrLockTimeout if the
// open/close lock is not free within OpenTimeout, and with ErrAlreadyOpen
// unless the state is StateClosed.
func (m *Manager) Open(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		deviceID = DefaultDeviceID
	}

	if !m.permission.HasCameraPermission() {
		m.say("Permission denied.")
		return ErrPermissionDenied
	}
	if !m.exec.Post(func() {}) {
		return ErrExecutorStopped
	}

	ok, err := m.lock.acquire(ctx, m.openTimeout, openPending)
	if err != nil {
		return err
	}
	if !ok {
		m.say("Timeout waiting to lock device opening.")
		m.traceError(log.LayerSession, "open", ErrLockTimeout, nil)
		return ErrLockTimeout
	}

	m.mu.Lock()
	if m.state != StateClosed {
		st := m.state
		m.mu.Unlock()
		m.lock.releaseIfOwner(openPending)
		return fmt.Errorf("%w: %s", ErrAlreadyOpen, st)
	}
	m.gen++
	gen := m.gen
	m.res = resources{gen: gen, deviceID: deviceID, teardown: make(chan struct{})}
	sc := m.transitionLocked(EventOpenRequested)
	m.lock.handOver(openPending, gen)
	m.mu.Unlock()

	m.say("Opening deviceId=%s", deviceID)
	m.publish(sc)

	err = safeCall(func() error {
		return m.cameras.Open(deviceID, m.deviceCallbacks(gen), m.exec)
	})
	if err == nil {
		return nil
	}

	m.mu.Lock()
	var failed *stateChange
	if m.gen == gen && m.state == StateOpening {
		sc := m.transitionLocked(EventOpenFailed)
		failed = &sc
		close(m.res.teardown)
		m.res = resources{}
	}
	m.mu.Unlock()
	m.lock.releaseIfOwner(gen)

	if failed != nil {
		m.publish(*failed)
	}
	m.say("Open failed: %v", err)
	m.traceError(log.LayerHAL, "open", err, nil)
	return fmt.Errorf("open device %s: %w", deviceID, err)
}

func (m *Manager) deviceCallbacks(gen uint64) hal.DeviceCallbacks {
	return hal.DeviceCallbacks{
		OnOpened: func(d hal.Device) {
			m.onOpened(gen, d)
		},
		OnDisconnected: func(d hal.Device) {
			m.onDeviceLost(gen, d, &DeviceError{Disconnected: true})
		},
		OnError: func(d hal.Device, code int) {
			m.onDeviceLost(gen, d, &DeviceError{Code: code})
		},
	}
}

func (m *Manager) onOpened(gen uint64, d hal.Device) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateOpening {
		m.mu.Unlock()
		m.debugLog("stale opened callback", "generation", gen)
		closeQuietly(d)
		return
	}
	m.res.device = d
	sc := m.transitionLocked(EventOpened)
	m.mu.Unlock()

	m.lock.releaseIfOwner(gen)
	m.publish(sc)
	m.say("Device opened.")

	if m.surface != nil {
		if err := m.ConfigureStream(m.surface); err != nil {
			m.debugLog("auto configure failed", "error", err)
		}
	}
}

func (m *Manager) onDeviceLost(gen uint64, d hal.Device, derr *DeviceError) {
	m.mu.Lock()
	if gen != m.gen || !m.state.live() {
		m.mu.Unlock()
		m.debugLog("stale device callback", "generation", gen, "error", derr)
		closeQuietly(d)
		return
	}

	ev := EventDeviceError
	if derr.Disconnected {
		ev = EventDisconnected
	}
	derr.DeviceID = m.res.deviceID
	sc := m.transitionLocked(ev)
	res := m.res
	m.res = resources{}
	close(res.teardown)
	m.mu.Unlock()

	m.lock.releaseIfOwner(gen)
	if err := releaseHandles(res); err != nil {
		m.debugLog("release after device loss", "error", err)
	}
	if res.device == nil || res.device != d {
		closeQuietly(d)
	}

	m.publish(sc)
	if derr.Disconnected {
		m.say("Device disconnected.")
		m.traceError(log.LayerHAL, "device", derr, nil)
	} else {
		m.say("Device error: %d", derr.Code)
		code := derr.Code
		m.traceError(log.LayerHAL, "device", derr, &code)
	}
	m.emit(Event{Type: EventDeviceFailed, DeviceID: res.deviceID, Generation: gen, Err: derr})
}

// ConfigureStream configures a single-surface preview stream on the open
// device. The outcome arrives through callbacks: StateStreamActive followed
// by the first repeating submission, or back to StateOpen with an
// EventStreamFailed notification.
func (m *Manager) ConfigureStream(surface hal.Surface) error {
	if surface == nil {
		return fmt.Errorf("%w: nil surface", ErrInvalidConfig)
	}

	m.mu.Lock()
	if m.state != StateOpen {
		st := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: configure stream in %s", ErrNotOpen, st)
	}
	sc := m.transitionLocked(EventConfigureRequested)
	gen := m.gen
	device := m.res.device
	m.mu.Unlock()
	m.publish(sc)

	var builder hal.RequestBuilder
	err := safeCall(func() error {
		surface.SetBufferSize(m.width, m.height)
		b, err := device.CreateRequest(hal.TemplatePreview)
		if err != nil {
			return err
		}
		b.AddTarget(surface)
		builder = b
		return nil
	})
	if err == nil {
		m.mu.Lock()
		if gen == m.gen && m.state == StateConfiguringStream {
			m.res.builder = builder
		}
		m.mu.Unlock()

		err = safeCall(func() error {
			return device.CreateSession([]hal.Surface{surface}, m.sessionCallbacks(gen), m.exec)
		})
	}
	if err != nil {
		m.configureFailed(gen, err)
		return fmt.Errorf("%w: %w", ErrConfigureFailed, err)
	}
	return nil
}

func (m *Manager) sessionCallbacks(gen uint64) hal.SessionCallbacks {
	return hal.SessionCallbacks{
		OnConfigured: func(s hal.Session) {
			m.onConfigured(gen, s)
		},
		OnConfigureFailed: func(s hal.Session) {
			closeQuietly(s)
			m.configureFailed(gen, nil)
		},
	}
}

func (m *Manager) onConfigured(gen uint64, s hal.Session) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateConfiguringStream {
		m.mu.Unlock()
		m.debugLog("stale configured callback", "generation", gen)
		closeQuietly(s)
		return
	}
	m.res.session = s
	sc := m.transitionLocked(EventConfigured)
	m.mu.Unlock()

	m.publish(sc)
	m.say("Preview session configured.")

	if err := m.SubmitRepeating(); err == nil {
		m.say("Preview repeating started.")
	}
}

func (m *Manager) configureFailed(gen uint64, cause error) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateConfiguringStream {
		m.mu.Unlock()
		return
	}
	m.res.builder = nil
	sc := m.transitionLocked(EventConfigureFailed)
	deviceID := m.res.deviceID
	m.mu.Unlock()

	err := ErrConfigureFailed
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrConfigureFailed, cause)
	}

	m.publish(sc)
	m.say("Preview session configure failed.")
	m.traceError(log.LayerSession, "configure", err, nil)
	m.emit(Event{Type: EventStreamFailed, DeviceID: deviceID, Generation: gen, Err: err})
}

// SubmitRepeating rebuilds the pending request and submits it as the
// repeating request. It requires StateStreamActive; a failure is reported
// and leaves the state unchanged.
func (m *Manager) SubmitRepeating() error {
	m.reqMu.Lock()
	defer m.reqMu.Unlock()
	return m.submitLocked()
}

func (m *Manager) submitLocked() error {
	m.mu.Lock()
	if m.state != StateStreamActive {
		m.mu.Unlock()
		return ErrNoActiveStream
	}
	sess, builder := m.res.session, m.res.builder
	gen, deviceID := m.res.gen, m.res.deviceID
	m.mu.Unlock()

	err := safeCall(func() error {
		req, err := builder.Build()
		if err != nil {
			return err
		}
		return sess.SetRepeating(req)
	})
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSubmitFailed, err)
		m.say("Submit repeating failed: %v", err)
		m.traceError(log.LayerHAL, "submit", err, nil)
		m.emit(Event{Type: EventSubmitFailed, DeviceID: deviceID, Generation: gen, Err: err})
		return err
	}

	m.traceEvent(log.Event{
		Layer:      log.LayerSession,
		Category:   log.CategoryCapture,
		DeviceID:   deviceID,
		Generation: gen,
		Capture:    &log.CaptureEvent{Kind: log.CaptureRepeating},
	})
	m.emit(Event{Type: EventSubmitted, DeviceID: deviceID, Generation: gen})
	return nil
}

// ApplyTag writes text as spec into the pending request and resubmits the
// repeating request.
//
// Parse errors (*codec.ParseError) and registry failures (*accessor.Failure)
// leave the pending request and the state unchanged. If the write succeeds
// but the resubmission fails, the returned report is valid, the write stays
// applied, and the error wraps ErrResubmitFailed.
func (m *Manager) ApplyTag(spec tag.TagSpec, text string) (accessor.WriteReport, error) {
	m.reqMu.Lock()
	defer m.reqMu.Unlock()

	builder, err := m.activeBuilder()
	if err != nil {
		return accessor.WriteReport{}, err
	}

	wr, err := accessor.Write(builder, spec, text)
	access := &log.AccessEvent{
		Op:       log.AccessWrite,
		Registry: tag.MutableRequest.String(),
		Name:     spec.Name,
		Shape:    spec.Shape().String(),
	}
	if err != nil {
		access.Failure = err.Error()
	} else {
		access.Value = text
	}
	m.traceAccess(access)
	if err != nil {
		return wr, err
	}

	if err := m.submitLocked(); err != nil {
		return wr, fmt.Errorf("%w: %w", ErrResubmitFailed, err)
	}
	return wr, nil
}

// ReadRequest reads spec from the pending request.
func (m *Manager) ReadRequest(spec tag.TagSpec) (accessor.Report, error) {
	m.reqMu.Lock()
	defer m.reqMu.Unlock()

	builder, err := m.activeBuilder()
	if err != nil {
		return accessor.Report{}, err
	}
	r := accessor.Read(builder, tag.MutableRequest, spec)
	m.traceRead(r)
	return r, nil
}

func (m *Manager) activeBuilder() (hal.RequestBuilder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateStreamActive || m.res.builder == nil {
		return nil, ErrNoActiveStream
	}
	return m.res.builder, nil
}

// CaptureOnce submits one capture of the pending request alongside the
// repeating stream and returns its result. It resolves with ErrClosed if
// the session is torn down first. It must not be called from the callback
// executor.
func (m *Manager) CaptureOnce(ctx context.Context) (hal.Metadata, error) {
	m.reqMu.Lock()
	m.mu.Lock()
	if m.state != StateStreamActive {
		m.mu.Unlock()
		m.reqMu.Unlock()
		return nil, ErrNoActiveStream
	}
	sess, builder, teardown := m.res.session, m.res.builder, m.res.teardown
	gen, deviceID := m.res.gen, m.res.deviceID
	m.mu.Unlock()

	var req hal.Request
	err := safeCall(func() error {
		var err error
		req, err = builder.Build()
		return err
	})
	m.reqMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	results := make(chan hal.Metadata, 1)
	err = safeCall(func() error {
		return sess.Capture(req, func(_ hal.Session, _ hal.Request, md hal.Metadata) {
			select {
			case results <- md:
			default:
			}
		}, m.exec)
	})
	if err != nil {
		m.traceError(log.LayerHAL, "capture", err, nil)
		return nil, fmt.Errorf("capture: %w", err)
	}
	m.traceEvent(log.Event{
		Layer:      log.LayerSession,
		Category:   log.CategoryCapture,
		DeviceID:   deviceID,
		Generation: gen,
		Capture:    &log.CaptureEvent{Kind: log.CaptureSingle},
	})

	select {
	case md := <-results:
		entries := 0
		if md != nil {
			entries = len(md.Entries())
		}
		m.traceEvent(log.Event{
			Layer:      log.LayerSession,
			Category:   log.CategoryCapture,
			DeviceID:   deviceID,
			Generation: gen,
			Capture:    &log.CaptureEvent{Kind: log.CaptureSingle, Completed: true, Entries: entries},
		})
		m.emit(Event{Type: EventCaptureCompleted, DeviceID: deviceID, Generation: gen, Result: md})
		return md, nil
	case <-teardown:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReadResult captures one frame and reads spec from its result.
func (m *Manager) ReadResult(ctx context.Context, spec tag.TagSpec) (accessor.Report, error) {
	md, err := m.CaptureOnce(ctx)
	if err != nil {
		return accessor.Report{}, err
	}
	r := accessor.Read(md, tag.DynamicResult, spec)
	m.traceRead(r)
	return r, nil
}

// Close releases the session and device. It waits for the open/close lock
// without a bound, so an open in flight completes first. Close is
// idempotent; HAL errors and panics during release are collected and
// returned, and the lock is always released.
func (m *Manager) Close() error {
	m.lock.acquireBlocking(closeOwner)
	defer m.lock.releaseIfOwner(closeOwner)

	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return nil
	}
	sc := m.transitionLocked(EventCloseRequested)
	res := m.res
	m.res = resources{}
	m.gen++
	if res.teardown != nil {
		close(res.teardown)
	}
	m.mu.Unlock()
	m.publish(sc)

	err := releaseHandles(res)
	if err != nil {
		m.traceError(log.LayerHAL, "close", err, nil)
	}

	m.mu.Lock()
	done := m.transitionLocked(EventCloseCompleted)
	m.mu.Unlock()
	done.gen, done.deviceID = res.gen, res.deviceID
	m.publish(done)
	m.say("Device closed.")
	return err
}

// transitionLocked applies ev; the caller holds m.mu and has checked that
// the transition is valid.
func (m *Manager) transitionLocked(ev EventKind) stateChange {
	to, err := Transition(m.state, ev)
	if err != nil {
		panic(err)
	}
	sc := stateChange{from: m.state, to: to, trigger: ev, gen: m.res.gen, deviceID: m.res.deviceID}
	m.state = to
	close(m.changed)
	m.changed = make(chan struct{})
	return sc
}

func (m *Manager) publish(sc stateChange) {
	m.debugLog("state", "from", sc.from, "to", sc.to, "trigger", sc.trigger, "generation", sc.gen)
	m.traceEvent(log.Event{
		Layer:      log.LayerSession,
		Category:   log.CategoryState,
		DeviceID:   sc.deviceID,
		Generation: sc.gen,
		StateChange: &log.StateChangeEvent{
			OldState: sc.from.String(),
			NewState: sc.to.String(),
			Trigger:  sc.trigger.String(),
		},
	})
	m.emit(Event{
		Type:       EventStateChanged,
		DeviceID:   sc.deviceID,
		Generation: sc.gen,
		From:       sc.from,
		To:         sc.to,
		Trigger:    sc.trigger,
	})
}

func (m *Manager) emit(ev Event) {
	ev.Time = time.Now()
	m.mu.Lock()
	handlers := slices.Clone(m.handlers)
	m.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (m *Manager) say(format string, args ...any) {
	if m.reporter != nil {
		m.reporter.Printf(format, args...)
	}
}

// debugLog logs a debug message if logging is enabled.
func (m *Manager) debugLog(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug("session: "+msg, args...)
	}
}

func (m *Manager) traceEvent(e log.Event) {
	e.Timestamp = time.Now()
	e.SessionID = m.traceID
	m.trace.Log(e)
}

func (m *Manager) traceError(layer log.Layer, where string, err error, code *int) {
	m.mu.Lock()
	deviceID, gen := m.res.deviceID, m.res.gen
	m.mu.Unlock()
	m.traceEvent(log.Event{
		Layer:      layer,
		Category:   log.CategoryError,
		DeviceID:   deviceID,
		Generation: gen,
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Code:    code,
			Context: where,
		},
	})
}

func (m *Manager) traceAccess(a *log.AccessEvent) {
	m.mu.Lock()
	deviceID, gen := m.res.deviceID, m.res.gen
	m.mu.Unlock()
	m.traceEvent(log.Event{
		Layer:      log.LayerAccessor,
		Category:   log.CategoryAccess,
		DeviceID:   deviceID,
		Generation: gen,
		Access:     a,
	})
}

func (m *Manager) traceRead(r accessor.Report) {
	m.traceAccess(AccessEvent(log.AccessRead, r.Registry, r.Primary))
}

// AccessEvent converts an accessor outcome into a trace payload.
func AccessEvent(op log.AccessOp, kind tag.RegistryKind, o accessor.Outcome) *log.AccessEvent {
	a := &log.AccessEvent{
		Op:       op,
		Registry: kind.String(),
		Name:     o.Key.Name,
		Shape:    o.Key.Shape().String(),
	}
	if o.Failure != nil {
		a.Failure = o.Failure.Error()
	} else {
		a.Value = o.Text()
	}
	return a
}

// releaseHandles closes the session, then the device. Already-closed
// handles are not errors.
func releaseHandles(res resources) error {
	var errs []error
	if res.session != nil {
		if err := safeCall(res.session.Close); err != nil && !errors.Is(err, hal.ErrSessionClosed) {
			errs = append(errs, fmt.Errorf("close session: %w", err))
		}
	}
	if res.device != nil {
		if err := safeCall(res.device.Close); err != nil && !errors.Is(err, hal.ErrDeviceClosed) {
			errs = append(errs, fmt.Errorf("close device: %w", err))
		}
	}
	return errors.Join(errs...)
}

type closer interface{ Close() error }

func closeQuietly(c closer) {
	if c == nil {
		return
	}
	_ = safeCall(c.Close)
}

// safeCall runs a HAL call, converting a panic into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", accessor.ErrHALPanic, r)
		}
	}()
	return fn()
}
