package inspect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/vtprobe/vtprobe-go/pkg/accessor"
	"github.com/vtprobe/vtprobe-go/pkg/codec"
	"github.com/vtprobe/vtprobe-go/pkg/hal"
	"github.com/vtprobe/vtprobe-go/pkg/log"
	"github.com/vtprobe/vtprobe-go/pkg/report"
	"github.com/vtprobe/vtprobe-go/pkg/session"
	"github.com/vtprobe/vtprobe-go/pkg/tag"
)

// Inspector errors.
var (
	ErrInvalidConfig = errors.New("invalid inspector config")
	ErrNoSession     = errors.New("no active camera session")
)

// Section titles.
const (
	SectionReadChars   = "READ CHARS"
	SectionReadResult  = "READ RESULT"
	SectionReadRequest = "READ REQUEST"
	SectionApply       = "APPLY REQUEST"
	SectionDump        = "DUMP CHARS"
)

// Session is the part of the session manager the inspector drives.
// It is implemented by session.Manager.
type Session interface {
	ApplyTag(spec tag.TagSpec, text string) (accessor.WriteReport, error)
	ReadRequest(spec tag.TagSpec) (accessor.Report, error)
	ReadResult(ctx context.Context, spec tag.TagSpec) (accessor.Report, error)
}

// Config configures an Inspector.
type Config struct {
	// Cameras lists devices and serves static characteristics. Required.
	Cameras hal.Manager

	// Session serves the dynamic registries. Optional.
	Session Session

	// Reporter receives the output lines. Required.
	Reporter *report.Reporter

	// Formatter renders values. If nil, NewFormatter() is used.
	Formatter *Formatter

	// CacheTTL bounds how long characteristics are cached per device.
	// Zero caches them for the lifetime of the inspector.
	CacheTTL time.Duration

	// Trace receives access events for static reads. Optional.
	Trace log.Logger

	// TraceID is the session id stamped on trace events.
	TraceID string

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Inspector renders reads, writes and dumps of the three registries as
// report lines. Static characteristics are fetched once per device and
// cached.
type Inspector struct {
	cameras  hal.Manager
	session  Session
	reporter *report.Reporter
	format   *Formatter
	chars    *cache.Cache
	trace    log.Logger
	traceID  string
	logger   *slog.Logger
}

// NewInspector creates a new Inspector.
func NewInspector(cfg Config) (*Inspector, error) {
	if cfg.Cameras == nil {
		return nil, fmt.Errorf("%w: Cameras is required", ErrInvalidConfig)
	}
	if cfg.Reporter == nil {
		return nil, fmt.Errorf("%w: Reporter is required", ErrInvalidConfig)
	}

	ttl, cleanup := cache.NoExpiration, time.Duration(0)
	if cfg.CacheTTL > 0 {
		ttl, cleanup = cfg.CacheTTL, 2*cfg.CacheTTL
	}

	i := &Inspector{
		cameras:  cfg.Cameras,
		session:  cfg.Session,
		reporter: cfg.Reporter,
		format:   cfg.Formatter,
		chars:    cache.New(ttl, cleanup),
		trace:    log.OrNoop(cfg.Trace),
		traceID:  cfg.TraceID,
		logger:   cfg.Logger,
	}
	if i.format == nil {
		i.format = NewFormatter()
	}
	return i, nil
}

// Characteristics returns the static registry of a device, from the cache
// when possible.
func (i *Inspector) Characteristics(deviceID string) (hal.Metadata, error) {
	if v, ok := i.chars.Get(deviceID); ok {
		return v.(hal.Metadata), nil
	}

	var md hal.Metadata
	err := safe(func() error {
		var err error
		md, err = i.cameras.Characteristics(deviceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if md == nil {
		return nil, fmt.Errorf("%w: device %s", accessor.ErrRegistryUnavailable, deviceID)
	}

	i.chars.Set(deviceID, md, cache.DefaultExpiration)
	i.debugLog("characteristics cached", "device", deviceID)
	return md, nil
}

// Forget drops the cached characteristics of a device, or of every device
// when deviceID is empty.
func (i *Inspector) Forget(deviceID string) {
	if deviceID == "" {
		i.chars.Flush()
		return
	}
	i.chars.Delete(deviceID)
}

// Cached returns how many devices have cached characteristics.
func (i *Inspector) Cached() int { return i.chars.ItemCount() }

// ReadStatic reads spec from the static characteristics of a device.
func (i *Inspector) ReadStatic(deviceID string, spec tag.TagSpec) (accessor.Report, error) {
	i.reporter.Separator(SectionReadChars)
	if err := i.checkName(spec); err != nil {
		return accessor.Report{}, err
	}

	md, err := i.Characteristics(deviceID)
	if err != nil {
		i.reporter.Debugf("Read Chars failed: %v", err)
		return accessor.Report{}, err
	}

	i.reporter.Debugf("%s", i.format.RequestLine(tag.StaticCapabilities, "read", spec))
	r := accessor.Read(md, tag.StaticCapabilities, spec)
	i.printReport(r)
	i.traceRead(deviceID, r)
	return r, nil
}

// ReadResult captures one frame and reads spec from its result.
func (i *Inspector) ReadResult(ctx context.Context, spec tag.TagSpec) (accessor.Report, error) {
	i.reporter.Separator(SectionReadResult)
	if i.session == nil {
		i.reporter.Println("No active camera session. Start preview first.")
		return accessor.Report{}, ErrNoSession
	}
	if err := i.checkName(spec); err != nil {
		return accessor.Report{}, err
	}

	i.reporter.Println("Capturing 1 frame to read CaptureResult...")
	r, err := i.session.ReadResult(ctx, spec)
	if err != nil {
		if errors.Is(err, session.ErrNoActiveStream) {
			i.reporter.Println("No active camera session. Start preview first.")
		} else {
			i.reporter.Printf("Read Result failed: %v", err)
		}
		return accessor.Report{}, err
	}

	i.reporter.Debugf("%s", i.format.RequestLine(tag.DynamicResult, "read", spec))
	i.printReport(r)
	return r, nil
}

// ReadRequest reads spec from the pending request.
func (i *Inspector) ReadRequest(spec tag.TagSpec) (accessor.Report, error) {
	i.reporter.Separator(SectionReadRequest)
	if i.session == nil {
		i.reporter.Println("No active preview. Start preview first.")
		return accessor.Report{}, ErrNoSession
	}
	if err := i.checkName(spec); err != nil {
		return accessor.Report{}, err
	}

	r, err := i.session.ReadRequest(spec)
	if err != nil {
		if errors.Is(err, session.ErrNoActiveStream) {
			i.reporter.Println("No active preview. Start preview first.")
		} else {
			i.reporter.Printf("Read Request failed: %v", err)
		}
		return accessor.Report{}, err
	}

	i.reporter.Debugf("%s", i.format.RequestLine(tag.MutableRequest, "read", spec))
	i.printReport(r)
	return r, nil
}

// ApplyTag writes text as spec into the pending request and resubmits it.
func (i *Inspector) ApplyTag(spec tag.TagSpec, text string) (accessor.WriteReport, error) {
	i.reporter.Separator(SectionApply)
	if i.session == nil {
		i.reporter.Println("No active preview. Start preview first.")
		return accessor.WriteReport{}, ErrNoSession
	}
	if err := i.checkName(spec); err != nil {
		return accessor.WriteReport{}, err
	}
	if err := codec.CheckInput(text, spec.Shape()); err != nil {
		i.reporter.Println("Value is empty.")
		return accessor.WriteReport{}, err
	}

	i.reporter.Debugf("%s, value=%s", i.format.RequestLine(tag.MutableRequest, "set", spec), text)
	wr, err := i.session.ApplyTag(spec, text)

	var failure *accessor.Failure
	switch {
	case err == nil:
		i.printWrite(wr)
		i.reporter.Debugf("Re-applied repeating request with vendor tag.")
	case errors.Is(err, session.ErrResubmitFailed):
		i.printWrite(wr)
		i.reporter.Debugf("Re-apply failed: %v", err)
	case errors.Is(err, session.ErrNoActiveStream):
		i.reporter.Println("No active preview. Start preview first.")
	case errors.As(err, &failure) && failure.Reason != accessor.ReasonUnknown:
		i.reporter.Debugf("Set failed: %s", failure.Error())
	default:
		i.reporter.Debugf("Set failed: %v", err)
	}
	return wr, err
}

// DumpAll prints every static characteristic of every device.
// A device whose characteristics cannot be fetched is reported and skipped.
func (i *Inspector) DumpAll() error {
	i.reporter.Separator(SectionDump)

	var ids []string
	err := safe(func() error {
		var err error
		ids, err = i.cameras.DeviceIDs()
		return err
	})
	if err != nil {
		i.reporter.Errorf("dumpAll: %v", err)
		return err
	}

	var errs []error
	for _, id := range ids {
		i.reporter.Printf("==== DeviceId: %s ====", id)
		md, err := i.Characteristics(id)
		if err != nil {
			i.reporter.Errorf("dumpAll: %v", err)
			errs = append(errs, fmt.Errorf("device %s: %w", id, err))
			continue
		}
		for _, e := range entries(md) {
			i.reporter.Println(i.format.FormatEntry(e))
		}
	}
	return errors.Join(errs...)
}

// TagNames returns the characteristic names of a device starting with
// prefix, for completion.
func (i *Inspector) TagNames(deviceID, prefix string) []string {
	md, err := i.Characteristics(deviceID)
	if err != nil {
		return nil
	}
	return MatchNames(entries(md), prefix)
}

func (i *Inspector) checkName(spec tag.TagSpec) error {
	if spec.Name == "" {
		i.reporter.Println("Key name is empty.")
		return tag.ErrEmptyName
	}
	return nil
}

func (i *Inspector) printReport(r accessor.Report) {
	for _, line := range i.format.FormatReport(r) {
		i.reporter.Debugf("%s", line)
	}
}

func (i *Inspector) printWrite(wr accessor.WriteReport) {
	for _, line := range i.format.FormatWrite(wr) {
		i.reporter.Debugf("%s", line)
	}
}

func (i *Inspector) traceRead(deviceID string, r accessor.Report) {
	i.trace.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: i.traceID,
		Layer:     log.LayerAccessor,
		Category:  log.CategoryAccess,
		DeviceID:  deviceID,
		Access:    session.AccessEvent(log.AccessRead, r.Registry, r.Primary),
	})
}

// debugLog logs a debug message if logging is enabled.
func (i *Inspector) debugLog(msg string, args ...any) {
	if i.logger != nil {
		i.logger.Debug("inspect: "+msg, args...)
	}
}

// entries enumerates a store, converting a panic into a single error entry.
func entries(md hal.Metadata) (out []hal.Entry) {
	defer func() {
		if r := recover(); r != nil {
			out = append(out, hal.Entry{Name: "?", TypeName: "?", Err: fmt.Errorf("%w: %v", accessor.ErrHALPanic, r)})
		}
	}()
	return md.Entries()
}

func safe(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", accessor.ErrHALPanic, r)
		}
	}()
	return fn()
}
