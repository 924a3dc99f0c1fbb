package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/vtprobe/vtprobe-go/internal/config"
	"github.com/vtprobe/vtprobe-go/pkg/hal"
	"github.com/vtprobe/vtprobe-go/pkg/hal/sim"
	"github.com/vtprobe/vtprobe-go/pkg/inspect"
	vtlog "github.com/vtprobe/vtprobe-go/pkg/log"
	"github.com/vtprobe/vtprobe-go/pkg/report"
	"github.com/vtprobe/vtprobe-go/pkg/session"
	"github.com/vtprobe/vtprobe-go/pkg/tag"
	"github.com/vtprobe/vtprobe-go/pkg/worker"
)

// app holds the wired probe: simulated HAL, callback worker, session
// manager and inspector.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	spec   tag.TagSpec

	cameras   *sim.Manager
	worker    *worker.Worker
	reporter  *report.Reporter
	session   *session.Manager
	inspector *inspect.Inspector
	traceFile *vtlog.FileLogger
}

func newApp(cfg config.Config, logger *slog.Logger, out io.Writer) (*app, error) {
	spec, err := cfg.TagSpec()
	if err != nil {
		return nil, err
	}

	profile := sim.DefaultProfile()
	if cfg.Profile != "" {
		profile, err = sim.LoadProfile(cfg.Profile)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded HAL profile", "path", cfg.Profile, "devices", len(profile.Devices))
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		spec:     spec,
		cameras:  sim.NewManager(profile, logger),
		worker:   worker.New(worker.Config{Name: "camera-callbacks", Logger: logger}),
		reporter: report.New(out, report.WithLogger(logger)),
	}

	// Only add the file logger when non-nil to avoid the typed-nil
	// interface issue.
	var trace []vtlog.Logger
	if cfg.EventLog != "" {
		a.traceFile, err = vtlog.NewFileLogger(cfg.EventLog)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace file: %w", err)
		}
		trace = append(trace, a.traceFile)
		logger.Info("Session trace enabled", "path", cfg.EventLog)
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		trace = append(trace, vtlog.NewSlogAdapter(logger))
	}
	multi := vtlog.NewMultiLogger(trace...)

	var permission hal.PermissionChecker = hal.AlwaysPermitted
	if cfg.DenyPermission {
		permission = hal.PermissionFunc(func() bool { return false })
	}

	a.session, err = session.NewManager(session.Config{
		Cameras:       a.cameras,
		Executor:      a.worker,
		Permission:    permission,
		Surface:       sim.NewSurface("preview"),
		OpenTimeout:   cfg.OpenTimeout,
		PreviewWidth:  cfg.PreviewWidth,
		PreviewHeight: cfg.PreviewHeight,
		Logger:        logger,
		Trace:         multi,
		Reporter:      a.reporter,
	})
	if err != nil {
		a.closeTrace()
		return nil, err
	}

	a.inspector, err = inspect.NewInspector(inspect.Config{
		Cameras:  a.cameras,
		Session:  a.session,
		Reporter: a.reporter,
		Trace:    multi,
		TraceID:  a.session.TraceID(),
		Logger:   logger,
	})
	if err != nil {
		a.closeTrace()
		return nil, err
	}
	return a, nil
}

// startPreview opens the configured device and waits for the repeating
// preview request.
func (a *app) startPreview(ctx context.Context) error {
	a.worker.Start()
	if err := a.session.Open(ctx, a.cfg.DeviceID); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, a.cfg.OpenTimeout+settleTimeout)
	defer cancel()
	st, err := a.session.Wait(waitCtx, session.StateStreamActive, session.StateClosed)
	if err != nil {
		return fmt.Errorf("preview did not start (state %s): %w", st, err)
	}
	if st != session.StateStreamActive {
		return fmt.Errorf("preview did not start: %w", session.ErrNoActiveStream)
	}

	// Let the repeating submission land before the caller acts on it.
	return a.worker.Flush(waitCtx)
}

// Close closes the device, then stops the worker and the trace file.
func (a *app) Close() error {
	err := a.session.Close()
	a.worker.Stop()
	return errors.Join(err, a.closeTrace())
}

func (a *app) closeTrace() error {
	if a.traceFile == nil {
		return nil
	}
	written, dropped := a.traceFile.Stats()
	a.logger.Info("Session trace closed", "path", a.traceFile.Path(), "events", written, "dropped", dropped)
	return a.traceFile.Close()
}
