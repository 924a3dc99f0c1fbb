// Package worker provides the single background goroutine that runs HAL
// callbacks in order.
//
// A Worker owns one unbounded FIFO queue. Tasks posted before Stop are never
// dropped or reordered: Stop stops intake, drains what was queued and waits
// for the goroutine to exit. A panicking task is logged and the worker keeps
// running.
//
// A Worker can be started again after Stop, mirroring a host that pauses and
// resumes the probe.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrStopped is returned when work is offered to a stopped worker.
var ErrStopped = errors.New("worker stopped")

// Config configures a Worker.
type Config struct {
	// Name identifies the worker in log output.
	Name string

	// Logger is the optional logger. If nil, logging is disabled.
	Logger *slog.Logger
}

// Worker is a single-goroutine serial executor. It implements hal.Executor.
type Worker struct {
	name   string
	logger *slog.Logger

	mu        sync.Mutex
	queue     []func()
	accepting bool
	stopCh    chan struct{}

	notify    chan struct{}
	running   atomic.Bool
	processWg sync.WaitGroup

	processed atomic.Uint64
	panics    atomic.Uint64
}

// New creates a stopped worker.
func New(cfg Config) *Worker {
	name := cfg.Name
	if name == "" {
		name = "background"
	}
	return &Worker{
		name:   name,
		logger: cfg.Logger,
		notify: make(chan struct{}, 1),
	}
}

// Start starts the worker goroutine. It is a no-op if already running.
func (w *Worker) Start() {
	if w.running.Swap(true) {
		return
	}

	w.mu.Lock()
	w.accepting = true
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.mu.Unlock()

	w.processWg.Add(1)
	go w.processLoop(stopCh)
	w.debugLog("started")
}

// Stop stops intake, runs every task already queued and waits for the
// goroutine to exit. It is a no-op if not running. Stop must not be called
// from a task.
func (w *Worker) Stop() {
	if !w.running.Swap(false) {
		return
	}

	w.mu.Lock()
	w.accepting = false
	close(w.stopCh)
	w.mu.Unlock()

	w.processWg.Wait()
	w.debugLog("stopped", "processed", w.processed.Load())
}

// Running reports whether the worker accepts work.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.accepting
}

// Post queues fn. It returns false, and drops fn, once Stop has begun.
func (w *Worker) Post(fn func()) bool {
	if fn == nil {
		return false
	}

	w.mu.Lock()
	if !w.accepting {
		w.mu.Unlock()
		return false
	}
	w.queue = append(w.queue, fn)
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
	return true
}

// Pending returns the number of queued tasks not yet started.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Processed returns the number of tasks run so far, including panicked ones.
func (w *Worker) Processed() uint64 { return w.processed.Load() }

// Panics returns the number of tasks that panicked.
func (w *Worker) Panics() uint64 { return w.panics.Load() }

// Flush waits until every task queued before the call has run.
func (w *Worker) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if !w.Post(func() { close(done) }) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) processLoop(stopCh <-chan struct{}) {
	defer w.processWg.Done()

	for {
		if w.runBatch() {
			continue
		}
		select {
		case <-w.notify:
		case <-stopCh:
			for w.runBatch() {
			}
			return
		}
	}
}

// runBatch runs everything currently queued. It reports whether any task ran.
func (w *Worker) runBatch() bool {
	w.mu.Lock()
	batch := w.queue
	w.queue = nil
	w.mu.Unlock()

	for _, fn := range batch {
		w.run(fn)
	}
	return len(batch) > 0
}

func (w *Worker) run(fn func()) {
	defer func() {
		w.processed.Add(1)
		if r := recover(); r != nil {
			w.panics.Add(1)
			if w.logger != nil {
				w.logger.Error("worker: task panicked", "worker", w.name, "panic", r)
			}
		}
	}()
	fn()
}

// debugLog logs a debug message if logging is enabled.
func (w *Worker) debugLog(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Debug("worker: "+msg, append([]any{"worker", w.name}, args...)...)
	}
}
