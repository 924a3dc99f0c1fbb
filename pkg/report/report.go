// Package report is the operator-facing result surface: a timestamped line
// log that every probe operation appends to.
package report

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// TimeLayout is the timestamp prefix format of report lines.
const TimeLayout = "15:04:05.000"

// Line is one report line.
type Line struct {
	Time time.Time
	Text string
}

// String renders the line as "[HH:MM:SS.mmm] text".
func (l Line) String() string {
	return "[" + l.Time.Format(TimeLayout) + "] " + l.Text
}

// SeparatorText renders a section separator.
func SeparatorText(title string) string {
	return "---------------- " + title + " ----------------"
}

// Reporter collects report lines and echoes them to a writer.
// It is safe for concurrent use: lifecycle lines arrive from the HAL
// callback worker while the operator issues commands.
type Reporter struct {
	mu     sync.Mutex
	out    io.Writer
	logger *slog.Logger
	now    func() time.Time
	lines  []Line
	limit  int
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithLogger mirrors every line to logger at Info level.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reporter) { r.logger = logger }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

// WithLimit keeps only the most recent n lines in memory. Zero keeps all.
func WithLimit(n int) Option {
	return func(r *Reporter) { r.limit = n }
}

// New creates a Reporter writing to out. A nil out only records lines.
func New(out io.Writer, opts ...Option) *Reporter {
	r := &Reporter{out: out, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Println appends one line.
func (r *Reporter) Println(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, part := range strings.Split(text, "\n") {
		r.appendLocked(Line{Time: r.now(), Text: part})
	}
}

// Printf appends one formatted line.
func (r *Reporter) Printf(format string, args ...any) {
	r.Println(fmt.Sprintf(format, args...))
}

// Debugf appends a "[DEBUG]"-prefixed diagnostic line.
func (r *Reporter) Debugf(format string, args ...any) {
	r.Println("[DEBUG] " + fmt.Sprintf(format, args...))
}

// Errorf appends an "[ERROR]"-prefixed line.
func (r *Reporter) Errorf(format string, args ...any) {
	r.Println("[ERROR] " + fmt.Sprintf(format, args...))
}

// Separator appends a section separator line.
func (r *Reporter) Separator(title string) {
	r.Println(SeparatorText(title))
}

// Lines returns a copy of the recorded lines.
func (r *Reporter) Lines() []Line {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Line, len(r.lines))
	copy(out, r.lines)
	return out
}

// Texts returns the recorded line texts without timestamps.
func (r *Reporter) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	for i, l := range r.lines {
		out[i] = l.Text
	}
	return out
}

// Len returns the number of recorded lines.
func (r *Reporter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}

// Clear drops all recorded lines.
func (r *Reporter) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = nil
}

// SetOutput redirects the echo writer. The interactive shell swaps in its
// readline writer so lines do not clobber the prompt.
func (r *Reporter) SetOutput(out io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = out
}

func (r *Reporter) appendLocked(l Line) {
	r.lines = append(r.lines, l)
	if r.limit > 0 && len(r.lines) > r.limit {
		r.lines = r.lines[len(r.lines)-r.limit:]
	}
	if r.out != nil {
		fmt.Fprintln(r.out, l.String())
	}
	if r.logger != nil {
		r.logger.Info(l.Text)
	}
}
