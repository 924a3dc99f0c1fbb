package log

// Logger is the sink for session trace events. The session manager and the
// inspector emit through it; a nil Logger turns tracing off.
type Logger interface {
	// Log is called from the callback worker as well as the operator
	// goroutine, so it must be safe for concurrent use and return quickly.
	Log(event Event)
}

// NoopLogger drops every event.
type NoopLogger struct{}

func (NoopLogger) Log(Event) {}

// OrNoop substitutes NoopLogger for a nil Logger.
func OrNoop(l Logger) Logger {
	if l == nil {
		return NoopLogger{}
	}
	return l
}

var _ Logger = NoopLogger{}
