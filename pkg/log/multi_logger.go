package log

// MultiLogger forwards each event to every attached sink in order. The probe
// uses it to feed the .vtlog file and the debug console from one trace.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger attaches the non-nil loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{loggers: make([]Logger, 0, len(loggers))}
	for _, l := range loggers {
		if l == nil {
			continue
		}
		m.loggers = append(m.loggers, l)
	}
	return m
}

// Len reports how many sinks are attached.
func (m *MultiLogger) Len() int { return len(m.loggers) }

func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

var _ Logger = (*MultiLogger)(nil)
