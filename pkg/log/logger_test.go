package log

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// mockLogger records events for testing
type mockLogger struct {
	mu     sync.Mutex
	events []Event
}

func (m *mockLogger) Log(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func TestNoopLogger(t *testing.T) {
	var l Logger = NoopLogger{}
	l.Log(Event{SessionID: "x"})

	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Error("OrNoop(nil) should return NoopLogger")
	}
	m := &mockLogger{}
	if OrNoop(m) != Logger(m) {
		t.Error("OrNoop should return a non-nil logger unchanged")
	}
}

func TestMultiLoggerCallsAll(t *testing.T) {
	mock1 := &mockLogger{}
	mock2 := &mockLogger{}

	multi := NewMultiLogger(mock1, nil, mock2)
	if multi.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", multi.Len())
	}

	multi.Log(Event{Timestamp: time.Now(), SessionID: "s-1", Category: CategoryState})

	for i, mock := range []*mockLogger{mock1, mock2} {
		if len(mock.events) != 1 {
			t.Errorf("logger %d: got %d events, want 1", i, len(mock.events))
			continue
		}
		if mock.events[0].SessionID != "s-1" {
			t.Errorf("logger %d: SessionID = %q", i, mock.events[0].SessionID)
		}
	}
}

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test"+FileExt)

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

func TestFileLoggerWritesCBOR(t *testing.T) {
	path := createTestLogFile(t, []Event{
		{Timestamp: time.Now(), SessionID: "s-1", Category: CategoryAccess, Access: &AccessEvent{Name: "a"}},
	})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	event, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("file content is not a CBOR event: %v", err)
	}
	if event.Access == nil || event.Access.Name != "a" {
		t.Errorf("decoded event = %+v", event)
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := createTestLogFile(t, []Event{{Timestamp: time.Now(), SessionID: "first"}})

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	logger.Log(Event{Timestamp: time.Now(), SessionID: "second"})
	logger.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	events, err := DecodeAll(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].SessionID != "first" || events[1].SessionID != "second" {
		t.Errorf("events after append = %+v", events)
	}
}

func TestFileLoggerCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t"+FileExt)
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	if logger.Path() != path {
		t.Errorf("Path() = %q, want %q", logger.Path(), path)
	}

	logger.Log(Event{SessionID: "a"})
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
	logger.Log(Event{SessionID: "ignored"})

	written, dropped := logger.Stats()
	if written != 1 || dropped != 0 {
		t.Errorf("Stats() = %d, %d; want 1, 0", written, dropped)
	}
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c"+FileExt)
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				logger.Log(Event{Timestamp: time.Now(), SessionID: "s"})
			}
		}()
	}
	wg.Wait()
	logger.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	events, err := DecodeAll(f)
	if err != nil {
		t.Fatalf("interleaved writes corrupted the file: %v", err)
	}
	if len(events) != 200 {
		t.Errorf("got %d events, want 200", len(events))
	}
}

func TestFileLoggerBadPath(t *testing.T) {
	if _, err := NewFileLogger(filepath.Join(t.TempDir(), "missing", "x.vtlog")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestReaderFilters(t *testing.T) {
	base := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: base, SessionID: "a", Layer: LayerSession, Category: CategoryState, DeviceID: "0"},
		{Timestamp: base.Add(time.Second), SessionID: "a", Layer: LayerAccessor, Category: CategoryAccess, DeviceID: "0",
			Access: &AccessEvent{Name: "com.vendor.one"}},
		{Timestamp: base.Add(2 * time.Second), SessionID: "b", Layer: LayerAccessor, Category: CategoryAccess, DeviceID: "1",
			Access: &AccessEvent{Name: "com.vendor.two"}},
		{Timestamp: base.Add(3 * time.Second), SessionID: "b", Layer: LayerHAL, Category: CategoryError, DeviceID: "1"},
	}
	path := createTestLogFile(t, events)

	access := CategoryAccess
	hal := LayerHAL
	start := base.Add(time.Second)
	end := base.Add(3 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all", Filter{}, []string{"a", "a", "b", "b"}},
		{"session", Filter{SessionID: "b"}, []string{"b", "b"}},
		{"category", Filter{Category: &access}, []string{"a", "b"}},
		{"layer", Filter{Layer: &hal}, []string{"b"}},
		{"device", Filter{DeviceID: "0"}, []string{"a", "a"}},
		{"tag", Filter{TagName: "com.vendor.two"}, []string{"b"}},
		{"window", Filter{TimeStart: &start, TimeEnd: &end}, []string{"a", "b"}},
		{"no match", Filter{SessionID: "zzz"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			defer r.Close()

			var got []string
			for {
				e, err := r.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					t.Fatalf("Next failed: %v", err)
				}
				got = append(got, e.SessionID)
			}

			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event %d: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "none.vtlog")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestStreamReader(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	_ = enc.Encode(Event{SessionID: "x"})

	r := NewStreamReader(&buf, Filter{})
	e, err := r.Next()
	if err != nil || e.SessionID != "x" {
		t.Fatalf("Next() = %+v, %v", e, err)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next() at end = %v, want io.EOF", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestSlogAdapterLogsAccessEvent(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	adapter := NewSlogAdapter(slog.New(handler))

	adapter.Log(Event{
		Timestamp:  time.Now(),
		SessionID:  "s-123",
		Layer:      LayerAccessor,
		Category:   CategoryAccess,
		DeviceID:   "0",
		Generation: 2,
		Access: &AccessEvent{
			Op:       AccessRead,
			Registry: "Chars",
			Name:     "com.vendor.mode",
			Shape:    "BYTE/ARRAY",
			Value:    "0, 1",
		},
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	want := map[string]any{
		"msg":        "trace",
		"session_id": "s-123",
		"layer":      "ACCESSOR",
		"category":   "ACCESS",
		"device_id":  "0",
		"op":         "READ",
		"registry":   "Chars",
		"tag":        "com.vendor.mode",
		"shape":      "BYTE/ARRAY",
		"value":      "0, 1",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s: got %v, want %v", k, entry[k], v)
		}
	}
	if entry["generation"] != float64(2) {
		t.Errorf("generation: got %v, want 2", entry["generation"])
	}
}

func TestSlogAdapterLogsError(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	adapter := NewSlogAdapter(slog.New(handler))

	code := 3
	adapter.Log(Event{
		SessionID: "s",
		Category:  CategoryError,
		Error:     &ErrorEventData{Layer: LayerHAL, Message: "disabled", Code: &code, Context: "open"},
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["error_msg"] != "disabled" || entry["error_code"] != float64(3) || entry["error_context"] != "open" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if _, ok := entry["device_id"]; ok {
		t.Error("device_id should be omitted when empty")
	}
}

func TestSlogAdapterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	NewSlogAdapter(slog.New(handler)).Log(Event{SessionID: "s"})
	if buf.Len() != 0 {
		t.Errorf("debug trace written at info level: %q", buf.String())
	}
}
