package interactive

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtprobe/vtprobe-go/pkg/hal/sim"
	"github.com/vtprobe/vtprobe-go/pkg/inspect"
	"github.com/vtprobe/vtprobe-go/pkg/report"
	"github.com/vtprobe/vtprobe-go/pkg/session"
	"github.com/vtprobe/vtprobe-go/pkg/tag"
	"github.com/vtprobe/vtprobe-go/pkg/worker"
)

const sourcesName = "com.kdiwin.control.source.available_input_sources"

type fixture struct {
	cameras  *sim.Manager
	worker   *worker.Worker
	mgr      *session.Manager
	reporter *report.Reporter
	out      *bytes.Buffer
	shell    *Shell
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		cameras:  sim.NewManager(sim.DefaultProfile(), nil),
		worker:   worker.New(worker.Config{Name: "shell-test"}),
		reporter: report.New(nil),
		out:      &bytes.Buffer{},
	}

	mgr, err := session.NewManager(session.Config{
		Cameras:  f.cameras,
		Executor: f.worker,
		Surface:  sim.NewSurface("preview"),
		Reporter: f.reporter,
	})
	require.NoError(t, err)
	f.mgr = mgr

	insp, err := inspect.NewInspector(inspect.Config{
		Cameras:  f.cameras,
		Session:  mgr,
		Reporter: f.reporter,
	})
	require.NoError(t, err)

	f.shell, err = New(Config{
		Session:       mgr,
		Worker:        f.worker,
		Inspector:     insp,
		Reporter:      f.reporter,
		Simulator:     f.cameras,
		Value:         "0",
		SettleTimeout: 2 * time.Second,
		Out:           f.out,
	})
	require.NoError(t, err)

	t.Cleanup(f.shell.shutdown)
	return f
}

func (f *fixture) exec(t *testing.T, line string) {
	t.Helper()
	require.True(t, f.shell.Exec(context.Background(), line), "command %q asked to quit", line)
}

// flush waits until every queued callback has run.
func (f *fixture) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.worker.Flush(ctx))
}

func (f *fixture) open(t *testing.T) {
	t.Helper()
	f.exec(t, "open")
	require.Equal(t, session.StateStreamActive, f.mgr.State())
	f.flush(t)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewDefaults(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, session.DefaultDeviceID, f.shell.deviceID)
	assert.Equal(t, tag.DefaultName, f.shell.spec.Name)
	assert.Equal(t, tag.Byte, f.shell.spec.Type)

	s, err := New(Config{Session: f.mgr, Worker: f.worker, Inspector: f.shell.inspector, Reporter: f.reporter})
	require.NoError(t, err)
	assert.Equal(t, DefaultSettleTimeout, s.settle)
}

func TestEmptyLineAndUnknownCommand(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "   ")
	assert.Empty(t, f.out.String())

	f.exec(t, "frobnicate")
	assert.Contains(t, f.out.String(), "Unknown command: frobnicate")
}

func TestOpenStartsWorkerAndPreview(t *testing.T) {
	f := newFixture(t)
	require.False(t, f.worker.Running())

	f.open(t)

	assert.True(t, f.worker.Running())
	texts := f.reporter.Texts()
	assert.Contains(t, texts, "Opening deviceId=0")
	assert.Contains(t, texts, "Device opened.")
	assert.Contains(t, texts, "Preview repeating started.")
}

func TestOpenTwiceReportsState(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	f.exec(t, "open")
	assert.Contains(t, f.out.String(), "Already open (STREAM_ACTIVE).")
}

func TestCloseStopsWorker(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	f.exec(t, "close")

	assert.Equal(t, session.StateClosed, f.mgr.State())
	assert.False(t, f.worker.Running())
	assert.Contains(t, f.reporter.Texts(), "Device closed.")

	// Reopen after pause.
	f.open(t)
	assert.Equal(t, 2, f.cameras.Opens())
}

func TestQuitClosesEverything(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	assert.False(t, f.shell.Exec(context.Background(), "quit"))
	assert.Equal(t, session.StateClosed, f.mgr.State())
	assert.False(t, f.worker.Running())
}

func TestReadChars(t *testing.T) {
	f := newFixture(t)

	f.exec(t, "read chars")

	texts := f.reporter.Texts()
	assert.Contains(t, texts, report.SeparatorText(inspect.SectionReadChars))
	assert.Contains(t, texts, "[DEBUG] Chars["+sourcesName+"] (BYTE/ARRAY) => 0, 1, 2, 3")
}

func TestReadCharsTarget(t *testing.T) {
	f := newFixture(t)

	f.exec(t, "read chars com.kdiwin.control.source.max_resolution:int32[]")
	assert.Contains(t, f.reporter.Texts(), "[DEBUG] Chars[com.kdiwin.control.source.max_resolution] (INT32/ARRAY) => 1920, 1080")

	// The selection is unchanged by a one-off target.
	assert.Equal(t, tag.DefaultName, f.shell.spec.Name)
}

func TestReadUsage(t *testing.T) {
	f := newFixture(t)

	f.exec(t, "read")
	assert.Contains(t, f.out.String(), "Usage: read chars|result|request")

	f.exec(t, "read frames")
	assert.Contains(t, f.out.String(), "Invalid registry")

	f.exec(t, "read chars a:double")
	assert.Contains(t, f.out.String(), "Invalid target")
}

func TestReadResultWithoutPreview(t *testing.T) {
	f := newFixture(t)

	f.exec(t, "read result")
	assert.Contains(t, f.reporter.Texts(), "No active camera session. Start preview first.")
}

func TestReadResultCapturesFrame(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	f.exec(t, "read result com.kdiwin.control.source.status")
	texts := f.reporter.Texts()
	assert.Contains(t, texts, "Capturing 1 frame to read CaptureResult...")
	assert.Contains(t, texts, "[DEBUG] Result[com.kdiwin.control.source.status] (BYTE/SINGLE) => 1")
}

func TestWriteAndReadRequest(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	f.exec(t, "set tag com.kdiwin.control.source.window:int32[]")
	f.exec(t, "write 10, 20, 30, 40")
	f.exec(t, "read request")

	texts := f.reporter.Texts()
	assert.Contains(t, texts, "[DEBUG] Set Request int[]: com.kdiwin.control.source.window = 10, 20, 30, 40")
	assert.Contains(t, texts, "[DEBUG] Re-applied repeating request with vendor tag.")
	assert.Contains(t, texts, "[DEBUG] Request[com.kdiwin.control.source.window] (INT32/ARRAY) => 10, 20, 30, 40")
}

func TestWriteUsesConfiguredValue(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	f.exec(t, "set tag com.kdiwin.control.source.input:byte")
	f.exec(t, "set value 7")
	f.exec(t, "write")

	assert.Contains(t, f.reporter.Texts(), "[DEBUG] Set Request byte: com.kdiwin.control.source.input = 7")
}

func TestWriteWithoutPreview(t *testing.T) {
	f := newFixture(t)

	f.exec(t, "write 1")
	assert.Contains(t, f.reporter.Texts(), "No active preview. Start preview first.")
}

func TestSet(t *testing.T) {
	tests := []struct {
		line  string
		check func(t *testing.T, s *Shell)
	}{
		{"set name vendor.a", func(t *testing.T, s *Shell) { assert.Equal(t, "vendor.a", s.spec.Name) }},
		{"set type int64", func(t *testing.T, s *Shell) { assert.Equal(t, tag.Int64, s.spec.Type) }},
		{"set card array", func(t *testing.T, s *Shell) { assert.Equal(t, tag.Array, s.spec.Cardinality) }},
		{"set value 1, 2", func(t *testing.T, s *Shell) { assert.Equal(t, "1, 2", s.value) }},
		{"set device 1", func(t *testing.T, s *Shell) { assert.Equal(t, "1", s.deviceID) }},
		{"set tag vendor.b:float:array", func(t *testing.T, s *Shell) {
			assert.Equal(t, tag.TagSpec{Name: "vendor.b", Type: tag.Float, Cardinality: tag.Array}, s.spec)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			f := newFixture(t)
			f.exec(t, tt.line)
			tt.check(t, f.shell)
			assert.Contains(t, f.out.String(), "Tag: ")
		})
	}
}

func TestSetErrors(t *testing.T) {
	f := newFixture(t)
	before := f.shell.spec

	for _, line := range []string{"set", "set type", "set type double", "set card pair", "set tag :int32", "set colour red"} {
		f.exec(t, line)
	}
	assert.Equal(t, before, f.shell.spec)

	out := f.out.String()
	assert.Contains(t, out, "Usage: set")
	assert.Contains(t, out, "Invalid type")
	assert.Contains(t, out, "Invalid cardinality")
	assert.Contains(t, out, "Invalid target")
	assert.Contains(t, out, "Unknown setting: colour")
}

func TestDump(t *testing.T) {
	f := newFixture(t)

	f.exec(t, "dump")

	texts := f.reporter.Texts()
	assert.Contains(t, texts, "==== DeviceId: 0 ====")
	assert.Contains(t, texts, "==== DeviceId: 1 ====")
	assert.Contains(t, texts, "com.kdiwin.internal.calibration [byte[]]: <error>")
}

func TestNamesAndVendor(t *testing.T) {
	f := newFixture(t)

	f.exec(t, "names android.info")
	out := f.out.String()
	assert.Contains(t, out, "android.info.supportedHardwareLevel")
	assert.Contains(t, out, "android.info.version")
	assert.NotContains(t, out, sourcesName)

	f.out.Reset()
	f.exec(t, "vendor")
	out = f.out.String()
	assert.Contains(t, out, sourcesName)
	assert.NotContains(t, out, "android.lens.facing")

	f.out.Reset()
	f.exec(t, "names zzz")
	assert.Contains(t, f.out.String(), "No matching names.")
}

func TestForget(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "read chars")
	require.Equal(t, 1, f.shell.inspector.Cached())

	f.exec(t, "forget")
	assert.Equal(t, 0, f.shell.inspector.Cached())
}

func TestSimDisconnect(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	f.exec(t, "sim disconnect")
	f.flush(t)

	assert.Equal(t, session.StateClosed, f.mgr.State())
	assert.Contains(t, f.reporter.Texts(), "Device disconnected.")
}

func TestSimError(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	f.exec(t, "sim error 4")
	f.flush(t)

	assert.Equal(t, session.StateClosed, f.mgr.State())
	assert.Contains(t, f.reporter.Texts(), "Device error: 4")
}

func TestSimUsage(t *testing.T) {
	f := newFixture(t)

	f.exec(t, "sim disconnect")
	assert.Contains(t, f.out.String(), "No open device.")

	f.open(t)
	f.exec(t, "sim")
	f.exec(t, "sim error")
	f.exec(t, "sim error x")
	f.exec(t, "sim melt")

	out := f.out.String()
	assert.Contains(t, out, "Usage: sim disconnect")
	assert.Contains(t, out, "Usage: sim error <code>")
	assert.Contains(t, out, "Invalid code")
	assert.Contains(t, out, "Unknown sim command: melt")
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	f.exec(t, "status")

	out := f.out.String()
	assert.Contains(t, out, "State:      STREAM_ACTIVE")
	assert.Contains(t, out, "Open:       0 (generation 1)")
	assert.Contains(t, out, "Worker:     running=true")
	assert.Contains(t, out, "Trace ID:   "+f.mgr.TraceID())
}

func TestHelp(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "help")
	assert.Contains(t, f.out.String(), "vtprobe Commands:")
	assert.Contains(t, f.out.String(), "read result [target]")
}

func TestCompleterTypes(t *testing.T) {
	f := newFixture(t)

	line := []rune("set type ")
	got, _ := f.shell.completer().Do(line, len(line))

	var items []string
	for _, c := range got {
		items = append(items, strings.TrimSpace(string(c)))
	}
	assert.Equal(t, []string{"byte", "int32", "int64", "float"}, items)
}

func TestCompleterNames(t *testing.T) {
	f := newFixture(t)

	line := []rune("read chars com.kdiwin.control.source.max")
	got, _ := f.shell.completer().Do(line, len(line))

	require.Len(t, got, 1)
	assert.Equal(t, "_resolution", strings.TrimSpace(string(got[0])))
}
