package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtprobe/vtprobe-go/cmd/vtprobe/logview"
	"github.com/vtprobe/vtprobe-go/internal/config"
	"github.com/vtprobe/vtprobe-go/pkg/hal/sim"
	"github.com/vtprobe/vtprobe-go/pkg/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// isolate keeps config lookup away from the developer's files.
func isolate(t *testing.T) {
	t.Helper()
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

// run executes the root command with args and returns its output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	isolate(t)

	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(reset)
		for _, sub := range c.Commands() {
			sub.Flags().VisitAll(reset)
		}
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewAppStartsPreview(t *testing.T) {
	var out bytes.Buffer
	a, err := newApp(config.Defaults(), discardLogger(), &out)
	require.NoError(t, err)

	require.NoError(t, a.startPreview(context.Background()))
	assert.Equal(t, session.StateStreamActive, a.session.State())
	assert.True(t, a.worker.Running())

	require.NoError(t, a.Close())
	assert.Equal(t, session.StateClosed, a.session.State())
	assert.False(t, a.worker.Running())
	assert.Contains(t, out.String(), "Preview repeating started.")
}

func TestNewAppDeniedPermission(t *testing.T) {
	cfg := config.Defaults()
	cfg.DenyPermission = true

	var out bytes.Buffer
	a, err := newApp(cfg, discardLogger(), &out)
	require.NoError(t, err)
	defer a.Close()

	err = a.startPreview(context.Background())
	assert.ErrorIs(t, err, session.ErrPermissionDenied)
	assert.Contains(t, out.String(), "Permission denied.")
}

func TestNewAppMissingProfile(t *testing.T) {
	cfg := config.Defaults()
	cfg.Profile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := newApp(cfg, discardLogger(), io.Discard)
	var le *sim.LoadError
	require.True(t, errors.As(err, &le), "got %v", err)
	assert.Equal(t, cfg.Profile, le.File)
}

func TestNewAppProfileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`devices:
  - id: "7"
    characteristics:
      - name: vendor.only
        type: int64
        value: 42
`), 0o644))

	cfg := config.Defaults()
	cfg.Profile = path
	a, err := newApp(cfg, discardLogger(), io.Discard)
	require.NoError(t, err)
	defer a.Close()

	ids, err := a.cameras.DeviceIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, ids)
}

func TestNewAppEventLog(t *testing.T) {
	cfg := config.Defaults()
	cfg.EventLog = filepath.Join(t.TempDir(), "probe.vtlog")

	a, err := newApp(cfg, discardLogger(), io.Discard)
	require.NoError(t, err)
	require.NoError(t, a.startPreview(context.Background()))
	traceID := a.session.TraceID()
	require.NoError(t, a.Close())

	stats, err := logview.CollectStats(cfg.EventLog)
	require.NoError(t, err)
	require.Contains(t, stats.Sessions, traceID)
	assert.Positive(t, stats.Sessions[traceID].Events)
	assert.True(t, stats.Sessions[traceID].Devices["0"])
}

func TestReadCharsCommand(t *testing.T) {
	out, err := run(t, "read", "chars", "--tag", "com.kdiwin.control.source.max_resolution:int32[]")
	require.NoError(t, err)
	assert.Contains(t, out, "READ CHARS")
	assert.Contains(t, out, "Chars[com.kdiwin.control.source.max_resolution] (INT32/ARRAY) => 1920, 1080")
}

func TestReadCharsOtherDevice(t *testing.T) {
	out, err := run(t, "read", "chars", "--device", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Chars[com.kdiwin.control.source.available_input_sources] (BYTE/SINGLE) => 3")
}

func TestReadRequestCommand(t *testing.T) {
	out, err := run(t, "read", "request", "--tag", "com.kdiwin.control.source.window:int32[]")
	require.NoError(t, err)
	assert.Contains(t, out, "Request[com.kdiwin.control.source.window] (INT32/ARRAY) => 0, 0, 1280, 720")
	assert.Contains(t, out, "Device closed.")
}

func TestReadInvalidRegistry(t *testing.T) {
	_, err := run(t, "read", "frames")
	assert.Error(t, err)
}

func TestWriteCommand(t *testing.T) {
	out, err := run(t, "write", "--tag", "com.kdiwin.control.source.window:int32[]", "1,2,3,4")
	require.NoError(t, err)
	assert.Contains(t, out, "Set Request int[]: com.kdiwin.control.source.window = 1, 2, 3, 4")
	assert.Contains(t, out, "Re-applied repeating request with vendor tag.")
}

func TestWriteCommandParseError(t *testing.T) {
	_, err := run(t, "write", "--tag", "com.kdiwin.control.source.window:int32[]", "1,x")
	assert.Error(t, err)
}

func TestDumpCommand(t *testing.T) {
	out, err := run(t, "dump")
	require.NoError(t, err)
	assert.Contains(t, out, "==== DeviceId: 0 ====")
	assert.Contains(t, out, "android.info.version [string]: sim 1.0")
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vtprobe.yaml")
	out, err := run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	out, err = run(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "# "+path)
	assert.Contains(t, out, "device_id: \"0\"")
}

func TestInvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cardinality: pair\n"), 0o644))

	_, err := run(t, "dump", "--config", path)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestLogCommands(t *testing.T) {
	trace := filepath.Join(t.TempDir(), "probe.vtlog")
	_, err := run(t, "write", "--event-log", trace, "--tag", "com.kdiwin.control.source.input:byte", "2")
	require.NoError(t, err)

	out, err := run(t, "log", "stats", trace)
	require.NoError(t, err)
	assert.Contains(t, out, "Sessions: 1")

	out, err = run(t, "log", "view", "--category", "access", trace)
	require.NoError(t, err)
	assert.Contains(t, out, "WRITE Request[com.kdiwin.control.source.input] (BYTE/SINGLE)")
	assert.NotContains(t, out, "State")

	filtered := filepath.Join(t.TempDir(), "state.vtlog")
	out, err = run(t, "log", "filter", "--category", "state", "-o", filtered, trace)
	require.NoError(t, err)
	assert.Contains(t, out, "events to "+filtered)

	_, err = run(t, "log", "filter", trace)
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent of testing.T.Chdir in Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}
