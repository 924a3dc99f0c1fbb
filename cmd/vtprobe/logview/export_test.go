package logview

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/vtprobe/vtprobe-go/pkg/log"
)

func exportEvents() []log.Event {
	ts := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	return []log.Event{
		{
			Timestamp: ts, SessionID: testSession, Layer: log.LayerSession, Category: log.CategoryState,
			DeviceID: "0", Generation: 1,
			StateChange: &log.StateChangeEvent{OldState: "CLOSED", NewState: "OPENING"},
		},
		{
			Timestamp: ts.Add(time.Second), SessionID: testSession, Layer: log.LayerAccessor, Category: log.CategoryAccess,
			DeviceID: "0", Generation: 1,
			Access: &log.AccessEvent{Op: log.AccessRead, Registry: "Chars", Name: "x.y.z", Shape: "BYTE/SINGLE", Failure: "NOT_EXPOSED"},
		},
	}
}

func TestExportToJSONL(t *testing.T) {
	path := createTestTrace(t, exportEvents())

	var buf bytes.Buffer
	if err := RunExport(path, "jsonl", log.Filter{}, &buf); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", len(lines), buf.String())
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if first["SessionID"] != testSession {
		t.Errorf("SessionID = %v", first["SessionID"])
	}
	sc, ok := first["StateChange"].(map[string]any)
	if !ok || sc["NewState"] != "OPENING" {
		t.Errorf("StateChange = %v", first["StateChange"])
	}
}

func TestExportToCSV(t *testing.T) {
	path := createTestTrace(t, exportEvents())

	var buf bytes.Buffer
	if err := RunExport(path, "csv", log.Filter{}, &buf); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	if strings.Join(records[0], ",") != strings.Join(csvHeader, ",") {
		t.Errorf("header = %v", records[0])
	}

	state := records[1]
	if state[2] != "SESSION" || state[3] != "STATE" || state[6] != "State" || state[8] != "CLOSED->OPENING" {
		t.Errorf("state row = %v", state)
	}
	access := records[2]
	if access[5] != "1" || access[7] != "x.y.z" || access[8] != "NOT_EXPOSED" {
		t.Errorf("access row = %v", access)
	}
}

func TestExportAppliesFilter(t *testing.T) {
	path := createTestTrace(t, exportEvents())
	layer := log.LayerAccessor

	var buf bytes.Buffer
	if err := RunExport(path, "jsonl", log.Filter{Layer: &layer}, &buf); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 1 {
		t.Errorf("expected 1 line, got %d", n)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestTrace(t, exportEvents())
	err := RunExport(path, "xml", log.Filter{}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("expected unknown format error, got %v", err)
	}
}
