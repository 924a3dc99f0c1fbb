// Package logview implements the vtprobe log subcommands that read
// recorded session traces.
package logview

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vtprobe/vtprobe-go/pkg/log"
)

// TimeLayout is the timestamp layout of the human-readable view.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [session:id] LAYER Type
	ts := event.Timestamp.UTC().Format(TimeLayout)
	fmt.Fprintf(w, "%s [session:%s] %-8s %s", ts, shortenID(event.SessionID), event.Layer.String(), typeLabel(event))
	if event.DeviceID != "" {
		fmt.Fprintf(w, " device=%s", event.DeviceID)
	}
	if event.Generation != 0 {
		fmt.Fprintf(w, " gen=%d", event.Generation)
	}
	fmt.Fprintln(w)

	switch {
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Access != nil:
		formatAccessDetails(w, event.Access)
	case event.Capture != nil:
		formatCaptureDetails(w, event.Capture)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// typeLabel names the payload carried by an event.
func typeLabel(event log.Event) string {
	switch {
	case event.StateChange != nil:
		return "State"
	case event.Access != nil:
		return "Access"
	case event.Capture != nil:
		return "Capture"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenID returns the first 8 characters of a session ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Trigger != "" {
		fmt.Fprintf(w, "  Trigger: %s\n", sc.Trigger)
	}
}

func formatAccessDetails(w io.Writer, a *log.AccessEvent) {
	fmt.Fprintf(w, "  %s %s[%s] (%s)\n", a.Op.String(), a.Registry, a.Name, a.Shape)
	if a.Failure != "" {
		fmt.Fprintf(w, "  Failure: %s\n", a.Failure)
	} else {
		fmt.Fprintf(w, "  Value: %s\n", a.Value)
	}
}

func formatCaptureDetails(w io.Writer, c *log.CaptureEvent) {
	if c.Completed {
		fmt.Fprintf(w, "  %s completed, %d entries\n", c.Kind.String(), c.Entries)
		return
	}
	fmt.Fprintf(w, "  %s submitted\n", c.Kind.String())
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// ParseLayerFlag parses a layer string from a command-line flag (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "hal":
		return log.LayerHAL, nil
	case "accessor":
		return log.LayerAccessor, nil
	case "session":
		return log.LayerSession, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be hal, accessor, or session)", s)
	}
}

// ParseCategoryFlag parses a category string from a command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	c, ok := log.ParseCategory(strings.ToUpper(s))
	if !ok {
		return 0, fmt.Errorf("invalid category: %s (must be state, access, capture, or error)", s)
	}
	return c, nil
}

// RunView prints every event of the trace at path that matches filter.
func RunView(path string, filter log.Filter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
	return nil
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}
