package log

import (
	"bytes"
	"testing"
	"time"
)

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 10, 17, 10, 15, 32, 123456789, time.UTC)
	original := Event{
		Timestamp:  ts,
		SessionID:  "abc12345-def6-7890-abcd-ef1234567890",
		Layer:      LayerSession,
		Category:   CategoryState,
		DeviceID:   "0",
		Generation: 3,
		StateChange: &StateChangeEvent{
			OldState: "OPENING",
			NewState: "OPEN",
			Trigger:  "OPENED",
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.SessionID != original.SessionID {
		t.Errorf("SessionID: got %q, want %q", decoded.SessionID, original.SessionID)
	}
	if decoded.Layer != original.Layer {
		t.Errorf("Layer: got %v, want %v", decoded.Layer, original.Layer)
	}
	if decoded.Category != original.Category {
		t.Errorf("Category: got %v, want %v", decoded.Category, original.Category)
	}
	if decoded.DeviceID != original.DeviceID {
		t.Errorf("DeviceID: got %q, want %q", decoded.DeviceID, original.DeviceID)
	}
	if decoded.Generation != original.Generation {
		t.Errorf("Generation: got %d, want %d", decoded.Generation, original.Generation)
	}
	if decoded.StateChange == nil {
		t.Fatal("StateChange is nil")
	}
	if *decoded.StateChange != *original.StateChange {
		t.Errorf("StateChange: got %+v, want %+v", *decoded.StateChange, *original.StateChange)
	}
}

func TestAccessEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp: time.Now(),
		SessionID: "s-1",
		Layer:     LayerAccessor,
		Category:  CategoryAccess,
		Access: &AccessEvent{
			Op:       AccessWrite,
			Registry: "Request",
			Name:     "com.vendor.mode",
			Shape:    "INT32/ARRAY",
			Value:    "1, 2, 3",
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Access == nil {
		t.Fatal("Access is nil")
	}
	if *decoded.Access != *original.Access {
		t.Errorf("Access: got %+v, want %+v", *decoded.Access, *original.Access)
	}
	if decoded.StateChange != nil || decoded.Capture != nil || decoded.Error != nil {
		t.Error("unexpected payloads set after decode")
	}
}

func TestErrorEventCBORRoundTrip(t *testing.T) {
	code := 4
	original := Event{
		Timestamp: time.Now(),
		SessionID: "s-1",
		Layer:     LayerHAL,
		Category:  CategoryError,
		Error: &ErrorEventData{
			Layer:   LayerHAL,
			Message: "device error",
			Code:    &code,
			Context: "open",
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Error == nil || decoded.Error.Code == nil {
		t.Fatal("Error payload or code missing")
	}
	if *decoded.Error.Code != 4 {
		t.Errorf("Code: got %d, want 4", *decoded.Error.Code)
	}
	if decoded.Error.Context != "open" {
		t.Errorf("Context: got %q, want %q", decoded.Error.Context, "open")
	}
}

func TestEncodingIsDeterministic(t *testing.T) {
	event := Event{
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		SessionID: "s",
		Capture:   &CaptureEvent{Kind: CaptureSingle, Entries: 5, Completed: true},
	}

	a, err := EncodeEvent(event)
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncodeEvent(event)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("encoding is not deterministic")
	}
}

func TestDecodeAll(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, id := range []string{"a", "b", "c"} {
		if err := enc.Encode(Event{Timestamp: time.Now(), SessionID: id}); err != nil {
			t.Fatal(err)
		}
	}

	events, err := DecodeAll(&buf)
	if err != nil {
		t.Fatalf("DecodeAll failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[2].SessionID != "c" {
		t.Errorf("events[2].SessionID = %q, want %q", events[2].SessionID, "c")
	}
}

func TestDecodeAllTruncated(t *testing.T) {
	data, err := EncodeEvent(Event{Timestamp: time.Now(), SessionID: "a"})
	if err != nil {
		t.Fatal(err)
	}
	stream := append(append([]byte{}, data...), data[:len(data)/2]...)

	events, err := DecodeAll(bytes.NewReader(stream))
	if err == nil {
		t.Fatal("expected error for truncated stream")
	}
	if len(events) != 1 {
		t.Errorf("got %d events before error, want 1", len(events))
	}
}
