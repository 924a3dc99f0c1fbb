package report

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 10, 17, 9, 5, 7, 42_000_000, time.Local)
	return func() time.Time { return t }
}

func TestLineFormat(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, WithClock(fixedClock()))

	r.Println("Camera opened.")
	r.Separator("READ CHARS")
	r.Debugf("Chars[%s] (%s) => %s", "a.b", "BYTE/SINGLE", "7")
	r.Errorf("dumpAll: %s", "boom")

	want := "[09:05:07.042] Camera opened.\n" +
		"[09:05:07.042] ---------------- READ CHARS ----------------\n" +
		"[09:05:07.042] [DEBUG] Chars[a.b] (BYTE/SINGLE) => 7\n" +
		"[09:05:07.042] [ERROR] dumpAll: boom\n"
	if buf.String() != want {
		t.Errorf("output:\n%s\nwant:\n%s", buf.String(), want)
	}
	if r.Len() != 4 {
		t.Errorf("Len() = %d, want 4", r.Len())
	}
}

func TestMultilineSplits(t *testing.T) {
	r := New(nil, WithClock(fixedClock()))
	r.Println("one\ntwo")

	texts := r.Texts()
	if len(texts) != 2 || texts[0] != "one" || texts[1] != "two" {
		t.Errorf("Texts() = %q", texts)
	}
}

func TestLimit(t *testing.T) {
	r := New(nil, WithLimit(2))
	r.Println("a")
	r.Println("b")
	r.Println("c")

	texts := r.Texts()
	if len(texts) != 2 || texts[0] != "b" || texts[1] != "c" {
		t.Errorf("Texts() = %q, want [b c]", texts)
	}

	r.Clear()
	if r.Len() != 0 {
		t.Errorf("Len() after Clear = %d", r.Len())
	}
}

func TestMirrorToSlog(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	r := New(nil, WithLogger(logger))
	r.Println("Preview repeating started.")

	if !strings.Contains(logBuf.String(), "Preview repeating started.") {
		t.Errorf("line not mirrored to slog: %q", logBuf.String())
	}
}

func TestSetOutput(t *testing.T) {
	var a, b bytes.Buffer
	r := New(&a)
	r.Println("first")
	r.SetOutput(&b)
	r.Println("second")

	if !strings.Contains(a.String(), "first") || strings.Contains(a.String(), "second") {
		t.Errorf("first writer got %q", a.String())
	}
	if !strings.Contains(b.String(), "second") {
		t.Errorf("second writer got %q", b.String())
	}
}

func TestConcurrentPrint(t *testing.T) {
	r := New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.Printf("line %d", j)
			}
		}()
	}
	wg.Wait()

	if r.Len() != 400 {
		t.Errorf("Len() = %d, want 400", r.Len())
	}
}
