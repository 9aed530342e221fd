package output

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestSpinner_StartStop(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "waiting")
	s.interval = 5 * time.Millisecond

	s.Start()
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	out := buf.String()
	if !strings.Contains(out, "waiting") {
		t.Errorf("spinner never drew its message: %q", out)
	}
	if !strings.HasSuffix(out, "\r\033[K") {
		t.Errorf("spinner did not clear the line: %q", out)
	}

	// Stop waits for the goroutine, so the buffer must not change.
	n := buf.Len()
	time.Sleep(20 * time.Millisecond)
	if buf.Len() != n {
		t.Error("spinner wrote after Stop returned")
	}
}

func TestSpinner_StopTwice(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "x")

	s.Start()
	s.Stop()
	s.Stop()
}
