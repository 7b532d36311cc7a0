package diag

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogfWritesToSink(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)
	s.Logf("vector %d registered", 3)
	if !strings.Contains(buf.String(), "vector 3 registered") {
		t.Fatalf("expected Logf message in sink output, got %q", buf.String())
	}
}

func TestPanicInvokesInstalledPanicFunc(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)

	var got string
	s.SetPanicFunc(func(msg string) { got = msg })

	s.Panic("BlockCurrent", "caller is not the Running thread")
	if !strings.Contains(got, "BlockCurrent") || !strings.Contains(got, "caller is not the Running thread") {
		t.Fatalf("expected panicFunc to receive the where/reason message, got %q", got)
	}
	if !strings.Contains(buf.String(), "fatal invariant violation") {
		t.Fatalf("expected the fatal message to also reach the writer, got %q", buf.String())
	}
}

// TestNewDefaultsNilWriterToStderr guards against New(nil) producing a
// *log.Logger wrapping a nil io.Writer: log.New never rejects a nil
// io.Writer, so a Sink built that way would only discover the problem the
// first time Panic tried to write through it.
func TestNewDefaultsNilWriterToStderr(t *testing.T) {
	s := New(nil)

	var got string
	s.SetPanicFunc(func(msg string) { got = msg })
	s.Panic("SuspendSelf", "current thread not Running")
	if !strings.Contains(got, "SuspendSelf") {
		t.Fatalf("expected panicFunc to fire even with a nil writer, got %q", got)
	}
}
