// Package diag is the kernel's diagnostic sink: a fatal-panic path for
// invariant violations, and a non-fatal logger for the operational
// messages the core emits under a Debug configuration. It is an
// io.Writer-backed device with its own lock, in the same shape as any
// other textual-output peripheral.
package diag

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Sink is where fatal diagnostics and non-fatal operational messages go.
// The default Sink writes to an internal *log.Logger over os.Stderr;
// tests substitute their own to assert on invariant-violation messages
// without calling the real os.Exit-free panic.
type Sink struct {
	mu     sync.Mutex
	logger *log.Logger
	// panicFunc is called by Panic instead of the builtin panic when set,
	// letting tests observe a fatal diagnosis without unwinding the test
	// goroutine.
	panicFunc func(string)
}

// New creates a Sink writing to w as a plain textual stream, no structured
// fields, matching a simple log.Printf-only logging register. A nil w
// defaults to os.Stderr — log.New happily wraps a nil io.Writer into a
// non-nil *log.Logger, which would otherwise turn every fatal diagnosis
// into an unrelated nil-pointer write instead of the intended message.
func New(w io.Writer) *Sink {
	if w == nil {
		w = os.Stderr
	}
	return &Sink{logger: log.New(w, "", log.LstdFlags)}
}

// SetPanicFunc overrides the fatal path. Intended for tests that need to
// assert a specific invariant violation was detected, not for production
// use — the core does not prescribe the sink's behavior beyond "does not
// return", so production callers should leave this unset and let
// Panic actually panic.
func (s *Sink) SetPanicFunc(fn func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panicFunc = fn
}

// Logf records a non-fatal diagnostic message (vector registration,
// request-queue overflow, priority boosts under Debug).
func (s *Sink) Logf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Printf(format, args...)
}

// Panic reports a fatal invariant violation. With no panicFunc installed
// it never returns: the builtin panic unwinds the goroutine. With one
// installed, Panic calls it instead and returns whenever it returns. The
// message collapses a where/reason pair into one string,
// since Go callers already get a stack trace from panic itself.
func (s *Sink) Panic(where, reason string) {
	s.mu.Lock()
	fn := s.panicFunc
	logger := s.logger
	s.mu.Unlock()

	msg := fmt.Sprintf("kernel: fatal invariant violation in %s: %s", where, reason)
	if logger != nil {
		logger.Print(msg)
	}
	if fn != nil {
		fn(msg)
		return
	}
	panic(msg)
}
