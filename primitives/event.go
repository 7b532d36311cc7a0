package primitives

import (
	"sync"

	"github.com/zhaojiahai/trochili/kernel"
)

// WaitMode selects how Event.Wait tests its requested mask against the
// current flags.
type WaitMode int

const (
	// WaitAny is satisfied when any requested bit is set.
	WaitAny WaitMode = iota
	// WaitAll is satisfied only when every requested bit is set.
	WaitAll
)

func matchMask(flags, mask uint32, mode WaitMode) bool {
	if mode == WaitAll {
		return flags&mask == mask
	}
	return flags&mask != 0
}

type eventRequest struct {
	mask    uint32
	mode    WaitMode
	consume bool
	result  uint32
}

// Event is a 32-bit group of flags threads wait on in OR or AND mode,
// optionally consuming (clearing) the matched bits on a successful wait.
// Set can satisfy several differently-masked waiters in one call, which
// is why it walks the wait queue with UnblockMatching rather than waking
// only the head.
type Event struct {
	k  *kernel.Kernel
	wq kernel.WaitQueue

	mu      sync.Mutex
	flags   uint32
	waiters map[*kernel.IPCContext]*eventRequest
}

// NewEvent allocates an event-flag group starting at initial.
func NewEvent(k *kernel.Kernel, initial uint32) *Event {
	return &Event{
		k:       k,
		wq:      kernel.WaitQueue{Property: kernel.QueueProperty{PrimaryPolicy: kernel.FIFO}},
		flags:   initial,
		waiters: make(map[*kernel.IPCContext]*eventRequest),
	}
}

// Wait blocks the calling thread for up to ticks kernel ticks (ticks <= 0
// waits forever) until mask is satisfied per mode, returning the flag
// value observed at the moment of match. If consume is set, the matched
// bits (the whole mask for WaitAll, just the set overlap for WaitAny) are
// cleared atomically with the match.
func (e *Event) Wait(mask uint32, mode WaitMode, consume bool, ticks int) (uint32, kernel.State, kernel.Error) {
	current := e.k.Current()

	e.mu.Lock()
	if matchMask(e.flags, mask, mode) {
		result := e.flags
		if consume {
			e.flags &^= mask
		}
		e.mu.Unlock()
		return result, kernel.Success, kernel.ErrNone
	}
	e.mu.Unlock()

	state := kernel.Failure
	errOut := kernel.ErrFault
	opt := kernel.IPCOption(0)
	if ticks > 0 {
		opt |= kernel.OptHasTimeout
	}
	ctx := kernel.NewIPCContext(current, e, nil, opt, &state, &errOut)
	req := &eventRequest{mask: mask, mode: mode, consume: consume}

	e.mu.Lock()
	e.waiters[ctx] = req
	e.mu.Unlock()

	e.k.BlockCurrent(&e.wq, ctx, ticks)

	e.mu.Lock()
	result := req.result
	delete(e.waiters, ctx)
	e.mu.Unlock()
	return result, state, errOut
}

// Set ORs mask into the current flags and wakes every waiter whose own
// request is now satisfied.
func (e *Event) Set(mask uint32) {
	e.mu.Lock()
	e.flags |= mask
	e.mu.Unlock()
	e.k.UnblockMatching(&e.wq, false, e.matchAndConsume, kernel.Success, kernel.ErrNone)
}

func (e *Event) matchAndConsume(ctx *kernel.IPCContext) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	req, ok := e.waiters[ctx]
	if !ok || !matchMask(e.flags, req.mask, req.mode) {
		return false
	}
	req.result = e.flags
	if req.consume {
		e.flags &^= req.mask
	}
	return true
}

// Clear clears mask from the current flags without waking anyone.
func (e *Event) Clear(mask uint32) {
	e.mu.Lock()
	e.flags &^= mask
	e.mu.Unlock()
}

// Flags returns the current flag value.
func (e *Event) Flags() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flags
}

// Flush wakes every blocked waiter with Failure/ErrFlush, leaving the
// flags themselves untouched.
func (e *Event) Flush() {
	e.k.UnblockAll(&e.wq, kernel.Failure, kernel.ErrFlush, nil)
	e.mu.Lock()
	e.waiters = make(map[*kernel.IPCContext]*eventRequest)
	e.mu.Unlock()
}
