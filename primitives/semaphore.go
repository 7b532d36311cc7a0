package primitives

import (
	"sync"

	"github.com/zhaojiahai/trochili/kernel"
)

// Semaphore is a counting semaphore: Wait blocks while the count is zero,
// Signal increments it and wakes the longest-waiting blocked thread. It
// uses only the wait queue's primary sub-queue — a semaphore has a single
// class of waiter.
type Semaphore struct {
	k  *kernel.Kernel
	wq kernel.WaitQueue

	mu    sync.Mutex
	count int
	limit int // 0 = uncapped
}

// NewSemaphore allocates a semaphore starting at initial. limit caps
// Signal's effect (0 means uncapped); a Signal that would push count past
// a positive limit is dropped, matching a counting semaphore's usual
// saturation behavior rather than overflowing silently.
func NewSemaphore(k *kernel.Kernel, initial, limit int) *Semaphore {
	return &Semaphore{
		k:     k,
		wq:    kernel.WaitQueue{Property: kernel.QueueProperty{PrimaryPolicy: kernel.FIFO}},
		count: initial,
		limit: limit,
	}
}

// Wait decrements the count, blocking for up to ticks kernel ticks
// (ticks <= 0 waits forever) if it is currently zero.
func (s *Semaphore) Wait(ticks int) (kernel.State, kernel.Error) {
	for {
		s.mu.Lock()
		if s.count > 0 {
			s.count--
			s.mu.Unlock()
			return kernel.Success, kernel.ErrNone
		}
		s.mu.Unlock()

		state := kernel.Failure
		errOut := kernel.ErrFault
		opt := kernel.IPCOption(0)
		if ticks > 0 {
			opt |= kernel.OptHasTimeout
		}
		ctx := kernel.NewIPCContext(s.k.Current(), s, nil, opt, &state, &errOut)
		s.k.BlockCurrent(&s.wq, ctx, ticks)
		if state != kernel.Success {
			return state, errOut
		}
		// Woken because Signal bumped the count; recheck rather than
		// assume the unit that woke us is still available.
	}
}

// Signal increments the count (capped at limit if limit > 0) and wakes
// the head of the wait queue, if any.
func (s *Semaphore) Signal() {
	s.mu.Lock()
	if s.limit <= 0 || s.count < s.limit {
		s.count++
	}
	s.mu.Unlock()
	s.k.UnblockFront(&s.wq, false, kernel.Success, kernel.ErrNone)
}

// Count returns the current count.
func (s *Semaphore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Flush wakes every blocked waiter with Failure/ErrFlush without
// changing the count.
func (s *Semaphore) Flush() {
	s.k.UnblockAll(&s.wq, kernel.Failure, kernel.ErrFlush, nil)
}
