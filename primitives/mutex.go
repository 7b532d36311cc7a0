package primitives

import (
	"sync"

	"github.com/zhaojiahai/trochili/kernel"
)

// Mutex is a non-recursive, priority-inheritance mutex: Lock against a
// held mutex boosts the holder (and, transitively, whatever the holder
// is itself blocked on) to the blocking thread's priority via
// kernel.SetPriority, and Unlock restores it via kernel.RestoreCeiling
// before handing ownership to the highest-priority waiter. It implements
// kernel.InheritanceHolder so that chain walk can pass through it.
type Mutex struct {
	k  *kernel.Kernel
	wq kernel.WaitQueue

	mu    sync.Mutex
	owner *kernel.Thread
}

// NewMutex allocates an unowned mutex. Waiters are queued in priority
// order so the highest-priority blocked thread becomes the next owner.
func NewMutex(k *kernel.Kernel) *Mutex {
	return &Mutex{
		k:  k,
		wq: kernel.WaitQueue{Property: kernel.QueueProperty{PrimaryPolicy: kernel.PriorityOrder}},
	}
}

// Holder implements kernel.InheritanceHolder.
func (m *Mutex) Holder() *kernel.Thread {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner
}

// Lock acquires the mutex, blocking for up to ticks kernel ticks
// (ticks <= 0 waits forever) if it is already held. Locking a mutex the
// calling thread already holds is a FAULT — this mutex does not nest.
func (m *Mutex) Lock(ticks int) (kernel.State, kernel.Error) {
	current := m.k.Current()

	m.mu.Lock()
	if m.owner == nil {
		m.owner = current
		m.mu.Unlock()
		return kernel.Success, kernel.ErrNone
	}
	if m.owner == current {
		m.mu.Unlock()
		return kernel.Failure, kernel.ErrFault
	}
	holder := m.owner
	m.mu.Unlock()

	m.k.SetPriority(holder, m, current.Priority)

	state := kernel.Failure
	errOut := kernel.ErrFault
	opt := kernel.IPCOption(0)
	if ticks > 0 {
		opt |= kernel.OptHasTimeout
	}
	ctx := kernel.NewIPCContext(current, m, nil, opt, &state, &errOut)
	m.k.BlockCurrent(&m.wq, ctx, ticks)
	if state != kernel.Success {
		// Gave up waiting: this thread's contribution to holder's ceiling
		// must be re-derived from whoever is now the highest-priority
		// waiter, not simply dropped, since other threads may still wait.
		m.reassertCeiling(holder)
		return state, errOut
	}
	m.mu.Lock()
	m.owner = current
	m.mu.Unlock()
	return kernel.Success, kernel.ErrNone
}

// Unlock releases the mutex, restoring the calling thread's own priority
// and transferring ownership to the highest-priority waiter, if any.
// Unlocking a mutex the caller does not hold is a FAULT.
func (m *Mutex) Unlock() kernel.Error {
	current := m.k.Current()

	m.mu.Lock()
	if m.owner != current {
		m.mu.Unlock()
		return kernel.ErrFault
	}
	m.mu.Unlock()

	m.k.RestoreCeiling(current, m)

	next := m.k.UnblockFrontOwner(&m.wq, false, kernel.Success, kernel.ErrNone)
	m.mu.Lock()
	m.owner = next
	m.mu.Unlock()
	return kernel.ErrNone
}

func (m *Mutex) reassertCeiling(holder *kernel.Thread) {
	// SetPriority only ever tightens an existing ceiling, so drop this
	// mutex's ceiling first and re-install it from the current head waiter.
	m.k.RestoreCeiling(holder, m)
	if p, ok := m.k.QueueHeadPriority(&m.wq, false); ok {
		m.k.SetPriority(holder, m, p)
	}
}

// Flush wakes every waiter with Failure/ErrFlush without changing
// ownership.
func (m *Mutex) Flush() {
	m.k.UnblockAll(&m.wq, kernel.Failure, kernel.ErrFlush, nil)
}
