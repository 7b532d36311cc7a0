// Package primitives implements the synchronization objects built on top
// of kernel's generic IPC substrate: a mailbox, a counting semaphore, a
// priority-inheritance mutex, an event-flag group, and a fixed-slot
// message queue. Each reduces to the same handful of kernel calls
// (BlockCurrent, UnblockOne/UnblockFront/UnblockAll) with its own buffer
// state and sub-queue policy bits — none of them touch the ready queue or
// timer list directly.
package primitives

import (
	"sync"

	"github.com/zhaojiahai/trochili/kernel"
)

// Mailbox is a fixed-capacity ring buffer of fixed-size messages. Senders
// block on the auxiliary sub-queue while full; receivers block on the
// primary sub-queue while empty. Flush forcibly wakes every blocked
// caller on both sides with ErrFlush, the way a mailbox is torn down or
// reset out from under threads waiting on it.
type Mailbox struct {
	k  *kernel.Kernel
	wq kernel.WaitQueue

	mu       sync.Mutex
	msgSize  int
	capacity int
	buf      [][]byte
	head     int
	count    int
}

// NewMailbox allocates a mailbox holding up to capacity messages of at
// most msgSize bytes each. Both must be positive.
func NewMailbox(k *kernel.Kernel, capacity, msgSize int) *Mailbox {
	return &Mailbox{
		k:        k,
		wq:       kernel.WaitQueue{Property: kernel.QueueProperty{PrimaryPolicy: kernel.FIFO, AuxiliaryPolicy: kernel.FIFO}},
		msgSize:  msgSize,
		capacity: capacity,
		buf:      make([][]byte, capacity),
	}
}

func (m *Mailbox) enqueueLocked(data []byte) {
	idx := (m.head + m.count) % m.capacity
	msg := make([]byte, m.msgSize)
	copy(msg, data)
	m.buf[idx] = msg
	m.count++
}

func (m *Mailbox) dequeueLocked(dst []byte) {
	copy(dst, m.buf[m.head])
	m.buf[m.head] = nil
	m.head = (m.head + 1) % m.capacity
	m.count--
}

// Send copies up to msgSize bytes of data into the mailbox, blocking the
// calling thread on the auxiliary sub-queue for up to ticks kernel ticks
// if the mailbox is currently full (ticks <= 0 waits forever).
func (m *Mailbox) Send(data []byte, ticks int) (kernel.State, kernel.Error) {
	for {
		m.mu.Lock()
		if m.count < m.capacity {
			m.enqueueLocked(data)
			m.mu.Unlock()
			m.k.UnblockFront(&m.wq, false, kernel.Success, kernel.ErrNone)
			return kernel.Success, kernel.ErrNone
		}
		m.mu.Unlock()

		state := kernel.Failure
		errOut := kernel.ErrFault
		opt := kernel.OptUseAuxiliary
		if ticks > 0 {
			opt |= kernel.OptHasTimeout
		}
		ctx := kernel.NewIPCContext(m.k.Current(), m, data, opt, &state, &errOut)
		m.k.BlockCurrent(&m.wq, ctx, ticks)
		if state != kernel.Success {
			return state, errOut
		}
		// Woken because a receiver freed a slot; recheck rather than trust
		// that the slot is still ours (another sender may have raced in).
	}
}

// Receive blocks the calling thread on the primary sub-queue for up to
// ticks kernel ticks (ticks <= 0 waits forever) until a message is
// available, then copies up to len(dst) bytes of it into dst.
func (m *Mailbox) Receive(dst []byte, ticks int) (kernel.State, kernel.Error) {
	for {
		m.mu.Lock()
		if m.count > 0 {
			m.dequeueLocked(dst)
			m.mu.Unlock()
			m.k.UnblockFront(&m.wq, true, kernel.Success, kernel.ErrNone)
			return kernel.Success, kernel.ErrNone
		}
		m.mu.Unlock()

		state := kernel.Failure
		errOut := kernel.ErrFault
		opt := kernel.IPCOption(0)
		if ticks > 0 {
			opt |= kernel.OptHasTimeout
		}
		ctx := kernel.NewIPCContext(m.k.Current(), m, dst, opt, &state, &errOut)
		m.k.BlockCurrent(&m.wq, ctx, ticks)
		if state != kernel.Success {
			return state, errOut
		}
	}
}

// Flush wakes every thread blocked on this mailbox, sender or receiver
// alike, with Failure/ErrFlush, without disturbing the buffered messages
// already in the ring. Callers distinguish this from a timeout by the
// returned Error.
func (m *Mailbox) Flush() {
	m.k.UnblockAll(&m.wq, kernel.Failure, kernel.ErrFlush, nil)
}

// Count returns the number of messages currently buffered.
func (m *Mailbox) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}
