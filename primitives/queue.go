package primitives

import (
	"sync"

	"github.com/zhaojiahai/trochili/kernel"
)

type queueMsg struct {
	data     []byte
	priority int
}

// Queue is a fixed-capacity message queue whose buffered messages carry
// their own priority (lower value = more urgent, matching the kernel-wide
// priority convention), so Receive always returns the most urgent queued
// message rather than strictly the oldest. Receivers block on the
// primary sub-queue while empty, senders on the auxiliary sub-queue
// while full. Broadcast delivers one message directly to every currently
// waiting receiver at once, bypassing the buffer entirely — the one
// primitive in this package that exercises OptBroadcastCapable and a
// context's SecondaryData slot.
type Queue struct {
	k  *kernel.Kernel
	wq kernel.WaitQueue

	mu       sync.Mutex
	capacity int
	buf      []queueMsg
}

// NewQueue allocates an empty queue holding up to capacity messages.
func NewQueue(k *kernel.Kernel, capacity int) *Queue {
	return &Queue{
		k:        k,
		wq:       kernel.WaitQueue{Property: kernel.QueueProperty{PrimaryPolicy: kernel.FIFO, AuxiliaryPolicy: kernel.FIFO}},
		capacity: capacity,
	}
}

func (q *Queue) insertLocked(msg queueMsg) {
	i := len(q.buf)
	for i > 0 && q.buf[i-1].priority > msg.priority {
		i--
	}
	q.buf = append(q.buf, queueMsg{})
	copy(q.buf[i+1:], q.buf[i:])
	q.buf[i] = msg
}

// Send enqueues data (copied) at the given priority, blocking the caller
// on the auxiliary sub-queue for up to ticks kernel ticks if the queue is
// currently full (ticks <= 0 waits forever).
func (q *Queue) Send(data []byte, priority, ticks int) (kernel.State, kernel.Error) {
	for {
		q.mu.Lock()
		if len(q.buf) < q.capacity {
			msg := append([]byte(nil), data...)
			q.insertLocked(queueMsg{data: msg, priority: priority})
			q.mu.Unlock()
			q.k.UnblockFront(&q.wq, false, kernel.Success, kernel.ErrNone)
			return kernel.Success, kernel.ErrNone
		}
		q.mu.Unlock()

		state := kernel.Failure
		errOut := kernel.ErrFault
		opt := kernel.OptUseAuxiliary
		if ticks > 0 {
			opt |= kernel.OptHasTimeout
		}
		ctx := kernel.NewIPCContext(q.k.Current(), q, nil, opt, &state, &errOut)
		q.k.BlockCurrent(&q.wq, ctx, ticks)
		if state != kernel.Success {
			return state, errOut
		}
	}
}

// Receive blocks on the primary sub-queue for up to ticks kernel ticks
// (ticks <= 0 waits forever) until a message is available — either
// dequeued from the buffer or delivered directly by a concurrent
// Broadcast — and returns it.
func (q *Queue) Receive(ticks int) ([]byte, kernel.State, kernel.Error) {
	for {
		q.mu.Lock()
		if len(q.buf) > 0 {
			msg := q.buf[0]
			q.buf = q.buf[1:]
			q.mu.Unlock()
			q.k.UnblockFront(&q.wq, true, kernel.Success, kernel.ErrNone)
			return msg.data, kernel.Success, kernel.ErrNone
		}
		q.mu.Unlock()

		var broadcastData any
		state := kernel.Failure
		errOut := kernel.ErrFault
		opt := kernel.OptBroadcastCapable
		if ticks > 0 {
			opt |= kernel.OptHasTimeout
		}
		ctx := kernel.NewIPCContext(q.k.Current(), q, nil, opt, &state, &errOut)
		ctx.SecondaryData = &broadcastData
		q.k.BlockCurrent(&q.wq, ctx, ticks)
		if state != kernel.Success {
			return nil, state, errOut
		}
		if broadcastData != nil {
			return broadcastData.([]byte), kernel.Success, kernel.ErrNone
		}
		// Woken by an ordinary Send, not a Broadcast: recheck the buffer.
	}
}

// Broadcast delivers data to every thread currently blocked in Receive,
// each getting the same payload, without touching the buffer or waking
// any blocked sender.
func (q *Queue) Broadcast(data []byte) int {
	payload := append([]byte(nil), data...)
	return q.k.UnblockMatching(&q.wq, false, func(ctx *kernel.IPCContext) bool {
		if ctx.SecondaryData != nil {
			*ctx.SecondaryData = payload
		}
		return true
	}, kernel.Success, kernel.ErrNone)
}

// Flush wakes every blocked sender and receiver with Failure/ErrFlush,
// without disturbing buffered messages.
func (q *Queue) Flush() {
	q.k.UnblockAll(&q.wq, kernel.Failure, kernel.ErrFlush, nil)
}

// Len returns the number of messages currently buffered.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}
