package irq

import (
	"sync"
	"unsafe"

	"github.com/zhaojiahai/trochili/kernel"
	"github.com/zhaojiahai/trochili/kernel/list"
)

// RequestEntry is a deferred handler invoked in daemon thread context.
type RequestEntry func(arg any)

// Request is a record an ISR posts for later execution by the daemon.
// Callers own its storage — typically embedded in their own device state,
// not allocated fresh per post — and must not reuse it while Ready.
type Request struct {
	entry    RequestEntry
	arg      any
	priority int
	ready    bool
	node     list.Node
}

// Queue is the global, priority-ordered IRQ request list.
type Queue struct {
	k *kernel.Kernel

	mu   sync.Mutex
	list list.List
}

// NewQueue allocates an empty request queue. k is consulted for Debug
// logging only (a request already Ready when re-posted is the queue's
// one overflow condition: a fixed Request record, reused by the device
// it's embedded in, arriving faster than the daemon drains it).
func NewQueue(k *kernel.Kernel) *Queue { return &Queue{k: k} }

// PostRequest initializes req and inserts it into the queue ordered by
// priority (numerically lower runs first, ties broken FIFO). Fails with
// ErrFault if req is already Ready — queued and not yet serviced.
func (q *Queue) PostRequest(req *Request, entry RequestEntry, arg any, priority int) kernel.Error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if req.ready {
		if q.k.Debug() {
			q.k.Diag().Logf("irq: request queue overflow, dropping repost at priority %d", priority)
		}
		return kernel.ErrFault
	}
	req.entry = entry
	req.arg = arg
	req.priority = priority
	req.ready = true
	req.node.Init(unsafe.Pointer(req), &req.priority)
	q.list.AddPriority(&req.node)
	return kernel.ErrNone
}

// CancelRequest removes req from the queue if present, clearing Ready.
// No-op if req is not currently queued.
func (q *Queue) CancelRequest(req *Request) kernel.Error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !req.ready {
		return kernel.ErrNone
	}
	q.list.Remove(&req.node)
	req.ready = false
	return kernel.ErrNone
}

func (q *Queue) pop() *Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.list.Front()
	if n == nil {
		return nil
	}
	req := list.Owner[Request](n)
	q.list.Remove(n)
	req.ready = false
	return req
}

// DaemonLoop runs the deferred-handling daemon: pop the highest-priority
// request and call its entry in thread context, or suspend self when the
// queue is empty (EnterISR's ResumeFromISR call wakes it again once a new
// request arrives). Never returns.
func DaemonLoop(k *kernel.Kernel, q *Queue) {
	for {
		req := q.pop()
		if req == nil {
			k.SuspendSelf()
			continue
		}
		req.entry(req.arg)
	}
}
