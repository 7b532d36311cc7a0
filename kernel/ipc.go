package kernel

import (
	"unsafe"

	"github.com/zhaojiahai/trochili/kernel/list"
)

// WaitPolicy selects how a WaitQueue's sub-queue orders its waiters.
type WaitPolicy int

const (
	// FIFO orders waiters by arrival time.
	FIFO WaitPolicy = iota
	// PriorityOrder orders waiters by thread priority, FIFO among equals.
	PriorityOrder
)

// QueueProperty is a wait queue's property word: the two sub-queues'
// ordering policies. The non-empty flags live on WaitQueue itself (see
// PrimaryNonEmpty and AuxiliaryNonEmpty).
type QueueProperty struct {
	PrimaryPolicy   WaitPolicy
	AuxiliaryPolicy WaitPolicy
}

// WaitQueue is attached to every synchronization primitive. It holds two
// independently policy-ordered sub-queues — primary and auxiliary — so a
// primitive that needs two classes of waiters (mailbox senders vs.
// receivers, readers vs. writers) doesn't need a second object.
type WaitQueue struct {
	Property QueueProperty

	primary         list.List
	auxiliary       list.List
	primaryNonEmpty bool
	auxNonEmpty     bool
}

// PrimaryNonEmpty reports the primary sub-queue's non-empty flag.
func (q *WaitQueue) PrimaryNonEmpty() bool { return q.primaryNonEmpty }

// AuxiliaryNonEmpty reports the auxiliary sub-queue's non-empty flag.
func (q *WaitQueue) AuxiliaryNonEmpty() bool { return q.auxNonEmpty }

// IPCOption is the stack-allocated IPCContext's option flag set.
type IPCOption uint8

const (
	// OptUseAuxiliary routes the context into the auxiliary sub-queue
	// instead of the primary one.
	OptUseAuxiliary IPCOption = 1 << iota
	// OptHasTimeout arms the thread's timer node when blocking.
	OptHasTimeout
	// OptBroadcastCapable marks the context as eligible to receive
	// UnblockAll's optional secondary data payload.
	OptBroadcastCapable
)

// IPCContext is the per-blocking-call descriptor: it links a
// thread to a wait-queue node and carries the addresses unblock writes
// its result to. Constructed just before a thread blocks, cleared (its
// unexported queue field) on unblock; a thread has at most one active context at a
// time (callers are expected to stack-allocate one per blocking call, not
// share them across calls).
type IPCContext struct {
	Owner  *Thread
	Target any    // the synchronization object this context blocks on
	Data   []byte // caller's buffer: address + length, as a slice

	Option IPCOption

	StateOut *State
	ErrorOut *Error

	// SecondaryData, if non-nil, is the out-parameter location UnblockAll
	// copies its optData into for contexts with OptBroadcastCapable set
	// (e.g. a mailbox receiver's payload slot).
	SecondaryData *any

	queue *WaitQueue // non-nil exactly while linked into a sub-queue
	node  list.Node
}

// NewIPCContext constructs a context for owner, bound to owner's current
// priority as its ordering key (so a later SetPriority boost is reflected
// without copying, per the intrusive-list design note).
func NewIPCContext(owner *Thread, target any, data []byte, opt IPCOption, stateOut *State, errOut *Error) *IPCContext {
	ctx := &IPCContext{Owner: owner, Target: target, Data: data, Option: opt, StateOut: stateOut, ErrorOut: errOut}
	ctx.node.Init(unsafe.Pointer(ctx), &owner.Priority)
	return ctx
}

func (q *WaitQueue) subQueue(ctx *IPCContext) (*list.List, WaitPolicy) {
	if ctx.Option&OptUseAuxiliary != 0 {
		return &q.auxiliary, q.Property.AuxiliaryPolicy
	}
	return &q.primary, q.Property.PrimaryPolicy
}

func (q *WaitQueue) enterBlockedQueue(ctx *IPCContext) {
	sub, policy := q.subQueue(ctx)
	if policy == PriorityOrder {
		sub.AddPriority(&ctx.node)
	} else {
		sub.AddFIFO(&ctx.node, list.Tail)
	}
	if ctx.Option&OptUseAuxiliary != 0 {
		q.auxNonEmpty = true
	} else {
		q.primaryNonEmpty = true
	}
	ctx.queue = q
}

func (q *WaitQueue) leaveBlockedQueue(ctx *IPCContext) {
	sub, _ := q.subQueue(ctx)
	sub.Remove(&ctx.node)
	if ctx.Option&OptUseAuxiliary != 0 {
		if sub.Empty() {
			q.auxNonEmpty = false
		}
	} else if sub.Empty() {
		q.primaryNonEmpty = false
	}
	ctx.queue = nil
}

// BlockCurrent is the generic entry to blocking, shared by every
// primitive. The caller must be Running; calling it from any other
// context or thread status is a precondition violation and fatal. It moves Current to Blocked, links it into the
// kernel's auxiliary list, enters ctx into q's primary-or-auxiliary
// sub-queue per ctx.Option, arms the timer if requested, and yields to
// the scheduler.
func (k *Kernel) BlockCurrent(q *WaitQueue, ctx *IPCContext, ticks int) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.execCtx != ThreadContext {
		k.diag.Panic("BlockCurrent", "may not block outside thread context")
	}
	t := ctx.Owner
	if t.Status != Running || t != k.current {
		k.diag.Panic("BlockCurrent", "caller is not the Running thread")
	}

	// The Running thread is not resident in the ready queue in this
	// scheduler (see sched.go: scheduleLocked removes a thread from the
	// ready list the instant it becomes Running), so there is nothing to
	// LeaveReady here — only the aux-list entry and status transition
	// remain.
	t.Status = Blocked
	k.aux.AddFIFO(&t.queueNode, list.Tail)
	t.Context = ctx

	q.enterBlockedQueue(ctx)

	if ctx.Option&OptHasTimeout != 0 && ticks > 0 {
		k.timer.arm(t, ticks)
	}

	k.current = nil
	k.scheduleLocked()
}

// UnblockOne wakes the thread owning ctx. The owner must be Blocked (else
// fatal). If the owner is CurrentThread — reachable only from ISR
// context, where Current was moved to the auxiliary list but the context
// switch has not yet happened — it is restored to Running directly;
// otherwise it is reinserted at the tail of its priority list and marked
// Ready. Returns hiRP: true if the woken thread outranks CurrentThread,
// meaningful only in thread context.
func (k *Kernel) UnblockOne(ctx *IPCContext, state State, err Error) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.unblockOneLocked(ctx, state, err)
}

func (k *Kernel) unblockOneLocked(ctx *IPCContext, state State, err Error) bool {
	t := ctx.Owner
	if t.Status != Blocked {
		k.diag.Panic("UnblockOne", "target thread is not Blocked")
	}
	if t == k.current && k.execCtx != ISRContext {
		k.diag.Panic("UnblockOne", "current thread cannot be its own unblock target outside ISR context")
	}

	k.aux.Remove(&t.queueNode)
	if t == k.current {
		// ISR-only reentry: this scheduler never keeps the Running
		// thread resident in the ready list (see sched.go), so restoring
		// Running status needs no ready-queue churn — t was, and
		// remains, Current.
		t.Status = Running
	} else {
		k.ready.enter(t, list.Tail)
		t.Status = Ready
	}

	if ctx.queue != nil {
		ctx.queue.leaveBlockedQueue(ctx)
	}

	if ctx.StateOut != nil {
		*ctx.StateOut = state
	}
	if ctx.ErrorOut != nil {
		*ctx.ErrorOut = err
	}

	if t.onTimerList {
		k.timer.cancel(t)
	}

	t.Context = nil

	hi := false
	if t != k.current {
		hi = k.maybeSetHiRP(t)
	}
	return hi
}

// UnblockFront wakes the head waiter of q's primary sub-queue (or, if aux
// is true, its auxiliary sub-queue) — the way a primitive whose guarded
// collection just gained capacity signals the single next blocked caller,
// without needing to know which IPCContext that is. Returns false if that
// sub-queue is empty.
func (k *Kernel) UnblockFront(q *WaitQueue, aux bool, state State, err Error) bool {
	return k.UnblockFrontOwner(q, aux, state, err) != nil
}

// UnblockFrontOwner behaves like UnblockFront but also returns the thread
// it woke, or nil if the sub-queue was empty — a mutex needs the actual
// thread to install it as the new owner in the same step as the wake.
func (k *Kernel) UnblockFrontOwner(q *WaitQueue, aux bool, state State, err Error) *Thread {
	k.mu.Lock()
	defer k.mu.Unlock()
	sub := &q.primary
	if aux {
		sub = &q.auxiliary
	}
	n := sub.Front()
	if n == nil {
		return nil
	}
	ctx := list.Owner[IPCContext](n)
	owner := ctx.Owner
	k.unblockOneLocked(ctx, state, err)
	return owner
}

// QueueHeadPriority returns the ordering-key priority of the head waiter
// in q's primary sub-queue (or, if aux, its auxiliary sub-queue), and
// whether one exists — letting a priority-ceiling primitive recompute its
// ceiling contribution after its highest waiter leaves without acquiring.
func (k *Kernel) QueueHeadPriority(q *WaitQueue, aux bool) (int, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	sub := &q.primary
	if aux {
		sub = &q.auxiliary
	}
	n := sub.Front()
	if n == nil {
		return 0, false
	}
	return n.Key()
}

// UnblockMatching walks q's primary sub-queue (or, if aux, its auxiliary
// sub-queue) front-to-back and wakes every waiter for which match returns
// true — the way an event-flag group tests each waiter's own requested
// mask and mode instead of treating every waiter identically. match must
// not call back into the kernel. Returns the count woken.
func (k *Kernel) UnblockMatching(q *WaitQueue, aux bool, match func(ctx *IPCContext) bool, state State, err Error) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	sub := &q.primary
	if aux {
		sub = &q.auxiliary
	}
	var hit []*IPCContext
	sub.Each(func(n *list.Node) {
		ctx := list.Owner[IPCContext](n)
		if match(ctx) {
			hit = append(hit, ctx)
		}
	})
	for _, ctx := range hit {
		k.unblockOneLocked(ctx, state, err)
	}
	return len(hit)
}

// UnblockAll ("flush") drains q's auxiliary sub-queue first, then its
// primary sub-queue, both in FIFO order of the queue as it currently
// stands, calling UnblockOne for each and copying optData into the
// SecondaryData slot of any context with OptBroadcastCapable set, when
// both optData and the slot are non-nil. Draining auxiliary before primary gives auxiliary waiters
// (signalers / a primitive's high-priority class) precedence in visible
// flush ordering.
func (k *Kernel) UnblockAll(q *WaitQueue, state State, err Error, optData any) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	hi := false
	for _, sub := range []*list.List{&q.auxiliary, &q.primary} {
		for !sub.Empty() {
			ctx := list.Owner[IPCContext](sub.Front())
			if optData != nil && ctx.SecondaryData != nil && ctx.Option&OptBroadcastCapable != 0 {
				*ctx.SecondaryData = optData
			}
			if k.unblockOneLocked(ctx, state, err) {
				hi = true
			}
		}
	}
	return hi
}
