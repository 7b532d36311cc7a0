package kernel

import "github.com/zhaojiahai/trochili/kernel/list"

// SelectNext returns the head of the ready list at the lowest-numbered
// (highest-urgency) non-empty priority, or nil if nothing is ready. O(1)
// given the ready queue's bitmap.
func (k *Kernel) SelectNext() *Thread {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.ready.selectNext()
}

// ResumeFromISR wakes a Suspended thread from ISR context — the deferred
// IRQ daemon, or any thread an ISR wants to resume without going through
// the blocking substrate. A Suspended thread moves to the tail of its
// priority's ready list; an already Ready or Running thread is a no-op.
func (k *Kernel) ResumeFromISR(t *Thread) Error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if t.Status != Suspended {
		return ErrNone
	}
	t.Status = Ready
	k.ready.enter(t, list.Tail)
	k.maybeSetHiRP(t)
	return ErrNone
}

// EnterReady inserts t at the given end of its priority's FIFO list and
// marks the bitmap. Head insertion is for a thread that was Running and is
// being re-readied synchronously (it keeps its slot); Tail insertion is
// for freshly woken or newly activated threads.
func (k *Kernel) EnterReady(t *Thread, pos list.Position) Error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if t.Status == Ready || t.Status == Running {
		return ErrFault
	}
	t.Status = Ready
	k.ready.enter(t, pos)
	return ErrNone
}

// LeaveReady removes t from the ready queue, clearing the bitmap bit if
// its priority's list becomes empty.
func (k *Kernel) LeaveReady(t *Thread) Error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if t.Status != Ready {
		return ErrFault
	}
	k.ready.leave(t, t.Priority)
	return ErrNone
}

// LockScheduler disables Schedule from acting, for the rare case a thread
// must perform several ready-queue mutations as one atomic unit without an
// intervening context switch. UnlockScheduler re-enables it and, if a
// reschedule became due meanwhile, performs it.
func (k *Kernel) LockScheduler() {
	k.mu.Lock()
	k.schedLocked++
	k.mu.Unlock()
}

// UnlockScheduler is the inverse of LockScheduler.
func (k *Kernel) UnlockScheduler() {
	k.mu.Lock()
	if k.schedLocked > 0 {
		k.schedLocked--
	}
	due := k.schedLocked == 0 && k.hiRP
	k.mu.Unlock()
	if due {
		k.Schedule()
	}
}

// Schedule is the preemption point: unless scheduling is locked or an ISR
// is in progress, it switches to the head of the ready queue when that
// thread outranks a still-Running Current, or when Current is no longer
// Running (see scheduleLocked), invoking the CPU context-switch hook.
// LeaveISRContext calls it on return from an ISR and UnlockScheduler when
// HiRP became set; BlockCurrent, SuspendSelf, Terminate and TickHandler
// reschedule internally. The unblock calls (UnblockOne, UnblockFront,
// UnblockFrontOwner, UnblockMatching, UnblockAll), ResumeFromISR and
// ActivateThread do not reschedule: they only record HiRP.
func (k *Kernel) Schedule() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.scheduleLocked()
}

// scheduleLocked is Schedule's body, called with k.mu already held by
// callers (SuspendSelf, Terminate, TickHandler, and BlockCurrent) that
// need to reschedule as part of a larger atomic
// operation.
//
// A Running thread is never resident in the ready queue (it is removed the
// instant it becomes Current), so SelectNext alone cannot tell "Current is
// still the most urgent thread" from "Current just isn't in this list" —
// the comparison against Current's priority has to happen here. A thread
// still marked Running is only displaced by a strictly more urgent one
// (numerically lower priority); a thread that is no longer Running (it just
// blocked, suspended itself, or was terminated) always yields the CPU to
// whatever SelectNext finds, including nothing at all.
func (k *Kernel) scheduleLocked() {
	k.hiRP = false
	if k.schedLocked > 0 || k.isrNesting > 0 {
		return
	}
	cur := k.current
	curRunning := cur != nil && cur.Status == Running
	next := k.ready.selectNext()
	if next == nil {
		if !curRunning {
			k.current = nil
		}
		return
	}
	if curRunning && next.Priority >= cur.Priority {
		return
	}
	if curRunning {
		cur.Status = Ready
		k.ready.enter(cur, list.Head)
	}
	k.ready.leave(next, next.Priority)
	next.Status = Running
	k.current = next
	k.hooks.SwitchContext(cur, next)
}

// TickHandler decrements Current's slice; if it reaches zero and another
// ready thread exists at the same priority, Current moves to the tail of
// its priority list and its slice reloads to DefaultSlice. It then
// advances the timer list and unblocks every thread whose
// timeout just expired with State=Failure, Error=TIMEOUT, deferring to the
// owning primitive only insofar as the primitive registered the
// IPCContext's out-parameters — TickHandler itself only knows how to
// unblock, not what object the thread was waiting on.
func (k *Kernel) TickHandler() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.current != nil {
		k.current.Slice--
		if k.current.Slice <= 0 {
			k.current.Slice = k.current.DefaultSlice
			if k.ready.lists[k.current.Priority].Len() > 0 {
				cur := k.current
				cur.Status = Ready
				k.ready.enter(cur, list.Tail)
				k.current = nil // scheduleLocked must pick a (possibly different) thread
				k.scheduleLocked()
				if k.current == nil {
					// Nothing else ready: reinstate cur as Running.
					k.ready.leave(cur, cur.Priority)
					cur.Status = Running
					k.current = cur
				}
			}
		}
	}

	expired := k.timer.advance()
	for _, t := range expired {
		if t.Context != nil {
			k.unblockOneLocked(t.Context, Failure, ErrTimeout)
		}
	}
	k.scheduleLocked()
}
