package kernel

import (
	"unsafe"

	"github.com/zhaojiahai/trochili/kernel/list"
)

// Status is a thread's position in the scheduler's state machine.
type Status int

const (
	// Dormant is a created-but-not-yet-activated thread.
	Dormant Status = iota
	// Ready means the thread is in the ready queue at its priority.
	Ready
	// Running is the single thread currently given the CPU.
	Running
	// Blocked means the thread is on some primitive's wait queue and in
	// the kernel's auxiliary list.
	Blocked
	// Suspended means the thread is in no scheduling list at all.
	Suspended
	// Terminated is the final state; a terminated thread occupies no
	// kernel list.
	Terminated
)

func (s Status) String() string {
	switch s {
	case Dormant:
		return "Dormant"
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Blocked:
		return "Blocked"
	case Suspended:
		return "Suspended"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// ceiling records one primitive's priority-inheritance boost of a thread,
// so the boost can be unwound in isolation when that specific primitive is
// released (recomputed as the most urgent of base priority and every still-held
// boosting primitives)").
type ceiling struct {
	holderOf any // the primitive object that installed this ceiling
	value    int
}

// Thread is the kernel's per-thread control block. Exactly one of Status's
// values holds at a time, and that value determines which kernel list (if
// any) the thread's queueNode is linked into.
type Thread struct {
	ID   uint32
	Name string

	Status       Status
	BasePriority int
	Priority     int // current, possibly inherited, priority

	// StackBase/StackSize/SP are carried for fidelity with a real RTOS
	// control block; this hosted port does not itself swap
	// stacks (cpuport.Runtime, backed by a real goroutine per thread, does
	// the actual execution handoff), so these fields are bookkeeping only.
	StackBase uintptr
	StackSize uint32
	SP        uintptr

	DefaultSlice int // ticks reloaded on quantum expiry
	Slice        int // remaining ticks in the current quantum

	// Context is non-nil exactly while the thread is Blocked on an IPC
	// primitive.
	Context *IPCContext

	ceilings []ceiling

	// queueNode is linked into exactly one of the ready list or the
	// auxiliary (blocked) list at a time, matching the invariant that a
	// thread occupies one scheduling list per its Status.
	queueNode Node

	// timerNext/timerPrev/timerDelta implement the kernel timer list's
	// delta-queue linkage (see timer.go): intrusive, but walked by the
	// timer list directly rather than through kernel/list's generic Node,
	// since delta-queue order is "ticks until next expiry" rather than a
	// FIFO or priority key.
	timerNext, timerPrev *Thread
	timerDelta           int
	onTimerList          bool
}

func newThread(id uint32, name string, prio, slice int, stackBase uintptr, stackSize uint32) *Thread {
	t := &Thread{
		ID:           id,
		Name:         name,
		Status:       Dormant,
		BasePriority: prio,
		Priority:     prio,
		StackBase:    stackBase,
		StackSize:    stackSize,
		DefaultSlice: slice,
		Slice:        slice,
	}
	t.queueNode.Init(unsafe.Pointer(t), &t.Priority)
	return t
}

// recomputeCeiling returns the effective priority max(BasePriority, every
// still-held ceiling) in urgency terms, never below BasePriority. It does
// not assign Priority; callers apply the result.
func (t *Thread) recomputeCeiling() int {
	p := t.BasePriority
	for _, c := range t.ceilings {
		if c.value < p { // numerically lower = higher urgency
			p = c.value
		}
	}
	return p
}

func (t *Thread) addCeiling(holder any, value int) {
	for i := range t.ceilings {
		if t.ceilings[i].holderOf == holder {
			if value < t.ceilings[i].value {
				t.ceilings[i].value = value
			}
			return
		}
	}
	t.ceilings = append(t.ceilings, ceiling{holderOf: holder, value: value})
}

func (t *Thread) dropCeiling(holder any) {
	for i := range t.ceilings {
		if t.ceilings[i].holderOf == holder {
			t.ceilings = append(t.ceilings[:i], t.ceilings[i+1:]...)
			return
		}
	}
}

// Node aliases list.Node so the rest of the package need not import
// kernel/list directly in every file that touches a Thread's links.
type Node = list.Node
