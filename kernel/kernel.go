// Package kernel implements the three tightly coupled core subsystems of a
// preemptive, fixed-priority, single-core RTOS: the thread scheduler and
// state machine, the generic IPC blocking substrate every synchronization
// primitive reduces to, and the bookkeeping (ready queue, auxiliary list,
// timer list) both share. Interrupt vectoring lives in the sibling
// kernel/irq package; the CPU-specific critical-section/clock hooks live
// in kernel/cpuport; primitives (mailbox, semaphore, mutex, ...) are built
// on top in the primitives package.
//
// Kernel is the single top-level object that owns the ready queue,
// auxiliary list, and timer list, dispatching into them under one lock.
package kernel

import (
	"fmt"
	"sync"

	"github.com/zhaojiahai/trochili/kernel/diag"
	"github.com/zhaojiahai/trochili/kernel/list"
)

// Config is the build-time configuration surface, expressed as explicit
// constructor parameters rather than a parsed file — a kernel has no
// deployment-time config file, only link-time constants.
type Config struct {
	NumPriorities int // number of distinct priority levels, 0 = highest
	DefaultSlice  int // default per-thread time slice, in ticks

	EnableIPC               bool
	EnableIRQDaemon         bool
	EnablePriorityInherit   bool
	EnableDiagnosticAsserts bool

	VectorTableSize int
	IRQMapSize      int

	DaemonStackBytes uint32
	DaemonPriority   int
	DaemonSlice      int

	Debug bool
}

// DefaultConfig returns sane defaults for a small microcontroller image.
func DefaultConfig() Config {
	return Config{
		NumPriorities:           32,
		DefaultSlice:            20,
		EnableIPC:               true,
		EnableIRQDaemon:         true,
		EnablePriorityInherit:   true,
		EnableDiagnosticAsserts: true,
		VectorTableSize:         64,
		IRQMapSize:              256,
		DaemonStackBytes:        1024,
		DaemonPriority:          1,
		DaemonSlice:             20,
	}
}

func (c Config) validate() error {
	if c.NumPriorities <= 0 {
		return fmt.Errorf("kernel: NumPriorities must be positive, got %d", c.NumPriorities)
	}
	if c.DefaultSlice <= 0 {
		return fmt.Errorf("kernel: DefaultSlice must be positive, got %d", c.DefaultSlice)
	}
	return nil
}

// Hooks is the CPU hook layer a real port provides:
// EnterCritical/LeaveCritical, SwitchContext, LoadRootThread. The kernel's
// own list mutations are always protected by its internal mutex
// regardless of Hooks (so the library is safe to call from tests without
// any port installed). The kernel calls SwitchContext and LoadRootThread;
// it never calls EnterCritical or LeaveCritical itself. The built-in no-op
// hooks New installs for a nil Hooks suit the synchronous,
// single-goroutine state-machine usage every test in this module drives
// the kernel with; kernel/cpuport.Runtime supplies a real implementation.
type Hooks interface {
	EnterCritical() (mask any)
	LeaveCritical(mask any)
	SwitchContext(from, to *Thread)
	LoadRootThread(root *Thread)
}

type noopHooks struct{}

func (noopHooks) EnterCritical() any           { return nil }
func (noopHooks) LeaveCritical(any)            {}
func (noopHooks) SwitchContext(from, to *Thread) {}
func (noopHooks) LoadRootThread(root *Thread)  {}

// Kernel is the kernel-wide global state: the ready queue,
// auxiliary list, timer list, vector/IRQ map ownership (delegated to
// kernel/irq.Table, which holds a *Kernel), current-thread pointer, and
// configuration, all in one process-wide structure, zero-initialized and
// populated by New. New and Boot initialize only this structure; the irq
// table (irq.NewTable) and the tick source (cpuport.NewClock) are built and
// started separately by the caller, in no order the kernel enforces.
type Kernel struct {
	mu sync.Mutex

	cfg   Config
	hooks Hooks
	diag  *diag.Sink

	threads map[uint32]*Thread
	nextID  uint32

	ready *readyQueue
	aux   list.List
	timer *timerList

	current     *Thread
	execCtx     ExecutionContext
	isrNesting  int
	hiRP        bool
	schedLocked int

	booted bool
}

// New allocates a Kernel in InitContext. Hooks may be nil, selecting the
// built-in no-op hooks (bookkeeping only).
func New(cfg Config, hooks Hooks, sink *diag.Sink) (*Kernel, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if hooks == nil {
		hooks = noopHooks{}
	}
	if sink == nil {
		sink = diag.New(nil)
	}
	return &Kernel{
		cfg:     cfg,
		hooks:   hooks,
		diag:    sink,
		threads: make(map[uint32]*Thread),
		ready:   newReadyQueue(cfg.NumPriorities),
		timer:   newTimerList(),
		execCtx: InitContext,
	}, nil
}

// Boot leaves InitContext and enters ThreadContext by loading the highest
// priority Ready thread as Current, invoking hooks.LoadRootThread. It
// never returns control to its caller in a real port (the root thread's
// stack takes over); this hosted port returns once the handoff bookkeeping
// is done so tests can keep driving the simulation synchronously.
func (k *Kernel) Boot() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.booted {
		return fmt.Errorf("kernel: already booted")
	}
	root := k.ready.selectNext()
	if root == nil {
		return fmt.Errorf("kernel: no ready thread to boot into")
	}
	k.ready.leave(root, root.Priority)
	root.Status = Running
	k.current = root
	k.execCtx = ThreadContext
	k.booted = true
	k.hooks.LoadRootThread(root)
	return nil
}

// Current returns the thread currently given the CPU, or nil before Boot.
func (k *Kernel) Current() *Thread {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.current
}

// ExecutionContext reports which of the three contexts the
// kernel currently believes it is in.
func (k *Kernel) ExecutionContext() ExecutionContext {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.execCtx
}

// Debug reports whether this kernel was configured for verbose
// operational logging. cfg is fixed at New, so no locking is needed.
func (k *Kernel) Debug() bool {
	return k.cfg.Debug
}

// Diag returns the kernel's diagnostic sink, for subsystems (interrupt
// vectoring, the IRQ daemon queue, priority inheritance) that log
// non-fatal messages under Debug. diag is fixed at New, so no locking is
// needed.
func (k *Kernel) Diag() *diag.Sink {
	return k.diag
}

// EnterISRContext transitions into ISRContext for the duration of an
// interrupt service routine, nesting safely if already inside one (a
// reentrant IRQ line). kernel/irq.Table.EnterISR calls this once per
// invocation.
func (k *Kernel) EnterISRContext() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.isrNesting++
	k.execCtx = ISRContext
}

// LeaveISRContext is the inverse of EnterISRContext. Once nesting returns
// to zero it restores ThreadContext and performs the "return from an ISR
// that set HiRP" preemption point.
func (k *Kernel) LeaveISRContext() {
	k.mu.Lock()
	k.isrNesting--
	due := k.isrNesting == 0
	if due {
		k.execCtx = ThreadContext
	}
	k.mu.Unlock()
	if due {
		k.Schedule()
	}
}

// CreateThread allocates a Dormant thread with the given identity,
// priority (clamped to [0, NumPriorities) is the caller's responsibility;
// an out-of-range priority is a FAULT), slice, and stack descriptor. It
// does not schedule the thread — ActivateThread does.
func (k *Kernel) CreateThread(name string, priority, slice int, stackBase uintptr, stackSize uint32) (*Thread, Error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if priority < 0 || priority >= k.cfg.NumPriorities {
		return nil, ErrFault
	}
	if slice <= 0 {
		slice = k.cfg.DefaultSlice
	}
	k.nextID++
	t := newThread(k.nextID, name, priority, slice, stackBase, stackSize)
	k.threads[t.ID] = t
	return t, ErrNone
}

// ActivateThread transitions a Dormant thread to Ready, entering it at the
// tail of its priority's list (Suspended transitions to Ready on Activate).
func (k *Kernel) ActivateThread(t *Thread) Error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if t.Status != Dormant && t.Status != Suspended {
		return ErrFault
	}
	t.Status = Ready
	k.ready.enter(t, list.Tail)
	k.maybeSetHiRP(t)
	return ErrNone
}

// SuspendSelf transitions the Running thread to Suspended, in no
// scheduling list. Blocking a thread can never be combined with suspending it; SuspendSelf
// only ever acts on Current, so that combination cannot arise here.
func (k *Kernel) SuspendSelf() Error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.execCtx != ThreadContext {
		k.diag.Panic("SuspendSelf", "called outside thread context")
	}
	t := k.current
	if t.Status != Running {
		k.diag.Panic("SuspendSelf", "current thread not Running")
	}
	t.Status = Suspended
	k.scheduleLocked()
	return ErrNone
}

// Terminate moves t to Terminated from any non-terminal state, removing it
// from every list it occupies — ready queue, auxiliary list, the
// primitive wait sub-queue it is blocked on, and the timer list — so that a
// terminated thread occupies no kernel list. The out-parameters of a
// Blocked thread's IPCContext are not written.
func (k *Kernel) Terminate(t *Thread) Error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if t.Status == Terminated {
		return ErrFault
	}
	switch t.Status {
	case Ready:
		k.ready.leave(t, t.Priority)
	case Blocked:
		k.aux.Remove(&t.queueNode)
		if t.Context != nil && t.Context.queue != nil {
			t.Context.queue.leaveBlockedQueue(t.Context)
		}
		t.Context = nil
	}
	if t.onTimerList {
		k.timer.cancel(t)
	}
	t.Status = Terminated
	delete(k.threads, t.ID)
	if t == k.current {
		k.scheduleLocked()
	}
	return ErrNone
}

// maybeSetHiRP sets the HiRP flag and returns true when t is a
// higher-urgency (numerically lower priority) thread than Current. It does
// not look at the execution context: ISR-triggered wakeups set the flag
// too, and the returned bool is meaningful only in thread context, since
// the current-thread comparison is not well-defined mid-ISR.
func (k *Kernel) maybeSetHiRP(t *Thread) bool {
	if k.current != nil && t.Priority < k.current.Priority {
		k.hiRP = true
		return true
	}
	return false
}

// String lets %v print a thread without dumping all accounting fields.
func (t *Thread) String() string {
	return fmt.Sprintf("Thread{%s #%d prio=%d status=%s}", t.Name, t.ID, t.Priority, t.Status)
}
