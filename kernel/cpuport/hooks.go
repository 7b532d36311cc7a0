package cpuport

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/zhaojiahai/trochili/kernel"
)

// Runtime is a concrete kernel.Hooks backed by one goroutine per thread
// and a channel-based resume token, giving this hosted port a real
// context switch instead of kernel.noopHooks's bookkeeping-only stand-in.
// Each spawned goroutine blocks on its resume channel until handed
// control by LoadRootThread or SwitchContext, runs until it calls back
// into a kernel operation that yields (blocks, terminates, or is
// preempted), and signals Runtime's shared yield channel on return.
type Runtime struct {
	mu      sync.Mutex
	resume  map[*kernel.Thread]chan struct{}
	yield   chan struct{}
	signals []unix.Signal
}

// NewRuntime builds a Runtime whose EnterCritical masks signals — SIGALRM
// for the tick source, plus any port-specific IRQ signals the caller adds.
func NewRuntime(signals []unix.Signal) *Runtime {
	return &Runtime{
		resume:  make(map[*kernel.Thread]chan struct{}),
		yield:   make(chan struct{}),
		signals: append([]unix.Signal{unix.SIGALRM}, signals...),
	}
}

func (r *Runtime) resumeChan(t *kernel.Thread) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.resume[t]
	if !ok {
		ch = make(chan struct{})
		r.resume[t] = ch
	}
	return ch
}

// Spawn starts body on its own goroutine, parked until t is first given
// the CPU. body is responsible for calling back into kernel operations
// that, from Running, eventually return control here (by blocking,
// terminating, or the tick handler's slice-expiry path); Spawn reports
// that return on Runtime's shared yield channel.
func (r *Runtime) Spawn(t *kernel.Thread, body func()) {
	ch := r.resumeChan(t)
	go func() {
		<-ch
		body()
		r.yield <- struct{}{}
	}()
}

// EnterCritical masks this Runtime's configured signal set.
func (r *Runtime) EnterCritical() any {
	old, err := EnterCritical(r.signals)
	if err != nil {
		panic(err)
	}
	return old
}

// LeaveCritical restores the mask EnterCritical saved.
func (r *Runtime) LeaveCritical(mask any) {
	old, ok := mask.(unix.Sigset_t)
	if !ok {
		return
	}
	if err := LeaveCritical(old); err != nil {
		panic(err)
	}
}

// SwitchContext hands control to to's goroutine and, if from is non-nil
// (a real preemption rather than the first ever switch), waits for
// whichever goroutine currently holds the CPU to yield it back before
// returning, keeping execution single-threaded despite the per-thread
// goroutines.
//
// The kernel calls this with its own internal lock held, so to's goroutine
// must not re-enter any kernel method before handing control back (it may
// run arbitrary non-kernel code first). This port's Spawn/body convention
// upholds that by construction, since body only calls back into the
// kernel at points that themselves go through SwitchContext again; a
// from-scratch Hooks implementation driving the kernel a different way
// would need to preserve the same ordering.
func (r *Runtime) SwitchContext(from, to *kernel.Thread) {
	if to != nil {
		r.resumeChan(to) <- struct{}{}
	}
	if from != nil {
		<-r.yield
	}
}

// LoadRootThread hands control to root's goroutine for the first time.
func (r *Runtime) LoadRootThread(root *kernel.Thread) {
	r.resumeChan(root) <- struct{}{}
}
