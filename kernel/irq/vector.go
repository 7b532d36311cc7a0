// Package irq implements interrupt vectoring and the two-tier deferred
// interrupt handling scheme built on top of the kernel's thread and
// scheduling primitives: a fixed vector table plus IRQ-number map
// (vector.go), and a priority-ordered request queue drained by a daemon
// thread in normal thread context (daemon.go).
package irq

import (
	"sync"

	"github.com/zhaojiahai/trochili/kernel"
)

// ISRFunc is a registered interrupt service routine. It runs with the
// critical section released and returns CallFlag bits requesting
// post-processing.
type ISRFunc func(arg any) CallFlag

// CriticalSection is the interrupt-mask pair EnterISR uses to bracket
// vector-table lookups and ISR dispatch. kernel/cpuport.Runtime masks real
// signals through methods named EnterCritical/LeaveCritical, so it does
// not satisfy this interface; NewMutexSection is enough for hosted,
// single-process use with no real interrupt line to mask.
type CriticalSection interface {
	Enter() (mask any)
	Leave(mask any)
}

type mutexSection struct{ mu sync.Mutex }

func (m *mutexSection) Enter() any { m.mu.Lock(); return nil }
func (m *mutexSection) Leave(any)  { m.mu.Unlock() }

// NewMutexSection returns a CriticalSection backed by a plain mutex.
func NewMutexSection() CriticalSection { return &mutexSection{} }

type vector struct {
	isr   ISRFunc
	arg   any
	flags VectorFlag
}

// Table is the fixed vector table plus the IRQ-number map that yields a
// vector record (or none) for a given hardware IRQ number.
type Table struct {
	k  *kernel.Kernel
	cs CriticalSection

	mu      sync.Mutex
	vectors []vector
	irqMap  []int // irqMap[irqn] = index into vectors, -1 if unmapped

	daemon        *kernel.Thread
	daemonEnabled bool
}

// NewTable allocates a Table with the given vector-slot count and
// IRQ-number map size. cs may be nil, selecting NewMutexSection.
func NewTable(k *kernel.Kernel, cs CriticalSection, size, irqMapSize int) *Table {
	if cs == nil {
		cs = NewMutexSection()
	}
	irqMap := make([]int, irqMapSize)
	for i := range irqMap {
		irqMap[i] = -1
	}
	return &Table{k: k, cs: cs, vectors: make([]vector, size), irqMap: irqMap}
}

// SetDaemon registers the thread EnterISR resumes when an ISR requests
// CallDaemon, and whether the deferred-handling subsystem is enabled.
func (t *Table) SetDaemon(daemon *kernel.Thread, enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.daemon = daemon
	t.daemonEnabled = enabled
}

// SetVector registers isr/arg for irqn, allocating a free vector slot and
// recording it in the IRQ map on first use. Fails with ErrLocked if
// irqn's vector is Locked (a handler reconfiguring its own IRQ mid-ISR)
// and ErrFault if irqn or the vector table is exhausted/out of range.
func (t *Table) SetVector(irqn int, isr ISRFunc, arg any) kernel.Error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if irqn < 0 || irqn >= len(t.irqMap) {
		return kernel.ErrFault
	}
	idx := t.irqMap[irqn]
	if idx < 0 {
		idx = t.allocLocked()
		if idx < 0 {
			return kernel.ErrFault
		}
		t.irqMap[irqn] = idx
	}
	v := &t.vectors[idx]
	if v.flags&FlagLocked != 0 {
		return kernel.ErrLocked
	}
	v.isr = isr
	v.arg = arg
	v.flags |= FlagReady
	if t.k.Debug() {
		t.k.Diag().Logf("irq: vector %d registered (slot %d)", irqn, idx)
	}
	return kernel.ErrNone
}

func (t *Table) allocLocked() int {
	for i := range t.vectors {
		if t.vectors[i].flags&FlagReady == 0 && t.vectors[i].isr == nil {
			return i
		}
	}
	return -1
}

// ClearVector deregisters irqn's vector. Fails with ErrLocked if Locked,
// ErrUnready if irqn has no vector registered.
func (t *Table) ClearVector(irqn int) kernel.Error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if irqn < 0 || irqn >= len(t.irqMap) {
		return kernel.ErrFault
	}
	idx := t.irqMap[irqn]
	if idx < 0 {
		return kernel.ErrUnready
	}
	v := &t.vectors[idx]
	if v.flags&FlagLocked != 0 {
		return kernel.ErrLocked
	}
	*v = vector{}
	t.irqMap[irqn] = -1
	if t.k.Debug() {
		t.k.Diag().Logf("irq: vector %d cleared (slot %d)", irqn, idx)
	}
	return kernel.ErrNone
}

// EnterISR is the entry point the platform's raw vector shim calls with
// the triggering IRQ number. It brackets the vector lookup and dispatch
// in the critical section, sets Locked on the vector for the duration of
// the registered ISR call, and resumes the daemon thread if the ISR
// requests it and the deferred-handling subsystem is enabled.
func (t *Table) EnterISR(irqn int) kernel.Error {
	t.k.EnterISRContext()
	defer t.k.LeaveISRContext()

	mask := t.cs.Enter()
	if irqn < 0 || irqn >= len(t.irqMap) {
		t.cs.Leave(mask)
		return kernel.ErrFault
	}
	t.mu.Lock()
	idx := t.irqMap[irqn]
	if idx < 0 || t.vectors[idx].flags&FlagReady == 0 {
		t.mu.Unlock()
		t.cs.Leave(mask)
		return kernel.ErrUnready
	}
	t.vectors[idx].flags |= FlagLocked
	isr := t.vectors[idx].isr
	arg := t.vectors[idx].arg
	t.mu.Unlock()
	t.cs.Leave(mask)

	call := isr(arg)

	mask = t.cs.Enter()
	if call&CallDaemon != 0 {
		t.mu.Lock()
		daemon, enabled := t.daemon, t.daemonEnabled
		t.mu.Unlock()
		if enabled && daemon != nil {
			t.k.ResumeFromISR(daemon)
		}
	}
	t.mu.Lock()
	t.vectors[idx].flags &^= FlagLocked
	t.mu.Unlock()
	t.cs.Leave(mask)
	return kernel.ErrNone
}
