package primitives

import (
	"testing"

	"github.com/zhaojiahai/trochili/kernel"
)

func TestSemaphoreWaitSignalRoundTrip(t *testing.T) {
	k := newTestKernel(t, 8)
	mkThread(t, k, "only", 5)
	if err := k.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	sem := NewSemaphore(k, 0, 0)
	sem.Signal()
	if got := sem.Count(); got != 1 {
		t.Fatalf("expected count 1 after Signal, got %d", got)
	}
	if state, e := sem.Wait(0); state != kernel.Success || e != kernel.ErrNone {
		t.Fatalf("Wait: state=%v err=%v", state, e)
	}
	if got := sem.Count(); got != 0 {
		t.Fatalf("expected count 0 after Wait, got %d", got)
	}
}

func TestSemaphoreSignalSaturatesAtLimit(t *testing.T) {
	k := newTestKernel(t, 8)
	mkThread(t, k, "only", 5)
	if err := k.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	sem := NewSemaphore(k, 1, 1)
	sem.Signal()
	if got := sem.Count(); got != 1 {
		t.Fatalf("expected count capped at limit 1, got %d", got)
	}
}

// TestSemaphoreTimeoutPrecedence is S2: a thread blocks on a semaphore with
// a 50-tick timeout and no signal arrives; it wakes Failure/TIMEOUT exactly
// at tick 50. A second wait started fresh afterward succeeds with NONE if
// signaled within the next 10 ticks.
func TestSemaphoreTimeoutPrecedence(t *testing.T) {
	k := newTestKernel(t, 8)
	waiter := mkThread(t, k, "waiter", 5)
	if err := k.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	sem := NewSemaphore(k, 0, 0)

	requireCurrent(t, k, waiter)
	var state kernel.State
	var errOut kernel.Error
	ctx := kernel.NewIPCContext(waiter, sem, nil, kernel.OptHasTimeout, &state, &errOut)
	k.BlockCurrent(&sem.wq, ctx, 50)

	for i := 0; i < 49; i++ {
		k.TickHandler()
		if waiter.Status != kernel.Blocked {
			t.Fatalf("waiter woke early at tick %d with state=%v err=%v", i+1, state, errOut)
		}
	}
	k.TickHandler() // tick 50: timeout due
	if state != kernel.Failure || errOut != kernel.ErrTimeout {
		t.Fatalf("expected Failure/TIMEOUT at tick 50, got state=%v err=%v", state, errOut)
	}
	if waiter.Status != kernel.Running && waiter.Status != kernel.Ready {
		t.Fatalf("expected waiter runnable again after timeout, got %v", waiter.Status)
	}

	// Re-block with no timeout; a Signal arriving well within 10 ticks
	// must wake it with NONE.
	requireCurrent(t, k, waiter)
	var state2 kernel.State
	var errOut2 kernel.Error
	ctx2 := kernel.NewIPCContext(waiter, sem, nil, 0, &state2, &errOut2)
	k.BlockCurrent(&sem.wq, ctx2, 0)

	for i := 0; i < 5; i++ {
		k.TickHandler()
	}
	sem.Signal()
	if state2 != kernel.Success || errOut2 != kernel.ErrNone {
		t.Fatalf("expected Success/NONE after in-window signal, got state=%v err=%v", state2, errOut2)
	}
}

func TestSemaphoreFlushWakesWaiter(t *testing.T) {
	k := newTestKernel(t, 8)
	waiter := mkThread(t, k, "waiter", 5)
	if err := k.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	sem := NewSemaphore(k, 0, 0)

	requireCurrent(t, k, waiter)
	var state kernel.State
	var errOut kernel.Error
	ctx := kernel.NewIPCContext(waiter, sem, nil, 0, &state, &errOut)
	k.BlockCurrent(&sem.wq, ctx, 0)

	sem.Flush()
	if state != kernel.Failure || errOut != kernel.ErrFlush {
		t.Fatalf("expected Failure/FLUSH, got state=%v err=%v", state, errOut)
	}
}
