package kernel

import "testing"

func newTestKernel(t *testing.T, numPriorities int) *Kernel {
	t.Helper()
	cfg := DefaultConfig()
	cfg.NumPriorities = numPriorities
	k, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return k
}

func mkReadyThread(t *testing.T, k *Kernel, name string, prio int) *Thread {
	t.Helper()
	th, e := k.CreateThread(name, prio, 10, 0, 0)
	if e != ErrNone {
		t.Fatalf("CreateThread(%s): %v", name, e)
	}
	if e := k.ActivateThread(th); e != ErrNone {
		t.Fatalf("ActivateThread(%s): %v", name, e)
	}
	return th
}

func TestBootSelectsHighestPriority(t *testing.T) {
	k := newTestKernel(t, 8)
	mkReadyThread(t, k, "low", 5)
	hi := mkReadyThread(t, k, "hi", 1)
	if err := k.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if k.Current() != hi {
		t.Fatalf("expected hi to be current, got %v", k.Current())
	}
}

func TestActivateHigherPriorityPreemptsAfterSchedule(t *testing.T) {
	k := newTestKernel(t, 8)
	lo := mkReadyThread(t, k, "lo", 5)
	if err := k.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if k.Current() != lo {
		t.Fatalf("expected lo running")
	}
	hi := mkReadyThread(t, k, "hi", 1)
	k.Schedule()
	if k.Current() != hi {
		t.Fatalf("expected hi to preempt lo, got %v", k.Current())
	}
	if lo.Status != Ready {
		t.Fatalf("expected lo to be Ready after preemption, got %v", lo.Status)
	}
}

func TestEqualPriorityRoundRobinOnSliceExpiry(t *testing.T) {
	k := newTestKernel(t, 8)
	a, e := k.CreateThread("a", 5, 2, 0, 0)
	if e != ErrNone {
		t.Fatalf("CreateThread a: %v", e)
	}
	k.ActivateThread(a)
	b, e := k.CreateThread("b", 5, 2, 0, 0)
	if e != ErrNone {
		t.Fatalf("CreateThread b: %v", e)
	}
	k.ActivateThread(b)
	if err := k.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if k.Current() != a {
		t.Fatalf("expected a to boot first")
	}
	k.TickHandler()
	if k.Current() != a {
		t.Fatalf("slice not yet expired, a should remain current")
	}
	k.TickHandler()
	if k.Current() != b {
		t.Fatalf("expected round-robin to b after a's slice expired, got %v", k.Current())
	}
}

func TestTerminateRemovesThread(t *testing.T) {
	k := newTestKernel(t, 8)
	lo := mkReadyThread(t, k, "lo", 5)
	if err := k.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if e := k.Terminate(lo); e != ErrNone {
		t.Fatalf("Terminate: %v", e)
	}
	if lo.Status != Terminated {
		t.Fatalf("expected Terminated, got %v", lo.Status)
	}
	if k.Current() != nil {
		t.Fatalf("expected no current thread after terminating the only thread, got %v", k.Current())
	}
}
