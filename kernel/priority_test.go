package kernel

import "testing"

func TestSetPriorityRelocatesReadyThread(t *testing.T) {
	k := newTestKernel(t, 16)
	lo := mkReadyThread(t, k, "lo", 10)
	mkReadyThread(t, k, "other", 3)
	if err := k.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	// lo sits in the priority-10 ready list; boosting it to 2 must move it
	// into the priority-2 list and make it the new SelectNext candidate.
	if e := k.SetPriority(lo, "owner-a", 2); e != ErrNone {
		t.Fatalf("SetPriority: %v", e)
	}
	if lo.Priority != 2 {
		t.Fatalf("expected priority 2, got %d", lo.Priority)
	}
	if got := k.SelectNext(); got != lo {
		t.Fatalf("expected lo to be the new SelectNext, got %v", got)
	}
}

func TestSetPriorityNeverLowers(t *testing.T) {
	k := newTestKernel(t, 16)
	th, e := k.CreateThread("t", 5, 10, 0, 0)
	if e != ErrNone {
		t.Fatalf("CreateThread: %v", e)
	}
	if e := k.SetPriority(th, "owner-a", 9); e != ErrNone {
		t.Fatalf("SetPriority: %v", e)
	}
	if th.Priority != 5 {
		t.Fatalf("a lower-urgency boost must not change priority, got %d", th.Priority)
	}
}

func TestRestoreCeilingFallsBackToNextHighestCeiling(t *testing.T) {
	k := newTestKernel(t, 16)
	th, e := k.CreateThread("t", 10, 10, 0, 0)
	if e != ErrNone {
		t.Fatalf("CreateThread: %v", e)
	}
	k.SetPriority(th, "owner-a", 4)
	k.SetPriority(th, "owner-b", 2)
	if th.Priority != 2 {
		t.Fatalf("expected 2 after two ceilings, got %d", th.Priority)
	}
	k.RestoreCeiling(th, "owner-b")
	if th.Priority != 4 {
		t.Fatalf("expected fallback to remaining ceiling 4, got %d", th.Priority)
	}
	k.RestoreCeiling(th, "owner-a")
	if th.Priority != 10 {
		t.Fatalf("expected fallback to base priority 10, got %d", th.Priority)
	}
}

// fakeHolder is a minimal kernel.InheritanceHolder standing in for a
// primitive, used to exercise SetPriority's chain-walk without depending
// on the primitives package (which itself depends on kernel).
type fakeHolder struct{ holder *Thread }

func (f *fakeHolder) Holder() *Thread { return f.holder }

func TestSetPriorityPropagatesThroughChain(t *testing.T) {
	k := newTestKernel(t, 16)
	tLo, e := k.CreateThread("lo", 10, 10, 0, 0)
	if e != ErrNone {
		t.Fatalf("CreateThread lo: %v", e)
	}
	tMid, e := k.CreateThread("mid", 5, 10, 0, 0)
	if e != ErrNone {
		t.Fatalf("CreateThread mid: %v", e)
	}

	objA := &fakeHolder{holder: tLo}

	// tMid is Blocked on objA, which is held by tLo.
	tMid.Status = Blocked
	tMid.Context = &IPCContext{Owner: tMid, Target: objA}

	if e := k.SetPriority(tMid, objA, 1); e != ErrNone {
		t.Fatalf("SetPriority: %v", e)
	}
	if tMid.Priority != 1 {
		t.Fatalf("expected tMid boosted to 1, got %d", tMid.Priority)
	}
	if tLo.Priority != 1 {
		t.Fatalf("expected chain walk to boost tLo to 1, got %d", tLo.Priority)
	}
}
