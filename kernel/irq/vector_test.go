package irq

import (
	"testing"

	"github.com/zhaojiahai/trochili/kernel"
)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	k, err := kernel.New(kernel.DefaultConfig(), nil, nil)
	if err != nil {
		t.Fatalf("kernel.New: %v", err)
	}
	return NewTable(k, nil, 8, 16)
}

func TestSetVectorAndEnterISRDispatches(t *testing.T) {
	tbl := newTestTable(t)
	called := false
	if e := tbl.SetVector(3, func(arg any) CallFlag {
		called = true
		return 0
	}, nil); e != kernel.ErrNone {
		t.Fatalf("SetVector: %v", e)
	}
	if e := tbl.EnterISR(3); e != kernel.ErrNone {
		t.Fatalf("EnterISR: %v", e)
	}
	if !called {
		t.Fatalf("expected ISR to run")
	}
}

func TestEnterISRUnreadyForUnmappedIRQ(t *testing.T) {
	tbl := newTestTable(t)
	if e := tbl.EnterISR(9); e != kernel.ErrUnready {
		t.Fatalf("expected ErrUnready, got %v", e)
	}
}

// TestSetVectorOnOwnLockedVectorFails is S4: inside its own ISR, a handler
// calls SetVector on its own IRQ number. Expected: Failure/LOCKED, vector
// unchanged.
func TestSetVectorOnOwnLockedVectorFails(t *testing.T) {
	tbl := newTestTable(t)
	const irqn = 5

	original := func(arg any) CallFlag { return 0 }
	if e := tbl.SetVector(irqn, original, "original"); e != kernel.ErrNone {
		t.Fatalf("SetVector: %v", e)
	}

	var reentrantResult kernel.Error
	selfModifying := func(arg any) CallFlag {
		reentrantResult = tbl.SetVector(irqn, func(any) CallFlag { return 0 }, "replacement")
		return 0
	}
	if e := tbl.SetVector(irqn, selfModifying, nil); e != kernel.ErrNone {
		t.Fatalf("SetVector: %v", e)
	}

	if e := tbl.EnterISR(irqn); e != kernel.ErrNone {
		t.Fatalf("EnterISR: %v", e)
	}
	if reentrantResult != kernel.ErrLocked {
		t.Fatalf("expected self-modifying SetVector to fail with ErrLocked, got %v", reentrantResult)
	}

	idx := tbl.irqMap[irqn]
	if tbl.vectors[idx].arg != nil {
		t.Fatalf("vector must be unchanged by the rejected SetVector, got arg=%v", tbl.vectors[idx].arg)
	}
}

func TestClearVectorRejectsUnmapped(t *testing.T) {
	tbl := newTestTable(t)
	if e := tbl.ClearVector(2); e != kernel.ErrUnready {
		t.Fatalf("expected ErrUnready, got %v", e)
	}
}
