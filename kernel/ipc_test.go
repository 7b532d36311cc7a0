package kernel

import (
	"testing"

	"github.com/zhaojiahai/trochili/kernel/list"
)

// simulateBlock runs t as though it were Current and calls BlockCurrent on
// q with ctx. The caller must have already made t Current (e.g. via
// Schedule after activating it at the highest ready priority).
func simulateBlock(t *testing.T, k *Kernel, th *Thread, q *WaitQueue, opt IPCOption, ticks int) (*State, *Error) {
	t.Helper()
	if k.Current() != th {
		t.Fatalf("simulateBlock: %s is not current (current=%v)", th.Name, k.Current())
	}
	var state State
	var errOut Error
	ctx := NewIPCContext(th, nil, nil, opt, &state, &errOut)
	k.BlockCurrent(q, ctx, ticks)
	return &state, &errOut
}

// TestFlushWakesAllWaitersFIFO is S1: three equal-priority receivers block
// on a mailbox-shaped wait queue; UnblockAll wakes all three with
// Failure/ErrFlush in FIFO arrival order.
func TestFlushWakesAllWaitersFIFO(t *testing.T) {
	k := newTestKernel(t, 8)
	var q WaitQueue // both sub-queues default to FIFO

	t1 := mkReadyThread(t, k, "t1", 5)
	t2 := mkReadyThread(t, k, "t2", 5)
	t3 := mkReadyThread(t, k, "t3", 5)
	if err := k.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	states := make([]*State, 3)
	errs := make([]*Error, 3)
	for i, th := range []*Thread{t1, t2, t3} {
		k.Schedule()
		if k.Current() != th {
			t.Fatalf("expected %s current before blocking, got %v", th.Name, k.Current())
		}
		states[i], errs[i] = simulateBlock(t, k, th, &q, 0, 1000)
	}

	hi := k.UnblockAll(&q, Failure, ErrFlush, nil)
	if hi {
		t.Fatalf("UnblockAll should not report hiRP with nothing else running")
	}
	for i, th := range []*Thread{t1, t2, t3} {
		if *states[i] != Failure || *errs[i] != ErrFlush {
			t.Fatalf("%s: got state=%v err=%v, want Failure/FLUSH", th.Name, *states[i], *errs[i])
		}
	}

	// All three rejoin the tail of priority 5 in the order UnblockAll woke
	// them, so the ready list's order is the wake order.
	var order []string
	k.ready.lists[5].Each(func(n *list.Node) {
		order = append(order, list.Owner[Thread](n).Name)
	})
	if len(order) != 3 || order[0] != "t1" || order[1] != "t2" || order[2] != "t3" {
		t.Fatalf("expected wake order [t1 t2 t3], got %v", order)
	}
}

// TestFlushDrainsAuxiliaryBeforePrimary is S5: one waiter in auxiliary
// (sender-shaped) and one in primary (receiver-shaped), both same
// priority; flush must wake the auxiliary waiter first.
func TestFlushDrainsAuxiliaryBeforePrimary(t *testing.T) {
	k := newTestKernel(t, 8)
	var q WaitQueue

	sender := mkReadyThread(t, k, "sender", 7)
	receiver := mkReadyThread(t, k, "receiver", 7)
	if err := k.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	k.Schedule()
	if k.Current() != sender {
		t.Fatalf("expected sender current, got %v", k.Current())
	}
	simulateBlock(t, k, sender, &q, OptUseAuxiliary, 0)

	k.Schedule()
	if k.Current() != receiver {
		t.Fatalf("expected receiver current, got %v", k.Current())
	}
	simulateBlock(t, k, receiver, &q, 0, 0)

	k.UnblockAll(&q, Failure, ErrFlush, nil)

	// Both threads rejoin the Ready queue at the tail of priority 7, in
	// the order UnblockAll processed them, so queue order reveals wake
	// order: auxiliary (sender) must precede primary (receiver).
	var order []string
	k.ready.lists[7].Each(func(n *list.Node) {
		order = append(order, list.Owner[Thread](n).Name)
	})
	if len(order) != 2 || order[0] != "sender" || order[1] != "receiver" {
		t.Fatalf("expected [sender receiver], got %v", order)
	}
}
