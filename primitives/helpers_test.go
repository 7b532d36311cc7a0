package primitives

import (
	"testing"

	"github.com/zhaojiahai/trochili/kernel"
)

func newTestKernel(t *testing.T, numPriorities int) *kernel.Kernel {
	t.Helper()
	cfg := kernel.DefaultConfig()
	cfg.NumPriorities = numPriorities
	k, err := kernel.New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("kernel.New: %v", err)
	}
	return k
}

func mkThread(t *testing.T, k *kernel.Kernel, name string, prio int) *kernel.Thread {
	t.Helper()
	th, e := k.CreateThread(name, prio, 20, 0, 0)
	if e != kernel.ErrNone {
		t.Fatalf("CreateThread(%s): %v", name, e)
	}
	if e := k.ActivateThread(th); e != kernel.ErrNone {
		t.Fatalf("ActivateThread(%s): %v", name, e)
	}
	return th
}

// requireCurrent fails the test unless th is the thread currently given
// the CPU — the synchronous equivalent of "th's goroutine is the one
// executing right now."
func requireCurrent(t *testing.T, k *kernel.Kernel, th *kernel.Thread) {
	t.Helper()
	k.Schedule()
	if k.Current() != th {
		t.Fatalf("expected %s current, got %v", th.Name, k.Current())
	}
}
