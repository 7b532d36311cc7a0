// Package cpuport supplies the CPU-specific hook layer kernel.Kernel
// expects from a real port: critical-section entry via real signal
// masking, a periodic tick source, and a Hooks implementation that
// performs an actual context switch. It targets a hosted POSIX process
// rather than bare metal, using signals and itimers in place of real
// interrupt-mask registers and a hardware timer.
package cpuport

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// EnterCritical masks every signal used by this runtime (SIGALRM, the
// tick source, plus any caller-installed IRQ signals) and returns the
// previous mask so LeaveCritical can restore it exactly. This is the
// real-port analogue of disabling the hardware interrupt line: under a
// hosted process, the closest equivalent to "interrupts off" is
// "relevant signals are not delivered to this thread".
func EnterCritical(signals []unix.Signal) (unix.Sigset_t, error) {
	var set, old unix.Sigset_t
	for _, sig := range signals {
		addSignal(&set, sig)
	}
	if err := unix.Sigprocmask(unix.SIG_BLOCK, &set, &old); err != nil {
		return unix.Sigset_t{}, fmt.Errorf("cpuport: EnterCritical: %w", err)
	}
	return old, nil
}

// LeaveCritical restores the mask EnterCritical returned.
func LeaveCritical(old unix.Sigset_t) error {
	if err := unix.Sigprocmask(unix.SIG_SETMASK, &old, nil); err != nil {
		return fmt.Errorf("cpuport: LeaveCritical: %w", err)
	}
	return nil
}

func addSignal(set *unix.Sigset_t, sig unix.Signal) {
	// Sigset_t is a fixed-size bit array; unix does not expose a portable
	// setter, so the bit arithmetic is inlined here the way a raw ioctl
	// argument would be hand-assembled.
	word := (sig - 1) / 64
	bit := uint64(1) << (uint(sig-1) % 64)
	set.Val[word] |= bit
}
