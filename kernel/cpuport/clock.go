package cpuport

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Clock is the periodic tick source: a real POSIX interval timer
// delivering SIGALRM, translated into calls to a tick callback. This is
// the hosted-process analogue of a periodic hardware timer raising a
// fixed-period IRQ.
type Clock struct {
	sig  chan os.Signal
	stop chan struct{}
}

// NewClock arms ITIMER_REAL to fire every period and returns a Clock
// ready to drive a tick callback via Run. period must be positive.
func NewClock(period time.Duration) (*Clock, error) {
	tv := unix.NsecToTimeval(period.Nanoseconds())
	it := unix.Itimerval{Interval: tv, Value: tv}
	if _, err := unix.Setitimer(unix.ITIMER_REAL, it); err != nil {
		return nil, err
	}
	c := &Clock{sig: make(chan os.Signal, 1), stop: make(chan struct{})}
	signal.Notify(c.sig, syscall.SIGALRM)
	return c, nil
}

// Run blocks, calling onTick once per delivered SIGALRM, until Stop is
// called. Intended to run on its own goroutine.
func (c *Clock) Run(onTick func()) {
	for {
		select {
		case <-c.sig:
			onTick()
		case <-c.stop:
			return
		}
	}
}

// Stop disarms the itimer and ends Run.
func (c *Clock) Stop() {
	signal.Stop(c.sig)
	var zero unix.Itimerval
	unix.Setitimer(unix.ITIMER_REAL, zero)
	close(c.stop)
}
