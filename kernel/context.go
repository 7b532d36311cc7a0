package kernel

// ExecutionContext is one of the three contexts the kernel recognizes.
// The kernel refuses operations illegal for the context it is currently
// in (a thread may not BlockCurrent from ISR context; a vector may not be
// mutated while Locked).
type ExecutionContext int

const (
	// InitContext is active from New until Boot loads the first thread.
	InitContext ExecutionContext = iota
	// ThreadContext is normal, schedulable thread execution.
	ThreadContext
	// ISRContext is active for the duration of an interrupt service
	// routine (see kernel/irq.Table.EnterISR).
	ISRContext
)

func (c ExecutionContext) String() string {
	switch c {
	case InitContext:
		return "Init"
	case ThreadContext:
		return "Thread"
	case ISRContext:
		return "ISR"
	default:
		return "Unknown"
	}
}
