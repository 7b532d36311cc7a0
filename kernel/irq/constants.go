package irq

// VectorFlag is a vector's property-flag bitmask.
type VectorFlag uint8

const (
	// FlagReady marks a slot as holding a live, dispatchable vector.
	FlagReady VectorFlag = 1 << iota
	// FlagLocked is set for the duration of EnterISR's call into the
	// registered ISR, forbidding concurrent mutation of that vector.
	FlagLocked
)

// CallFlag is the bitmask an ISR returns to request post-processing.
type CallFlag uint8

const (
	// CallDaemon asks EnterISR to resume the deferred-handling daemon
	// thread once the ISR returns.
	CallDaemon CallFlag = 1 << iota
)
