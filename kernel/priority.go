package kernel

// InheritanceHolder is implemented by primitives (mutexes) that can
// transmit a priority boost further up a held-and-waited-on chain. A
// primitive exposes its current holder thread; SetPriority uses it to
// walk the chain without the kernel needing to know anything about mutex
// internals beyond "who holds you right now".
type InheritanceHolder interface {
	Holder() *Thread
}

// SetPriority raises holder's current priority to at most newPriority
// (numerically lower = more urgent) on behalf of ceilingOwner — typically
// a mutex a higher-priority thread just blocked on. It:
//  1. Records newPriority as ceilingOwner's ceiling on holder.
//  2. Recomputes holder.Priority as the most urgent of its base priority
//     and every still-held ceiling.
//  3. Applies the new priority to whichever list holder is currently in —
//     the ready queue (moved between per-priority lists) or a
//     priority-ordered wait sub-queue (resorted in place).
//  4. If holder is itself Blocked on an object implementing
//     InheritanceHolder, recurses onto that object's holder with the same
//     newPriority — this is how a boost propagates along a chain of
//     held-and-waited-on primitives without the kernel knowing any
//     particular primitive's semantics.
//
// Never lowers a priority — only RestoreCeiling does, and only down to
// the recomputed ceiling floor.
func (k *Kernel) SetPriority(holder *Thread, ceilingOwner any, newPriority int) Error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.setPriorityLocked(holder, ceilingOwner, newPriority)
}

func (k *Kernel) setPriorityLocked(holder *Thread, ceilingOwner any, newPriority int) Error {
	if !k.cfg.EnablePriorityInherit {
		return ErrUnready
	}
	holder.addCeiling(ceilingOwner, newPriority)
	effective := holder.recomputeCeiling()
	if effective >= holder.Priority {
		return ErrNone // no actual boost, e.g. a lower-priority joiner
	}
	if k.cfg.Debug {
		k.diag.Logf("priority: boosting %v to %d via %v", holder, effective, ceilingOwner)
	}
	k.applyPriorityLocked(holder, effective)

	if holder.Status == Blocked && holder.Context != nil {
		if ih, ok := holder.Context.Target.(InheritanceHolder); ok {
			if next := ih.Holder(); next != nil && next != holder {
				k.setPriorityLocked(next, holder.Context.Target, newPriority)
			}
		}
	}
	return ErrNone
}

// RestoreCeiling drops ceilingOwner's ceiling on t and recomputes t's
// effective priority from whatever ceilings remain — never below
// BasePriority.
func (k *Kernel) RestoreCeiling(t *Thread, ceilingOwner any) Error {
	k.mu.Lock()
	defer k.mu.Unlock()
	t.dropCeiling(ceilingOwner)
	effective := t.recomputeCeiling()
	k.applyPriorityLocked(t, effective)
	return ErrNone
}

// applyPriorityLocked installs newPriority on t and relocates it within
// whichever list currently orders it by priority: moved between
// ready-queue lists if Ready, resorted in place if Blocked on a
// priority-ordered sub-queue.
func (k *Kernel) applyPriorityLocked(t *Thread, newPriority int) {
	if t.Priority == newPriority {
		return
	}
	switch t.Status {
	case Ready:
		from := t.Priority
		t.Priority = newPriority
		k.ready.move(t, from)
		k.maybeSetHiRP(t)
	case Blocked:
		t.Priority = newPriority
		if t.Context != nil && t.Context.queue != nil {
			sub, policy := t.Context.queue.subQueue(t.Context)
			if policy == PriorityOrder {
				sub.Resort(&t.Context.node)
			}
		}
	default:
		t.Priority = newPriority
	}
}
