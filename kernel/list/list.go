// Package list implements the intrusive, allocation-free linked list that
// every kernel object embeds instead of using a value-semantic container.
//
// A Node carries no payload of its own; the owning struct embeds a Node
// and recovers itself from it via the Owner back-pointer. Lists never
// copy or allocate, they only relink pointers.
package list

import "unsafe"

// Position selects which end of a FIFO list an insert targets.
type Position int

const (
	// Head inserts before the current first node.
	Head Position = iota
	// Tail inserts after the current last node.
	Tail
)

// Node is the embeddable link. Zero value is a detached node.
type Node struct {
	prev, next *Node
	list       *List
	// owner is an unsafe back-pointer to the struct this Node is embedded
	// in, recovered by Owner. It is a weak reference: the node does not
	// keep the owner alive, the owner's lifetime is anchored elsewhere
	// (stack frame or static storage), per the kernel's ownership model.
	owner unsafe.Pointer
	// key points at the field (typically a thread's current priority)
	// that orders this node within a priority list. A priority change at
	// *key is picked up on the next re-sort without copying the node.
	key *int
}

// Init binds a Node to its owning struct and, if the node may ever be
// inserted into a priority list, to the field that orders it. Must be
// called once before the node is used.
func (n *Node) Init(owner unsafe.Pointer, key *int) {
	n.owner = owner
	n.key = key
}

// ownerPtr recovers the struct the node is embedded in as an unsafe.Pointer;
// callers normally go through the package-level generic Owner helper
// instead of calling this directly.
func (n *Node) ownerPtr() unsafe.Pointer { return n.owner }

// Owner recovers the struct a Node is embedded in, typed as *T. The caller
// is responsible for passing the correct T — this is the one place the
// kernel's back-pointer fabric trusts its callers rather than the type
// system, per the intrusive-list design note.
func Owner[T any](n *Node) *T { return (*T)(n.ownerPtr()) }

// Key returns the current ordering key value, or false if the node was
// never bound to one.
func (n *Node) Key() (int, bool) {
	if n.key == nil {
		return 0, false
	}
	return *n.key, true
}

// InList reports whether the node is currently linked into some List.
func (n *Node) InList() bool { return n.list != nil }

// List is a doubly-linked, intrusive, non-owning list of Nodes.
type List struct {
	head, tail *Node
	count      int
}

// Empty reports whether the list has no nodes.
func (l *List) Empty() bool { return l.count == 0 }

// Len returns the number of linked nodes.
func (l *List) Len() int { return l.count }

// Front returns the first node, or nil if the list is empty.
func (l *List) Front() *Node { return l.head }

// Back returns the last node, or nil if the list is empty.
func (l *List) Back() *Node { return l.tail }

// AddFIFO links n at the given end of the list. n must be detached.
func (l *List) AddFIFO(n *Node, pos Position) {
	if n.list != nil {
		panic("list: node already linked")
	}
	n.list = l
	l.count++
	if l.head == nil {
		l.head, l.tail = n, n
		n.prev, n.next = nil, nil
		return
	}
	switch pos {
	case Head:
		n.next = l.head
		n.prev = nil
		l.head.prev = n
		l.head = n
	default: // Tail
		n.prev = l.tail
		n.next = nil
		l.tail.next = n
		l.tail = n
	}
}

// AddPriority links n in ascending order of its ordering key (0 = highest
// urgency, matching the kernel-wide priority convention), after any
// existing node of equal priority — i.e. FIFO among equals. n must be
// bound to a key via Init and must be detached.
func (l *List) AddPriority(n *Node) {
	if n.list != nil {
		panic("list: node already linked")
	}
	if n.key == nil {
		panic("list: node has no ordering key")
	}
	nk := *n.key

	var cur *Node
	for cur = l.head; cur != nil; cur = cur.next {
		if *cur.key > nk {
			break
		}
	}
	if cur == nil {
		l.AddFIFO(n, Tail)
		return
	}
	n.list = l
	l.count++
	n.next = cur
	n.prev = cur.prev
	if cur.prev != nil {
		cur.prev.next = n
	} else {
		l.head = n
	}
	cur.prev = n
}

// Remove unlinks n from l. n must currently be linked into l.
func (l *List) Remove(n *Node) {
	if n.list != l {
		panic("list: node not linked into this list")
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next, n.list = nil, nil, nil
	l.count--
}

// Resort removes and reinserts n by priority order, used after the value
// behind n's ordering key changes (priority inheritance boosting a thread
// that is already queued). n must currently be linked into l.
func (l *List) Resort(n *Node) {
	l.Remove(n)
	l.AddPriority(n)
}

// Each calls fn for every linked node, front to back. fn must not mutate
// the list.
func (l *List) Each(fn func(*Node)) {
	for n := l.head; n != nil; n = n.next {
		fn(n)
	}
}
