// Package lfstack implements a lock-free LIFO stack of nodes, used by
// the GC scheduler for its work buckets. The scheduler has no
// worker-local queues; every packet goes through a shared bucket.
//
// This is adapted from the Go runtime's runtime.lfstack (runtime/lfstack.go):
// the same Treiber-stack push/pop CAS loop, generalized from the runtime's
// address-packed lfnode (which exists only because the runtime cannot use
// sync/atomic.Pointer on itself) to an ordinary generic atomic pointer,
// since package lfstack is ordinary user-level Go and sync/atomic is
// available to it.
package lfstack

import "sync/atomic"

// Node holds a pointer to one value pushed onto a Stack; build one with
// NewNode.
type Node[T any] struct {
	next *Node[T]
	self *T
}

// NewNode wraps value in a stack node ready to push.
func NewNode[T any](value *T) *Node[T] {
	return &Node[T]{self: value}
}

// Value returns the payload this node was constructed with.
func (n *Node[T]) Value() *T { return n.self }

// Stack is the head of a lock-free stack. The zero value is an empty stack.
type Stack[T any] struct {
	head atomic.Pointer[Node[T]]
}

// Push pushes node onto the stack. Safe for concurrent use.
func (s *Stack[T]) Push(node *Node[T]) {
	for {
		old := s.head.Load()
		node.next = old
		if s.head.CompareAndSwap(old, node) {
			return
		}
	}
}

// Pop removes and returns the most recently pushed node, or nil if empty.
func (s *Stack[T]) Pop() *Node[T] {
	for {
		old := s.head.Load()
		if old == nil {
			return nil
		}
		next := old.next
		if s.head.CompareAndSwap(old, next) {
			old.next = nil
			return old
		}
	}
}

// Empty reports whether the stack currently has no nodes. This is a
// snapshot; concurrent pushers may race with the observation.
func (s *Stack[T]) Empty() bool {
	return s.head.Load() == nil
}
