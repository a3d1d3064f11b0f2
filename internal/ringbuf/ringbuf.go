// Package ringbuf is a lock-free single-producer single-consumer queue. The
// replayer pushes bar updates into it and the signal engine loop drains it.
package ringbuf

import "sync/atomic"

const cacheLine = 64

// Ring is a bounded SPSC queue. Capacity is a power of two so the slot index
// is a mask of the running counter.
type Ring[T any] struct {
	buf  []T
	mask uint64

	_pad0 [cacheLine]byte
	head  atomic.Uint64 // producer
	_pad1 [cacheLine]byte
	tail  atomic.Uint64 // consumer
	_pad2 [cacheLine]byte

	rejected atomic.Uint64
}

// New returns a ring holding at least capacity items (minimum 2).
func New[T any](capacity int) *Ring[T] {
	n := max(nextPow2(capacity), 2)
	return &Ring[T]{buf: make([]T, n), mask: uint64(n - 1)}
}

// Push enqueues v. It returns false without writing when the ring is full.
func (r *Ring[T]) Push(v T) bool {
	head := r.head.Load()
	if head-r.tail.Load() >= uint64(len(r.buf)) {
		r.rejected.Add(1)
		return false
	}
	r.buf[head&r.mask] = v
	r.head.Store(head + 1)
	return true
}

// Pop dequeues the oldest item, or reports false when the ring is empty.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	tail := r.tail.Load()
	if tail >= r.head.Load() {
		return zero, false
	}
	slot := tail & r.mask
	v := r.buf[slot]
	r.buf[slot] = zero
	r.tail.Store(tail + 1)
	return v, true
}

// Drain pops every queued item into fn and returns how many were consumed.
func (r *Ring[T]) Drain(fn func(T)) int {
	n := 0
	for {
		v, ok := r.Pop()
		if !ok {
			return n
		}
		fn(v)
		n++
	}
}

func (r *Ring[T]) Len() int { return int(r.head.Load() - r.tail.Load()) }

func (r *Ring[T]) Cap() int { return len(r.buf) }

// Rejected counts pushes refused because the ring was full.
func (r *Ring[T]) Rejected() uint64 { return r.rejected.Load() }

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	n--
	for shift := 1; shift < 64; shift <<= 1 {
		n |= n >> shift
	}
	return n + 1
}
