package redis

import (
	"log"
	"sync"
)

type opKind int

const (
	opPublish opKind = iota
	opXAdd
	opSet
)

// op is one pipelined write. Ops are plain data so they can be held while
// the breaker is open and replayed when it closes.
type op struct {
	kind    opKind
	key     string
	payload string
}

// backlog buffers writes rejected by an open breaker. When full it drops
// the oldest writes.
type backlog struct {
	mu      sync.Mutex
	pending []op
	max     int
	dropped uint64
}

func newBacklog(limit int) *backlog {
	if limit <= 0 {
		limit = 10000
	}
	return &backlog{max: limit}
}

func (b *backlog) add(ops []op) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, ops...)
	if over := len(b.pending) - b.max; over > 0 {
		b.pending = append(b.pending[:0:0], b.pending[over:]...)
		b.dropped += uint64(over)
	}
}

// take removes and returns everything buffered.
func (b *backlog) take() []op {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	if len(out) > 0 {
		log.Printf("[redis] flushing %d buffered writes", len(out))
	}
	return out
}

func (b *backlog) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *backlog) droppedCount() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
