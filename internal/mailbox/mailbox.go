// Package mailbox delivers notifications one at a time, in the order they were posted.
//
// A Mailbox never calls its deliver function while holding its own lock and never
// recurses: a Post made from inside deliver is queued and handled by the goroutine
// that is already draining.
package mailbox

import "sync"

// Mailbox is a serial FIFO delivery queue.
type Mailbox[T any] struct {
	mu       sync.Mutex
	pending  []T
	draining bool
	deliver  func(T)
}

// New creates a Mailbox that hands every posted item to deliver.
func New[T any](deliver func(T)) *Mailbox[T] {
	return &Mailbox[T]{deliver: deliver}
}

// Post enqueues item. If no other goroutine is draining, the caller drains the
// queue before returning.
func (m *Mailbox[T]) Post(item T) {
	m.Enqueue(item)
	m.Flush()
}

// Enqueue appends item without delivering it. Callers that must order items
// with their own critical section enqueue under their lock and Flush after
// releasing it.
func (m *Mailbox[T]) Enqueue(item T) {
	m.mu.Lock()
	m.pending = append(m.pending, item)
	m.mu.Unlock()
}

// Flush delivers queued items unless another goroutine is already draining.
// If deliver panics, the mailbox stops draining before the panic propagates;
// items still queued are delivered by the next Flush.
func (m *Mailbox[T]) Flush() {
	m.mu.Lock()
	if m.draining {
		m.mu.Unlock()
		return
	}
	m.draining = true
	m.mu.Unlock()

	done := false
	defer func() {
		if !done {
			m.mu.Lock()
			m.draining = false
			m.mu.Unlock()
		}
	}()

	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.draining = false
			m.pending = nil
			m.mu.Unlock()
			done = true
			return
		}
		next := m.pending[0]
		m.pending = m.pending[1:]
		m.mu.Unlock()

		m.deliver(next)
	}
}
