// Package queue implements the event handoff buffer between producers and
// delivery workers (spec §4.1). Queue is a small interface so the
// in-process implementation can be swapped for a durable one without
// touching any caller.
package queue

import (
	"sync/atomic"
	"unsafe"

	"github.com/casapps/hookrelay/src/internal/models"
)

// Queue is a multi-producer/multi-consumer FIFO-ish handoff buffer.
// Implementations must be safe for concurrent use by multiple goroutines.
type Queue interface {
	// Enqueue adds an event to the queue. It only rejects a nil event.
	Enqueue(event *models.Event) bool
	// Dequeue removes and returns the next event, or nil if the queue is
	// empty.
	Dequeue() *models.Event
	// IsEmpty reports whether the queue currently holds no events.
	IsEmpty() bool
	// Size returns the approximate number of events currently queued.
	Size() int
}

// node is a single link in the lock-free list backing InProcessQueue.
type node struct {
	value *models.Event
	next  unsafe.Pointer // *node
}

// InProcessQueue is an unbounded, lock-free FIFO built on the classic
// Michael-Scott two-lock-free-pointer queue algorithm: a sentinel head
// node plus CAS-linked tail. Events enqueued by a single producer
// goroutine observe FIFO order with respect to that producer; no global
// ordering across producers is guaranteed, matching spec §4.1.
type InProcessQueue struct {
	head unsafe.Pointer // *node
	tail unsafe.Pointer // *node
	size int64
}

// NewInProcessQueue returns an empty, ready-to-use queue.
func NewInProcessQueue() *InProcessQueue {
	sentinel := unsafe.Pointer(&node{})
	return &InProcessQueue{head: sentinel, tail: sentinel}
}

// Enqueue implements Queue. It rejects only a nil event.
func (q *InProcessQueue) Enqueue(event *models.Event) bool {
	if event == nil {
		return false
	}
	n := unsafe.Pointer(&node{value: event})
	for {
		tail := (*node)(atomic.LoadPointer(&q.tail))
		next := atomic.LoadPointer(&tail.next)
		if tail == (*node)(atomic.LoadPointer(&q.tail)) {
			if next == nil {
				if atomic.CompareAndSwapPointer(&tail.next, next, n) {
					atomic.CompareAndSwapPointer(&q.tail, unsafe.Pointer(tail), n)
					atomic.AddInt64(&q.size, 1)
					return true
				}
			} else {
				// Tail was lagging; help advance it before retrying.
				atomic.CompareAndSwapPointer(&q.tail, unsafe.Pointer(tail), next)
			}
		}
	}
}

// Dequeue implements Queue, returning nil when the queue is empty.
func (q *InProcessQueue) Dequeue() *models.Event {
	for {
		head := (*node)(atomic.LoadPointer(&q.head))
		tail := (*node)(atomic.LoadPointer(&q.tail))
		next := atomic.LoadPointer(&head.next)
		if head == (*node)(atomic.LoadPointer(&q.head)) {
			if head == tail {
				if next == nil {
					return nil // queue empty
				}
				// Tail lagging behind head, help advance it.
				atomic.CompareAndSwapPointer(&q.tail, unsafe.Pointer(tail), next)
			} else {
				value := (*node)(next).value
				if atomic.CompareAndSwapPointer(&q.head, unsafe.Pointer(head), next) {
					atomic.AddInt64(&q.size, -1)
					return value
				}
			}
		}
	}
}

// IsEmpty implements Queue.
func (q *InProcessQueue) IsEmpty() bool {
	return atomic.LoadInt64(&q.size) <= 0
}

// Size implements Queue.
func (q *InProcessQueue) Size() int {
	n := atomic.LoadInt64(&q.size)
	if n < 0 {
		return 0
	}
	return int(n)
}
