package concurrency

import (
	"sync"
)

// compactThreshold bounds how many consumed slots may pile up at the
// front of the buffer before it is shifted down
const compactThreshold = 64

// unboundedQueue implements Queue with a slice guarded by a mutex.
// Receivers park on cond while the queue is open and empty.
type unboundedQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Job
	head   int
	closed bool
}

// NewUnboundedQueue creates an open, empty queue with no capacity limit
func NewUnboundedQueue() Queue {
	q := &unboundedQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Send implements Queue
func (q *unboundedQueue) Send(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, job)
	q.cond.Signal()
	return nil
}

// Receive implements Queue
func (q *unboundedQueue) Receive() (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.head == len(q.items) && !q.closed {
		q.cond.Wait()
	}
	if q.head == len(q.items) {
		return nil, ErrQueueClosed
	}

	job := q.items[q.head]
	q.items[q.head] = nil
	q.head++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head >= compactThreshold && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return job, nil
}

// Close implements Queue
func (q *unboundedQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Len implements Queue
func (q *unboundedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// IsClosed implements Queue
func (q *unboundedQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
