package concurrency

import (
	"errors"
)

// ErrQueueClosed is returned by Send after Close, and by Receive once the
// queue is both closed and drained
var ErrQueueClosed = errors.New("queue is closed")

// Queue is the FIFO hand-off between job producers and workers.
//
// Any number of goroutines may Send and Receive concurrently. Each sent
// Job is returned by exactly one Receive call. Closing stops further
// sends but keeps buffered jobs: receivers keep getting them until the
// queue is empty, and only then see ErrQueueClosed.
type Queue interface {
	// Send appends a job without blocking.
	// Returns ErrQueueClosed if the queue is closed.
	Send(job Job) error

	// Receive blocks until a job is available or the queue is closed and empty.
	Receive() (Job, error)

	// Close marks the queue closed and wakes every blocked receiver.
	// Calling Close more than once has no further effect.
	Close()

	// Len returns the number of buffered jobs
	Len() int

	// IsClosed returns true once Close has been called
	IsClosed() bool
}
