package concurrency

import (
	"errors"
	"time"
)

var (
	// ErrInvalidPoolSize is the panic cause when a pool is built with fewer than one worker
	ErrInvalidPoolSize = errors.New("worker pool size must be at least 1")

	// ErrPoolShutdown is the panic cause when Submit is called after Shutdown began
	ErrPoolShutdown = errors.New("worker pool is shut down")

	// ErrNilJob is the panic cause when Submit is given a nil job
	ErrNilJob = errors.New("job cannot be nil")
)

// WorkerPool runs submitted jobs on a fixed set of worker goroutines
// fed from one shared unbounded FIFO queue.
type WorkerPool interface {
	// Submit enqueues a job and returns without waiting for it to run.
	// Panics with ErrPoolShutdown once Shutdown has begun and with
	// ErrNilJob for a nil job.
	Submit(job Job)

	// SubmitFunc is Submit for a plain function
	SubmitFunc(fn func())

	// Shutdown closes the queue, lets the workers drain every job already
	// submitted, and joins them in index order. In-flight jobs are never
	// interrupted. Later calls return once the first one has finished.
	Shutdown()

	// Close calls Shutdown; it lets the pool be used as an io.Closer
	Close() error

	// Workers returns the number of worker goroutines the pool was built with
	Workers() int

	// IsRunning returns false once Shutdown has begun
	IsRunning() bool

	// Stats returns a snapshot of pool counters
	Stats() WorkerPoolStats
}

// WorkerPoolStats is a point-in-time view of a pool
type WorkerPoolStats struct {
	Workers        int   // Configured worker count
	LiveWorkers    int   // Workers whose goroutine has not exited
	BusyWorkers    int   // Workers currently running a job
	QueuedJobs     int   // Jobs waiting to be claimed
	SubmittedJobs  int64 // Total jobs accepted by Submit
	CompletedJobs  int64 // Total jobs that returned normally
	PanickedJobs   int64 // Total jobs that panicked (recovered)
	FaultedWorkers int   // Workers lost to a fault outside a job
}

// Observer receives pool lifecycle events, e.g. to feed metrics.
// Methods are called from worker goroutines and must not block.
type Observer interface {
	JobSubmitted()
	JobStarted(workerID int)
	JobFinished(workerID int, elapsed time.Duration, panicked bool)
	WorkerExited(workerID int, faulted bool)
}

// WorkerPoolConfig configures a WorkerPool
type WorkerPoolConfig struct {
	Name     string   // Used as a log field
	Workers  int      // Number of worker goroutines, must be >= 1
	Logger   Logger   // Defaults to core.NewDefaultLogger()
	Observer Observer // Optional
}

// DefaultWorkerPoolConfig returns default worker pool configuration
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Name:    "worker-pool",
		Workers: 4,
	}
}
