package concurrency

import (
	"errors"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// worker owns one goroutine for the life of its pool
type worker struct {
	id   int
	pool *defaultWorkerPool
	done chan struct{} // Closed when the goroutine exits
}

func newWorker(id int, pool *defaultWorkerPool) *worker {
	return &worker{
		id:   id,
		pool: pool,
		done: make(chan struct{}),
	}
}

// run claims jobs until the queue reports closed and drained.
// Only the claim holds the queue lock; the job runs after it is released.
func (w *worker) run() {
	p := w.pool
	clean := false
	defer func() {
		// Reached without clean set: the loop itself failed (a panic outside
		// a job, or runtime.Goexit inside one). The worker is not replaced.
		if !clean {
			atomic.AddInt64(&p.faulted, 1)
			if r := recover(); r != nil {
				p.logger.Errorf("worker %d faulted: %v\n%s", w.id, r, debug.Stack())
			} else {
				p.logger.Errorf("worker %d faulted: goroutine exited while running a job", w.id)
			}
		}
		atomic.AddInt64(&p.live, -1)
		if p.observer != nil {
			p.observer.WorkerExited(w.id, !clean)
		}
		close(w.done)
	}()

	for {
		job, err := p.queue.Receive()
		if err != nil {
			if !errors.Is(err, ErrQueueClosed) {
				p.logger.Errorf("worker %d: receive failed: %v", w.id, err)
				return
			}
			p.logger.Infof("Worker %d terminated.", w.id)
			clean = true
			return
		}
		w.execute(job)
	}
}

// execute runs one job, containing any panic to that job
func (w *worker) execute(job Job) {
	p := w.pool
	p.logger.Debugf("Worker %d executing %s.", w.id, jobName(job))

	atomic.AddInt64(&p.busy, 1)
	if p.observer != nil {
		p.observer.JobStarted(w.id)
	}
	start := time.Now()

	finished := false
	defer func() {
		atomic.AddInt64(&p.busy, -1)
		panicked := false
		if finished {
			atomic.AddInt64(&p.completed, 1)
		} else {
			r := recover()
			if r == nil {
				// runtime.Goexit: unwinding continues into run()
				if p.observer != nil {
					p.observer.JobFinished(w.id, time.Since(start), false)
				}
				return
			}
			panicked = true
			atomic.AddInt64(&p.panicked, 1)
			p.logger.Errorf("worker %d: %s panicked (isolated): %v\n%s", w.id, jobName(job), r, debug.Stack())
		}
		if p.observer != nil {
			p.observer.JobFinished(w.id, time.Since(start), panicked)
		}
	}()

	job.Run()
	finished = true
}
