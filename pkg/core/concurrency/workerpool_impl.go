package concurrency

import (
	"sync"
	"sync/atomic"

	"github.com/fluxorio/exchanger/pkg/core/failfast"
)

// defaultWorkerPool implements WorkerPool.
// The pool is the only producer handle on its queue; closing the queue is
// how it tells workers that no more jobs will arrive.
type defaultWorkerPool struct {
	name     string
	queue    Queue
	workers  []*worker
	logger   Logger
	observer Observer

	shutdownOnce sync.Once
	running      int32 // Atomic flag

	submitted int64
	completed int64
	panicked  int64
	busy      int64
	live      int64
	faulted   int64
}

// NewWorkerPool creates a pool of count workers with default settings.
// Panics with ErrInvalidPoolSize if count < 1.
func NewWorkerPool(count int) WorkerPool {
	config := DefaultWorkerPoolConfig()
	config.Workers = count
	return NewWorkerPoolWithConfig(config)
}

// NewWorkerPoolWithConfig creates a pool and starts its workers.
// Jobs may be submitted as soon as it returns; they wait in the queue
// until a worker is free.
func NewWorkerPoolWithConfig(config WorkerPoolConfig) WorkerPool {
	if config.Workers < 1 {
		failfast.Violation(ErrInvalidPoolSize, "got %d workers", config.Workers)
	}
	if config.Name == "" {
		config.Name = "worker-pool"
	}
	if config.Logger == nil {
		config.Logger = defaultLogger(config.Name)
	}

	p := &defaultWorkerPool{
		name:     config.Name,
		queue:    NewUnboundedQueue(),
		workers:  make([]*worker, config.Workers),
		logger:   config.Logger,
		observer: config.Observer,
		running:  1,
	}

	for i := range p.workers {
		p.workers[i] = newWorker(i, p)
	}
	atomic.StoreInt64(&p.live, int64(len(p.workers)))
	for _, w := range p.workers {
		go w.run()
	}

	p.logger.Infof("%s started with %d workers", p.name, len(p.workers))
	return p
}

// Submit implements WorkerPool
func (p *defaultWorkerPool) Submit(job Job) {
	if job == nil {
		failfast.Violation(ErrNilJob, "%s: submit", p.name)
	}
	if err := p.queue.Send(job); err != nil {
		failfast.Violation(ErrPoolShutdown, "%s: submit after shutdown", p.name)
	}
	atomic.AddInt64(&p.submitted, 1)
	if p.observer != nil {
		p.observer.JobSubmitted()
	}
}

// SubmitFunc implements WorkerPool
func (p *defaultWorkerPool) SubmitFunc(fn func()) {
	if fn == nil {
		failfast.Violation(ErrNilJob, "%s: submit", p.name)
	}
	p.Submit(JobFunc(fn))
}

// Shutdown implements WorkerPool
func (p *defaultWorkerPool) Shutdown() {
	p.shutdownOnce.Do(func() {
		atomic.StoreInt32(&p.running, 0)
		p.queue.Close()

		for _, w := range p.workers {
			p.logger.Infof("Shutting down worker %d.", w.id)
			<-w.done
		}
		p.logger.Infof("%s stopped: %d jobs completed, %d panicked",
			p.name, atomic.LoadInt64(&p.completed), atomic.LoadInt64(&p.panicked))
	})
}

// Close implements WorkerPool
func (p *defaultWorkerPool) Close() error {
	p.Shutdown()
	return nil
}

// Workers implements WorkerPool
func (p *defaultWorkerPool) Workers() int {
	return len(p.workers)
}

// IsRunning implements WorkerPool
func (p *defaultWorkerPool) IsRunning() bool {
	return atomic.LoadInt32(&p.running) == 1
}

// Stats implements WorkerPool
func (p *defaultWorkerPool) Stats() WorkerPoolStats {
	return WorkerPoolStats{
		Workers:        len(p.workers),
		LiveWorkers:    int(atomic.LoadInt64(&p.live)),
		BusyWorkers:    int(atomic.LoadInt64(&p.busy)),
		QueuedJobs:     p.queue.Len(),
		SubmittedJobs:  atomic.LoadInt64(&p.submitted),
		CompletedJobs:  atomic.LoadInt64(&p.completed),
		PanickedJobs:   atomic.LoadInt64(&p.panicked),
		FaultedWorkers: int(atomic.LoadInt64(&p.faulted)),
	}
}
