package concurrency

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fluxorio/exchanger/pkg/core"
)

// syncBuffer is a bytes.Buffer safe for the pool's concurrent log writers
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func quietPool(t *testing.T, workers int) WorkerPool {
	t.Helper()
	return NewWorkerPoolWithConfig(WorkerPoolConfig{
		Name:    t.Name(),
		Workers: workers,
		Logger:  core.NewWriterLogger(io.Discard, core.LevelDebug),
	})
}

func expectPanic(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic wrapping %v, got none", target)
		}
		err, ok := r.(error)
		if !ok {
			t.Fatalf("expected error panic value, got %T: %v", r, r)
		}
		if !errors.Is(err, target) {
			t.Fatalf("panic %v does not wrap %v", err, target)
		}
	}()
	fn()
}

// shutdownWithin fails the test instead of hanging when Shutdown deadlocks
func shutdownWithin(t *testing.T, pool WorkerPool, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("Shutdown() did not return within %v", d)
	}
}

func TestNewWorkerPool(t *testing.T) {
	pool := quietPool(t, 5)
	defer pool.Shutdown()

	if pool.Workers() != 5 {
		t.Errorf("Workers() = %d, want 5", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("IsRunning() should return true after construction")
	}
	if got := DefaultWorkerPoolConfig().Workers; got != 4 {
		t.Errorf("DefaultWorkerPoolConfig().Workers = %d, want 4", got)
	}
}

func TestNewWorkerPool_InvalidSize(t *testing.T) {
	for _, count := range []int{0, -1, -10} {
		t.Run(fmt.Sprintf("count=%d", count), func(t *testing.T) {
			before := runtime.NumGoroutine()
			expectPanic(t, ErrInvalidPoolSize, func() {
				NewWorkerPool(count)
			})
			// Give any stray worker a chance to be scheduled before counting.
			time.Sleep(20 * time.Millisecond)
			if after := runtime.NumGoroutine(); after > before {
				t.Errorf("goroutines grew from %d to %d, want no workers spawned", before, after)
			}
		})
	}
}

func TestWorkerPool_ShutdownWithoutJobs(t *testing.T) {
	for count := 1; count <= 8; count++ {
		t.Run(fmt.Sprintf("workers=%d", count), func(t *testing.T) {
			pool := quietPool(t, count)
			shutdownWithin(t, pool, 2*time.Second)

			stats := pool.Stats()
			if stats.LiveWorkers != 0 {
				t.Errorf("LiveWorkers = %d after Shutdown, want 0", stats.LiveWorkers)
			}
			if pool.IsRunning() {
				t.Error("IsRunning() should return false after Shutdown()")
			}
		})
	}
}

func TestWorkerPool_RunsEveryJobExactlyOnce(t *testing.T) {
	const jobs = 2000
	pool := quietPool(t, 4)

	runs := make([]int32, jobs)
	var total atomic.Int64
	for i := 0; i < jobs; i++ {
		i := i
		pool.SubmitFunc(func() {
			atomic.AddInt32(&runs[i], 1)
			total.Add(1)
		})
	}

	shutdownWithin(t, pool, 5*time.Second)

	if total.Load() != jobs {
		t.Fatalf("total runs = %d, want %d", total.Load(), jobs)
	}
	for i, n := range runs {
		if n != 1 {
			t.Errorf("job %d ran %d times", i, n)
		}
	}

	stats := pool.Stats()
	if stats.SubmittedJobs != jobs || stats.CompletedJobs != jobs {
		t.Errorf("Stats() submitted=%d completed=%d, want %d each",
			stats.SubmittedJobs, stats.CompletedJobs, jobs)
	}
}

func TestWorkerPool_SingleWorkerIsFIFO(t *testing.T) {
	const jobs = 200
	pool := quietPool(t, 1)

	var mu sync.Mutex
	order := make([]int, 0, jobs)
	for i := 0; i < jobs; i++ {
		i := i
		pool.SubmitFunc(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}

	shutdownWithin(t, pool, 5*time.Second)

	if len(order) != jobs {
		t.Fatalf("ran %d jobs, want %d", len(order), jobs)
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("position %d ran job %d, want %d", i, got, i)
		}
	}
}

func TestWorkerPool_ConcurrencyBoundedByWorkers(t *testing.T) {
	const workers = 3
	pool := quietPool(t, workers)

	started := make(chan int, workers+1)
	releases := make([]chan struct{}, workers+1)
	var running, maxRunning atomic.Int32

	for i := range releases {
		i := i
		releases[i] = make(chan struct{})
		pool.SubmitFunc(func() {
			n := running.Add(1)
			for {
				m := maxRunning.Load()
				if n <= m || maxRunning.CompareAndSwap(m, n) {
					break
				}
			}
			started <- i
			<-releases[i]
			running.Add(-1)
		})
	}

	for i := 0; i < workers; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d jobs started", i, workers)
		}
	}

	select {
	case i := <-started:
		t.Fatalf("job %d started while all %d workers were busy", i, workers)
	case <-time.After(100 * time.Millisecond):
	}

	close(releases[0])

	select {
	case i := <-started:
		if i != workers {
			t.Errorf("started job %d, want %d", i, workers)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queued job did not start after a worker was freed")
	}

	for _, ch := range releases[1:] {
		close(ch)
	}
	shutdownWithin(t, pool, 2*time.Second)

	if maxRunning.Load() > workers {
		t.Errorf("max concurrent jobs = %d, want <= %d", maxRunning.Load(), workers)
	}
}

func TestWorkerPool_PanickingJobDoesNotKillWorker(t *testing.T) {
	logs := &syncBuffer{}
	pool := NewWorkerPoolWithConfig(WorkerPoolConfig{
		Name:    "panic-test",
		Workers: 1,
		Logger:  core.NewWriterLogger(logs, core.LevelDebug),
	})

	var counter atomic.Int32
	pool.Submit(NewNamedJob("exploding", func() {
		panic("boom")
	}))
	for i := 0; i < 10; i++ {
		pool.SubmitFunc(func() { counter.Add(1) })
	}

	shutdownWithin(t, pool, 2*time.Second)

	if counter.Load() != 10 {
		t.Errorf("counter = %d, want 10", counter.Load())
	}
	stats := pool.Stats()
	if stats.PanickedJobs != 1 {
		t.Errorf("PanickedJobs = %d, want 1", stats.PanickedJobs)
	}
	if stats.CompletedJobs != 10 {
		t.Errorf("CompletedJobs = %d, want 10", stats.CompletedJobs)
	}
	if stats.FaultedWorkers != 0 {
		t.Errorf("FaultedWorkers = %d, want 0", stats.FaultedWorkers)
	}
	if !strings.Contains(logs.String(), "exploding panicked (isolated): boom") {
		t.Errorf("panic was not logged, logs:\n%s", logs.String())
	}
}

func TestWorkerPool_GoexitFaultsOnlyThatWorker(t *testing.T) {
	pool := quietPool(t, 2)

	var counter atomic.Int32
	pool.SubmitFunc(func() {
		runtime.Goexit()
	})
	for i := 0; i < 20; i++ {
		pool.SubmitFunc(func() { counter.Add(1) })
	}

	shutdownWithin(t, pool, 2*time.Second)

	if counter.Load() != 20 {
		t.Errorf("counter = %d, want 20", counter.Load())
	}
	stats := pool.Stats()
	if stats.FaultedWorkers != 1 {
		t.Errorf("FaultedWorkers = %d, want 1", stats.FaultedWorkers)
	}
	if stats.LiveWorkers != 0 {
		t.Errorf("LiveWorkers = %d, want 0", stats.LiveWorkers)
	}
}

func TestWorkerPool_ShutdownRunsAlreadySubmittedJobs(t *testing.T) {
	const jobs = 100
	pool := quietPool(t, 3)

	var counter atomic.Int32
	for i := 0; i < jobs; i++ {
		pool.SubmitFunc(func() {
			time.Sleep(time.Millisecond)
			counter.Add(1)
		})
	}
	pool.Shutdown()

	if counter.Load() != jobs {
		t.Errorf("counter = %d after Shutdown returned, want %d", counter.Load(), jobs)
	}
}

func TestWorkerPool_ShutdownWaitsForInFlightJob(t *testing.T) {
	pool := quietPool(t, 1)

	var finished atomic.Bool
	started := make(chan struct{})
	pool.SubmitFunc(func() {
		close(started)
		time.Sleep(100 * time.Millisecond)
		finished.Store(true)
	})

	<-started
	pool.Shutdown()

	if !finished.Load() {
		t.Error("Shutdown() returned before the in-flight job finished")
	}
}

func TestWorkerPool_SubmitAfterShutdownPanics(t *testing.T) {
	pool := quietPool(t, 2)
	pool.Shutdown()

	expectPanic(t, ErrPoolShutdown, func() {
		pool.SubmitFunc(func() {})
	})
}

func TestWorkerPool_SubmitNilPanics(t *testing.T) {
	pool := quietPool(t, 1)
	defer pool.Shutdown()

	expectPanic(t, ErrNilJob, func() { pool.Submit(nil) })
	expectPanic(t, ErrNilJob, func() { pool.SubmitFunc(nil) })
}

func TestWorkerPool_ShutdownIsIdempotent(t *testing.T) {
	pool := quietPool(t, 2)

	shutdownWithin(t, pool, time.Second)
	shutdownWithin(t, pool, time.Second)
	if err := pool.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestWorkerPool_ShutdownJoinsInIndexOrder(t *testing.T) {
	logs := &syncBuffer{}
	pool := NewWorkerPoolWithConfig(WorkerPoolConfig{
		Name:    "order-test",
		Workers: 4,
		Logger:  core.NewWriterLogger(logs, core.LevelInfo),
	})
	pool.Shutdown()

	out := logs.String()
	last := -1
	for i := 0; i < 4; i++ {
		idx := strings.Index(out, fmt.Sprintf("Shutting down worker %d.", i))
		if idx < 0 {
			t.Fatalf("missing shutdown log for worker %d:\n%s", i, out)
		}
		if idx < last {
			t.Errorf("worker %d joined out of order:\n%s", i, out)
		}
		last = idx
	}
}

func TestWorkerPool_ConcurrentSubmit(t *testing.T) {
	pool := quietPool(t, 4)

	var counter atomic.Int32
	const submitters = 10
	const jobsPerSubmitter = 100

	var wg sync.WaitGroup
	wg.Add(submitters)
	for i := 0; i < submitters; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < jobsPerSubmitter; j++ {
				pool.SubmitFunc(func() { counter.Add(1) })
			}
		}()
	}
	wg.Wait()
	shutdownWithin(t, pool, 5*time.Second)

	if counter.Load() != submitters*jobsPerSubmitter {
		t.Errorf("counter = %d, want %d", counter.Load(), submitters*jobsPerSubmitter)
	}
}

type countingObserver struct {
	submitted, started, finished, panicked, exited, faulted atomic.Int32
}

func (o *countingObserver) JobSubmitted()           { o.submitted.Add(1) }
func (o *countingObserver) JobStarted(workerID int) { o.started.Add(1) }
func (o *countingObserver) JobFinished(workerID int, elapsed time.Duration, panicked bool) {
	o.finished.Add(1)
	if panicked {
		o.panicked.Add(1)
	}
}
func (o *countingObserver) WorkerExited(workerID int, faulted bool) {
	o.exited.Add(1)
	if faulted {
		o.faulted.Add(1)
	}
}

func TestWorkerPool_Observer(t *testing.T) {
	obs := &countingObserver{}
	pool := NewWorkerPoolWithConfig(WorkerPoolConfig{
		Workers:  3,
		Logger:   core.NewWriterLogger(io.Discard, core.LevelError),
		Observer: obs,
	})

	for i := 0; i < 5; i++ {
		pool.SubmitFunc(func() {})
	}
	pool.SubmitFunc(func() { panic("observer test") })
	pool.Shutdown()

	if obs.submitted.Load() != 6 || obs.started.Load() != 6 || obs.finished.Load() != 6 {
		t.Errorf("observer saw submitted=%d started=%d finished=%d, want 6 each",
			obs.submitted.Load(), obs.started.Load(), obs.finished.Load())
	}
	if obs.panicked.Load() != 1 {
		t.Errorf("observer panicked = %d, want 1", obs.panicked.Load())
	}
	if obs.exited.Load() != 3 || obs.faulted.Load() != 0 {
		t.Errorf("observer exited=%d faulted=%d, want 3 and 0", obs.exited.Load(), obs.faulted.Load())
	}
}
