package concurrency

// Job is a unit of work run exactly once by whichever worker claims it.
// Anything a Job touches must be safe to use from any goroutine.
type Job interface {
	Run()
}

// JobFunc lets a plain func() be submitted as a Job
type JobFunc func()

// Run implements Job
func (f JobFunc) Run() {
	f()
}

// Named is implemented by jobs that want a label in worker logs
type Named interface {
	Name() string
}

// NamedJob wraps a func with a label used for logging
type NamedJob struct {
	name string
	fn   func()
}

// NewNamedJob creates a new NamedJob
func NewNamedJob(name string, fn func()) *NamedJob {
	return &NamedJob{name: name, fn: fn}
}

// Run implements Job
func (j *NamedJob) Run() {
	j.fn()
}

// Name returns the job label
func (j *NamedJob) Name() string {
	return j.name
}

func jobName(job Job) string {
	if n, ok := job.(Named); ok {
		return n.Name()
	}
	return "job"
}
