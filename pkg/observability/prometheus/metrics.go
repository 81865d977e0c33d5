// Package prometheus exposes worker pool, TCP, rate fetch and alert metrics.
package prometheus

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fluxorio/exchanger/pkg/core/concurrency"
)

const namespace = "exchanger"

// Metrics holds all Prometheus metrics
type Metrics struct {
	registerer prometheus.Registerer

	// Worker pool metrics
	PoolJobsSubmitted prometheus.Counter
	PoolJobsFinished  *prometheus.CounterVec
	PoolJobDuration   prometheus.Histogram
	PoolBusyWorkers   prometheus.Gauge
	PoolWorkerExits   *prometheus.CounterVec

	// TCP metrics
	TCPConnections        *prometheus.CounterVec
	TCPConnectionDuration prometheus.Histogram

	// Exchange API metrics
	ExchangeFetches       *prometheus.CounterVec
	ExchangeFetchDuration prometheus.Histogram

	// Alert metrics
	AlertChecks *prometheus.CounterVec
}

var _ concurrency.Observer = (*Metrics)(nil)

// NewRegistry returns a registry carrying the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewMetrics creates and registers the metric set on registerer
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	factory := promauto.With(registerer)

	return &Metrics{
		registerer: registerer,

		PoolJobsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_jobs_submitted_total",
			Help:      "Total number of jobs submitted to the worker pool",
		}),
		PoolJobsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_jobs_finished_total",
			Help:      "Total number of jobs finished by the worker pool",
		}, []string{"result"}), // result: completed, panicked
		PoolJobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pool_job_duration_seconds",
			Help:      "Job run time in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		PoolBusyWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_busy_workers",
			Help:      "Number of workers currently running a job",
		}),
		PoolWorkerExits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_worker_exits_total",
			Help:      "Total number of worker goroutine exits",
		}, []string{"reason"}), // reason: shutdown, fault

		TCPConnections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tcp_connections_total",
			Help:      "Total number of served TCP connections",
		}, []string{"result"}),
		TCPConnectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tcp_connection_duration_seconds",
			Help:      "Time spent serving one connection in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		ExchangeFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchange_fetches_total",
			Help:      "Total number of rate time series fetches",
		}, []string{"result"}),
		ExchangeFetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_fetch_duration_seconds",
			Help:      "Rate API round trip in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		AlertChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_checks_total",
			Help:      "Total number of threshold checks",
		}, []string{"outcome"}), // outcome: sent, skipped, error
	}
}

// WatchPool registers gauges that read the pool's stats on every scrape
func (m *Metrics) WatchPool(pool concurrency.WorkerPool) {
	factory := promauto.With(m.registerer)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pool_workers",
		Help:      "Configured worker pool size",
	}, func() float64 { return float64(pool.Stats().Workers) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pool_live_workers",
		Help:      "Worker goroutines that have not exited",
	}, func() float64 { return float64(pool.Stats().LiveWorkers) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pool_queued_jobs",
		Help:      "Jobs waiting in the shared queue",
	}, func() float64 { return float64(pool.Stats().QueuedJobs) })
}

// WatchDB registers database/sql pool statistics for db
func (m *Metrics) WatchDB(db *sql.DB, name string) {
	m.registerer.MustRegister(collectors.NewDBStatsCollector(db, name))
}

// JobSubmitted implements concurrency.Observer
func (m *Metrics) JobSubmitted() {
	m.PoolJobsSubmitted.Inc()
}

// JobStarted implements concurrency.Observer
func (m *Metrics) JobStarted(int) {
	m.PoolBusyWorkers.Inc()
}

// JobFinished implements concurrency.Observer
func (m *Metrics) JobFinished(_ int, elapsed time.Duration, panicked bool) {
	m.PoolBusyWorkers.Dec()
	m.PoolJobDuration.Observe(elapsed.Seconds())
	if panicked {
		m.PoolJobsFinished.WithLabelValues("panicked").Inc()
		return
	}
	m.PoolJobsFinished.WithLabelValues("completed").Inc()
}

// WorkerExited implements concurrency.Observer
func (m *Metrics) WorkerExited(_ int, faulted bool) {
	if faulted {
		m.PoolWorkerExits.WithLabelValues("fault").Inc()
		return
	}
	m.PoolWorkerExits.WithLabelValues("shutdown").Inc()
}

// ObserveConnection records one served TCP connection
func (m *Metrics) ObserveConnection(elapsed time.Duration, err error) {
	m.TCPConnections.WithLabelValues(result(err)).Inc()
	m.TCPConnectionDuration.Observe(elapsed.Seconds())
}

// ObserveFetch records one rate API fetch
func (m *Metrics) ObserveFetch(elapsed time.Duration, err error) {
	m.ExchangeFetches.WithLabelValues(result(err)).Inc()
	m.ExchangeFetchDuration.Observe(elapsed.Seconds())
}

// ObserveAlert records the outcome of one threshold check
func (m *Metrics) ObserveAlert(outcome string) {
	m.AlertChecks.WithLabelValues(outcome).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
