// Package metrics collects job execution statistics for the worker pool.
//
// Metrics counts submitted, completed and panicked jobs, tracks execution
// latency (average and a sampled P99) and throughput. Every method is safe
// for concurrent use by the pool's workers.
//
// # Basic Usage
//
//	m := metrics.New()
//	pool := worker.NewWithConfig(worker.Config{Size: 4, Metrics: m})
//
//	// ... submit jobs, close the pool ...
//
//	snap := m.Snapshot()
//	fmt.Printf("done: %d, panicked: %d, p99: %v\n",
//	    snap.CompletedJobs, snap.PanickedJobs, snap.P99Latency)
//
// # Prometheus
//
// NewCollector wraps a Metrics value as a prometheus.Collector:
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(metrics.NewCollector("workpool", m))
package metrics
