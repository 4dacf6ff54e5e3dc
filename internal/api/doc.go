// Package api exposes a running worker pool over HTTP.
//
// Routes:
//
//	GET /api/stats    pool-wide counters (worker.Stats)
//	GET /api/workers  per-worker state in creation order
//	GET /api/metrics  latency and throughput snapshot (metrics.Snapshot)
//	GET /api/presets  workload presets with descriptions
//	GET /metrics      Prometheus exposition
//	    /ws           WebSocket stream of lifecycle events as JSON
//
// # Basic Usage
//
//	pool := worker.NewWithConfig(worker.Config{Size: 4, Metrics: m, Events: bus})
//	srv := api.NewServer("localhost:8080", pool, m, bus)
//	go srv.Start(ctx) // stops when ctx is done
package api
