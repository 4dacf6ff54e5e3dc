// Package worker provides a fixed-size goroutine pool for one-shot jobs.
//
// A Pool starts a fixed number of workers as soon as it is created. Every
// worker blocks on a shared queue, runs the jobs it receives, and exits once
// the queue is closed.
//
// # Basic Usage
//
//	pool := worker.New(4) // 4 workers, started immediately
//	defer pool.Close()
//
//	for i := 0; i < 100; i++ {
//	    pool.Submit(func() {
//	        // do work
//	    })
//	}
//
// # Configuration
//
// Use NewWithConfig to attach a logger, metrics or an event bus, or to
// choose how a panicking job is handled:
//
//	pool := worker.NewWithConfig(worker.Config{
//	    Size:        8,
//	    PanicPolicy: worker.PanicRetire,
//	    Metrics:     metrics.New(),
//	})
//
// With PanicRecover (the default) the worker recovers and keeps serving the
// queue. With PanicRetire the worker exits after the failing job and the
// pool loses that capacity for good; once every worker has retired, further
// Submit calls panic.
//
// # Graceful Shutdown
//
// Close releases the pool's sender, lets the workers drain every job that
// was already submitted, then joins them in creation order. It is safe to
// call more than once. Shutdown does the same but gives up waiting when its
// context ends.
//
// Submitting to a closed pool, submitting a nil job and creating a pool with
// a non-positive size are programming errors and panic.
package worker
