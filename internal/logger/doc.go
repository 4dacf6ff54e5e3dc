// Package logger provides a small, thread-safe levelled logger.
//
// Each entry carries a timestamp, a level, an optional scope (for example
// "pool" or "worker-3") and the formatted message:
//
//	[2026-01-02 15:04:05.000] [INFO] [worker-0] Worker 0 got a job; executing.
//
// # Basic Usage
//
//	logger.Info("", "Application started")
//	logger.Warn("pool", "queue depth %d", n)
//
//	l := logger.New(os.Stderr, logger.LevelDebug)
//	w := l.With("worker-1")
//	w.Debug("picked up job")
//
// # Log Levels
//
// Messages below the configured level are dropped. ParseLevel accepts the
// names used in configuration files ("debug", "info", "warn", "error").
//
// # Thread Safety
//
// All logging operations are serialised by a mutex, so lines written from
// different workers never interleave.
package logger
