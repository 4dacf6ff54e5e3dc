// Package events provides lifecycle notifications for the worker pool.
package events

import (
	"fmt"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	// EventWorkerStarted is emitted when a worker goroutine begins its loop
	EventWorkerStarted EventType = "worker_started"
	// EventJobStarted is emitted when a worker picks a job off the queue
	EventJobStarted EventType = "job_started"
	// EventJobFinished is emitted when a job returns normally
	EventJobFinished EventType = "job_finished"
	// EventJobPanicked is emitted when a job panics
	EventJobPanicked EventType = "job_panicked"
	// EventWorkerStopped is emitted when a worker leaves its loop
	EventWorkerStopped EventType = "worker_stopped"
	// EventPoolClosed is emitted once every worker has been joined
	EventPoolClosed EventType = "pool_closed"
)

// StopReason explains why a worker left its loop
type StopReason string

const (
	StopReasonClosed StopReason = "closed"
	StopReasonPanic  StopReason = "panic"
)

// Event represents a pool lifecycle event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	WorkerID  int       `json:"worker_id"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	Duration string     `json:"duration,omitempty"`
	Panic    string     `json:"panic,omitempty"`
	Reason   StopReason `json:"reason,omitempty"`
	Jobs     uint64     `json:"jobs,omitempty"`
}

// NewWorkerStartedEvent creates a worker start event
func NewWorkerStartedEvent(workerID int) Event {
	return Event{
		Type:      EventWorkerStarted,
		Timestamp: time.Now(),
		WorkerID:  workerID,
	}
}

// NewJobStartedEvent creates a job pickup event
func NewJobStartedEvent(workerID int) Event {
	return Event{
		Type:      EventJobStarted,
		Timestamp: time.Now(),
		WorkerID:  workerID,
	}
}

// NewJobFinishedEvent creates a job completion event
func NewJobFinishedEvent(workerID int, took time.Duration) Event {
	return Event{
		Type:      EventJobFinished,
		Timestamp: time.Now(),
		WorkerID:  workerID,
		Data: EventData{
			Duration: took.String(),
		},
	}
}

// NewJobPanickedEvent creates a job panic event
func NewJobPanickedEvent(workerID int, recovered any) Event {
	return Event{
		Type:      EventJobPanicked,
		Timestamp: time.Now(),
		WorkerID:  workerID,
		Data: EventData{
			Panic: panicString(recovered),
		},
	}
}

// NewWorkerStoppedEvent creates a worker stop event
func NewWorkerStoppedEvent(workerID int, reason StopReason, jobs uint64) Event {
	return Event{
		Type:      EventWorkerStopped,
		Timestamp: time.Now(),
		WorkerID:  workerID,
		Data: EventData{
			Reason: reason,
			Jobs:   jobs,
		},
	}
}

// NewPoolClosedEvent creates a pool closed event. WorkerID is -1.
func NewPoolClosedEvent(jobs uint64) Event {
	return Event{
		Type:      EventPoolClosed,
		Timestamp: time.Now(),
		WorkerID:  -1,
		Data: EventData{
			Jobs: jobs,
		},
	}
}

func panicString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case error:
		return x.Error()
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
