package workload

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"workpool/internal/events"
	"workpool/internal/logger"
	"workpool/internal/worker"
)

func newEngine(config Config) *Engine {
	e := New(config)
	e.SetLogger(logger.New(io.Discard, logger.LevelError))
	return e
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Name != "default" {
		t.Errorf("expected name 'default', got '%s'", config.Name)
	}
	if config.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", config.Workers)
	}
	if config.PanicPolicy != worker.PanicRecover {
		t.Errorf("expected recover policy, got %s", config.PanicPolicy)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"negative jobs", func(c *Config) { c.Jobs = -1 }},
		{"negative producers", func(c *Config) { c.Producers = -2 }},
		{"negative duration", func(c *Config) { c.JobDuration = -time.Second }},
		{"panic rate above one", func(c *Config) { c.PanicRate = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(&config)
			if err := config.Validate(); err == nil {
				t.Error("expected validation error")
			}
			if _, err := newEngine(config).Run(context.Background()); err == nil {
				t.Error("expected Run to reject invalid config")
			}
		})
	}
}

func TestNewEngine(t *testing.T) {
	engine := New(DefaultConfig())

	if engine == nil {
		t.Fatal("expected non-nil engine")
	}
	if engine.IsRunning() {
		t.Error("expected engine to not be running initially")
	}
	if engine.Pool() != nil {
		t.Error("expected no pool before Run")
	}
	if engine.Metrics() != nil {
		t.Error("expected no metrics before Run")
	}
}

func TestEngineRunQuick(t *testing.T) {
	config := QuickWorkload()
	config.JobDuration = 0
	config.JobJitter = 0

	result, err := newEngine(config).Run(context.Background())
	if err != nil {
		t.Fatalf("failed to run workload: %v", err)
	}

	if result.Name != "quick" {
		t.Errorf("expected name 'quick', got '%s'", result.Name)
	}
	if result.SubmittedJobs != uint64(config.Jobs) {
		t.Errorf("expected %d submitted, got %d", config.Jobs, result.SubmittedJobs)
	}
	if result.CompletedJobs != uint64(config.Jobs) {
		t.Errorf("expected %d completed, got %d", config.Jobs, result.CompletedJobs)
	}
	if result.PanickedJobs != 0 {
		t.Errorf("expected no panics, got %d", result.PanickedJobs)
	}
	if result.AliveWorkers != config.Workers {
		t.Errorf("expected %d alive workers, got %d", config.Workers, result.AliveWorkers)
	}
	if len(result.FinalWorkers) != config.Workers {
		t.Errorf("expected %d worker entries, got %d", config.Workers, len(result.FinalWorkers))
	}

	var total uint64
	for _, w := range result.FinalWorkers {
		total += w.Jobs
	}
	if total != uint64(config.Jobs) {
		t.Errorf("expected per-worker jobs to sum to %d, got %d", config.Jobs, total)
	}
}

func TestEngineRunZeroJobs(t *testing.T) {
	config := QuickWorkload()
	config.Jobs = 0

	result, err := newEngine(config).Run(context.Background())
	if err != nil {
		t.Fatalf("failed to run workload: %v", err)
	}
	if result.SubmittedJobs != 0 || result.CompletedJobs != 0 {
		t.Errorf("expected no jobs, got %+v", result)
	}
}

func TestEngineRunAllFaulty(t *testing.T) {
	config := FaultyWorkload()
	config.Jobs = 40
	config.JobDuration = 0
	config.JobJitter = 0
	config.PanicRate = 1

	result, err := newEngine(config).Run(context.Background())
	if err != nil {
		t.Fatalf("failed to run workload: %v", err)
	}

	if result.PanickedJobs != 40 {
		t.Errorf("expected 40 panicked jobs, got %d", result.PanickedJobs)
	}
	if result.InjectedFault != 40 {
		t.Errorf("expected 40 injected faults, got %d", result.InjectedFault)
	}
	if result.AliveWorkers != config.Workers {
		t.Errorf("recover policy should keep all workers, got %d alive", result.AliveWorkers)
	}
}

func TestEngineRunDegradeRetiresEveryWorker(t *testing.T) {
	config := DegradeWorkload()
	config.Workers = 2
	config.Producers = 1
	config.Jobs = 1 << 30
	config.JobDuration = 0
	config.PanicRate = 1

	result, err := newEngine(config).Run(context.Background())
	if err != nil {
		t.Fatalf("failed to run workload: %v", err)
	}

	if result.AliveWorkers != 0 {
		t.Errorf("expected every worker to retire, got %d alive", result.AliveWorkers)
	}
	if result.PanickedJobs != 2 {
		t.Errorf("expected exactly 2 panics (one per worker), got %d", result.PanickedJobs)
	}
	if result.RejectedJobs == 0 {
		t.Error("expected the pool to reject jobs once every worker retired")
	}
}

func TestEngineRunCanceled(t *testing.T) {
	config := QuickWorkload()
	config.Jobs = 1 << 30
	config.JobDuration = 0
	config.JobJitter = 0

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := newEngine(config).Run(ctx)
	if err != nil {
		t.Fatalf("failed to run workload: %v", err)
	}

	if !result.Canceled {
		t.Error("expected result to be marked canceled")
	}
	if result.SubmittedJobs >= uint64(config.Jobs) {
		t.Error("expected cancellation to stop submission early")
	}
	// Everything that was submitted still ran
	if result.CompletedJobs != result.SubmittedJobs {
		t.Errorf("expected %d completed, got %d", result.SubmittedJobs, result.CompletedJobs)
	}
}

func TestEngineEvents(t *testing.T) {
	config := SerialWorkload()
	config.Jobs = 5
	config.JobDuration = 0

	bus := events.NewBus()
	ch := bus.Subscribe(events.EventJobFinished, events.EventPoolClosed)

	engine := newEngine(config)
	engine.SetEventBus(bus)

	if _, err := engine.Run(context.Background()); err != nil {
		t.Fatalf("failed to run workload: %v", err)
	}

	var finished, closed int
	for len(ch) > 0 {
		switch (<-ch).Type {
		case events.EventJobFinished:
			finished++
		case events.EventPoolClosed:
			closed++
		}
	}
	if finished != 5 {
		t.Errorf("expected 5 job_finished events, got %d", finished)
	}
	if closed != 1 {
		t.Errorf("expected 1 pool_closed event, got %d", closed)
	}
}

func TestEngineDoubleRun(t *testing.T) {
	config := SerialWorkload()
	config.Jobs = 20
	config.JobDuration = 20 * time.Millisecond

	engine := newEngine(config)
	ctx := context.Background()

	done := make(chan struct{})
	var firstResult *Result
	var firstErr error

	go func() {
		firstResult, firstErr = engine.Run(ctx)
		close(done)
	}()

	// 少し待ってから二重実行を試みる
	time.Sleep(50 * time.Millisecond)

	if _, err := engine.Run(ctx); err == nil {
		t.Error("expected error when running already running workload")
	}

	<-done
	if firstErr != nil {
		t.Errorf("first run failed: %v", firstErr)
	}
	if firstResult == nil {
		t.Error("expected first result to be non-nil")
	}
	if engine.Metrics() == nil {
		t.Error("expected metrics after run")
	}
}

func TestResultReport(t *testing.T) {
	result := &Result{
		Name:          "test",
		StartTime:     time.Now(),
		EndTime:       time.Now().Add(10 * time.Second),
		Duration:      10 * time.Second,
		Workers:       2,
		Producers:     1,
		PanicPolicy:   "retire",
		AliveWorkers:  1,
		PlannedJobs:   1000,
		SubmittedJobs: 1000,
		CompletedJobs: 999,
		PanickedJobs:  1,
		Throughput:    100,
		AvgLatency:    5 * time.Millisecond,
		P99Latency:    20 * time.Millisecond,
		FinalWorkers: []worker.WorkerInfo{
			{ID: 1, State: "terminated", Jobs: 400},
			{ID: 0, State: "terminated", Jobs: 600},
		},
	}

	report := result.Report()

	if !strings.Contains(report, "WORKLOAD REPORT: test") {
		t.Error("report should contain workload name")
	}
	if !strings.Contains(report, "1000") {
		t.Error("report should contain submitted jobs")
	}
	if !strings.Contains(report, "retire") {
		t.Error("report should contain panic policy")
	}
	if !strings.Contains(report, "100.00 jobs/s") {
		t.Error("report should contain throughput")
	}
	i0 := strings.Index(report, "worker-0:")
	i1 := strings.Index(report, "worker-1:")
	if i0 < 0 || i1 < 0 || i0 > i1 {
		t.Error("report should list workers in id order")
	}
}

func TestPresets(t *testing.T) {
	names := ListPresets()
	if len(names) != 5 {
		t.Errorf("expected 5 presets, got %d", len(names))
	}

	for _, name := range names {
		config, ok := GetPreset(name)
		if !ok {
			t.Errorf("failed to get preset '%s'", name)
			continue
		}
		if config.Name != name {
			t.Errorf("preset %s has name %s", name, config.Name)
		}
		if err := config.Validate(); err != nil {
			t.Errorf("preset %s is invalid: %v", name, err)
		}
	}

	if _, ok := GetPreset("nonexistent"); ok {
		t.Error("expected unknown preset to be missing")
	}

	described := Presets()
	if len(described) != len(names) {
		t.Fatalf("expected %d described presets, got %d", len(names), len(described))
	}
	for i, p := range described {
		if p.Name != names[i] || p.Description == "" {
			t.Errorf("unexpected preset entry %+v", p)
		}
	}

	if SerialWorkload().Workers != 1 {
		t.Error("serial preset must use a single worker")
	}
	if DegradeWorkload().PanicPolicy != worker.PanicRetire {
		t.Error("degrade preset must retire workers on panic")
	}
}
