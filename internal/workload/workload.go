package workload

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"workpool/internal/events"
	"workpool/internal/logger"
	"workpool/internal/metrics"
	"workpool/internal/worker"
)

// Config はワークロードの設定
type Config struct {
	Name        string // ワークロード名
	Description string // 説明

	// プール設定
	Workers     int                // ワーカー数（0でCPU数）
	PanicPolicy worker.PanicPolicy // ジョブパニック時の扱い

	// 投入設定
	Jobs        int           // 投入するジョブ総数
	Producers   int           // 並行して投入するゴルーチン数
	JobDuration time.Duration // 1ジョブの処理時間
	JobJitter   time.Duration // 処理時間の揺らぎ（±）

	// 障害注入
	PanicRate float64 // パニックさせるジョブの割合（0.0〜1.0）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Name:        "default",
		Description: "Default workload",
		Workers:     4,
		PanicPolicy: worker.PanicRecover,
		Jobs:        100,
		Producers:   2,
		JobDuration: 2 * time.Millisecond,
		JobJitter:   time.Millisecond,
		PanicRate:   0,
	}
}

// Validate は設定を検証する
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative")
	}
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must be non-negative")
	}
	if c.Producers < 0 {
		return fmt.Errorf("producers must be non-negative")
	}
	if c.JobDuration < 0 || c.JobJitter < 0 {
		return fmt.Errorf("job duration and jitter must be non-negative")
	}
	if c.PanicRate < 0 || c.PanicRate > 1 {
		return fmt.Errorf("panic rate must be between 0 and 1")
	}
	return nil
}

// Result はワークロード実行結果
type Result struct {
	Name        string
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	Workers     int
	Producers   int
	PanicPolicy string

	// ジョブ統計
	PlannedJobs   int
	SubmittedJobs uint64
	RejectedJobs  uint64
	CompletedJobs uint64
	PanickedJobs  uint64
	InjectedFault uint64
	Throughput    float64
	AvgLatency    time.Duration
	P99Latency    time.Duration

	// 中断されたかどうか
	Canceled bool

	// ワーカー状態
	AliveWorkers int
	FinalWorkers []worker.WorkerInfo
}

// Engine はワークロード実行エンジン
type Engine struct {
	config   Config
	eventBus *events.Bus
	log      *logger.Logger

	mu      sync.RWMutex
	running bool
	pool    *worker.Pool
	metrics *metrics.Metrics
}

// New は新しいEngineを作成する
func New(config Config) *Engine {
	return &Engine{
		config: config,
		log:    logger.Default,
	}
}

// SetEventBus はイベントバスを設定する
func (e *Engine) SetEventBus(bus *events.Bus) {
	e.eventBus = bus
}

// SetLogger はプールとエンジンが使うロガーを設定する
func (e *Engine) SetLogger(l *logger.Logger) {
	e.log = l
}

// Run はワークロードを実行する
// ctx が終わると投入を打ち切るが、投入済みのジョブは全て実行してから戻る
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if err := e.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workload: %w", err)
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("workload is already running")
	}
	e.running = true

	workers := e.config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	e.metrics = metrics.New()
	e.pool = worker.NewWithConfig(worker.Config{
		Size:        workers,
		PanicPolicy: e.config.PanicPolicy,
		Logger:      e.log,
		Metrics:     e.metrics,
		Events:      e.eventBus,
	})
	pool, m := e.pool, e.metrics
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	e.log.Info("", "=== Workload '%s' started ===", e.config.Name)
	e.log.Info("", "Description: %s", e.config.Description)

	result := &Result{
		Name:        e.config.Name,
		StartTime:   time.Now(),
		Workers:     workers,
		Producers:   e.producers(),
		PanicPolicy: e.config.PanicPolicy.String(),
		PlannedJobs: e.config.Jobs,
	}

	var injected, rejected atomic.Uint64
	e.produce(ctx, pool, &injected, &rejected)

	// 投入が終わったらプールを閉じて残りを実行させる
	pool.Close()

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.Canceled = ctx.Err() != nil
	result.InjectedFault = injected.Load()
	result.RejectedJobs = rejected.Load()
	e.collectResults(result, pool, m)

	e.log.Info("", "=== Workload '%s' completed ===", e.config.Name)

	return result, nil
}

func (e *Engine) producers() int {
	if e.config.Producers <= 0 {
		return 1
	}
	return e.config.Producers
}

// produce は producers 個のゴルーチンでジョブを投入する
func (e *Engine) produce(ctx context.Context, pool *worker.Pool, injected, rejected *atomic.Uint64) {
	var next atomic.Int64
	total := int64(e.config.Jobs)

	var wg sync.WaitGroup
	for p, n := 0, e.producers(); p < n; p++ {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				i := next.Add(1) - 1
				if i >= total {
					return
				}

				faulty := e.config.PanicRate > 0 && rand.Float64() < e.config.PanicRate
				if !e.submit(pool, e.job(i, faulty)) {
					rejected.Add(1)
					e.log.Warn(fmt.Sprintf("producer-%d", p), "Pool rejected job %d; stopping producer", i)
					return
				}
				if faulty {
					injected.Add(1)
				}
			}
		}()
	}
	wg.Wait()
}

// submit はプールが投入を拒否した（全ワーカー退役など）場合に false を返す
func (e *Engine) submit(pool *worker.Pool, job worker.Job) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	pool.Submit(job)
	return true
}

// job は i 番目のジョブを作る
func (e *Engine) job(i int64, faulty bool) worker.Job {
	d := e.config.JobDuration
	if j := e.config.JobJitter; j > 0 {
		d += time.Duration(rand.Int63n(int64(2*j)+1)) - j
		if d < 0 {
			d = 0
		}
	}
	return func() {
		if d > 0 {
			time.Sleep(d)
		}
		if faulty {
			panic(fmt.Sprintf("injected fault in job %d", i))
		}
	}
}

// collectResults は結果を収集する
func (e *Engine) collectResults(result *Result, pool *worker.Pool, m *metrics.Metrics) {
	snapshot := m.Snapshot()
	result.SubmittedJobs = snapshot.SubmittedJobs
	result.CompletedJobs = snapshot.CompletedJobs
	result.PanickedJobs = snapshot.PanickedJobs
	result.AvgLatency = snapshot.AverageLatency
	result.P99Latency = snapshot.P99Latency
	if secs := result.Duration.Seconds(); secs > 0 {
		result.Throughput = float64(result.CompletedJobs+result.PanickedJobs) / secs
	}

	// Close 後は全員 terminated なので、退役しなかった数を生存数とする
	result.FinalWorkers = pool.Workers()
	result.AliveWorkers = result.Workers - retired(pool)
}

// retired はパニックで退役したワーカー数を返す
// PanicRetire では1回のパニックでちょうど1人が退役する
func retired(pool *worker.Pool) int {
	if pool.PanicPolicy() != worker.PanicRetire {
		return 0
	}
	stats := pool.Stats()
	return min(int(stats.Panicked), stats.Workers)
}

// Report は結果をフォーマットして返す
func (r *Result) Report() string {
	var b strings.Builder

	fmt.Fprintf(&b, `
================================================================================
                         WORKLOAD REPORT: %s
================================================================================

EXECUTION SUMMARY
-----------------
  Start Time:     %s
  End Time:       %s
  Duration:       %v
  Canceled:       %v

POOL
----
  Workers:        %d
  Producers:      %d
  Panic Policy:   %s
  Alive Workers:  %d

JOB METRICS
-----------
  Planned:          %d
  Submitted:        %d
  Rejected:         %d
  Completed:        %d
  Panicked:         %d
  Injected Faults:  %d
  Throughput:       %.2f jobs/s
  Avg Latency:      %v
  P99 Latency:      %v

JOBS PER WORKER
---------------
`,
		r.Name,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		r.Canceled,
		r.Workers,
		r.Producers,
		r.PanicPolicy,
		r.AliveWorkers,
		r.PlannedJobs,
		r.SubmittedJobs,
		r.RejectedJobs,
		r.CompletedJobs,
		r.PanickedJobs,
		r.InjectedFault,
		r.Throughput,
		r.AvgLatency.Round(time.Microsecond),
		r.P99Latency.Round(time.Microsecond),
	)

	workers := append([]worker.WorkerInfo(nil), r.FinalWorkers...)
	sort.Slice(workers, func(i, j int) bool { return workers[i].ID < workers[j].ID })
	for _, w := range workers {
		fmt.Fprintf(&b, "  %-20s %d\n", fmt.Sprintf("worker-%d:", w.ID), w.Jobs)
	}

	b.WriteString("\n================================================================================")

	return b.String()
}

// IsRunning は実行中かどうかを返す
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Pool は現在（または直前）のプールを返す
func (e *Engine) Pool() *worker.Pool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pool
}

// Metrics はジョブメトリクスのスナップショットを返す
func (e *Engine) Metrics() *metrics.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.metrics == nil {
		return nil
	}
	snapshot := e.metrics.Snapshot()
	return &snapshot
}
