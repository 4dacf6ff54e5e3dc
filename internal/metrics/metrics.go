package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const defaultMaxLatencySamples = 1000

// Config はメトリクスの設定
type Config struct {
	MaxLatencySamples int // P99 計算用に保持するサンプル数
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{MaxLatencySamples: defaultMaxLatencySamples}
}

// Metrics はジョブ実行のメトリクスを収集する
type Metrics struct {
	submittedJobs atomic.Uint64
	completedJobs atomic.Uint64
	panickedJobs  atomic.Uint64
	totalLatency  atomic.Uint64 // ns

	mu                sync.RWMutex
	startTime         time.Time
	lastResetTime     time.Time
	windowJobs        uint64
	latencies         []time.Duration
	maxLatencySamples int
}

// New は新しいメトリクスを作成する
func New() *Metrics {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig は設定を指定してメトリクスを作成する
func NewWithConfig(config Config) *Metrics {
	samples := config.MaxLatencySamples
	if samples <= 0 {
		samples = defaultMaxLatencySamples
	}
	now := time.Now()
	return &Metrics{
		startTime:         now,
		lastResetTime:     now,
		latencies:         make([]time.Duration, 0, samples),
		maxLatencySamples: samples,
	}
}

// RecordSubmit はジョブの投入を記録する
func (m *Metrics) RecordSubmit() {
	m.submittedJobs.Add(1)
}

// RecordJob は正常終了したジョブを記録する
func (m *Metrics) RecordJob(latency time.Duration) {
	m.completedJobs.Add(1)
	m.totalLatency.Add(uint64(latency.Nanoseconds()))

	m.mu.Lock()
	m.windowJobs++
	if len(m.latencies) < m.maxLatencySamples {
		m.latencies = append(m.latencies, latency)
	}
	m.mu.Unlock()
}

// RecordPanic はパニックで終わったジョブを記録する
func (m *Metrics) RecordPanic(latency time.Duration) {
	m.panickedJobs.Add(1)
	m.totalLatency.Add(uint64(latency.Nanoseconds()))

	m.mu.Lock()
	m.windowJobs++
	m.mu.Unlock()
}

// SubmittedJobs は投入されたジョブ数を返す
func (m *Metrics) SubmittedJobs() uint64 {
	return m.submittedJobs.Load()
}

// CompletedJobs は正常終了したジョブ数を返す
func (m *Metrics) CompletedJobs() uint64 {
	return m.completedJobs.Load()
}

// PanickedJobs はパニックしたジョブ数を返す
func (m *Metrics) PanickedJobs() uint64 {
	return m.panickedJobs.Load()
}

// ExecutedJobs は実行を終えたジョブ数（正常＋パニック）を返す
func (m *Metrics) ExecutedJobs() uint64 {
	return m.completedJobs.Load() + m.panickedJobs.Load()
}

// Throughput は直近ウィンドウの秒間ジョブ数を返す
func (m *Metrics) Throughput() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := time.Since(m.lastResetTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.windowJobs) / elapsed
}

// OverallThroughput は開始からの平均秒間ジョブ数を返す
func (m *Metrics) OverallThroughput() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.ExecutedJobs()) / elapsed
}

// AverageLatency は平均実行時間を返す
func (m *Metrics) AverageLatency() time.Duration {
	total := m.ExecutedJobs()
	if total == 0 {
		return 0
	}
	return time.Duration(m.totalLatency.Load() / total)
}

// P99Latency はP99実行時間を返す（サンプルベース）
func (m *Metrics) P99Latency() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencies) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// PanicRate はパニック率を返す（0.0〜1.0）
func (m *Metrics) PanicRate() float64 {
	total := m.ExecutedJobs()
	if total == 0 {
		return 0
	}
	return float64(m.panickedJobs.Load()) / float64(total)
}

// Reset はウィンドウメトリクスをリセットする
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.windowJobs = 0
	m.lastResetTime = time.Now()
	m.latencies = m.latencies[:0]
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	SubmittedJobs     uint64        `json:"submitted_jobs"`
	CompletedJobs     uint64        `json:"completed_jobs"`
	PanickedJobs      uint64        `json:"panicked_jobs"`
	Throughput        float64       `json:"throughput"`
	OverallThroughput float64       `json:"overall_throughput"`
	AverageLatency    time.Duration `json:"average_latency_ns"`
	P99Latency        time.Duration `json:"p99_latency_ns"`
	PanicRate         float64       `json:"panic_rate"`
	Elapsed           time.Duration `json:"elapsed_ns"`
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		SubmittedJobs:     m.SubmittedJobs(),
		CompletedJobs:     m.CompletedJobs(),
		PanickedJobs:      m.PanickedJobs(),
		Throughput:        m.Throughput(),
		OverallThroughput: m.OverallThroughput(),
		AverageLatency:    m.AverageLatency(),
		P99Latency:        m.P99Latency(),
		PanicRate:         m.PanicRate(),
		Elapsed:           time.Since(m.startTime),
	}
}
