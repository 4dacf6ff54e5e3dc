package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"workpool/internal/events"
	"workpool/internal/logger"
	"workpool/internal/metrics"
	"workpool/internal/queue"
)

// ErrPoolClosed はクローズ済みのプールにジョブを投入したことを示す
var ErrPoolClosed = errors.New("worker: pool is closed")

// Job はワーカーが実行するジョブを表す
type Job func()

// PanicPolicy はジョブがパニックした時のワーカーの扱い
type PanicPolicy int

const (
	// PanicRecover はパニックを回収し、ワーカーを待機状態に戻す
	PanicRecover PanicPolicy = iota
	// PanicRetire はパニックしたジョブを実行したワーカーを終了させる
	PanicRetire
)

func (p PanicPolicy) String() string {
	switch p {
	case PanicRecover:
		return "recover"
	case PanicRetire:
		return "retire"
	default:
		return "unknown"
	}
}

// ParsePanicPolicy は文字列から PanicPolicy を解析する
func ParsePanicPolicy(s string) (PanicPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "recover", "":
		return PanicRecover, nil
	case "retire":
		return PanicRetire, nil
	default:
		return PanicRecover, fmt.Errorf("unknown panic policy: %q", s)
	}
}

// State はワーカーの状態を表す
type State int32

const (
	StateIdle State = iota
	StateBusy
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBusy:
		return "busy"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Config はワーカープールの設定
type Config struct {
	Size        int              // ワーカー数（1以上）
	PanicPolicy PanicPolicy      // ジョブパニック時の扱い
	Logger      *logger.Logger   // nil なら logger.Default
	Metrics     *metrics.Metrics // 任意
	Events      *events.Bus      // 任意
}

// worker は1つのワーカーゴルーチンとその識別子
type worker struct {
	id    int
	state atomic.Int32
	jobs  atomic.Uint64

	// done はゴルーチン終了時に閉じられる。join 済みなら nil
	done chan struct{}
}

// Pool は固定数のワーカーゴルーチンを管理する
type Pool struct {
	config  Config
	log     *logger.Logger
	workers []*worker

	mu     sync.RWMutex
	sender *queue.Sender[Job]
	rx     *queue.Receiver[Job]

	// joinMu は teardown を直列化し、worker.done を保護する
	joinMu      sync.Mutex
	closedEvent bool

	alive     atomic.Int32
	busy      atomic.Int32
	submitted atomic.Uint64
	completed atomic.Uint64
	panicked  atomic.Uint64
}

// New は size 個のワーカーを持つプールを作成し、すぐに起動する
// size が 0 以下ならパニックする
func New(size int) *Pool {
	return NewWithConfig(Config{Size: size})
}

// NewWithConfig は設定を指定してプールを作成し、すぐに起動する
func NewWithConfig(config Config) *Pool {
	if config.Size <= 0 {
		panic(fmt.Sprintf("worker: pool size must be positive, got %d", config.Size))
	}

	l := config.Logger
	if l == nil {
		l = logger.Default
	}

	tx, rx := queue.New[Job]()
	p := &Pool{
		config:  config,
		log:     l,
		workers: make([]*worker, 0, config.Size),
		sender:  tx,
		rx:      rx,
	}

	p.alive.Store(int32(config.Size))
	for id := 0; id < config.Size; id++ {
		w := &worker{id: id, done: make(chan struct{})}
		p.workers = append(p.workers, w)
		go p.run(w)
	}

	l.Debug("pool", "WorkerPool started with %d workers (panic policy: %s)", config.Size, config.PanicPolicy)
	return p
}

// Submit はジョブをキューに投入する（ブロックしない）
// クローズ後の投入や nil ジョブはプログラミングエラーとしてパニックする
func (p *Pool) Submit(job Job) {
	if job == nil {
		panic("worker: nil job")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.sender == nil {
		panic(fmt.Errorf("worker: submit: %w", ErrPoolClosed))
	}
	if err := p.sender.Send(job); err != nil {
		panic(fmt.Errorf("worker: submit: %w: %w", ErrPoolClosed, err))
	}

	p.submitted.Add(1)
	if p.config.Metrics != nil {
		p.config.Metrics.RecordSubmit()
	}
}

// Close は送信側を解放し、全ワーカーを作成順に join する
// 投入済みのジョブは全て実行されてから戻る。二度目以降の呼び出しは何もしない
func (p *Pool) Close() {
	_ = p.Shutdown(context.Background())
}

// Shutdown は Close と同じだが、ctx が終わるまでに join できなかった場合はエラーを返す
// join できなかったワーカーは残るので、後で Close を呼べば続きから join する
func (p *Pool) Shutdown(ctx context.Context) error {
	p.joinMu.Lock()
	defer p.joinMu.Unlock()

	// 送信側の解放が終了シグナル
	p.mu.Lock()
	if p.sender != nil {
		p.sender.Close()
		p.sender = nil
	}
	p.mu.Unlock()

	for _, w := range p.workers {
		if w.done == nil {
			continue
		}

		p.log.Info("pool", "Shutting down worker %d", w.id)

		select {
		case <-w.done:
			w.done = nil
		case <-ctx.Done():
			return fmt.Errorf("worker: join worker %d: %w", w.id, ctx.Err())
		}
	}

	if !p.closedEvent {
		p.closedEvent = true
		p.publish(events.NewPoolClosedEvent(p.completed.Load() + p.panicked.Load()))
	}
	return nil
}

// run はワーカーゴルーチンのループ
func (p *Pool) run(w *worker) {
	defer close(w.done)

	log := p.log.With(fmt.Sprintf("worker-%d", w.id))
	reason := events.StopReasonClosed

	defer func() {
		w.state.Store(int32(StateTerminated))
		remaining := p.alive.Add(-1)
		p.publish(events.NewWorkerStoppedEvent(w.id, reason, w.jobs.Load()))

		// 最後のワーカーがパニックで抜けたら受信側を切断する
		if reason == events.StopReasonPanic && remaining == 0 {
			log.Warn("All workers retired; disconnecting queue with %d job(s) pending", p.rx.Len())
			p.rx.Close()
		}
	}()

	p.publish(events.NewWorkerStartedEvent(w.id))

	for {
		job, err := p.rx.Receive()
		if err != nil {
			log.Info("Worker %d disconnected; shutting down.", w.id)
			return
		}

		log.Info("Worker %d got a job; executing.", w.id)

		w.state.Store(int32(StateBusy))
		p.busy.Add(1)
		ok := p.execute(w, job, log)
		p.busy.Add(-1)

		if !ok && p.config.PanicPolicy == PanicRetire {
			reason = events.StopReasonPanic
			log.Debug("Worker %d retired after a job panic", w.id)
			return
		}
		w.state.Store(int32(StateIdle))
	}
}

// execute はジョブを1つ実行し、正常終了したかどうかを返す
func (p *Pool) execute(w *worker, job Job, log logger.Scoped) (ok bool) {
	p.publish(events.NewJobStartedEvent(w.id))
	start := time.Now()

	defer func() {
		took := time.Since(start)
		w.jobs.Add(1)

		if r := recover(); r != nil {
			ok = false
			p.panicked.Add(1)
			if p.config.Metrics != nil {
				p.config.Metrics.RecordPanic(took)
			}
			log.Debug("Worker %d job panicked: %v", w.id, r)
			p.publish(events.NewJobPanickedEvent(w.id, r))
			return
		}

		p.completed.Add(1)
		if p.config.Metrics != nil {
			p.config.Metrics.RecordJob(took)
		}
		p.publish(events.NewJobFinishedEvent(w.id, took))
	}()

	job()
	return true
}

func (p *Pool) publish(e events.Event) {
	if p.config.Events != nil {
		p.config.Events.Publish(e)
	}
}

// Stats はプールの統計情報
type Stats struct {
	Workers   int    `json:"workers"`
	Alive     int    `json:"alive"`
	Busy      int    `json:"busy"`
	Queued    int    `json:"queued"`
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Panicked  uint64 `json:"panicked"`
}

// Stats は現在の統計情報を返す
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   len(p.workers),
		Alive:     int(p.alive.Load()),
		Busy:      int(p.busy.Load()),
		Queued:    p.rx.Len(),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
	}
}

// WorkerInfo は個々のワーカーの状態
type WorkerInfo struct {
	ID    int    `json:"id"`
	State string `json:"state"`
	Jobs  uint64 `json:"jobs"`
}

// Workers は全ワーカーの状態を作成順に返す
func (p *Pool) Workers() []WorkerInfo {
	infos := make([]WorkerInfo, 0, len(p.workers))
	for _, w := range p.workers {
		infos = append(infos, WorkerInfo{
			ID:    w.id,
			State: State(w.state.Load()).String(),
			Jobs:  w.jobs.Load(),
		})
	}
	return infos
}

// NumWorkers はワーカー数を返す
func (p *Pool) NumWorkers() int {
	return len(p.workers)
}

// QueueSize は現在のキューサイズを返す
func (p *Pool) QueueSize() int {
	return p.rx.Len()
}

// PanicPolicy はパニック時の扱いを返す
func (p *Pool) PanicPolicy() PanicPolicy {
	return p.config.PanicPolicy
}
