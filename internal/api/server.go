package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"workpool/internal/events"
	"workpool/internal/logger"
	"workpool/internal/metrics"
	"workpool/internal/worker"
	"workpool/internal/workload"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"
)

// Namespace は公開する Prometheus メトリクスの名前空間
const Namespace = "workpool"

// Source はプールの状態を提供するもの（通常は *worker.Pool）
type Source interface {
	Stats() worker.Stats
	Workers() []worker.WorkerInfo
}

// Server はAPIサーバー
type Server struct {
	addr     string
	source   Source
	metrics  *metrics.Metrics
	bus      *events.Bus
	registry *prometheus.Registry
	log      logger.Scoped

	mu        sync.RWMutex
	wsClients map[*websocket.Conn]bool

	server *http.Server
}

// NewServer は新しいAPIサーバーを作成する
// m と bus は nil でもよい
func NewServer(addr string, source Source, m *metrics.Metrics, bus *events.Bus) *Server {
	s := &Server{
		addr:      addr,
		source:    source,
		metrics:   m,
		bus:       bus,
		registry:  prometheus.NewRegistry(),
		log:       logger.Default.With("api"),
		wsClients: make(map[*websocket.Conn]bool),
	}
	s.registerCollectors()
	return s
}

func (s *Server) registerCollectors() {
	gauge := func(name, help string, fn func(worker.Stats) int) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "pool",
			Name:      name,
			Help:      help,
		}, func() float64 {
			return float64(fn(s.source.Stats()))
		})
	}

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		gauge("workers", "Number of workers the pool was created with",
			func(st worker.Stats) int { return st.Workers }),
		gauge("alive_workers", "Number of workers that have not terminated",
			func(st worker.Stats) int { return st.Alive }),
		gauge("busy_workers", "Number of workers currently executing a job",
			func(st worker.Stats) int { return st.Busy }),
		gauge("queued_jobs", "Number of jobs waiting in the queue",
			func(st worker.Stats) int { return st.Queued }),
	)
	if s.metrics != nil {
		s.registry.MustRegister(metrics.NewCollector(Namespace, s.metrics))
	}
}

// SetLogger はロガーを差し替える
func (s *Server) SetLogger(l *logger.Logger) {
	s.log = l.With("api")
}

// Handler はルーティング済みの http.Handler を返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/workers", s.handleWorkers)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/presets", s.handlePresets)

	// Prometheus
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// WebSocket
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))

	return mux
}

// Start はサーバーを開始し、ctx が終わるまでブロックする
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// バックグラウンドでイベント配信
	go s.forwardEvents(ctx)

	s.log.Info("API Server starting on http://%s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.source.Stats())
}

func (s *Server) handleWorkers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.source.Workers())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.metrics == nil {
		http.Error(w, "Metrics not enabled", http.StatusNotFound)
		return
	}
	s.writeJSON(w, s.metrics.Snapshot())
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, workload.Presets())
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

func (s *Server) broadcast(data any) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		s.log.Error("Failed to encode event: %v", err)
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

// forwardEvents はイベントバスのイベントを全WebSocketクライアントに配信する
func (s *Server) forwardEvents(ctx context.Context) {
	if s.bus == nil {
		return
	}

	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			s.broadcast(e)
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON: %v", err)
	}
}
