package acceptor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"workpool/internal/logger"
	"workpool/internal/worker"
)

// Submitter はジョブを受け付けるもの（通常は *worker.Pool）
type Submitter interface {
	Submit(job worker.Job)
}

// Handler は1つの接続を処理する。接続は呼び出し後に閉じられる
type Handler func(conn net.Conn)

// Server は接続を受け付け、1接続ごとに1ジョブをプールに投入する
type Server struct {
	listener net.Listener
	pool     Submitter
	handler  Handler
	log      logger.Scoped

	accepted atomic.Uint64
}

// Listen は addr で TCP をリッスンする Server を作成する
func Listen(addr string, pool Submitter, handler Handler) (*Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return New(l, pool, handler), nil
}

// New は既存のリスナーから Server を作成する
func New(l net.Listener, pool Submitter, handler Handler) *Server {
	if handler == nil {
		handler = EchoLine
	}
	return &Server{
		listener: l,
		pool:     pool,
		handler:  handler,
		log:      logger.Default.With("acceptor"),
	}
}

// SetLogger はロガーを差し替える
func (s *Server) SetLogger(l *logger.Logger) {
	s.log = l.With("acceptor")
}

// Addr はリッスンしているアドレスを返す
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Accepted は受け付けた接続数を返す
func (s *Server) Accepted() uint64 {
	return s.accepted.Load()
}

// Serve は ctx が終わるまで接続を受け付ける
// ctx が終わった後はジョブを投入しないので、戻った後にプールを閉じてよい
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = s.listener.Close()
	})
	defer stop()

	s.log.Info("Accepting connections on %s", s.listener.Addr())

	var backoff time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				backoff = nextBackoff(backoff)
				s.log.Warn("Accept error: %v; retrying in %v", err, backoff)
				time.Sleep(backoff)
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("failed to accept connection: %w", err)
		}
		backoff = 0

		if ctx.Err() != nil {
			_ = conn.Close()
			return nil
		}

		s.accepted.Add(1)
		s.pool.Submit(func() {
			defer conn.Close()
			s.handler(conn)
		})
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}

// EchoLine は1行読み取り、そのまま書き返す
func EchoLine(conn net.Conn) {
	_ = conn.SetDeadline(time.Now().Add(30 * time.Second))

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return
	}
	_, _ = conn.Write([]byte(line))
}
