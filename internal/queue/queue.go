package queue

import (
	"errors"
	"sync"
)

var (
	// ErrClosed は全ての送信側が解放され、キューが空になったことを示す
	ErrClosed = errors.New("queue: closed")
	// ErrDisconnected は受信側が閉じられたことを示す
	ErrDisconnected = errors.New("queue: receiver disconnected")
	// ErrSenderClosed は解放済みの送信ハンドルが使われたことを示す
	ErrSenderClosed = errors.New("queue: sender already closed")
)

// state は送信側と受信側が共有するキュー本体
type state[T any] struct {
	mu    sync.Mutex
	ready *sync.Cond

	items []T
	head  int

	senders      int
	closed       bool
	disconnected bool
}

// Sender はキューへの送信ハンドル
type Sender[T any] struct {
	s *state[T]

	mu       sync.Mutex
	released bool
}

// Receiver はキューの受信側（複数ゴルーチンで共有可能）
type Receiver[T any] struct {
	s *state[T]
}

// New は新しいキューを作成し、送信ハンドルと受信側を返す
func New[T any]() (*Sender[T], *Receiver[T]) {
	s := &state[T]{senders: 1}
	s.ready = sync.NewCond(&s.mu)
	return &Sender[T]{s: s}, &Receiver[T]{s: s}
}

// Clone は同じキューを指す新しい送信ハンドルを返す
func (tx *Sender[T]) Clone() (*Sender[T], error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.released {
		return nil, ErrSenderClosed
	}

	tx.s.mu.Lock()
	tx.s.senders++
	tx.s.mu.Unlock()

	return &Sender[T]{s: tx.s}, nil
}

// Send はアイテムをキュー末尾に追加する（ブロックしない）
func (tx *Sender[T]) Send(v T) error {
	tx.mu.Lock()
	released := tx.released
	tx.mu.Unlock()
	if released {
		return ErrSenderClosed
	}

	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disconnected {
		return ErrDisconnected
	}
	s.items = append(s.items, v)
	s.ready.Signal()
	return nil
}

// Close は送信ハンドルを解放する
// 最後のハンドルが解放されるとキューはクローズ状態になる
func (tx *Sender[T]) Close() {
	tx.mu.Lock()
	if tx.released {
		tx.mu.Unlock()
		return
	}
	tx.released = true
	tx.mu.Unlock()

	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	s.senders--
	if s.senders == 0 {
		s.closed = true
		s.ready.Broadcast()
	}
}

// Receive は先頭のアイテムを取り出す
// キューが空で送信側が残っている間はブロックし、
// 全送信側が解放済みで空なら ErrClosed を返す
func (rx *Receiver[T]) Receive() (T, error) {
	s := rx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.disconnected {
			var zero T
			return zero, ErrDisconnected
		}
		if s.head < len(s.items) {
			return s.pop(), nil
		}
		if s.closed {
			var zero T
			return zero, ErrClosed
		}
		s.ready.Wait()
	}
}

// TryReceive はブロックせずにアイテムを取り出す
func (rx *Receiver[T]) TryReceive() (T, bool) {
	s := rx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disconnected || s.head >= len(s.items) {
		var zero T
		return zero, false
	}
	return s.pop(), true
}

// Close は受信側を閉じ、残りのアイテムを破棄する
func (rx *Receiver[T]) Close() {
	s := rx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disconnected {
		return
	}
	s.disconnected = true
	s.items = nil
	s.head = 0
	s.ready.Broadcast()
}

// Len は現在キューに溜まっているアイテム数を返す
func (rx *Receiver[T]) Len() int {
	s := rx.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) - s.head
}

// Closed は全送信側が解放済みかどうかを返す
func (rx *Receiver[T]) Closed() bool {
	s := rx.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// pop は先頭を取り出す。呼び出し側が mu を保持していること
func (s *state[T]) pop() T {
	var zero T
	v := s.items[s.head]
	s.items[s.head] = zero
	s.head++

	// 半分以上消費したら前詰めしてメモリを返す
	if s.head == len(s.items) {
		s.items = s.items[:0]
		s.head = 0
	} else if s.head > len(s.items)/2 {
		n := copy(s.items, s.items[s.head:])
		clear(s.items[n:])
		s.items = s.items[:n]
		s.head = 0
	}
	return v
}
