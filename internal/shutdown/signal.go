// Package shutdown はプロセス全体で共有する停止シグナルを提供する
//
// キャプチャループとHTTPサーバーは同じSignalを構築時に受け取り、
// どちらかが停止要因を検知した時点で一度だけセットされる。
// 一度セットされたシグナルはリセットされない。
package shutdown

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrInterrupted は外部からの割り込み（SIGINT/SIGTERM等）による停止を表す
var ErrInterrupted = errors.New("外部割り込みを受信")

// Signal は一度だけセットされる協調停止フラグ
type Signal struct {
	once   sync.Once
	fired  atomic.Bool
	done   chan struct{}
	mu     sync.RWMutex
	reason error
}

// New は未セット状態のSignalを作成する
func New() *Signal {
	return &Signal{
		done: make(chan struct{}),
	}
}

// Trigger はシグナルをセットする
// 最初の呼び出しのみが有効で、その場合にtrueを返す
func (s *Signal) Trigger(reason error) bool {
	triggered := false
	s.once.Do(func() {
		s.mu.Lock()
		s.reason = reason
		s.mu.Unlock()

		s.fired.Store(true)
		close(s.done)
		triggered = true
	})
	return triggered
}

// Fired はシグナルがセット済みかを返す
func (s *Signal) Fired() bool {
	return s.fired.Load()
}

// Done はシグナルがセットされたときにクローズされるチャンネルを返す
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Reason は最初にセットされた停止要因を返す
func (s *Signal) Reason() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reason
}

// Context はparentのキャンセルまたはシグナルのセットで終了するコンテキストを返す
func (s *Signal) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
