package capture

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"camfeed/internal/metrics"
)

// Subscription は1クライアント分のチャンク受信口
type Subscription struct {
	ID string
	C  <-chan Chunk

	ch      chan Chunk
	dropped atomic.Uint64
}

// Dropped はこの購読者のために破棄したチャンク数を返す
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Broadcaster は1つのプロデューサーのチャンクを複数の購読者へ配る
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscription
	queue       int
	closed      bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewBroadcaster は購読者ごとにqueue個までチャンクを保持するBroadcasterを作成する
func NewBroadcaster(queue int) *Broadcaster {
	if queue < 1 {
		queue = 1
	}

	return &Broadcaster{
		subscribers: make(map[string]*Subscription),
		queue:       queue,
	}
}

// Subscribe は新しい購読者を登録する
// クローズ済みの場合はすでに閉じたチャンネルを持つ購読を返す
func (b *Broadcaster) Subscribe() *Subscription {
	ch := make(chan Chunk, b.queue)
	sub := &Subscription{
		ID: uuid.New().String(),
		C:  ch,
		ch: ch,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return sub
	}

	b.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe は購読者を削除してチャンネルを閉じる
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, exists := b.subscribers[id]
	if !exists {
		return
	}

	delete(b.subscribers, id)
	close(sub.ch)
}

// Publish は全購読者へノンブロッキングでチャンクを送る
// キューが満杯の購読者は最も古いチャンクを破棄する。配送した購読者数を返す
func (b *Broadcaster) Publish(chunk Chunk) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0
	}

	b.published.Add(1)

	delivered := 0
	for _, sub := range b.subscribers {
		select {
		case sub.ch <- chunk:
			delivered++
			continue
		default:
		}

		// キューが満杯なので古いチャンクを捨てる
		select {
		case <-sub.ch:
			b.drop(sub)
		default:
		}

		select {
		case sub.ch <- chunk:
			delivered++
		default:
			b.drop(sub)
		}
	}

	return delivered
}

// drop は購読者のために破棄したチャンクを記録する
func (b *Broadcaster) drop(sub *Subscription) {
	sub.dropped.Add(1)
	b.dropped.Add(1)
	metrics.ChunksDropped.Inc()
}

// Close は全購読者のチャンネルを閉じ、以降の配信を止める
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}

// Closed はClose済みかを返す
func (b *Broadcaster) Closed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// Subscribers は現在の購読者数を返す
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Published はこれまでに配信したチャンク数を返す
func (b *Broadcaster) Published() uint64 {
	return b.published.Load()
}

// Dropped は全購読者の合計破棄チャンク数を返す
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}
