package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"camfeed/internal/camera"
	"camfeed/internal/metrics"
	"camfeed/internal/shutdown"
)

var (
	// ErrDeviceOpen はデバイスのオープン失敗による停止を表す
	ErrDeviceOpen = errors.New("キャプチャデバイスを開けません")

	// ErrFrameRead はフレーム読み取り失敗による停止を表す
	ErrFrameRead = errors.New("フレームの取得に失敗")
)

// Stats はキャプチャループの現在状態
type Stats struct {
	Running       bool
	FramesEmitted uint64
	LastFrameAt   time.Time
	Width         int // デバイスの解像度
	Height        int
}

// Loop はデバイスを所有し、一定間隔でフレームを配信する
type Loop struct {
	open   camera.Opener
	hub    *Broadcaster
	signal *shutdown.Signal
	opts   Options
	now    func() time.Time

	running     atomic.Bool
	frames      atomic.Uint64
	lastFrameAt atomic.Int64
	width       atomic.Int64
	height      atomic.Int64
}

// NewLoop は新しいLoopを作成する
func NewLoop(open camera.Opener, hub *Broadcaster, signal *shutdown.Signal, opts Options) *Loop {
	return &Loop{
		open:   open,
		hub:    hub,
		signal: signal,
		opts:   opts,
		now:    time.Now,
	}
}

// Run はデバイスを開き、停止シグナルまでフレームを配信する
//
// オープン失敗・読み取り失敗時は停止シグナルをセットしてエラーを返す。
// ctxのキャンセルまたは停止シグナルで終了した場合はnilを返す。
// どの場合も終了時にBroadcasterを閉じる。
func (l *Loop) Run(ctx context.Context) error {
	ctx, cancel := l.signal.Context(ctx)
	defer cancel()
	defer l.hub.Close()

	device, err := l.open(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDeviceOpen, err)
		log.Printf("カメラを開けませんでした。終了します: %v", err)
		metrics.CaptureFailures.WithLabelValues(metrics.StageOpen).Inc()
		l.signal.Trigger(err)
		return err
	}

	w, h := device.Resolution()
	l.width.Store(int64(w))
	l.height.Store(int64(h))
	log.Printf("カメラを開きました。解像度: %dx%d", w, h)

	l.running.Store(true)
	metrics.CaptureRunning.Set(1)
	defer func() {
		l.running.Store(false)
		metrics.CaptureRunning.Set(0)
		if err := device.Close(); err != nil {
			log.Printf("デバイスのクローズに失敗: %v", err)
		}
		log.Println("キャプチャを終了しました")
	}()

	for !l.signal.Fired() {
		frame, err := device.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			err = fmt.Errorf("%w: %w", ErrFrameRead, err)
			log.Printf("フレームの取得に失敗しました: %v", err)
			metrics.CaptureFailures.WithLabelValues(metrics.StageRead).Inc()
			l.signal.Trigger(err)
			return err
		}

		if err := l.emit(frame); err != nil {
			log.Printf("フレームの配信をスキップしました: %v", err)
		}

		if !l.wait(ctx) {
			return nil
		}
	}

	return nil
}

// emit はフレームに取得時刻を描画し、縮小・エンコードして配信する
// 取得時刻のないフレームには現在時刻を使う
func (l *Loop) emit(frame *camera.Frame) error {
	stampedAt := frame.CapturedAt
	if stampedAt.IsZero() {
		stampedAt = l.now()
	}
	Stamp(frame, stampedAt.Format(l.opts.TimestampLayout))
	Resize(frame, l.opts.Width, l.opts.Height)

	payload, err := EncodeJPEG(frame, l.opts.Quality)
	if err != nil {
		return err
	}

	l.hub.Publish(EncodeChunk(payload))

	l.frames.Add(1)
	l.lastFrameAt.Store(stampedAt.UnixNano())
	metrics.FramesEmitted.Inc()
	metrics.EncodedBytes.Add(float64(len(payload)))

	return nil
}

// wait は次のフレームまで待機する。中断された場合はfalseを返す
func (l *Loop) wait(ctx context.Context) bool {
	timer := time.NewTimer(l.opts.Interval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stats は現在状態を返す
func (l *Loop) Stats() Stats {
	stats := Stats{
		Running:       l.running.Load(),
		FramesEmitted: l.frames.Load(),
		Width:         int(l.width.Load()),
		Height:        int(l.height.Load()),
	}
	if ns := l.lastFrameAt.Load(); ns != 0 {
		stats.LastFrameAt = time.Unix(0, ns)
	}
	return stats
}
