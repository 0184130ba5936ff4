package capture

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"testing"
	"time"

	"camfeed/internal/camera"
	"camfeed/internal/shutdown"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Interval = 10 * time.Millisecond
	opts.SubscriberQueue = 8
	return opts
}

func sourceOpener(source *camera.TestSource) camera.Opener {
	return func(_ context.Context) (camera.Device, error) {
		return source, nil
	}
}

func collect(sub *Subscription) <-chan []Chunk {
	out := make(chan []Chunk, 1)
	go func() {
		var chunks []Chunk
		for c := range sub.C {
			chunks = append(chunks, c)
		}
		out <- chunks
	}()
	return out
}

func TestLoop_ThreeReadsThenFailure(t *testing.T) {
	opts := testOptions()
	hub := NewBroadcaster(opts.SubscriberQueue)
	sig := shutdown.New()
	source := camera.NewTestSource(640, 480, 3)

	loop := NewLoop(sourceOpener(source), hub, sig, opts)
	result := collect(hub.Subscribe())

	err := loop.Run(context.Background())
	if !errors.Is(err, ErrFrameRead) {
		t.Fatalf("ErrFrameReadが期待されました: %v", err)
	}
	if !errors.Is(err, camera.ErrDeviceGone) {
		t.Errorf("元のエラーが保持されていません: %v", err)
	}

	chunks := <-result
	if len(chunks) != 3 {
		t.Fatalf("チャンク数: got %d, want 3", len(chunks))
	}

	for i, c := range chunks {
		if !bytes.HasPrefix(c, chunkHeader) || !bytes.HasSuffix(c, chunkTrailer) {
			t.Errorf("チャンク %d の形式が不正です", i)
			continue
		}
		payload := c[len(chunkHeader) : len(c)-len(chunkTrailer)]
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(payload))
		if err != nil {
			t.Errorf("チャンク %d のJPEGデコードに失敗: %v", i, err)
			continue
		}
		if cfg.Width != 320 || cfg.Height != 240 {
			t.Errorf("チャンク %d の解像度: got %dx%d", i, cfg.Width, cfg.Height)
		}
	}

	if !sig.Fired() || !errors.Is(sig.Reason(), ErrFrameRead) {
		t.Errorf("停止シグナルがセットされていません: fired=%v reason=%v", sig.Fired(), sig.Reason())
	}
	if !source.Closed() {
		t.Error("デバイスがクローズされていません")
	}
	if !hub.Closed() {
		t.Error("Broadcasterがクローズされていません")
	}

	stats := loop.Stats()
	if stats.Running || stats.FramesEmitted != 3 {
		t.Errorf("統計が一致しません: %+v", stats)
	}
	if stats.Width != 640 || stats.Height != 480 || stats.LastFrameAt.IsZero() {
		t.Errorf("デバイス情報が記録されていません: %+v", stats)
	}
}

func TestLoop_OpenFailure(t *testing.T) {
	hub := NewBroadcaster(1)
	sig := shutdown.New()
	openErr := errors.New("no such device")

	loop := NewLoop(func(_ context.Context) (camera.Device, error) {
		return nil, openErr
	}, hub, sig, testOptions())
	sub := hub.Subscribe()

	err := loop.Run(context.Background())
	if !errors.Is(err, ErrDeviceOpen) || !errors.Is(err, openErr) {
		t.Fatalf("ErrDeviceOpenが期待されました: %v", err)
	}

	if !sig.Fired() || !errors.Is(sig.Reason(), ErrDeviceOpen) {
		t.Error("オープン失敗で停止シグナルがセットされていません")
	}
	if _, ok := <-sub.C; ok {
		t.Error("オープン失敗後にチャンクが配信されました")
	}
	if loop.Stats().FramesEmitted != 0 {
		t.Error("フレームが配信されています")
	}
}

func TestLoop_ShutdownInterruptsWait(t *testing.T) {
	opts := testOptions()
	opts.Interval = time.Hour
	hub := NewBroadcaster(opts.SubscriberQueue)
	sig := shutdown.New()
	source := camera.NewTestSource(320, 240, 0)

	loop := NewLoop(sourceOpener(source), hub, sig, opts)
	sub := hub.Subscribe()

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	// 最初のチャンクが届いたら待機中に停止させる
	select {
	case <-sub.C:
	case <-time.After(5 * time.Second):
		t.Fatal("最初のチャンクが届きません")
	}
	sig.Trigger(shutdown.ErrInterrupted)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("停止シグナルによる終了でエラーが返りました: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("停止シグナル後にループが終了しません")
	}

	if n := loop.Stats().FramesEmitted; n != 1 {
		t.Errorf("配信フレーム数: got %d, want 1", n)
	}
	if !source.Closed() {
		t.Error("デバイスがクローズされていません")
	}
}

func TestLoop_ContextCancel(t *testing.T) {
	opts := testOptions()
	opts.Interval = time.Hour
	sig := shutdown.New()
	loop := NewLoop(sourceOpener(camera.NewTestSource(64, 48, 0)), NewBroadcaster(1), sig, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("キャンセルによる終了でエラーが返りました: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("キャンセル後にループが終了しません")
	}

	if sig.Fired() {
		t.Error("外部キャンセルで停止シグナルがセットされました")
	}
}

// frameDevice は用意したフレームを順に返すDevice
type frameDevice struct {
	frames []*camera.Frame
}

func (d *frameDevice) Read(_ context.Context) (*camera.Frame, error) {
	if len(d.frames) == 0 {
		return nil, camera.ErrDeviceGone
	}
	frame := d.frames[0]
	d.frames = d.frames[1:]
	return frame, nil
}

func (d *frameDevice) Resolution() (int, int) { return 64, 48 }

func (d *frameDevice) Close() error { return nil }

func TestLoop_StampTime(t *testing.T) {
	captured := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := time.Date(2031, 6, 7, 8, 9, 10, 0, time.UTC)

	testCases := []struct {
		name       string
		capturedAt time.Time
		want       time.Time
	}{
		{"取得時刻を使う", captured, captured},
		{"取得時刻がなければ現在時刻", time.Time{}, clock},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			frame := newBlankFrame(64, 48)
			frame.CapturedAt = tc.capturedAt
			device := &frameDevice{frames: []*camera.Frame{frame}}

			opts := testOptions()
			loop := NewLoop(func(_ context.Context) (camera.Device, error) {
				return device, nil
			}, NewBroadcaster(opts.SubscriberQueue), shutdown.New(), opts)
			loop.now = func() time.Time { return clock }

			_ = loop.Run(context.Background())

			if got := loop.Stats().LastFrameAt; !got.Equal(tc.want) {
				t.Errorf("最終フレーム時刻: got %v, want %v", got, tc.want)
			}
		})
	}
}
