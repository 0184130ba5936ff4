package server

import (
	"context"
	"fmt"
	"log"

	"camfeed/internal/camera"
	"camfeed/internal/capture"
	"camfeed/internal/config"
	"camfeed/internal/shutdown"
)

// Build は設定からキャプチャループとサーバーを組み立てる
//
// デバイスにautoが指定された場合はdiscoveryで最初のデバイスに解決し、
// cfg.Camera.Deviceを解決後のパスに書き換える。デバイスはまだ開かない。
func Build(ctx context.Context, cfg *config.Config, discovery camera.Discovery) (*Server, error) {
	if camera.Backend(cfg.Camera.Backend) != camera.BackendTest {
		device, err := camera.ResolveDevice(ctx, discovery, cfg.Camera.Device)
		if err != nil {
			return nil, fmt.Errorf("カメラデバイスの解決に失敗: %w", err)
		}
		cfg.Camera.Device = device

		if info, err := discovery.GetDeviceInfo(ctx, device); err == nil {
			log.Printf("カメラ: %s (%s, driver=%s)", info.Name, info.Device, info.Driver)
		}
	}

	open, err := camera.NewOpener(cfg.CameraSettings())
	if err != nil {
		return nil, fmt.Errorf("キャプチャバックエンドの作成に失敗: %w", err)
	}

	opts := cfg.CaptureOptions()
	hub := capture.NewBroadcaster(opts.SubscriberQueue)
	sig := shutdown.New()
	loop := capture.NewLoop(open, hub, sig, opts)

	return New(cfg, loop, hub, sig), nil
}
