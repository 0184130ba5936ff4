package camera

import (
	"context"
	"fmt"
)

// NewOpener は設定のバックエンドに応じたOpenerを返す
func NewOpener(settings Settings) (Opener, error) {
	switch settings.Backend {
	case BackendV4L2, "":
		return func(ctx context.Context) (Device, error) {
			return openV4L2(ctx, settings)
		}, nil
	case BackendFFmpeg:
		return func(ctx context.Context) (Device, error) {
			return openFFmpeg(ctx, settings)
		}, nil
	case BackendTest:
		return func(_ context.Context) (Device, error) {
			return NewTestSource(settings.Width, settings.Height, 0), nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, settings.Backend)
	}
}

// ResolveDevice はauto指定を検出された最初のデバイスに解決する
func ResolveDevice(ctx context.Context, discovery Discovery, device string) (string, error) {
	if device != AutoDevice && device != "" {
		return device, nil
	}

	devices, err := discovery.ScanDevices(ctx)
	if err != nil {
		return "", fmt.Errorf("デバイスのスキャンに失敗: %w", err)
	}
	if len(devices) == 0 {
		return "", ErrNoDevice
	}

	return devices[0], nil
}
