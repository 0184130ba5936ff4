package camera

import (
	"context"
	"errors"
)

// Backend はキャプチャの実装方式を表す
type Backend string

const (
	BackendV4L2   Backend = "v4l2"   // blackjack/webcam による直接キャプチャ
	BackendFFmpeg Backend = "ffmpeg" // ffmpeg プロセス経由
	BackendTest   Backend = "test"   // 合成パターン
)

// デバイス名に指定すると検出された最初のカメラを使用する
const AutoDevice = "auto"

var (
	// ErrDeviceGone はデバイスからフレームを読めなくなったことを表す
	ErrDeviceGone = errors.New("デバイスからフレームを取得できません")

	// ErrUnsupportedPlatform は現在のOSでバックエンドが使えないことを表す
	ErrUnsupportedPlatform = errors.New("このプラットフォームではサポートされていません")

	// ErrUnknownBackend は未知のバックエンド名を表す
	ErrUnknownBackend = errors.New("不明なバックエンド")

	// ErrNoDevice は利用可能なカメラが見つからないことを表す
	ErrNoDevice = errors.New("利用可能なカメラデバイスがありません")
)

// Settings はデバイスを開くための設定
type Settings struct {
	Device  string  // デバイスパス（例: /dev/video0）または auto
	Backend Backend // キャプチャ方式
	Width   int     // 要求する画像幅
	Height  int     // 要求する画像高さ
	FPS     int     // 要求するフレームレート（ffmpegのみ使用）
}

// Device は開かれたキャプチャセッションを表す
//
// 所有者のゴルーチンのみが呼び出すこと。
type Device interface {
	// Read はフレームが届くか失敗するまでブロックする
	Read(ctx context.Context) (*Frame, error)

	// Resolution は実際にネゴシエートされた解像度を返す
	Resolution() (width, height int)

	// Close はデバイスハンドルを解放する
	Close() error
}

// Opener はデバイスを開く関数
type Opener func(ctx context.Context) (Device, error)

// Discovery はカメラデバイスの検出機能を提供する
type Discovery interface {
	// ScanDevices はシステム内の利用可能なカメラデバイスをスキャンする
	ScanDevices(ctx context.Context) ([]string, error)

	// IsDeviceAvailable は指定されたデバイスが利用可能かチェックする
	IsDeviceAvailable(ctx context.Context, device string) bool

	// GetDeviceInfo はデバイスの詳細情報を取得する
	GetDeviceInfo(ctx context.Context, device string) (*DeviceInfo, error)
}

// DeviceInfo はカメラデバイスの詳細情報を表す
type DeviceInfo struct {
	Device string // デバイスパス
	Name   string // デバイス名
	Driver string // ドライバー名
}
