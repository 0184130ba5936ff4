package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"camfeed/internal/camera"
	"camfeed/internal/capture"
)

// EnvConfigPath は設定ファイルのパスを指定する環境変数
const EnvConfigPath = "CAMFEED_CONFIG"

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server ServerConfig `yaml:"server"`
	Camera CameraConfig `yaml:"camera"`
	Stream StreamConfig `yaml:"stream"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // 読み込みタイムアウト
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // グレースフルシャットダウンの待機時間
}

// CameraConfig はキャプチャデバイスの設定
type CameraConfig struct {
	Device  string `yaml:"device"`  // デバイスパス (例: /dev/video0, auto)
	Backend string `yaml:"backend"` // v4l2 / ffmpeg / test
	Width   int    `yaml:"width"`   // キャプチャ幅
	Height  int    `yaml:"height"`  // キャプチャ高さ
	FPS     int    `yaml:"fps"`     // 0 の場合はデバイスの既定値
}

// StreamConfig は配信するフレームの設定
type StreamConfig struct {
	Width           int           `yaml:"width"`            // 出力画像の幅
	Height          int           `yaml:"height"`           // 出力画像の高さ
	Quality         int           `yaml:"quality"`          // JPEG品質
	Interval        time.Duration `yaml:"interval"`         // フレーム間隔
	TimestampLayout string        `yaml:"timestamp_layout"` // 描画する時刻のフォーマット
	ClientQueue     int           `yaml:"client_queue"`     // クライアントごとのキュー長
}

// Default はデフォルト設定を返す
func Default() *Config {
	opts := capture.DefaultOptions()

	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			ReadTimeout:     10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Camera: CameraConfig{
			Device:  "/dev/video0",
			Backend: string(camera.BackendV4L2),
			Width:   640,
			Height:  480,
		},
		Stream: StreamConfig{
			Width:           opts.Width,
			Height:          opts.Height,
			Quality:         opts.Quality,
			Interval:        opts.Interval,
			TimestampLayout: opts.TimestampLayout,
			ClientQueue:     opts.SubscriberQueue,
		},
	}
}

// Load は設定を読み込む
//
// デフォルト値、設定ファイル、環境変数の順に上書きする。
// pathが空の場合はCAMFEED_CONFIGを参照し、それも空ならファイルは読まない。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// loadFile はYAMLファイルの値で設定を上書きする
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗 (%s): %w", path, err)
	}

	return nil
}

// applyEnv は環境変数の値で設定を上書きする
func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)
	c.Camera.Device = getEnvOrDefault("CAMERA_DEVICE", c.Camera.Device)
	c.Camera.Backend = getEnvOrDefault("CAMERA_BACKEND", c.Camera.Backend)
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("無効なシャットダウン待機時間: %s", c.Server.ShutdownTimeout)
	}

	// カメラ設定の検証
	if c.Camera.Device == "" {
		return errors.New("カメラデバイスが指定されていません")
	}
	switch camera.Backend(c.Camera.Backend) {
	case camera.BackendV4L2, camera.BackendFFmpeg, camera.BackendTest:
	default:
		return fmt.Errorf("%w: %s", camera.ErrUnknownBackend, c.Camera.Backend)
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("無効なキャプチャ解像度: %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.FPS < 0 {
		return fmt.Errorf("無効なフレームレート: %d", c.Camera.FPS)
	}

	// 配信設定の検証
	if err := c.CaptureOptions().Validate(); err != nil {
		return err
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// CameraSettings はデバイスを開くための設定を返す
func (c *Config) CameraSettings() camera.Settings {
	return camera.Settings{
		Device:  c.Camera.Device,
		Backend: camera.Backend(c.Camera.Backend),
		Width:   c.Camera.Width,
		Height:  c.Camera.Height,
		FPS:     c.Camera.FPS,
	}
}

// CaptureOptions はキャプチャループの出力設定を返す
func (c *Config) CaptureOptions() capture.Options {
	return capture.Options{
		Width:           c.Stream.Width,
		Height:          c.Stream.Height,
		Quality:         c.Stream.Quality,
		Interval:        c.Stream.Interval,
		TimestampLayout: c.Stream.TimestampLayout,
		SubscriberQueue: c.Stream.ClientQueue,
	}
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
