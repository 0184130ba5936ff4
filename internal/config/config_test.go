package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"camfeed/internal/camera"
)

// clearEnv は設定に影響する環境変数をテスト中だけ空にする
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvConfigPath, "SERVER_HOST", "PORT", "CAMERA_DEVICE", "CAMERA_BACKEND"} {
		t.Setenv(key, "")
	}
}

// TestConfigLoad はデフォルト設定の読み込みをテストする
func TestConfigLoad(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// サーバー設定の検証
	if cfg.ServerAddress() != "0.0.0.0:5000" {
		t.Errorf("デフォルトのアドレスが一致しません: %s", cfg.ServerAddress())
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("シャットダウン待機時間: got %s", cfg.Server.ShutdownTimeout)
	}

	// カメラ設定の検証
	if cfg.Camera.Device != "/dev/video0" {
		t.Errorf("デフォルトのデバイス: got %s", cfg.Camera.Device)
	}
	if cfg.Camera.Backend != string(camera.BackendV4L2) {
		t.Errorf("デフォルトのバックエンド: got %s", cfg.Camera.Backend)
	}

	// 配信設定の検証
	opts := cfg.CaptureOptions()
	if opts.Width != 320 || opts.Height != 240 {
		t.Errorf("出力解像度: got %dx%d", opts.Width, opts.Height)
	}
	if opts.Quality != 50 {
		t.Errorf("JPEG品質: got %d", opts.Quality)
	}
	if opts.Interval != 5*time.Second {
		t.Errorf("キャプチャ間隔: got %s", opts.Interval)
	}
	if opts.TimestampLayout != "2006-01-02 15:04:05" {
		t.Errorf("タイムスタンプ書式: got %s", opts.TimestampLayout)
	}
}

// TestConfigValidation は設定の検証をテストする
func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name      string
		modify    func(c *Config)
		expectErr bool
	}{
		{
			name:      "正常な設定",
			modify:    func(c *Config) {},
			expectErr: false,
		},
		{
			name:      "無効なポート番号",
			modify:    func(c *Config) { c.Server.Port = 99999 },
			expectErr: true,
		},
		{
			name:      "カメラデバイスパスなし",
			modify:    func(c *Config) { c.Camera.Device = "" },
			expectErr: true,
		},
		{
			name:      "自動検出デバイス",
			modify:    func(c *Config) { c.Camera.Device = camera.AutoDevice },
			expectErr: false,
		},
		{
			name:      "未知のバックエンド",
			modify:    func(c *Config) { c.Camera.Backend = "gstreamer" },
			expectErr: true,
		},
		{
			name:      "無効なキャプチャ解像度",
			modify:    func(c *Config) { c.Camera.Width = 0 },
			expectErr: true,
		},
		{
			name:      "無効なJPEG品質",
			modify:    func(c *Config) { c.Stream.Quality = 101 },
			expectErr: true,
		},
		{
			name:      "負のキャプチャ間隔",
			modify:    func(c *Config) { c.Stream.Interval = -time.Second },
			expectErr: true,
		},
		{
			name:      "キュー長なし",
			modify:    func(c *Config) { c.Stream.ClientQueue = 0 },
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)

			err := cfg.Validate()
			if tc.expectErr && err == nil {
				t.Error("エラーが期待されましたが、エラーが発生しませんでした")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("予期しないエラーが発生しました: %v", err)
			}
		})
	}
}

func TestConfigValidation_UnknownBackend(t *testing.T) {
	cfg := Default()
	cfg.Camera.Backend = "gstreamer"

	if err := cfg.Validate(); !errors.Is(err, camera.ErrUnknownBackend) {
		t.Errorf("ErrUnknownBackendが期待されました: %v", err)
	}
}

// TestServerAddress はサーバーアドレスの生成をテストする
func TestServerAddress(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "192.168.1.100",
			Port: 9090,
		},
	}

	expected := "192.168.1.100:9090"
	actual := cfg.ServerAddress()

	if actual != expected {
		t.Errorf("サーバーアドレスが一致しません: got %s, want %s", actual, expected)
	}
}

// TestEnvironmentVariables は環境変数の処理をテストする
func TestEnvironmentVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_HOST", "test.example.com")
	t.Setenv("PORT", "9999")
	t.Setenv("CAMERA_DEVICE", "/dev/video2")
	t.Setenv("CAMERA_BACKEND", "ffmpeg")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Host != "test.example.com" {
		t.Errorf("ホストが環境変数から読み込まれていません: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("ポートが環境変数から読み込まれていません: got %d", cfg.Server.Port)
	}
	if cfg.Camera.Device != "/dev/video2" {
		t.Errorf("デバイスが環境変数から読み込まれていません: got %s", cfg.Camera.Device)
	}
	if cfg.CameraSettings().Backend != camera.BackendFFmpeg {
		t.Errorf("バックエンドが環境変数から読み込まれていません: got %s", cfg.Camera.Backend)
	}
}

func TestEnvironmentVariables_InvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("不正な値の場合はデフォルトのポートが期待されました: got %d", cfg.Server.Port)
	}
}

// TestLoadFile は設定ファイルの読み込みをテストする
func TestLoadFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "camfeed.yaml")
	content := `server:
  port: 8088
camera:
  device: auto
  backend: test
  fps: 15
stream:
  quality: 80
  interval: 500ms
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("設定ファイルの作成に失敗: %v", err)
	}

	t.Run("引数で指定", func(t *testing.T) {
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("設定の読み込みに失敗しました: %v", err)
		}
		assertFileValues(t, cfg)
	})

	t.Run("環境変数で指定", func(t *testing.T) {
		t.Setenv(EnvConfigPath, path)

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("設定の読み込みに失敗しました: %v", err)
		}
		assertFileValues(t, cfg)
	})

	t.Run("環境変数がファイルより優先", func(t *testing.T) {
		t.Setenv("PORT", "7000")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("設定の読み込みに失敗しました: %v", err)
		}
		if cfg.Server.Port != 7000 {
			t.Errorf("ポート: got %d, want 7000", cfg.Server.Port)
		}
	})
}

func assertFileValues(t *testing.T, cfg *Config) {
	t.Helper()

	if cfg.Server.Port != 8088 {
		t.Errorf("ポート: got %d, want 8088", cfg.Server.Port)
	}
	// ファイルにない値はデフォルトのまま
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("ホスト: got %s", cfg.Server.Host)
	}
	if cfg.Camera.Device != camera.AutoDevice || cfg.Camera.Backend != "test" || cfg.Camera.FPS != 15 {
		t.Errorf("カメラ設定: %+v", cfg.Camera)
	}
	if cfg.Stream.Quality != 80 || cfg.Stream.Interval != 500*time.Millisecond {
		t.Errorf("配信設定: %+v", cfg.Stream)
	}
	if cfg.Stream.Width != 320 {
		t.Errorf("出力幅: got %d", cfg.Stream.Width)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(broken, []byte("server: [\n"), 0o644); err != nil {
		t.Fatalf("設定ファイルの作成に失敗: %v", err)
	}
	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("server:\n  port: 0\n"), 0o644); err != nil {
		t.Fatalf("設定ファイルの作成に失敗: %v", err)
	}

	testCases := []struct {
		name string
		path string
	}{
		{"存在しないファイル", filepath.Join(dir, "missing.yaml")},
		{"不正なYAML", broken},
		{"検証エラー", invalid},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(tc.path); err == nil {
				t.Error("エラーが期待されましたが、エラーが発生しませんでした")
			}
		})
	}
}
