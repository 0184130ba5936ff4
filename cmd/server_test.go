package main

import (
	"testing"

	"camfeed/internal/config"
)

func TestOverridesApply(t *testing.T) {
	testCases := []struct {
		name      string
		args      []string
		check     func(t *testing.T, cfg *config.Config)
		expectErr bool
	}{
		{
			name: "指定なしは設定のまま",
			args: nil,
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.ServerAddress() != "0.0.0.0:5000" || cfg.Camera.Device != "/dev/video0" {
					t.Errorf("設定が変更されています: %+v", cfg)
				}
			},
		},
		{
			name: "全項目の上書き",
			args: []string{"--host", "127.0.0.1", "-p", "8081", "-d", "auto", "-b", "test"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.ServerAddress() != "127.0.0.1:8081" {
					t.Errorf("アドレス: got %s", cfg.ServerAddress())
				}
				if cfg.Camera.Device != "auto" || cfg.Camera.Backend != "test" {
					t.Errorf("カメラ設定: %+v", cfg.Camera)
				}
			},
		},
		{
			name:      "不正なポート",
			args:      []string{"--port", "70000"},
			expectErr: true,
		},
		{
			name:      "未知のバックエンド",
			args:      []string{"--backend", "opencv"},
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var o overrides
			cmd := newRootCmd(&o)
			if err := cmd.ParseFlags(tc.args); err != nil {
				t.Fatalf("フラグの解析に失敗: %v", err)
			}

			cfg := config.Default()

			err := o.apply(cmd.Flags(), cfg)
			if tc.expectErr {
				if err == nil {
					t.Error("エラーが期待されましたが、エラーが発生しませんでした")
				}
				return
			}
			if err != nil {
				t.Fatalf("予期しないエラーが発生しました: %v", err)
			}
			tc.check(t, cfg)
		})
	}
}
