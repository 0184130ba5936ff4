// Package main はcamfeedサーバーコマンドの実装です
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"camfeed/internal/camera"
	"camfeed/internal/config"
	"camfeed/internal/server"
)

// overrides はコマンドラインで上書きする設定
type overrides struct {
	configPath string
	host       string
	port       int
	device     string
	backend    string
}

func newRootCmd(opts *overrides) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Webカメラの映像をMJPEGで配信する",
		Long: `カメラからフレームを一定間隔で取得し、時刻を描画して
multipart/x-mixed-replace のMJPEGストリームとして配信します。`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// 設定を読み込む
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("設定の読み込みに失敗しました: %w", err)
			}

			// コマンドラインオプションで設定を上書き
			if err := opts.apply(cmd.Flags(), cfg); err != nil {
				return err
			}

			gin.SetMode(gin.ReleaseMode)

			srv, err := server.Build(cmd.Context(), cfg, camera.NewLinuxDiscovery())
			if err != nil {
				return fmt.Errorf("サーバーの作成に失敗しました: %w", err)
			}

			log.Printf("camfeed サーバーを起動します: %s (device=%s, backend=%s)",
				cfg.ServerAddress(), cfg.Camera.Device, cfg.Camera.Backend)
			return srv.Start(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "設定ファイルのパス (YAML)")
	flags.StringVar(&opts.host, "host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
	flags.IntVarP(&opts.port, "port", "p", 0, "サーバーのポート (デフォルト: 5000)")
	flags.StringVarP(&opts.device, "device", "d", "", "カメラデバイス (例: /dev/video0, auto)")
	flags.StringVarP(&opts.backend, "backend", "b", "", "キャプチャバックエンド (v4l2, ffmpeg, test)")

	return cmd
}

// apply は指定されたフラグだけを設定に反映して再検証する
func (o *overrides) apply(flags *pflag.FlagSet, cfg *config.Config) error {
	if flags.Changed("host") {
		cfg.Server.Host = o.host
	}
	if flags.Changed("port") {
		cfg.Server.Port = o.port
	}
	if flags.Changed("device") {
		cfg.Camera.Device = o.device
	}
	if flags.Changed("backend") {
		cfg.Camera.Backend = o.backend
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("オプションが不正です: %w", err)
	}
	return nil
}

func main() {
	if err := newRootCmd(&overrides{}).Execute(); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}
