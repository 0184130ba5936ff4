package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"camfeed/internal/camera"
	"camfeed/internal/config"
	"camfeed/internal/server"
)

func main() {
	// 設定を読み込む（CAMFEED_CONFIG が指定されていればファイルも読む）
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)

	// コンテキストを作成
	ctx := context.Background()

	// サーバーを作成
	srv, err := server.Build(ctx, cfg, camera.NewLinuxDiscovery())
	if err != nil {
		log.Fatalf("サーバーの作成に失敗しました: %v", err)
	}

	// サーバーを起動
	if err := srv.Start(ctx); err != nil {
		log.Printf("サーバーが異常終了しました: %v", err)
		os.Exit(1)
	}
}
