package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humagin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"camfeed/internal/capture"
	"camfeed/internal/config"
	"camfeed/internal/shutdown"
)

// Server はHTTPサーバーとキャプチャループを管理する構造体
type Server struct {
	config     *config.Config
	loop       *capture.Loop
	hub        *capture.Broadcaster
	signal     *shutdown.Signal
	engine     *gin.Engine
	api        huma.API
	httpServer *http.Server
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, loop *capture.Loop, hub *capture.Broadcaster, sig *shutdown.Signal) *Server {
	engine := gin.New()
	engine.Use(gin.LoggerWithWriter(log.Writer()), gin.Recovery())

	apiConfig := huma.DefaultConfig("camfeed API", "1.0.0")
	apiConfig.Info.Description = "Webcam MJPEG streaming status API"
	apiConfig.Servers = []*huma.Server{}

	s := &Server{
		config: cfg,
		loop:   loop,
		hub:    hub,
		signal: sig,
		engine: engine,
		api:    humagin.New(engine, apiConfig),
	}

	s.httpServer = &http.Server{
		Addr:              cfg.ServerAddress(),
		Handler:           engine,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	s.setupRoutes()

	return s
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() {
	// 閲覧ページとストリーム
	s.engine.GET("/", s.handleRoot)
	s.engine.GET("/video_feed", s.handleVideoFeed)

	// メトリクス
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// APIエンドポイント
	s.registerAPI()
}

// Handler はルーティング済みのHTTPハンドラを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start はアドレスをリッスンしてサーバーを起動する
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.ServerAddress())
	if err != nil {
		err = fmt.Errorf("サーバーの起動に失敗: %w", err)
		s.signal.Trigger(err)
		return err
	}

	return s.Serve(ctx, listener)
}

// Serve はキャプチャループとHTTPサーバーを起動し、停止要因を待つ
//
// ctxのキャンセル、SIGINT/SIGTERM、停止シグナル、リスナーの失敗のいずれかで
// グレースフルシャットダウンする。キャプチャの失敗で停止した場合はそのエラーを返す。
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	// キャプチャループを別ゴルーチンで起動
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- s.loop.Run(ctx)
	}()

	// サーバーを別ゴルーチンで起動
	serveErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("HTTPサーバーが停止しました: %w", err)
		}
	}()

	port := s.config.Server.Port
	if addr, ok := listener.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}
	log.Printf("HTTPサーバーを起動しました: %s", listener.Addr())
	log.Printf("ブラウザで開いてください: http://%s:%d/", localIP(), port)

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Printf("systemdへの通知に失敗: %v", err)
	}

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// 停止要因を待つ
	var result error
	requested := false
	select {
	case <-ctx.Done():
		log.Println("コンテキストがキャンセルされました")
		s.signal.Trigger(ctx.Err())
		requested = true
	case sig := <-sigCh:
		log.Printf("シグナルを受信しました: %v", sig)
		s.signal.Trigger(fmt.Errorf("%w: %v", shutdown.ErrInterrupted, sig))
		requested = true
	case <-s.signal.Done():
		reason := s.signal.Reason()
		log.Printf("停止シグナルを受信しました: %v", reason)
		requested = errors.Is(reason, shutdown.ErrInterrupted) || errors.Is(reason, context.Canceled)
	case err := <-serveErr:
		log.Printf("%v", err)
		s.signal.Trigger(err)
		result = err
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		log.Printf("systemdへの通知に失敗: %v", err)
	}

	// 書き込みが止まったクライアントが残っていれば接続を強制的に閉じる
	shutdownErr := s.Shutdown()
	if shutdownErr != nil {
		log.Printf("%v", shutdownErr)
		_ = s.httpServer.Close()
	}

	// キャプチャループの終了を待つ
	if err := <-loopDone; err != nil && result == nil {
		result = err
	}
	if shutdownErr != nil && result == nil && !requested {
		result = shutdownErr
	}

	return result
}

// Shutdown はサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	log.Println("サーバーをシャットダウンしています...")

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	log.Println("サーバーが正常にシャットダウンされました")
	return nil
}

// localIP はLAN側のIPアドレスを返す。取得できない場合はループバックを返す
func localIP() string {
	// UDPは接続しても送信しないため、経路の選択だけが行われる
	conn, err := net.Dial("udp", "10.255.255.255:1")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP.IsUnspecified() {
		return "127.0.0.1"
	}
	return addr.IP.String()
}
