package server

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"camfeed/internal/capture"
	"camfeed/internal/metrics"
)

// indexHTML は閲覧用のページ
const indexHTML = `<!DOCTYPE html>
<html lang="ja">
<head>
    <meta charset="UTF-8">
    <title>camfeed</title>
</head>
<body>
    <h1>カメラ映像</h1>
    <img src='/video_feed'>
</body>
</html>`

// handleRoot は閲覧ページを返す
func (s *Server) handleRoot(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
}

// handleVideoFeed はMJPEGストリームを配信する
//
// クライアントの切断、Broadcasterのクローズ、停止シグナルのいずれかで終了する。
// キャプチャが開始できなかった場合は本文なしで即座に終了する。
func (s *Server) handleVideoFeed(c *gin.Context) {
	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub.ID)
	defer func() {
		if dropped := sub.Dropped(); dropped > 0 {
			log.Printf("ストリームを終了しました (%s): 破棄したフレーム %d", sub.ID, dropped)
		}
	}()

	metrics.ActiveClients.Inc()
	defer metrics.ActiveClients.Dec()

	// レスポンスヘッダーを設定
	c.Header("Content-Type", capture.ContentType)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	// クライアント切断を検知するためのコンテキスト
	clientGone := c.Request.Context().Done()

	// ストリーミングループ
	for {
		select {
		case <-clientGone:
			return

		case <-s.signal.Done():
			return

		case chunk, ok := <-sub.C:
			if !ok {
				// キャプチャが終了した
				return
			}

			if _, err := c.Writer.Write(chunk); err != nil {
				log.Printf("ストリームの書き込みに失敗 (%s): %v", sub.ID, err)
				return
			}

			// バッファをフラッシュ
			c.Writer.Flush()
		}
	}
}
