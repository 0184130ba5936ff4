package capture

import (
	"fmt"
	"time"
)

// Options はキャプチャループの出力設定
type Options struct {
	Width           int           // 出力画像の幅
	Height          int           // 出力画像の高さ
	Quality         int           // JPEG品質 (1-100)
	Interval        time.Duration // フレーム間の待機時間
	TimestampLayout string        // 描画する時刻のフォーマット
	SubscriberQueue int           // 購読者ごとのチャンクキュー長
}

// DefaultOptions はデフォルトの出力設定を返す
func DefaultOptions() Options {
	return Options{
		Width:           320,
		Height:          240,
		Quality:         50,
		Interval:        5 * time.Second,
		TimestampLayout: "2006-01-02 15:04:05",
		SubscriberQueue: 2,
	}
}

// Validate は設定値の妥当性を検証する
func (o Options) Validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("無効な出力解像度: %dx%d", o.Width, o.Height)
	}
	if o.Quality < 1 || o.Quality > 100 {
		return fmt.Errorf("無効なJPEG品質: %d", o.Quality)
	}
	if o.Interval < 0 {
		return fmt.Errorf("無効なキャプチャ間隔: %s", o.Interval)
	}
	if o.TimestampLayout == "" {
		return fmt.Errorf("タイムスタンプのフォーマットが空です")
	}
	if o.SubscriberQueue < 1 {
		return fmt.Errorf("無効なキュー長: %d", o.SubscriberQueue)
	}
	return nil
}
