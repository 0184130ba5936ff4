package camera

import (
	"image"
	"image/draw"
	"time"
)

// Frame は1回の読み取りで得られた画像
//
// キャプチャループ内でタイムスタンプ描画・リサイズにより直接変更され、
// エンコード後に破棄される。
type Frame struct {
	Image      *image.RGBA // 画素バッファ
	CapturedAt time.Time   // 取得時刻
}

// NewFrame は任意の画像からFrameを作成する
// RGBA以外の画像は書き込み可能なRGBAへ変換する
func NewFrame(img image.Image, capturedAt time.Time) *Frame {
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Bounds().Min != (image.Point{}) {
		b := img.Bounds()
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	return &Frame{
		Image:      rgba,
		CapturedAt: capturedAt,
	}
}

// Width は画像幅を返す
func (f *Frame) Width() int {
	return f.Image.Bounds().Dx()
}

// Height は画像高さを返す
func (f *Frame) Height() int {
	return f.Image.Bounds().Dy()
}
