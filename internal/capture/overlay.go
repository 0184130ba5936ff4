package capture

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"camfeed/internal/camera"
)

// 右端・下端からの余白（ピクセル）
const overlayMargin = 10

var (
	overlayFace  font.Face = basicfont.Face7x13
	overlayColor           = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Stamp はフレームの右下に文字列を描画し、描画領域を返す
func Stamp(frame *camera.Frame, text string) image.Rectangle {
	rect, dot := stampLayout(frame.Image.Bounds(), text)

	d := &font.Drawer{
		Dst:  frame.Image,
		Src:  image.NewUniform(overlayColor),
		Face: overlayFace,
		Dot:  dot,
	}
	d.DrawString(text)

	return rect
}

// stampLayout は右下寄せの描画領域とベースライン位置を計算する
// フレームが小さい場合は左上方向へ寄せ、領域は常にフレーム内に収める
func stampLayout(bounds image.Rectangle, text string) (image.Rectangle, fixed.Point26_6) {
	metrics := overlayFace.Metrics()
	ascent := metrics.Ascent.Ceil()
	descent := metrics.Descent.Ceil()
	width := font.MeasureString(overlayFace, text).Ceil()

	x := bounds.Max.X - overlayMargin - width
	if x < bounds.Min.X {
		x = bounds.Min.X
	}

	y := bounds.Max.Y - overlayMargin
	if y+descent > bounds.Max.Y {
		y = bounds.Max.Y - descent
	}
	if y-ascent < bounds.Min.Y {
		y = bounds.Min.Y + ascent
	}

	rect := image.Rect(x, y-ascent, x+width, y+descent).Intersect(bounds)
	return rect, fixed.P(x, y)
}
