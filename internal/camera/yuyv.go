package camera

import (
	"fmt"
	"image"
)

// decodeYUYV はYUYV (YUV 4:2:2 packed) のバッファを画像に変換する
//
// バイト列は [Y0 U Y1 V] の4バイトで横2画素を表す。
func decodeYUYV(data []byte, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("無効な解像度: %dx%d", width, height)
	}

	rowBytes := width * 2
	if len(data) < rowBytes*height {
		return nil, fmt.Errorf("YUYVバッファが不足しています: got %d bytes, want %d", len(data), rowBytes*height)
	}

	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio422)

	for y := 0; y < height; y++ {
		row := data[y*rowBytes : (y+1)*rowBytes]
		yOff := y * img.YStride
		cOff := y * img.CStride

		for x := 0; x+1 < width; x += 2 {
			i := x * 2
			img.Y[yOff+x] = row[i]
			img.Cb[cOff+x/2] = row[i+1]
			img.Y[yOff+x+1] = row[i+2]
			img.Cr[cOff+x/2] = row[i+3]
		}
	}

	return img, nil
}
