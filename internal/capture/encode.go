package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"camfeed/internal/camera"
)

// マルチパートの境界文字列
const Boundary = "frame"

// ContentType は /video_feed のレスポンスContent-Type
const ContentType = "multipart/x-mixed-replace; boundary=" + Boundary

var chunkHeader = []byte("--" + Boundary + "\r\nContent-Type: image/jpeg\r\n\r\n")

var chunkTrailer = []byte("\r\n")

// Chunk は1フレーム分のmultipartパート
type Chunk []byte

// EncodeChunk はJPEGデータを境界・ヘッダー・空行・末尾CRLFで包む
func EncodeChunk(payload []byte) Chunk {
	chunk := make([]byte, 0, len(chunkHeader)+len(payload)+len(chunkTrailer))
	chunk = append(chunk, chunkHeader...)
	chunk = append(chunk, payload...)
	chunk = append(chunk, chunkTrailer...)
	return chunk
}

// Resize はフレームを指定解像度に縮小（または拡大）する
func Resize(frame *camera.Frame, width, height int) {
	if frame.Width() == width && frame.Height() == height {
		return
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), frame.Image, frame.Image.Bounds(), draw.Src, nil)
	frame.Image = dst
}

// EncodeJPEG はフレームをJPEGにエンコードする
func EncodeJPEG(frame *camera.Frame, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("JPEG エンコードに失敗: %w", err)
	}
	return buf.Bytes(), nil
}
