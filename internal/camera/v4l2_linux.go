//go:build linux

package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"strings"
	"time"

	"github.com/blackjack/webcam"
)

// WaitForFrame のタイムアウト（秒）
// この間隔でコンテキストのキャンセルを確認する
const v4l2WaitTimeout = 1

// fourcc はV4L2のピクセルフォーマット値を組み立てる
func fourcc(a, b, c, d byte) webcam.PixelFormat {
	return webcam.PixelFormat(uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24)
}

var (
	formatYUYV  = fourcc('Y', 'U', 'Y', 'V')
	formatMJPEG = fourcc('M', 'J', 'P', 'G')
)

// v4l2Device はblackjack/webcamを使ったDevice実装
type v4l2Device struct {
	path   string
	cam    *webcam.Webcam
	format webcam.PixelFormat
	width  int
	height int
}

// openV4L2 はV4L2デバイスを開いてストリーミングを開始する
func openV4L2(_ context.Context, settings Settings) (Device, error) {
	cam, err := webcam.Open(settings.Device)
	if err != nil {
		return nil, fmt.Errorf("デバイス %s のオープンに失敗: %w", settings.Device, err)
	}

	format, name, ok := selectFormat(cam.GetSupportedFormats())
	if !ok {
		_ = cam.Close()
		return nil, fmt.Errorf("デバイス %s は YUYV/MJPEG をサポートしていません", settings.Device)
	}

	format, w, h, err := cam.SetImageFormat(format, uint32(settings.Width), uint32(settings.Height))
	if err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("フォーマット %s の設定に失敗: %w", name, err)
	}

	if err := cam.SetBufferCount(2); err != nil {
		log.Printf("バッファ数の設定に失敗（既定値で続行）: %v", err)
	}

	if err := cam.StartStreaming(); err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("ストリーミングの開始に失敗: %w", err)
	}

	return &v4l2Device{
		path:   settings.Device,
		cam:    cam,
		format: format,
		width:  int(w),
		height: int(h),
	}, nil
}

// selectFormat はサポートフォーマットからYUYV、次にMJPEGを選ぶ
func selectFormat(formats map[webcam.PixelFormat]string) (webcam.PixelFormat, string, bool) {
	if name, ok := formats[formatYUYV]; ok {
		return formatYUYV, name, true
	}
	if name, ok := formats[formatMJPEG]; ok {
		return formatMJPEG, name, true
	}

	// 一部のドライバーはfourccではなく説明文で識別される
	for f, name := range formats {
		if strings.HasPrefix(name, "Motion-JPEG") {
			return f, name, true
		}
	}

	return 0, "", false
}

// Read は新しいフレームが届くまで待機して返す
func (d *v4l2Device) Read(ctx context.Context) (*Frame, error) {
	// 前回の読み取り以降にキューに溜まった古いフレームを捨てる
	d.drain()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		err := d.cam.WaitForFrame(v4l2WaitTimeout)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			continue
		default:
			return nil, fmt.Errorf("%w: %s: %v", ErrDeviceGone, d.path, err)
		}

		data, err := d.cam.ReadFrame()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDeviceGone, d.path, err)
		}
		if len(data) == 0 {
			continue
		}

		img, err := d.decode(data)
		if err != nil {
			log.Printf("破損したフレームを読み飛ばします (%s): %v", d.path, err)
			continue
		}

		return NewFrame(img, time.Now()), nil
	}
}

// drain は待機せずに取得可能なフレームをすべて読み捨てる
func (d *v4l2Device) drain() {
	for d.cam.WaitForFrame(0) == nil {
		if _, err := d.cam.ReadFrame(); err != nil {
			return
		}
	}
}

// decode はピクセルフォーマットに応じて画像に変換する
func (d *v4l2Device) decode(data []byte) (image.Image, error) {
	if d.format == formatYUYV {
		return decodeYUYV(data, d.width, d.height)
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("JPEG画像のデコードに失敗: %w", err)
	}
	return img, nil
}

// Resolution はネゴシエートされた解像度を返す
func (d *v4l2Device) Resolution() (int, int) {
	return d.width, d.height
}

// Close はストリーミングを停止してデバイスを閉じる
func (d *v4l2Device) Close() error {
	if err := d.cam.StopStreaming(); err != nil {
		log.Printf("ストリーミングの停止に失敗: %v", err)
	}
	return d.cam.Close()
}
