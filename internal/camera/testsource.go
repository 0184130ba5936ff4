package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"
)

// TestSource は合成パターンを生成するDevice実装
//
// ハードウェアのない環境での動作確認とテストに使用する。
// limitが正の場合、limit回の読み取り後はErrDeviceGoneを返す。
type TestSource struct {
	width  int
	height int
	limit  int

	mu     sync.Mutex
	reads  int
	closed bool
}

// NewTestSource は新しいTestSourceを作成する
func NewTestSource(width, height, limit int) *TestSource {
	if width <= 0 {
		width = 640
	}
	if height <= 0 {
		height = 480
	}

	return &TestSource{
		width:  width,
		height: height,
		limit:  limit,
	}
}

// Read はパターン画像を1枚生成する
func (s *TestSource) Read(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("%w: テストソースはクローズ済みです", ErrDeviceGone)
	}
	if s.limit > 0 && s.reads >= s.limit {
		return nil, fmt.Errorf("%w: テストソースの上限 %d 回に到達", ErrDeviceGone, s.limit)
	}

	s.reads++
	return NewFrame(s.pattern(s.reads), time.Now()), nil
}

// pattern は読み取り回数ごとに色がずれるグラデーションを描く
func (s *TestSource) pattern(seq int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	shift := uint8(seq * 16)

	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x*255/s.width) + shift,
				G: uint8(y*255/s.height) + shift,
				B: 128 + shift,
				A: 255,
			})
		}
	}

	return img
}

// Resolution は生成する画像の解像度を返す
func (s *TestSource) Resolution() (int, int) {
	return s.width, s.height
}

// Close はソースをクローズ済みにする
func (s *TestSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed はCloseが呼ばれたかを返す
func (s *TestSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
