package camera

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"log"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// 最初のフレームを待つ時間
const ffmpegStartTimeout = 10 * time.Second

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// ffmpegCommand はキャプチャ用のプロセスを作成する
var ffmpegCommand = func(ctx context.Context, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, "ffmpeg", args...)
}

// ffmpegDevice はffmpegのimage2pipe出力からフレームを取得するDevice実装
type ffmpegDevice struct {
	path   string
	cmd    *exec.Cmd
	cancel context.CancelFunc

	// 最新フレーム用の1スロット（古いフレームは上書き）
	latest chan []byte
	done   chan struct{}
	err    error
	stderr *tailBuffer

	width  int
	height int

	closeOnce sync.Once
}

// ffmpegArgs はキャプチャ用のffmpeg引数を組み立てる
func ffmpegArgs(settings Settings) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", settings.Width, settings.Height),
	}
	if settings.FPS > 0 {
		args = append(args, "-r", strconv.Itoa(settings.FPS))
	}
	return append(args,
		"-i", settings.Device,
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", "3",
		"-",
	)
}

// openFFmpeg はffmpegを起動し、最初のフレームが届くまで待機する
func openFFmpeg(ctx context.Context, settings Settings) (Device, error) {
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := ffmpegCommand(procCtx, ffmpegArgs(settings)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdoutパイプの作成に失敗: %w", err)
	}

	d := &ffmpegDevice{
		path:   settings.Device,
		cmd:    cmd,
		cancel: cancel,
		latest: make(chan []byte, 1),
		done:   make(chan struct{}),
		stderr: newTailBuffer(4096),
	}
	cmd.Stderr = d.stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpegの起動に失敗: %w", err)
	}

	go d.readLoop(stdout)

	// 最初のフレームでデバイスの動作と解像度を確認する
	waitCtx, waitCancel := context.WithTimeout(ctx, ffmpegStartTimeout)
	defer waitCancel()

	var first []byte
	select {
	case first = <-d.latest:
	case <-d.done:
		_ = d.Close()
		return nil, fmt.Errorf("ffmpegが終了しました: %v (stderr: %s)", d.err, d.stderr.String())
	case <-waitCtx.Done():
		_ = d.Close()
		return nil, fmt.Errorf("最初のフレームの待機に失敗: %w", waitCtx.Err())
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(first))
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("JPEGヘッダーのデコードに失敗: %w", err)
	}
	d.width, d.height = cfg.Width, cfg.Height

	// 待機中に新しいフレームが届いていればそちらを残す
	select {
	case d.latest <- first:
	default:
	}

	return d, nil
}

// readLoop はstdoutからJPEGを切り出して最新スロットに格納する
func (d *ffmpegDevice) readLoop(stdout io.Reader) {
	defer close(d.done)

	buffer := make([]byte, 64*1024)
	var pending []byte

	for {
		n, err := stdout.Read(buffer)
		if n > 0 {
			pending = append(pending, buffer[:n]...)
			for {
				frame, consumed, ok := splitJPEG(pending)
				if !ok {
					pending = pending[consumed:]
					break
				}
				pending = pending[consumed:]
				d.store(frame)
			}
		}
		if err != nil {
			if err != io.EOF {
				d.err = fmt.Errorf("フレーム読み取りエラー: %w", err)
			} else {
				d.err = io.EOF
			}
			_ = d.cmd.Wait()
			return
		}
	}
}

// store は最新スロットのフレームを置き換える
func (d *ffmpegDevice) store(frame []byte) {
	for {
		select {
		case d.latest <- frame:
			return
		default:
		}
		select {
		case <-d.latest:
		default:
		}
	}
}

// splitJPEG はバッファ先頭の完全なJPEGを切り出す
//
// 完全なフレームがある場合はそのフレームと消費バイト数を返す。
// ない場合はokがfalseで、consumedはSOIより前の不要なバイト数になる。
func splitJPEG(data []byte) (frame []byte, consumed int, ok bool) {
	start := bytes.Index(data, jpegSOI)
	if start == -1 {
		// 末尾の0xFFは次のSOIの前半かもしれない
		if len(data) > 0 && data[len(data)-1] == 0xFF {
			return nil, len(data) - 1, false
		}
		return nil, len(data), false
	}

	end := bytes.Index(data[start+2:], jpegEOI)
	if end == -1 {
		return nil, start, false
	}

	end += start + 2 + len(jpegEOI)
	frame = make([]byte, end-start)
	copy(frame, data[start:end])
	return frame, end, true
}

// Read は次のフレームを待機してデコードする
func (d *ffmpegDevice) Read(ctx context.Context) (*Frame, error) {
	for {
		select {
		case data := <-d.latest:
			img, err := jpeg.Decode(bytes.NewReader(data))
			if err != nil {
				log.Printf("破損したフレームを読み飛ばします (%s): %v", d.path, err)
				continue
			}
			return NewFrame(img, time.Now()), nil
		case <-d.done:
			return nil, fmt.Errorf("%w: %s: %v (stderr: %s)", ErrDeviceGone, d.path, d.err, d.stderr.String())
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Resolution は最初のフレームから得た解像度を返す
func (d *ffmpegDevice) Resolution() (int, int) {
	return d.width, d.height
}

// Close はffmpegプロセスを停止する
func (d *ffmpegDevice) Close() error {
	d.closeOnce.Do(func() {
		d.cancel()
		<-d.done
	})
	return nil
}

// tailBuffer は書き込まれたデータの末尾だけを保持する
type tailBuffer struct {
	mu   sync.Mutex
	max  int
	data []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = append(b.data, p...)
	if over := len(b.data) - b.max; over > 0 {
		b.data = b.data[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(bytes.TrimSpace(b.data))
}
