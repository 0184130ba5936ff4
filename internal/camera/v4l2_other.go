//go:build !linux

package camera

import (
	"context"
	"fmt"
	"runtime"
)

// openV4L2 はLinux以外では常に失敗する
func openV4L2(_ context.Context, _ Settings) (Device, error) {
	return nil, fmt.Errorf("v4l2 (%s): %w", runtime.GOOS, ErrUnsupportedPlatform)
}
