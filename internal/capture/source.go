// Package capture provides the frame sources the live detection loop samples from.
package capture

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrPermissionDenied means the device or file exists but cannot be opened by this process.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrFrameUnavailable means no frame has been produced yet or the source is closed.
	ErrFrameUnavailable = errors.New("frame unavailable")
)

// FrameSource yields the most recent frame of a camera or video.
// Open acquires the underlying device and Close releases it; a closed source is not reopened.
type FrameSource interface {
	Open(ctx context.Context) error
	Capture(ctx context.Context) (image.Image, error)
	Close() error
}

// Factory builds a fresh, unopened FrameSource.
type Factory func() (FrameSource, error)
