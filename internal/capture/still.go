package capture

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"
)

// StillImageSource serves a single decoded image file as every frame.
type StillImageSource struct {
	path string

	mu     sync.RWMutex
	frame  image.Image
	closed bool
}

func NewStillImageSource(path string) *StillImageSource {
	return &StillImageSource{path: path}
}

func (s *StillImageSource) Open(ctx context.Context) error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, s.path)
		}
		return fmt.Errorf("failed to open image %s: %w", s.path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("failed to decode image %s: %w", s.path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: source closed", ErrFrameUnavailable)
	}
	s.frame = img
	return nil
}

func (s *StillImageSource) Capture(ctx context.Context) (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.frame == nil {
		return nil, ErrFrameUnavailable
	}
	return s.frame, nil
}

func (s *StillImageSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.frame = nil
	return nil
}
