package capture

import (
	"fmt"

	"go.uber.org/zap"

	"detectx-service/internal/config"
)

// NewFactory returns a Factory building the source selected by cfg.CameraSource.
func NewFactory(cfg *config.Config, logger *zap.Logger) (Factory, error) {
	switch cfg.CameraSource {
	case config.SourceWebcam:
		return func() (FrameSource, error) {
			return NewWebcamSource(cfg.CameraDevice, cfg.FrameWidth, cfg.FrameHeight, cfg.CaptureFPS, logger), nil
		}, nil
	case config.SourceFile:
		return func() (FrameSource, error) {
			return NewVideoFileSource(cfg.VideoPath, cfg.FrameWidth, cfg.FrameHeight, cfg.CaptureFPS, logger), nil
		}, nil
	case config.SourceImage:
		return func() (FrameSource, error) {
			return NewStillImageSource(cfg.ImagePath), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown camera source: %s", cfg.CameraSource)
	}
}
