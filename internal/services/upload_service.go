package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"detectx-service/internal/metrics"
	"detectx-service/internal/models"
)

// Upload is the most recent upload-and-detect result
type Upload struct {
	DataURI     string
	Detections  []models.Detection
	ProcessedAt time.Time
}

// UploadService runs single-image detection outside the live loop
type UploadService struct {
	detector Detector
	health   StatusSource
	maxBytes int64
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger

	mu   sync.RWMutex
	last *Upload
}

// NewUploadService creates a new upload service
func NewUploadService(detector Detector, health StatusSource, maxBytes int64, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *UploadService {
	return &UploadService{
		detector: detector,
		health:   health,
		maxBytes: maxBytes,
		timeout:  timeout,
		metrics:  m,
		logger:   logger,
	}
}

// DetectImage detects objects in a data-URI encoded image
func (s *UploadService) DetectImage(ctx context.Context, dataURI string) (*models.UploadResponse, error) {
	if err := s.checkBackend(); err != nil {
		return nil, err
	}

	data, err := DecodeDataURI(dataURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return s.detect(ctx, data, dataURI)
}

// DetectBytes detects objects in raw image bytes, e.g. a multipart upload
func (s *UploadService) DetectBytes(ctx context.Context, data []byte) (*models.UploadResponse, error) {
	if err := s.checkBackend(); err != nil {
		return nil, err
	}
	return s.detect(ctx, data, EncodeDataURI(data))
}

func (s *UploadService) checkBackend() error {
	if status := s.health.Status(); status != models.BackendOnline {
		return fmt.Errorf("%w: backend is %s", ErrBackendUnavailable, status)
	}
	return nil
}

func (s *UploadService) detect(ctx context.Context, data []byte, dataURI string) (*models.UploadResponse, error) {
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: file size %d exceeds maximum of %d bytes", ErrInvalidImage, len(data), s.maxBytes)
	}
	if _, err := DecodeImage(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	detections, err := s.detector.Detect(reqCtx, dataURI)
	s.metrics.ObserveDetect(time.Since(start), err)
	if err != nil {
		return nil, err
	}
	if detections == nil {
		detections = []models.Detection{}
	}
	s.metrics.UploadProcessed()

	s.mu.Lock()
	s.last = &Upload{
		DataURI:     dataURI,
		Detections:  detections,
		ProcessedAt: time.Now(),
	}
	s.mu.Unlock()

	s.logger.Info("Upload processed",
		zap.Int("size_bytes", len(data)),
		zap.Int("count", len(detections)),
		zap.Duration("latency", time.Since(start)),
	)

	return &models.UploadResponse{
		Detections:   detections,
		Count:        len(detections),
		NoDetections: len(detections) == 0,
		Summary:      Summarize(detections),
	}, nil
}

// Last returns the most recent successful upload
func (s *UploadService) Last() (Upload, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Upload{}, false
	}
	return *s.last, true
}
