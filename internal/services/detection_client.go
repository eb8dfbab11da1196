package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"detectx-service/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxResponseBytes bounds how much of a backend response body is read.
const maxResponseBytes = 4 << 20

// Detector submits an encoded frame to the detection backend.
type Detector interface {
	Detect(ctx context.Context, imageDataURI string) ([]models.Detection, error)
}

// DetectionClient talks to the external detector backend (/health and /detect)
type DetectionClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewDetectionClient creates a new backend client. rps bounds outbound /detect submissions.
func NewDetectionClient(baseURL string, rps float64, logger *zap.Logger) *DetectionClient {
	return &DetectionClient{
		baseURL: baseURL,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(rps), 2),
		logger:  logger,
	}
}

// BaseURL returns the backend base URL
func (c *DetectionClient) BaseURL() string {
	return c.baseURL
}

// Health probes GET /health. Only a 200 answer counts as online.
func (c *DetectionClient) Health(ctx context.Context) models.BackendStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return models.BackendOffline
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("Backend health check failed", zap.Error(err))
		return models.BackendOffline
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Backend health check returned non-OK status", zap.Int("status_code", resp.StatusCode))
		return models.BackendOffline
	}
	return models.BackendOnline
}

// Detect posts the data-URI encoded image to /detect and returns the detections in received order.
func (c *DetectionClient) Detect(ctx context.Context, imageDataURI string) ([]models.Detection, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}

	body, err := json.Marshal(models.DetectRequest{Image: imageDataURI})
	if err != nil {
		return nil, fmt.Errorf("failed to encode detect request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrNetworkFailure, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status code %d", ErrNetworkFailure, resp.StatusCode)
	}

	detections, err := decodeDetectResponse(payload)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Detection response received",
		zap.Int("count", len(detections)),
		zap.Duration("latency", time.Since(start)),
	)
	return detections, nil
}

func decodeDetectResponse(payload []byte) ([]models.Detection, error) {
	var result models.DetectResponse
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if !result.Success {
		if result.Error == "" {
			result.Error = "unknown error"
		}
		return nil, fmt.Errorf("%w: %s", ErrDetectionRejected, result.Error)
	}

	for i, det := range result.Detections {
		if det.Class == "" {
			return nil, fmt.Errorf("%w: detection %d has no class", ErrMalformedResponse, i)
		}
		if len(det.BBox) != 4 {
			return nil, fmt.Errorf("%w: detection %d bbox has %d coordinates", ErrMalformedResponse, i, len(det.BBox))
		}
	}

	if result.Detections == nil {
		return []models.Detection{}, nil
	}
	return result.Detections, nil
}
