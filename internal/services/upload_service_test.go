package services

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"detectx-service/internal/models"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func newTestUploadService(det Detector, status models.BackendStatus, maxBytes int64) *UploadService {
	return NewUploadService(det, staticStatus(status), maxBytes, time.Second, nil, zap.NewNop())
}

func TestUploadRefusedWhenBackendOffline(t *testing.T) {
	det := &fakeDetector{respond: detectionsWithConfidence}
	svc := newTestUploadService(det, models.BackendOffline, 1<<20)

	_, err := svc.DetectBytes(context.Background(), pngBytes(t))
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Zero(t, det.Calls())
}

func TestUploadDetectBytes(t *testing.T) {
	det := &fakeDetector{respond: func(int) ([]models.Detection, error) {
		return []models.Detection{
			{Class: models.LabelFireExtinguisher, Confidence: 91, BBox: []float64{10, 10, 50, 50}},
			{Class: models.LabelFireExtinguisher, Confidence: 88, BBox: []float64{60, 10, 90, 50}},
			{Class: models.LabelOxygenTank, Confidence: 77, BBox: []float64{5, 5, 9, 9}},
		}, nil
	}}
	svc := newTestUploadService(det, models.BackendOnline, 1<<20)

	resp, err := svc.DetectBytes(context.Background(), pngBytes(t))
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Count)
	assert.False(t, resp.NoDetections)
	assert.Equal(t, models.Summary{TotalObjects: 3, FireExtinguishers: 2, OxygenTanks: 1}, resp.Summary)

	last, ok := svc.Last()
	require.True(t, ok)
	assert.Len(t, last.Detections, 3)
	assert.Contains(t, last.DataURI, "data:image/png;base64,")
}

func TestUploadDetectImageNoObjects(t *testing.T) {
	det := &fakeDetector{respond: func(int) ([]models.Detection, error) { return nil, nil }}
	svc := newTestUploadService(det, models.BackendOnline, 1<<20)

	resp, err := svc.DetectImage(context.Background(), EncodeDataURI(pngBytes(t)))
	require.NoError(t, err)
	assert.True(t, resp.NoDetections)
	assert.NotNil(t, resp.Detections)
	assert.Zero(t, resp.Count)
}

func TestUploadRejectsInvalidPayloads(t *testing.T) {
	det := &fakeDetector{respond: detectionsWithConfidence}

	svc := newTestUploadService(det, models.BackendOnline, 1<<20)
	_, err := svc.DetectBytes(context.Background(), []byte("not an image"))
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = svc.DetectImage(context.Background(), "data:image/png;base64,%%%")
	assert.ErrorIs(t, err, ErrInvalidImage)

	small := newTestUploadService(det, models.BackendOnline, 10)
	_, err = small.DetectBytes(context.Background(), pngBytes(t))
	assert.ErrorIs(t, err, ErrInvalidImage)

	assert.Zero(t, det.Calls())
	_, ok := svc.Last()
	assert.False(t, ok)
}
