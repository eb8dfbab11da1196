package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"detectx-service/internal/models"
)

func TestSummarizeCountsPerLabel(t *testing.T) {
	dets := []models.Detection{
		{Class: models.LabelFireExtinguisher, Confidence: 91, BBox: []float64{0, 0, 1, 1}},
		{Class: models.LabelFireExtinguisher, Confidence: 80, BBox: []float64{0, 0, 1, 1}},
		{Class: models.LabelOxygenTank, Confidence: 70, BBox: []float64{0, 0, 1, 1}},
	}

	assert.Equal(t, models.Summary{
		TotalObjects:      3,
		FireExtinguishers: 2,
		OxygenTanks:       1,
		Toolboxes:         0,
	}, Summarize(dets))
}

func TestBuildExport(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 30, 45, 123000000, time.UTC)
	img := "data:image/png;base64,AAAA"

	doc := BuildExport(nil, &img, now)
	assert.Equal(t, "2024-03-01T12:30:45.123Z", doc.Timestamp)
	assert.Equal(t, &img, doc.Image)
	assert.NotNil(t, doc.Detections)
	assert.Zero(t, doc.Summary.TotalObjects)
}

func TestWriteExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	now := time.UnixMilli(1700000000123)
	doc := BuildExport([]models.Detection{
		{Class: models.LabelToolBox, Confidence: 55.5, BBox: []float64{1, 2, 3, 4}},
	}, nil, now)

	path, err := WriteExport(dir, doc, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "detection-results-1700000000123.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"summary\": {")
	assert.Contains(t, string(data), `"image": null`)

	var decoded models.ExportDocument
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 1, decoded.Summary.Toolboxes)
	assert.Nil(t, decoded.Image)
}
