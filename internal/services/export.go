package services

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"detectx-service/internal/models"
)

const exportTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Summarize counts detections per known label
func Summarize(detections []models.Detection) models.Summary {
	summary := models.Summary{TotalObjects: len(detections)}
	for _, d := range detections {
		switch d.Class {
		case models.LabelFireExtinguisher:
			summary.FireExtinguishers++
		case models.LabelOxygenTank:
			summary.OxygenTanks++
		case models.LabelToolBox:
			summary.Toolboxes++
		}
	}
	return summary
}

// BuildExport assembles the downloadable results document. image may be nil.
func BuildExport(detections []models.Detection, image *string, now time.Time) models.ExportDocument {
	if detections == nil {
		detections = []models.Detection{}
	}
	return models.ExportDocument{
		Timestamp:  now.UTC().Format(exportTimeLayout),
		Image:      image,
		Detections: detections,
		Summary:    Summarize(detections),
	}
}

// ExportFileName returns detection-results-<epoch-ms>.json
func ExportFileName(now time.Time) string {
	return fmt.Sprintf("detection-results-%d.json", now.UnixMilli())
}

// MarshalExport renders doc as indented JSON
func MarshalExport(doc models.ExportDocument) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return data, nil
}

// WriteExport writes doc into dir and returns the file path
func WriteExport(dir string, doc models.ExportDocument, now time.Time) (string, error) {
	data, err := MarshalExport(doc)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(dir, ExportFileName(now))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}
