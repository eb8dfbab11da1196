package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:5000", cfg.BackendURL)
	assert.Equal(t, 1200*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10, cfg.HistorySize)
	assert.Equal(t, SourceWebcam, cfg.CameraSource)
	assert.Equal(t, 960, cfg.FrameWidth)
	assert.Equal(t, 540, cfg.FrameHeight)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxFileSizeBytes())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://detector:5000/")
	t.Setenv("POLL_INTERVAL", "2s")
	t.Setenv("HISTORY_SIZE", "4")
	t.Setenv("CAMERA_SOURCE", "IMAGE")
	t.Setenv("IMAGE_PATH", "/tmp/frame.png")

	cfg, err := LoadConfig(zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "http://detector:5000", cfg.BackendURL)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 4, cfg.HistorySize)
	assert.Equal(t, SourceImage, cfg.CameraSource)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"bad duration":      {"POLL_INTERVAL": "soon"},
		"zero history":      {"HISTORY_SIZE": "0"},
		"quality too high":  {"JPEG_QUALITY": "101"},
		"unknown source":    {"CAMERA_SOURCE": "drone"},
		"file without path": {"CAMERA_SOURCE": "file"},
		"bad backend url":   {"BACKEND_URL": "not a url"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(zap.NewNop())
			assert.Error(t, err)
		})
	}
}
