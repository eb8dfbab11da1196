package main

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			_, _ = io.WriteString(w, `{"status":"OK","model_loaded":true}`)
		case "/detect":
			_, _ = io.WriteString(w, `{"success":true,"count":2,"detections":[
				{"class":"FireExtinguisher","confidence":91,"bbox":[10,10,50,50]},
				{"class":"OxygenTank","confidence":87.5,"bbox":[60,10,90,50]}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeImage(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 100, 60))))
	path := filepath.Join(t.TempDir(), "input.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(append([]string{"detectx"}, args...))
	return out.String(), err
}

func TestHealthCommand(t *testing.T) {
	srv := fakeBackend(t)

	out, err := run(t, "--backend-url", srv.URL, "health")
	require.NoError(t, err)
	assert.Contains(t, out, ": online")
}

func TestDetectCommand(t *testing.T) {
	srv := fakeBackend(t)

	out, err := run(t, "--backend-url", srv.URL, "detect", writeImage(t))
	require.NoError(t, err)
	assert.Contains(t, out, "FireExtinguisher (91%)\t[10 10 50 50]")
	assert.Contains(t, out, "OxygenTank (87.5%)")
	assert.Contains(t, out, "total 2: fire extinguishers 1, oxygen tanks 1, toolboxes 0")
}

func TestExportCommand(t *testing.T) {
	srv := fakeBackend(t)
	dir := t.TempDir()

	out, err := run(t, "--backend-url", srv.URL, "export", "--dir", dir, writeImage(t))
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "detection-results-"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"fire_extinguishers": 1`)
	assert.Contains(t, string(data), `"image": "data:image/png;base64,`)
}

func TestAnnotateCommand(t *testing.T) {
	srv := fakeBackend(t)
	outPath := filepath.Join(t.TempDir(), "annotated.jpg")

	_, err := run(t, "--backend-url", srv.URL, "annotate", "--out", outPath, writeImage(t))
	require.NoError(t, err)

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 100, cfg.Width)
}

func TestDetectCommandRequiresPath(t *testing.T) {
	_, err := run(t, "detect")
	assert.Error(t, err)
}
