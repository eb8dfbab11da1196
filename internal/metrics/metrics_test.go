package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.CycleCompleted()
	m.CycleFailed()
	m.TickSkipped()
	m.SetRunning(true)
	m.UploadProcessed()
	m.ObserveDetect(time.Second, nil)
	m.CountDetections([]string{"ToolBox"})
	assert.Zero(t, m.AvgResponseTimeMs())
}

func TestAvgResponseTime(t *testing.T) {
	m := New()
	m.ObserveDetect(100*time.Millisecond, nil)
	m.ObserveDetect(300*time.Millisecond, errors.New("boom"))
	assert.InDelta(t, 200.0, m.AvgResponseTimeMs(), 0.001)
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.CycleCompleted()
	m.CycleCompleted()
	m.SetRunning(true)
	m.CountDetections([]string{"FireExtinguisher"})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "# TYPE detectx_cycles_completed_total counter")
	assert.Contains(t, string(body), "detectx_cycles_completed_total 2")
	assert.Contains(t, string(body), "# TYPE detectx_uploads_processed_total counter")
	assert.Contains(t, string(body), "# TYPE detectx_loop_running gauge")
	assert.Contains(t, string(body), "detectx_loop_running 1")
	assert.Contains(t, string(body), `detectx_detections_total{label="FireExtinguisher"} 1`)
}
