package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveModelCall("openai/gpt-5", true, time.Second)
	m.ObserveModelCall("openai/gpt-5", false, time.Second)
	m.ObserveModelCall("openai/gpt-5", false, time.Second)
	m.IncBatchTask("Done")
	m.AddCalibrationRows(4)
	m.AddCalibrationRows(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelCalls.WithLabelValues("openai/gpt-5", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.modelCalls.WithLabelValues("openai/gpt-5", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batchTasks.WithLabelValues("Done")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.calibrationRows))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveModelCall("x", true, time.Second)
		m.ObserveGrading(false, time.Second)
		m.IncBatchTask("Failed")
		m.AddCalibrationRows(3)
		m.IncPersistenceFailure("save_submission")
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveGrading(true, 2*time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "grading_ensemble_gradings_total")
}
