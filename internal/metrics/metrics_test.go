package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func family(t *testing.T, m *Metrics, name string) *dto.MetricFamily {
	t.Helper()
	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return nil
}

func TestObserveRun(t *testing.T) {
	m := New()
	m.ObserveRun("complaints_per_1000", "ok", 5*time.Millisecond)
	m.ObserveRun("complaints_per_1000", "ok", 7*time.Millisecond)
	m.ObserveRun("reason_mix", "no_data", time.Millisecond)

	runs := family(t, m, "haloqa_question_runs_total")
	total := 0.0
	for _, metric := range runs.GetMetric() {
		total += metric.GetCounter().GetValue()
	}
	assert.Equal(t, 3.0, total)
	assert.Len(t, runs.GetMetric(), 2)

	hist := family(t, m, "haloqa_question_duration_seconds")
	assert.Len(t, hist.GetMetric(), 2)
}

func TestSetDatasetRowsReplaces(t *testing.T) {
	m := New()
	m.SetDatasetRows(map[string]int{"cases": 10, "complaints": 4})
	m.SetDatasetRows(map[string]int{"cases": 12})

	rows := family(t, m, "haloqa_dataset_rows")
	require.Len(t, rows.GetMetric(), 1)
	assert.Equal(t, 12.0, rows.GetMetric()[0].GetGauge().GetValue())
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveReload(nil)
	m.ObserveReload(errors.New("boom"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `haloqa_snapshot_reloads_total{result="error"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestSeparateInstancesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
