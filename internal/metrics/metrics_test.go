package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SetActiveZones(3)
	m.SetProgramRunning(true)
	m.ZoneStarted(TriggerManual)
	m.ProgramFinished(TriggerAutomatic, "completed")
	m.RelayError()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("nil metrics handler status = %d", w.Code)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.SetActiveZones(2)
	m.SetProgramRunning(true)
	m.ZoneStarted(TriggerManual)
	m.ProgramFinished(TriggerAutomatic, "completed")
	m.RelayError()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"irrigation_active_zones 2",
		"irrigation_program_running 1",
		`irrigation_zone_starts_total{trigger="manual"} 1`,
		`irrigation_program_runs_total{outcome="completed",trigger="automatic"} 1`,
		"irrigation_relay_errors_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
