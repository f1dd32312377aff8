// Package metrics exposes controller state to Prometheus. A nil *Metrics is valid and records
// nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Trigger label values.
const (
	TriggerManual    = "manual"
	TriggerAutomatic = "automatic"
	TriggerProgram   = "program"
)

type Metrics struct {
	registry *prometheus.Registry

	activeZones    prometheus.Gauge
	programRunning prometheus.Gauge
	zoneStarts     *prometheus.CounterVec
	programRuns    *prometheus.CounterVec
	relayErrors    prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		activeZones: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "irrigation_active_zones",
			Help: "Number of zones whose valve is currently open",
		}),
		programRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "irrigation_program_running",
			Help: "1 while a program owns the system",
		}),
		zoneStarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "irrigation_zone_starts_total",
			Help: "Zone activations by trigger",
		}, []string{"trigger"}),
		programRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "irrigation_program_runs_total",
			Help: "Finished program runs by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		relayErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "irrigation_relay_errors_total",
			Help: "Failed relay pin writes",
		}),
	}
	m.registry.MustRegister(m.activeZones, m.programRunning, m.zoneStarts, m.programRuns, m.relayErrors)
	return m
}

// Handler serves the private registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SetActiveZones(n int) {
	if m == nil {
		return
	}
	m.activeZones.Set(float64(n))
}

func (m *Metrics) SetProgramRunning(running bool) {
	if m == nil {
		return
	}
	v := 0.0
	if running {
		v = 1
	}
	m.programRunning.Set(v)
}

func (m *Metrics) ZoneStarted(trigger string) {
	if m == nil {
		return
	}
	m.zoneStarts.WithLabelValues(trigger).Inc()
}

func (m *Metrics) ProgramFinished(trigger, outcome string) {
	if m == nil {
		return
	}
	m.programRuns.WithLabelValues(trigger, outcome).Inc()
}

func (m *Metrics) RelayError() {
	if m == nil {
		return
	}
	m.relayErrors.Inc()
}
