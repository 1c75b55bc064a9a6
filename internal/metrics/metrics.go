// Package metrics exposes Prometheus metrics for the config flow and the
// device bridge.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/muurk/remootio/internal/remootio"
)

const namespace = "remootio"

// Setup attempt results.
const (
	SetupConnected = "connected"
	SetupRetry     = "retry"
	SetupError     = "setup_error"
)

var states = []remootio.State{
	remootio.StateUnknown,
	remootio.StateOpen,
	remootio.StateClosed,
	remootio.StateNoSensorInstalled,
}

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	flowResults       *prometheus.CounterVec
	bootstrapDuration prometheus.Histogram
	deviceConnected   *prometheus.GaugeVec
	deviceState       *prometheus.GaugeVec
	setupAttempts     *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a new registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		flowResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_results_total",
			Help:      "Config flow submissions by outcome (created, abort reason or error code)",
		}, []string{"outcome"}),
		bootstrapDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bootstrap_duration_seconds",
			Help:      "Time spent validating a device during the config flow",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		deviceConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_connected",
			Help:      "1 if the bridge holds an authenticated session with the device",
		}, []string{"serial"}),
		deviceState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_state",
			Help:      "Current gate state (1 for the active state label)",
		}, []string{"serial", "state"}),
		setupAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "setup_attempts_total",
			Help:      "Device setup attempts by result (connected, retry, setup_error)",
		}, []string{"serial", "result"}),
	}

	m.registry.MustRegister(
		m.flowResults,
		m.bootstrapDuration,
		m.deviceConnected,
		m.deviceState,
		m.setupAttempts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveFlowResult counts a config flow outcome.
func (m *Metrics) ObserveFlowResult(outcome string) {
	m.flowResults.WithLabelValues(outcome).Inc()
}

// ObserveValidation records how long a validation took.
func (m *Metrics) ObserveValidation(d time.Duration, _ error) {
	m.bootstrapDuration.Observe(d.Seconds())
}

// SetConnected sets the connected gauge for serial.
func (m *Metrics) SetConnected(serial string, connected bool) {
	v := 0.0
	if connected {
		v = 1
	}
	m.deviceConnected.WithLabelValues(serial).Set(v)
}

// SetState sets the state gauges for serial so exactly one label is 1.
func (m *Metrics) SetState(serial string, state remootio.State) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		m.deviceState.WithLabelValues(serial, s.String()).Set(v)
	}
}

// ObserveSetup counts a setup attempt.
func (m *Metrics) ObserveSetup(serial, result string) {
	m.setupAttempts.WithLabelValues(serial, result).Inc()
}

// Forget drops all series for serial, e.g. after its entry was removed.
func (m *Metrics) Forget(serial string) {
	labels := prometheus.Labels{"serial": serial}
	m.deviceConnected.DeletePartialMatch(labels)
	m.deviceState.DeletePartialMatch(labels)
	m.setupAttempts.DeletePartialMatch(labels)
}
