// Package observability provides Prometheus metrics for monitoring modem
// and MQTT activity, exposed over an optional HTTP telemetry endpoint.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/datatone/tonewire/internal/logging"
	"github.com/datatone/tonewire/internal/observability/metrics"
)

// Package-level logger scoped to the telemetry service.
var log = logging.ForService("telemetry")

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Modem    *metrics.ModemMetrics
	MQTT     *metrics.MQTTMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric
// collectors against a private registry. It returns an error if any metric
// collector fails to initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	modemMetrics, err := metrics.NewModemMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create modem metrics: %w", err)
	}

	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Modem:    modemMetrics,
		MQTT:     mqttMetrics,
	}, nil
}

// RegisterHandlers registers the metrics endpoint with the provided http.ServeMux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/metrics", m.metricsHandler)
}

// metricsHandler is the HTTP handler for the /metrics endpoint.
func (m *Metrics) metricsHandler(w http.ResponseWriter, r *http.Request) {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      promErrorLogger{},
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
	h.ServeHTTP(w, r)
}

// promErrorLogger routes promhttp handler errors to the package logger.
type promErrorLogger struct{}

func (promErrorLogger) Println(v ...any) {
	log.Error("metrics handler error", "detail", fmt.Sprint(v...))
}
