// Package metrics provides custom Prometheus metrics for the application
// components.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ModemMetrics contains all Prometheus metrics related to transmit and
// receive operations.
type ModemMetrics struct {
	TransmissionsTotal *prometheus.CounterVec
	TransmitDuration   *prometheus.HistogramVec
	ReceivesTotal      *prometheus.CounterVec
	ListenDuration     *prometheus.HistogramVec
	PayloadBytes       *prometheus.HistogramVec
	InputLevel         prometheus.Gauge
	registry           *prometheus.Registry
}

// Result labels for transmit and receive counters.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultStopped = "stopped"
	ResultTimeout = "timeout"
)

// NewModemMetrics creates a new instance of ModemMetrics registered with
// the given registry.
func NewModemMetrics(registry *prometheus.Registry) (*ModemMetrics, error) {
	m := &ModemMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize modem metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register modem metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for ModemMetrics.
func (m *ModemMetrics) initMetrics() error {
	m.TransmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "modem_transmissions_total",
		Help: "Total number of transmit operations by mode and result",
	}, []string{"mode", "result"})

	m.TransmitDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "modem_transmit_duration_seconds",
		Help:    "Wall-clock duration of transmit operations in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"mode"})

	m.ReceivesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "modem_receives_total",
		Help: "Total number of listen operations by mode and result",
	}, []string{"mode", "result"})

	m.ListenDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "modem_listen_duration_seconds",
		Help:    "Wall-clock duration of listen operations in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"mode"})

	m.PayloadBytes = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "modem_payload_bytes",
		Help:    "Payload sizes moved over the air, by direction",
		Buckets: prometheus.ExponentialBuckets(16, 2, 12),
	}, []string{"direction"})

	m.InputLevel = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "modem_input_level_rms",
		Help: "Most recent capture chunk RMS level (0.0 to 1.0)",
	})

	return nil
}

// RecordTransmission records the outcome of one transmit operation. A
// negative payloadBytes means the payload size is unknown (raw sample
// transmissions) and skips the size histogram.
func (m *ModemMetrics) RecordTransmission(mode, result string, duration time.Duration, payloadBytes int) {
	m.TransmissionsTotal.WithLabelValues(mode, result).Inc()
	if result == ResultOK {
		m.TransmitDuration.WithLabelValues(mode).Observe(duration.Seconds())
		if payloadBytes >= 0 {
			m.PayloadBytes.WithLabelValues("tx").Observe(float64(payloadBytes))
		}
	}
}

// RecordReceive records the outcome of one listen operation.
func (m *ModemMetrics) RecordReceive(mode, result string, duration time.Duration, payloadBytes int) {
	m.ReceivesTotal.WithLabelValues(mode, result).Inc()
	if result == ResultOK {
		m.ListenDuration.WithLabelValues(mode).Observe(duration.Seconds())
		m.PayloadBytes.WithLabelValues("rx").Observe(float64(payloadBytes))
	}
}

// UpdateInputLevel publishes the RMS level of the latest capture chunk.
func (m *ModemMetrics) UpdateInputLevel(rms float64) {
	m.InputLevel.Set(rms)
}

// Collect implements the prometheus.Collector interface.
func (m *ModemMetrics) Collect(ch chan<- prometheus.Metric) {
	m.TransmissionsTotal.Collect(ch)
	m.TransmitDuration.Collect(ch)
	m.ReceivesTotal.Collect(ch)
	m.ListenDuration.Collect(ch)
	m.PayloadBytes.Collect(ch)
	ch <- m.InputLevel
}

// Describe implements the prometheus.Collector interface.
func (m *ModemMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.TransmissionsTotal.Describe(ch)
	m.TransmitDuration.Describe(ch)
	m.ReceivesTotal.Describe(ch)
	m.ListenDuration.Describe(ch)
	m.PayloadBytes.Describe(ch)
	ch <- m.InputLevel.Desc()
}
