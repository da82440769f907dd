package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTransmission(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewModemMetrics(registry)
	require.NoError(t, err)

	testCases := []struct {
		name   string
		mode   string
		result string
	}{
		{"audible ok", "audible", ResultOK},
		{"audible stopped", "audible", ResultStopped},
		{"ultrasonic error", "ultrasonic", ResultError},
		{"minimal ok", "minimal", ResultOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m.RecordTransmission(tc.mode, tc.result, 250*time.Millisecond, 12)

			count := testutil.ToFloat64(m.TransmissionsTotal.WithLabelValues(tc.mode, tc.result))
			assert.Equal(t, float64(1), count)
		})
	}
}

func TestRecordReceiveResultLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewModemMetrics(registry)
	require.NoError(t, err)

	m.RecordReceive("audible", ResultOK, time.Second, 32)
	m.RecordReceive("audible", ResultTimeout, 0, 0)
	m.RecordReceive("audible", ResultTimeout, 0, 0)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReceivesTotal.WithLabelValues("audible", ResultOK)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ReceivesTotal.WithLabelValues("audible", ResultTimeout)))
}

func TestUpdateInputLevel(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewModemMetrics(registry)
	require.NoError(t, err)

	m.UpdateInputLevel(0.25)
	assert.InDelta(t, 0.25, testutil.ToFloat64(m.InputLevel), 1e-9)

	m.UpdateInputLevel(0.01)
	assert.InDelta(t, 0.01, testutil.ToFloat64(m.InputLevel), 1e-9)
}

func TestDuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()

	_, err := NewModemMetrics(registry)
	require.NoError(t, err)

	// The same registry cannot accept a second collector with identical
	// metric descriptors.
	_, err = NewModemMetrics(registry)
	assert.Error(t, err)
}
