package observability

import (
	"sync"
	"testing"
)

// TestNewMetricsConcurrency verifies that NewMetrics can be called concurrently
// without causing race conditions
func TestNewMetricsConcurrency(t *testing.T) {
	// Number of concurrent goroutines to test with
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	// Start multiple goroutines that all try to create metrics concurrently
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()

			// Call NewMetrics - this should not cause a race condition
			metrics, err := NewMetrics()
			if err != nil {
				t.Errorf("NewMetrics failed: %v", err)
				return
			}

			// Verify metrics is not nil
			if metrics == nil {
				t.Error("NewMetrics returned nil")
				return
			}

			// Verify all metric fields are initialized
			if metrics.registry == nil {
				t.Error("metrics.registry is nil")
			}
			if metrics.Modem == nil {
				t.Error("metrics.Modem is nil")
			}
			if metrics.MQTT == nil {
				t.Error("metrics.MQTT is nil")
			}
		}()
	}

	// Wait for all goroutines to complete
	wg.Wait()
}
