package health

import (
	"fmt"
	"testing"
)

func TestManager_Aggregation(t *testing.T) {
	m := NewManager(nil)

	if !m.IsHealthy() {
		t.Error("Empty health manager should be healthy")
	}

	m.Register("marketplace", func() error { return nil })
	if !m.IsHealthy() {
		t.Error("Healthy component should not fail manager")
	}

	m.Register("notify", func() error { return fmt.Errorf("stream down") })
	if m.IsHealthy() {
		t.Error("Unhealthy component should fail manager")
	}

	status := m.GetStatus()
	if status["marketplace"] != "Healthy" {
		t.Errorf("Expected Healthy, got %s", status["marketplace"])
	}
	if status["notify"] != "Unhealthy: stream down" {
		t.Errorf("Expected Unhealthy, got %s", status["notify"])
	}
}
