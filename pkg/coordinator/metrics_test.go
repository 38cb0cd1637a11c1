package coordinator

import (
	"testing"

	"empacy/pkg/protocol"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsOperationsAndRegistrySizes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)
	c := newTestCoordinator(t, WithMetrics(m))

	mustSucceed(t, c, protocol.OpSpawnAgent, map[string]any{"role": "cto"})
	mustSucceed(t, c, protocol.OpSpawnAgent, map[string]any{"role": "project-manager"})
	mustFail(t, c, protocol.OpSpawnAgent, map[string]any{"role": "intern"}, "unknown agent type")
	mustSucceed(t, c, protocol.OpUpdateUbiquitousLanguage, map[string]any{
		"concepts": []map[string]any{{"name": "Order", "domain": "Sales", "definition": "A purchase"}},
	})

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"spawn success", testutil.ToFloat64(m.operations.WithLabelValues("spawnAgent", "success")), 2},
		{"spawn failure", testutil.ToFloat64(m.operations.WithLabelValues("spawnAgent", "failure")), 1},
		{"agents gauge", testutil.ToFloat64(m.agents), 2},
		{"contexts gauge", testutil.ToFloat64(m.contexts), 0},
		{"concepts gauge", testutil.ToFloat64(m.concepts), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if n := testutil.CollectAndCount(m.duration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}

func TestMustNewMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := MustNewMetrics(reg)
	second := MustNewMetrics(reg)

	first.ObserveOperation("health", true, 0)
	if got := testutil.ToFloat64(second.operations.WithLabelValues("health", "success")); got != 1 {
		t.Errorf("shared counter = %v, want 1", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveOperation("health", true, 0)
	m.SetRegistrySizes(1, 2, 3)
}
