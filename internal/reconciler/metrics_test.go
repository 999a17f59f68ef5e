package reconciler

import (
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"discover/internal/registry"
)

func TestMetrics_Registration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.setState(StateSteady)
	m.desired.Set(3)
	m.syncs.WithLabelValues(string(SyncStartup)).Inc()

	expected := `
# HELP discover_reconciler_desired_services Number of services that should be registered for this host.
# TYPE discover_reconciler_desired_services gauge
discover_reconciler_desired_services 3
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "discover_reconciler_desired_services"); err != nil {
		t.Error(err)
	}

	if got := testutil.ToFloat64(m.state.WithLabelValues(string(StateSteady))); got != 1 {
		t.Errorf("expected Steady gauge 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.state.WithLabelValues(string(StateDegraded))); got != 0 {
		t.Errorf("expected Degraded gauge 0, got %v", got)
	}

	// Registering twice on the same registry is logged, not fatal.
	_ = NewMetrics(reg)
}

func TestMetrics_ObserveOp(t *testing.T) {
	m := NewMetrics(nil)

	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("%w: timeout", registry.ErrUnavailable), "unavailable"},
		{fmt.Errorf("%w: /a", registry.ErrNotFound), "not_found"},
		{fmt.Errorf("%w: /a", registry.ErrConflict), "conflict"},
		{fmt.Errorf("boom"), "error"},
	}

	for _, tt := range tests {
		m.observeOp("put", tt.err)
		if got := testutil.ToFloat64(m.registryOps.WithLabelValues("put", tt.want)); got != 1 {
			t.Errorf("result %q: expected 1, got %v", tt.want, got)
		}
	}
}
