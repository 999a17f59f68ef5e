package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"discover/internal/reconciler"
	"discover/internal/supervisor"
	"discover/pkg/logging"
)

const metricsShutdownTimeout = 5 * time.Second

// healthStatus is the body of /healthz.
type healthStatus struct {
	State      reconciler.State        `json:"state"`
	DegradedBy []supervisor.Dependency `json:"degradedBy,omitempty"`
	Desired    int                     `json:"desiredServices"`
	LastSync   *time.Time              `json:"lastSync,omitempty"`
	SyncEpoch  uint64                  `json:"syncEpoch"`
	Links      map[string]string       `json:"links"`
}

// newMetricsHandler serves /metrics from the private registry and /healthz,
// which answers 200 only while the reconciler is Steady.
func newMetricsHandler(s *Services) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.Metrics, promhttp.HandlerOpts{Registry: s.Metrics}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		st := s.Reconciler.Status()
		body := healthStatus{
			State:      st.State,
			DegradedBy: st.DegradedBy,
			Desired:    st.Desired,
			SyncEpoch:  st.SyncEpoch,
			Links:      make(map[string]string),
		}
		if !st.LastSync.IsZero() {
			body.LastSync = &st.LastSync
		}
		for _, dep := range s.Supervisor.Dependencies() {
			body.Links[string(dep)] = s.Supervisor.Status(dep).State.String()
		}

		code := http.StatusOK
		if st.State != reconciler.StateSteady {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	})
	return mux
}

// serveMetrics serves handler on addr until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, handler http.Handler) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start metrics server on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()
	logging.Info("Metrics", "Serving metrics on http://%s/metrics", listener.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Metrics", "Metrics server shutdown: %v", err)
	}
	return nil
}
