package app

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"discover/internal/config"
)

// testDiscoverConfig returns a valid configuration with the memory registry
// and a runtime socket that does not exist.
func testDiscoverConfig(t *testing.T) config.DiscoverConfig {
	t.Helper()
	dc := config.GetDefaultConfig()
	dc.Registry.Backend = config.RegistryMemory
	dc.Docker.Host = "unix://" + filepath.Join(t.TempDir(), "docker.sock")
	dc.Host = config.HostConfig{ID: "h1", IP: "10.0.0.5", Realm: "prod"}
	dc.Lease = config.LeaseConfig{TTL: 3 * time.Second, RenewInterval: time.Second, SweepInterval: 5 * time.Second}
	dc.Supervisor = config.SupervisorConfig{
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
		HealthInterval: time.Second,
	}
	return dc
}

type notifyRecorder struct {
	mu     sync.Mutex
	states []string
}

func (r *notifyRecorder) notify(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *notifyRecorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.states...)
}
