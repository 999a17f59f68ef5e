package app

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"discover/internal/config"
	"discover/internal/containerizer"
	"discover/internal/reconciler"
	"discover/internal/registry"
	"discover/internal/services"
	"discover/internal/supervisor"
	"discover/pkg/logging"
)

// Services holds every component of a running agent, already wired together.
//
// Dependencies flow one way:
//
//	Runtime --> EventPump --> Reconciler <-- Supervisor
//	Store   ------------------^     ^
//	SocketWatcher --> Supervisor.Poke(runtime)
type Services struct {
	// AgentID identifies this process in the entries it writes.
	AgentID string

	Runtime    containerizer.ContainerRuntime
	Store      registry.Store
	Supervisor *supervisor.Supervisor
	Reconciler *reconciler.Reconciler
	EventPump  *containerizer.EventPump

	// SocketWatcher is nil when the runtime is not reached over a unix socket.
	SocketWatcher *containerizer.SocketWatcher

	// Metrics is the private registry served on the metrics endpoint.
	Metrics *prometheus.Registry
}

// InitializeServices creates all components for cfg.DiscoverConfig and wires
// them together. Nothing is connected yet; the supervisor does that once Run
// starts.
func InitializeServices(cfg *Config) (*Services, error) {
	dc := *cfg.DiscoverConfig
	agentID := uuid.NewString()

	runtime, err := containerizer.NewContainerRuntime(string(containerizer.RuntimeTypeDocker), containerizer.DockerOptions{
		Host:           dc.Docker.Host,
		APIVersion:     dc.Docker.APIVersion,
		RequestTimeout: dc.Docker.RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create container runtime: %w", err)
	}

	store, err := OpenStore(dc)
	if err != nil {
		_ = runtime.Close()
		return nil, err
	}

	extractor, err := services.NewExtractor(services.ExtractorConfig{
		Variable: dc.Discover.ServiceVariable,
		Grammar:  dc.Discover.Grammar,
		HostID:   dc.Host.ID,
		Realm:    dc.Host.Realm,
		HostIP:   dc.Host.IP,
	})
	if err != nil {
		_ = runtime.Close()
		_ = store.Close()
		return nil, config.NewConfigurationError("", "validation", err.Error())
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sup := supervisor.New(supervisor.Options{
		InitialBackoff: dc.Supervisor.InitialBackoff,
		MaxBackoff:     dc.Supervisor.MaxBackoff,
		HealthInterval: dc.Supervisor.HealthInterval,
		ProbeTimeout:   dc.Etcd.RequestTimeout,
		ProbeTimeouts:  map[supervisor.Dependency]time.Duration{supervisor.Runtime: dc.Docker.RequestTimeout},
	})
	sup.Add(supervisor.Runtime, runtime.Ping)
	sup.Add(supervisor.Registry, store.Ping)

	rec := reconciler.New(reconciler.Config{
		Realm:            dc.Host.Realm,
		HostID:           dc.Host.ID,
		AgentID:          agentID,
		LeaseTTL:         dc.Lease.TTL,
		RenewInterval:    dc.Lease.RenewInterval,
		SweepInterval:    dc.Lease.SweepInterval,
		OpTimeout:        dc.Etcd.RequestTimeout,
		EnumerateTimeout: dc.Docker.EnumerateTimeout,
	}, reconciler.Dependencies{
		Runtime:   runtime,
		Store:     store,
		Layout:    registry.NewLayout(dc.Etcd.Prefix),
		Extractor: extractor,
		Links:     sup,
		Metrics:   reconciler.NewMetrics(promRegistry),
	})
	sup.OnTransition(rec.OnTransition)

	pump := containerizer.NewEventPump(runtime, sup, rec.Observe)
	if dc.Docker.RequestTimeout > 0 {
		pump.InspectTimeout = dc.Docker.RequestTimeout
	}

	s := &Services{
		AgentID:    agentID,
		Runtime:    runtime,
		Store:      store,
		Supervisor: sup,
		Reconciler: rec,
		EventPump:  pump,
		Metrics:    promRegistry,
	}

	if socket := dc.DockerSocketPath(); socket != "" {
		s.SocketWatcher = containerizer.NewSocketWatcher(containerizer.SocketWatcherConfig{
			SocketPath: socket,
			OnAppear: func() {
				logging.Info("Bootstrap", "Runtime socket %s appeared, reconnecting", socket)
				sup.Poke(supervisor.Runtime)
			},
		})
	}

	logging.Debug("Bootstrap", "Services initialized (agent %s, registry %s, runtime %s)",
		agentID, dc.Registry.Backend, dc.Docker.Host)
	return s, nil
}

// OpenStore creates the registry store selected by the configuration,
// throttled to the configured write rate.
func OpenStore(dc config.DiscoverConfig) (registry.Store, error) {
	var store registry.Store
	switch dc.Registry.Backend {
	case config.RegistryMemory:
		store = registry.NewMemoryStore()
	case config.RegistryEtcd, "":
		etcd, err := registry.NewEtcdStore(registry.EtcdOptions{
			Endpoints:      dc.Etcd.Endpoints,
			DialTimeout:    dc.Etcd.DialTimeout,
			RequestTimeout: dc.Etcd.RequestTimeout,
			Logger:         logging.Zap("etcd"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create etcd client: %w", err)
		}
		store = etcd
	default:
		return nil, config.NewConfigurationError("", "validation",
			fmt.Sprintf("unknown registry backend %q", dc.Registry.Backend))
	}

	if dc.Etcd.WriteRate > 0 {
		store = registry.NewRateLimited(store, dc.Etcd.WriteRate, dc.Etcd.WriteBurst)
	}
	return store, nil
}

// Close releases the runtime and registry clients.
func (s *Services) Close() error {
	var firstErr error
	if err := s.Store.Close(); err != nil {
		firstErr = err
	}
	if err := s.Runtime.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
