package config

import "time"

// DiscoverConfig is the top-level configuration structure for discover.
type DiscoverConfig struct {
	Discover   DiscoverSettings `yaml:"discover"`
	Registry   RegistrySettings `yaml:"registry"`
	Docker     DockerConfig     `yaml:"docker"`
	Etcd       EtcdConfig       `yaml:"etcd"`
	Host       HostConfig       `yaml:"host"`
	Lease      LeaseConfig      `yaml:"lease"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DiscoverSettings controls how service declarations are read from containers.
type DiscoverSettings struct {
	ServiceVariable string `yaml:"serviceVariable,omitempty"` // Env variable (or label) holding declarations (default: DISCOVER)
	Grammar         string `yaml:"grammar,omitempty"`         // Declaration grammar: default or json
}

// Registry backends.
const (
	RegistryEtcd   = "etcd"
	RegistryMemory = "memory"
)

// RegistrySettings selects the registry backend.
type RegistrySettings struct {
	Backend string `yaml:"backend,omitempty"` // etcd (default) or memory
}

// DockerConfig defines how to reach the container runtime.
type DockerConfig struct {
	Host       string `yaml:"host,omitempty"`       // Engine endpoint (default: unix:///var/run/docker.sock)
	APIVersion string `yaml:"apiVersion,omitempty"` // Pinned API version; negotiated when empty
	// SocketPath is watched for (re)creation to speed up reconnects.
	// Derived from Host for unix endpoints when empty.
	SocketPath string `yaml:"socketPath,omitempty"`

	RequestTimeout   time.Duration `yaml:"requestTimeout,omitempty"`   // One engine API call
	EnumerateTimeout time.Duration `yaml:"enumerateTimeout,omitempty"` // A full listing with every inspect
}

// EtcdConfig defines the registry store connection.
type EtcdConfig struct {
	Endpoints      []string      `yaml:"endpoints,omitempty"`
	Prefix         string        `yaml:"prefix,omitempty"`
	DialTimeout    time.Duration `yaml:"dialTimeout,omitempty"`
	RequestTimeout time.Duration `yaml:"requestTimeout,omitempty"`
	// WriteRate caps registry writes per second. Zero disables throttling.
	WriteRate  float64 `yaml:"writeRate,omitempty"`
	WriteBurst int     `yaml:"writeBurst,omitempty"`
}

// HostConfig identifies this agent's host in the registry.
type HostConfig struct {
	ID    string `yaml:"id,omitempty"`
	IP    string `yaml:"ip,omitempty"`
	Realm string `yaml:"realm,omitempty"`
}

// LeaseConfig controls entry lifetime and reconciliation cadence.
type LeaseConfig struct {
	TTL           time.Duration `yaml:"ttl,omitempty"`
	RenewInterval time.Duration `yaml:"renewInterval,omitempty"`
	SweepInterval time.Duration `yaml:"sweepInterval,omitempty"`
}

// SupervisorConfig controls reconnect behaviour for both dependencies.
type SupervisorConfig struct {
	InitialBackoff time.Duration `yaml:"initialBackoff,omitempty"`
	MaxBackoff     time.Duration `yaml:"maxBackoff,omitempty"`
	HealthInterval time.Duration `yaml:"healthInterval,omitempty"`
}

// MetricsConfig enables the prometheus endpoint when Address is set.
type MetricsConfig struct {
	Address string `yaml:"address,omitempty"`
}

// LoggingConfig mirrors the logging flags so they can live in the file too.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
	File   string `yaml:"file,omitempty"`
}
