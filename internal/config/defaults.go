package config

import (
	"os"
	"time"
)

const (
	DefaultServiceVariable = "DISCOVER"
	DefaultGrammar         = "default"
	DefaultDockerHost      = "unix:///var/run/docker.sock"
	DefaultEtcdEndpoint    = "http://127.0.0.1:2379"
	DefaultPrefix          = "/services"
	DefaultRealm           = "default"

	// HostIPEnv is consulted when no host IP is configured.
	HostIPEnv = "HOST_IP"

	DefaultTTL            = 30 * time.Second
	DefaultRenewInterval  = 10 * time.Second
	DefaultSweepInterval  = 5 * time.Minute
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = time.Minute
	DefaultHealthInterval = 15 * time.Second
	DefaultDialTimeout    = 5 * time.Second
	DefaultRequestTimeout = 5 * time.Second

	DefaultDockerRequestTimeout = 10 * time.Second
	DefaultEnumerateTimeout     = 2 * time.Minute
	DefaultWriteRate      = 50
	DefaultWriteBurst     = 20
)

// Package-level hooks so tests can control host identity resolution.
var (
	osHostname = os.Hostname
	osGetenv   = os.Getenv
)

// GetDefaultConfig returns the default configuration. Host id and ip are
// resolved from the OS hostname and the HOST_IP environment variable.
func GetDefaultConfig() DiscoverConfig {
	hostID, _ := osHostname()

	return DiscoverConfig{
		Discover: DiscoverSettings{
			ServiceVariable: DefaultServiceVariable,
			Grammar:         DefaultGrammar,
		},
		Registry: RegistrySettings{
			Backend: RegistryEtcd,
		},
		Docker: DockerConfig{
			Host:             DefaultDockerHost,
			RequestTimeout:   DefaultDockerRequestTimeout,
			EnumerateTimeout: DefaultEnumerateTimeout,
		},
		Etcd: EtcdConfig{
			Endpoints:      []string{DefaultEtcdEndpoint},
			Prefix:         DefaultPrefix,
			DialTimeout:    DefaultDialTimeout,
			RequestTimeout: DefaultRequestTimeout,
			WriteRate:      DefaultWriteRate,
			WriteBurst:     DefaultWriteBurst,
		},
		Host: HostConfig{
			ID:    hostID,
			IP:    osGetenv(HostIPEnv),
			Realm: DefaultRealm,
		},
		Lease: LeaseConfig{
			TTL:           DefaultTTL,
			RenewInterval: DefaultRenewInterval,
			SweepInterval: DefaultSweepInterval,
		},
		Supervisor: SupervisorConfig{
			InitialBackoff: DefaultInitialBackoff,
			MaxBackoff:     DefaultMaxBackoff,
			HealthInterval: DefaultHealthInterval,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
