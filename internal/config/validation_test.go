package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() DiscoverConfig {
	cfg := GetDefaultConfig()
	cfg.Host.ID = "h1"
	cfg.Host.IP = "10.0.0.5"
	cfg.Host.Realm = "prod"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*DiscoverConfig)
		wantField string
	}{
		{
			name:      "missing host id",
			mutate:    func(c *DiscoverConfig) { c.Host.ID = "" },
			wantField: "host.id",
		},
		{
			name:      "missing host ip",
			mutate:    func(c *DiscoverConfig) { c.Host.IP = "" },
			wantField: "host.ip",
		},
		{
			name:      "invalid host ip",
			mutate:    func(c *DiscoverConfig) { c.Host.IP = "not-an-ip" },
			wantField: "host.ip",
		},
		{
			name:      "realm with slash",
			mutate:    func(c *DiscoverConfig) { c.Host.Realm = "a/b" },
			wantField: "host.realm",
		},
		{
			name:      "no endpoints",
			mutate:    func(c *DiscoverConfig) { c.Etcd.Endpoints = nil },
			wantField: "etcd.endpoints",
		},
		{
			name:      "relative prefix",
			mutate:    func(c *DiscoverConfig) { c.Etcd.Prefix = "services" },
			wantField: "etcd.prefix",
		},
		{
			name:      "unknown grammar",
			mutate:    func(c *DiscoverConfig) { c.Discover.Grammar = "xml" },
			wantField: "discover.grammar",
		},
		{
			name: "renew interval too close to ttl",
			mutate: func(c *DiscoverConfig) {
				c.Lease.TTL = 20 * time.Second
				c.Lease.RenewInterval = 10 * time.Second
			},
			wantField: "lease.renewInterval",
		},
		{
			name:      "sweep shorter than renew",
			mutate:    func(c *DiscoverConfig) { c.Lease.SweepInterval = 5 * time.Second },
			wantField: "lease.sweepInterval",
		},
		{
			name:      "no docker request timeout",
			mutate:    func(c *DiscoverConfig) { c.Docker.RequestTimeout = 0 },
			wantField: "docker.requestTimeout",
		},
		{
			name:      "enumeration shorter than one docker call",
			mutate:    func(c *DiscoverConfig) { c.Docker.EnumerateTimeout = time.Second },
			wantField: "docker.enumerateTimeout",
		},
		{
			name:      "max backoff below initial",
			mutate:    func(c *DiscoverConfig) { c.Supervisor.MaxBackoff = time.Millisecond },
			wantField: "supervisor.maxBackoff",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err))

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))

			var fields []string
			for _, v := range verrs {
				fields = append(fields, v.Field)
			}
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestValidate_MemoryBackendSkipsEtcdEndpoints(t *testing.T) {
	cfg := validConfig()
	cfg.Registry.Backend = RegistryMemory
	cfg.Etcd.Endpoints = nil

	assert.NoError(t, cfg.Validate())
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Host.ID = ""
	cfg.Host.IP = ""

	err := cfg.Validate()
	require.Error(t, err)

	var cerr ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "validation", cerr.ErrorType)
	assert.Contains(t, cerr.Message, "host.id")
	assert.Contains(t, cerr.Message, "host.ip")
	assert.Contains(t, cerr.Suggestions, "set host.id or pass --host-id")
}

func TestWarnings(t *testing.T) {
	cfg := validConfig()
	assert.Empty(t, cfg.Warnings())

	cfg.Lease.TTL = 25 * time.Second
	cfg.Lease.RenewInterval = 10 * time.Second
	warnings := cfg.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "three renew intervals")
}

func TestDockerSocketPath(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "/var/run/docker.sock", cfg.DockerSocketPath())

	cfg.Docker.Host = "tcp://10.0.0.1:2375"
	assert.Equal(t, "", cfg.DockerSocketPath())

	cfg.Docker.SocketPath = "/run/user/1000/docker.sock"
	assert.Equal(t, "/run/user/1000/docker.sock", cfg.DockerSocketPath())
}
