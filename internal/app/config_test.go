package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discover/internal/config"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(true, "/etc/discover/custom.yaml", Overrides{Realm: "prod"})

	assert.True(t, cfg.Debug)
	assert.Equal(t, "/etc/discover/custom.yaml", cfg.ConfigPath)
	assert.Equal(t, "prod", cfg.Overrides.Realm)
	assert.Nil(t, cfg.DiscoverConfig)
}

func TestOverrides_Apply(t *testing.T) {
	t.Run("empty overrides change nothing", func(t *testing.T) {
		dc := config.GetDefaultConfig()
		want := config.GetDefaultConfig()
		Overrides{}.Apply(&dc)
		assert.Equal(t, want, dc)
	})

	t.Run("set fields win", func(t *testing.T) {
		dc := config.GetDefaultConfig()
		endpoints := []string{"http://etcd-1:2379", "http://etcd-2:2379"}
		Overrides{
			Registry:        config.RegistryMemory,
			HostID:          "h7",
			HostIP:          "192.168.1.7",
			Realm:           "staging",
			EtcdEndpoints:   endpoints,
			EtcdPrefix:      "/sd",
			ServiceVariable: "SERVICES",
			MetricsAddress:  ":9102",
			LogFormat:       "json",
			LogFile:         "/var/log/discover.log",
		}.Apply(&dc)

		assert.Equal(t, config.RegistryMemory, dc.Registry.Backend)
		assert.Equal(t, config.HostConfig{ID: "h7", IP: "192.168.1.7", Realm: "staging"}, dc.Host)
		assert.Equal(t, endpoints, dc.Etcd.Endpoints)
		assert.Equal(t, "/sd", dc.Etcd.Prefix)
		assert.Equal(t, "SERVICES", dc.Discover.ServiceVariable)
		assert.Equal(t, ":9102", dc.Metrics.Address)
		assert.Equal(t, "json", dc.Logging.Format)
		assert.Equal(t, "/var/log/discover.log", dc.Logging.File)

		endpoints[0] = "changed"
		assert.Equal(t, "http://etcd-1:2379", dc.Etcd.Endpoints[0], "endpoints are copied")
	})
}

func TestLoadDiscoverConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
host:
  id: file-host
  ip: 10.1.1.1
  realm: file-realm
etcd:
  prefix: /registry
`), 0o600))

	dc, err := LoadDiscoverConfig(path, Overrides{Realm: "flag-realm"})
	require.NoError(t, err)

	assert.Equal(t, "file-host", dc.Host.ID)
	assert.Equal(t, "flag-realm", dc.Host.Realm)
	assert.Equal(t, "/registry", dc.Etcd.Prefix)
	assert.Equal(t, config.DefaultTTL, dc.Lease.TTL, "defaults fill the rest")
}

func TestLoadDiscoverConfig_MissingFile(t *testing.T) {
	_, err := LoadDiscoverConfig(filepath.Join(t.TempDir(), "absent.yaml"), Overrides{})
	require.Error(t, err)
	assert.True(t, config.IsConfigurationError(err))
}
