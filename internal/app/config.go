package app

import (
	"discover/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of logging.level.
	Debug bool

	// Custom configuration file (optional). When empty the default location
	// is read if present.
	ConfigPath string

	// Overrides are command line values applied on top of the file.
	Overrides Overrides

	// Loaded configuration. NewApplication fills it in when nil.
	DiscoverConfig *config.DiscoverConfig
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string, overrides Overrides) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
		Overrides:  overrides,
	}
}

// Overrides carries flag values. Empty fields leave the file value alone.
type Overrides struct {
	Registry        string
	HostID          string
	HostIP          string
	Realm           string
	EtcdEndpoints   []string
	EtcdPrefix      string
	ServiceVariable string
	MetricsAddress  string
	LogFormat       string
	LogFile         string
}

// Apply writes the set overrides into cfg.
func (o Overrides) Apply(cfg *config.DiscoverConfig) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Registry.Backend, o.Registry)
	set(&cfg.Host.ID, o.HostID)
	set(&cfg.Host.IP, o.HostIP)
	set(&cfg.Host.Realm, o.Realm)
	set(&cfg.Etcd.Prefix, o.EtcdPrefix)
	set(&cfg.Discover.ServiceVariable, o.ServiceVariable)
	set(&cfg.Metrics.Address, o.MetricsAddress)
	set(&cfg.Logging.Format, o.LogFormat)
	set(&cfg.Logging.File, o.LogFile)
	if len(o.EtcdEndpoints) > 0 {
		cfg.Etcd.Endpoints = append([]string(nil), o.EtcdEndpoints...)
	}
}

// LoadDiscoverConfig loads the file at path (or the default location) and
// applies the overrides. The result is not validated: the agent validates
// all of it, read-only commands only what they use.
func LoadDiscoverConfig(path string, overrides Overrides) (config.DiscoverConfig, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return config.DiscoverConfig{}, err
	}
	overrides.Apply(&cfg)
	return cfg, nil
}
