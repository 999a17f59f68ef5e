package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"discover/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	systemConfigDir = "/etc/discover"
	configFileName  = "config.yaml"
)

// GetDefaultConfigPath returns the config file consulted when --config is not given.
func GetDefaultConfigPath() string {
	return filepath.Join(systemConfigDir, configFileName)
}

// LoadConfig loads configuration from the given YAML file on top of the
// defaults. An empty path falls back to the default location, where a missing
// file is not an error. An explicitly requested file must exist.
func LoadConfig(configPath string) (DiscoverConfig, error) {
	config := GetDefaultConfig() // Start with default config

	explicit := configPath != ""
	if !explicit {
		configPath = GetDefaultConfigPath()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			logging.Debug("ConfigLoader", "No config file found at %s, using defaults", configPath)
			return config, nil
		}
		return DiscoverConfig{}, NewConfigurationError(configPath, "io",
			fmt.Sprintf("cannot read config file: %v", err))
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		// config malformed
		cerr := NewConfigurationError(configPath, "parse", err.Error())
		cerr.LineNumber = yamlErrorLine(err)
		return DiscoverConfig{}, cerr
	}

	logging.Info("ConfigLoader", "Loaded configuration from %s", configPath)
	return config, nil
}

// yamlErrorLine pulls the line number out of a yaml.v3 error message.
func yamlErrorLine(err error) int {
	var typeErr *yaml.TypeError
	msg := err.Error()
	if errors.As(err, &typeErr) && len(typeErr.Errors) > 0 {
		msg = typeErr.Errors[0]
	}
	idx := strings.Index(msg, "line ")
	if idx < 0 {
		return 0
	}
	var line int
	if _, scanErr := fmt.Sscanf(msg[idx:], "line %d", &line); scanErr != nil {
		return 0
	}
	return line
}
