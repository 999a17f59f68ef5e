package app

import (
	"context"
	"fmt"
	"os"

	"discover/internal/config"
	"discover/pkg/logging"
)

// Application is the discover agent: configuration plus the wired services.
//
// The Application follows a two-phase initialization pattern:
//  1. Bootstrap phase: load and validate configuration, initialize logging, create services
//  2. Execution phase: run until the context is cancelled or a signal arrives
//
// Example usage:
//
//	cfg := app.NewConfig(false, "", app.Overrides{Realm: "prod"})
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
type Application struct {
	config   *Config
	services *Services

	// notify delivers sd_notify states.
	notify func(state string)
}

// NewApplication loads the configuration (unless cfg.DiscoverConfig is
// already set), validates it, configures logging and initializes the
// services. Configuration problems are returned as config.ConfigurationError.
func NewApplication(cfg *Config) (*Application, error) {
	appLogLevel := logging.LevelInfo
	if cfg.Debug {
		appLogLevel = logging.LevelDebug
	}
	logging.InitForCLI(appLogLevel, os.Stdout)

	if cfg.DiscoverConfig == nil {
		dc, err := LoadDiscoverConfig(cfg.ConfigPath, cfg.Overrides)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load configuration")
			return nil, err
		}
		cfg.DiscoverConfig = &dc
	}
	dc := cfg.DiscoverConfig

	if err := dc.Validate(); err != nil {
		return nil, err
	}

	if err := initLogging(cfg.Debug, dc.Logging); err != nil {
		return nil, err
	}
	for _, w := range dc.Warnings() {
		logging.Warn("Bootstrap", "%s", w)
	}

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		if config.IsConfigurationError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logging.Info("Bootstrap", "Agent %s registering services of host %s (%s) in realm %s",
		services.AgentID, dc.Host.ID, dc.Host.IP, dc.Host.Realm)

	return &Application{
		config:   cfg,
		services: services,
		notify:   sdNotify,
	}, nil
}

// Services returns the wired components.
func (a *Application) Services() *Services {
	return a.services
}

// Run executes the agent until ctx is cancelled or SIGINT/SIGTERM arrives,
// then deregisters this host's entries and releases all clients.
func (a *Application) Run(ctx context.Context) error {
	return runAgent(ctx, a)
}

// initLogging applies the logging section. --debug wins over logging.level.
func initLogging(debug bool, lc config.LoggingConfig) error {
	level := logging.LevelInfo
	if lc.Level != "" {
		parsed, err := logging.ParseLevel(lc.Level)
		if err != nil {
			return config.NewConfigurationError("", "validation", err.Error())
		}
		level = parsed
	}
	if debug {
		level = logging.LevelDebug
	}

	format := logging.FormatText
	switch lc.Format {
	case "", string(logging.FormatText):
	case string(logging.FormatJSON):
		format = logging.FormatJSON
	default:
		return config.NewConfigurationError("", "validation",
			fmt.Sprintf("unknown log format %q (valid: text, json)", lc.Format))
	}

	if err := logging.Init(logging.Options{
		Level:  level,
		Format: format,
		Output: os.Stdout,
		File:   lc.File,
	}); err != nil {
		return config.NewConfigurationError(lc.File, "io", err.Error())
	}
	return nil
}
