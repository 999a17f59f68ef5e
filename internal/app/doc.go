// Package app provides application bootstrap and lifecycle management for the
// discover agent.
//
// # Architecture Overview
//
//  1. **Configuration (`config.go`)**: flag overrides layered over the YAML file
//  2. **Bootstrap (`bootstrap.go`)**: validation, logging setup, service creation
//  3. **Services (`services.go`)**: construction and wiring of every component
//  4. **Run (`run.go`)**: one errgroup for all goroutines, signal handling, sd_notify
//  5. **Metrics (`metrics.go`)**: prometheus and health endpoint
//
// # Wiring
//
// InitializeServices creates the Docker runtime, the registry store (etcd or
// memory, rate limited), the connection supervisor with a probe per
// dependency, the extractor and the reconciler. The supervisor's transitions
// feed the reconciler, the event pump feeds it runtime observations, and the
// socket watcher pokes the runtime link when the Docker socket reappears.
//
// # Lifecycle
//
// Run starts everything and blocks. On SIGINT, SIGTERM or a failing component
// the shared context is cancelled: the reconciler deregisters this host's
// entries, the other components return, and the clients are closed.
//
// Under systemd the agent reports READY=1 the first time the reconciler
// reaches Steady, STATUS=<state> on every state change and STOPPING=1 when
// shutdown begins.
//
// # Errors
//
// Configuration problems are returned as config.ConfigurationError so the
// command line can exit with the configuration error code. Everything that
// happens after startup is handled inside the components.
package app
