// Package logging provides the structured logging system for discover.
//
// It is a thin layer over Go's slog package: every record carries a
// subsystem attribute, messages are printf-formatted, and the handler is
// either text (the default, for humans) or JSON (for log shippers).
//
// # Usage
//
//	if err := logging.Init(logging.Options{Level: logging.LevelInfo}); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logging.Info("Reconciler", "Registered %s", key)
//	logging.Error("Registry", err, "Failed to renew lease for %s", key)
//
// # Subsystems
//
//   - Bootstrap: application initialization and shutdown
//   - Config: configuration loading and validation
//   - Reconciler: desired/observed state synchronization
//   - Supervisor: dependency connection lifecycle
//   - Docker, EventPump, SocketWatcher: container runtime side
//   - Registry: etcd access
//
// # Third-party loggers
//
// The etcd client logs through zap. Zap builds a zap logger honouring the
// level configured here so both outputs are filtered consistently.
package logging
