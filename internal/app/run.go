package app

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"discover/internal/reconciler"
	"discover/pkg/logging"
)

// runAgent runs every component in one errgroup. The first component to fail
// cancels the others, which makes the reconciler deregister and stop.
//
// Signal Handling:
//   - SIGINT (Ctrl+C): Triggers graceful shutdown
//   - SIGTERM: Triggers graceful shutdown (sent by systemd and container runtimes)
func runAgent(ctx context.Context, a *Application) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := a.services
	defer func() {
		if err := s.Close(); err != nil {
			logging.Warn("Agent", "Failed to close clients: %v", err)
		}
		if err := logging.Close(); err != nil {
			logging.Warn("Agent", "Failed to close log file: %v", err)
		}
	}()

	var readyOnce sync.Once
	s.Reconciler.OnStateChange(func(state reconciler.State) {
		a.notify("STATUS=" + string(state))
		if state == reconciler.StateSteady {
			readyOnce.Do(func() { a.notify(daemon.SdNotifyReady) })
		}
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.Supervisor.Run(gctx) })
	g.Go(func() error { return s.EventPump.Run(gctx) })
	if s.SocketWatcher != nil {
		g.Go(func() error { return s.SocketWatcher.Run(gctx) })
	}
	if addr := a.config.DiscoverConfig.Metrics.Address; addr != "" {
		g.Go(func() error { return serveMetrics(gctx, addr, newMetricsHandler(s)) })
	}
	g.Go(func() error { return s.Reconciler.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logging.Info("Agent", "Shutting down")
		a.notify(daemon.SdNotifyStopping)
		return nil
	})

	logging.Info("Agent", "Started. Press Ctrl+C to deregister and exit.")

	err := g.Wait()
	if err != nil {
		logging.Error("Agent", err, "Agent stopped with error")
		return err
	}
	logging.Info("Agent", "Stopped")
	return nil
}

// sdNotify tells systemd about state changes. It is a no-op outside a
// systemd unit with NOTIFY_SOCKET set.
func sdNotify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		logging.Debug("Agent", "sd_notify %q failed: %v", state, err)
	}
}
