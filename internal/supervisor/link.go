package supervisor

import (
	"context"
	"time"

	"discover/pkg/logging"

	"github.com/cenkalti/backoff/v5"
)

// Dependency names an external system the agent needs.
type Dependency string

const (
	Runtime  Dependency = "runtime"
	Registry Dependency = "registry"
)

// LinkState is the connection state of one dependency.
type LinkState int

const (
	Disconnected LinkState = iota
	Connecting
	Connected
)

func (s LinkState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// ProbeFunc checks a dependency. A nil error means reachable.
type ProbeFunc func(ctx context.Context) error

// LinkStatus is a snapshot of one link.
type LinkStatus struct {
	State     LinkState
	LastError error
	Since     time.Time
	Attempts  int
}

type link struct {
	dep   Dependency
	probe ProbeFunc

	// guarded by Supervisor.mu
	status LinkStatus

	lost chan error    // ReportLost -> link goroutine
	poke chan struct{} // skip the current backoff wait
}

func newLink(dep Dependency, probe ProbeFunc) *link {
	return &link{
		dep:    dep,
		probe:  probe,
		status: LinkStatus{State: Disconnected, Since: time.Now()},
		lost:   make(chan error, 1),
		poke:   make(chan struct{}, 1),
	}
}

func (s *Supervisor) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.InitialBackoff
	b.MaxInterval = s.opts.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.Reset()
	return b
}

// runLink drives one dependency: connect, watch health while connected, wait
// out the backoff after every failure or loss.
func (s *Supervisor) runLink(ctx context.Context, l *link) {
	b := s.newBackoff()

	for {
		s.setState(l, Connecting, nil)
		err := s.runProbe(ctx, l)
		if ctx.Err() != nil {
			return
		}

		if err == nil {
			b.Reset()
			// A loss reported against the previous connection is stale.
			select {
			case <-l.lost:
			default:
			}
			s.setState(l, Connected, nil)
			err = s.watchHealth(ctx, l)
			if ctx.Err() != nil {
				return
			}
		} else {
			s.setState(l, Disconnected, err)
		}

		wait := b.NextBackOff()
		logging.Debug(subsystem, "Reconnecting %s in %s (last error: %v)", l.dep, wait.Round(time.Millisecond), err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-l.poke:
			timer.Stop()
			logging.Debug(subsystem, "Reconnect of %s requested, skipping backoff", l.dep)
		case <-timer.C:
		}
	}
}

// watchHealth blocks while the link stays healthy. It returns the error that
// ended the connection; the link is already marked Disconnected.
func (s *Supervisor) watchHealth(ctx context.Context, l *link) error {
	ticker := time.NewTicker(s.opts.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-l.lost:
			// ReportLost already changed the state.
			return err
		case <-ticker.C:
			if err := s.runProbe(ctx, l); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.setState(l, Disconnected, err)
				return err
			}
		}
	}
}

func (s *Supervisor) runProbe(ctx context.Context, l *link) error {
	probeCtx, cancel := context.WithTimeout(ctx, s.opts.probeTimeout(l.dep))
	defer cancel()
	return l.probe(probeCtx)
}
