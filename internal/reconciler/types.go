package reconciler

import (
	"context"
	"time"

	"discover/internal/containerizer"
	"discover/internal/supervisor"
)

// State is the reconciler's position in its lifecycle.
type State string

const (
	// StateInitializing means no sync has happened yet. Runtime events only
	// update the desired set.
	StateInitializing State = "Initializing"

	// StateSyncing means a full sync (enumerate, list, cleanup, put) is running.
	StateSyncing State = "Syncing"

	// StateSteady means registry writes follow runtime events directly.
	StateSteady State = "Steady"

	// StateDegraded means a dependency is unavailable. No registry writes
	// happen until the supervisor reports recovery.
	StateDegraded State = "Degraded"

	// StateStopped is terminal. This host's entries have been deregistered.
	StateStopped State = "Stopped"
)

// AllStates lists every state, used to reset the state gauge.
var AllStates = []State{StateInitializing, StateSyncing, StateSteady, StateDegraded, StateStopped}

// RequestKind is the type of work queued for the worker.
type RequestKind string

const (
	// KindContainer carries a runtime observation for one container.
	KindContainer RequestKind = "container"

	// KindRenew renews the lease of every desired entry.
	KindRenew RequestKind = "renew"

	// KindSweep runs a periodic full sync.
	KindSweep RequestKind = "sweep"

	// KindReadiness carries a supervisor readiness transition.
	KindReadiness RequestKind = "readiness"

	// KindDeregister removes this host's entries during shutdown.
	KindDeregister RequestKind = "deregister"
)

// SyncReason labels why a full sync ran.
type SyncReason string

const (
	SyncStartup  SyncReason = "startup"
	SyncRecovery SyncReason = "recovery"
	SyncPeriodic SyncReason = "periodic"
)

// Request is one unit of work for the reconciler.
//
// Requests are deduplicated by Key: a container request replaces a queued
// request for the same container, so only the latest observation of a
// container is acted upon.
type Request struct {
	// Kind is the type of work.
	Kind RequestKind

	// Observation is set for KindContainer.
	Observation containerizer.Observation

	// Transition is set for KindReadiness.
	Transition supervisor.Transition

	// Enqueued is when the request was created.
	Enqueued time.Time
}

// Key returns the deduplication key of the request.
func (r Request) Key() string {
	if r.Kind == KindContainer {
		return string(KindContainer) + "/" + r.Observation.Event.ContainerID
	}
	return string(r.Kind)
}

// Queue is a deduplicating FIFO of requests.
type Queue interface {
	// Add adds a request to the queue.
	// If a request with the same key is already queued, it is replaced in place.
	Add(req Request)

	// Get retrieves the next request from the queue.
	// Blocks until a request is available, the context is cancelled or the
	// queue is shut down and empty.
	Get(ctx context.Context) (Request, bool)

	// Done marks a request as processed.
	Done(req Request)

	// Len returns the current queue length.
	Len() int

	// Shutdown stops accepting new requests. Queued requests can still be drained.
	Shutdown()
}

// Readiness is the part of the connection supervisor the reconciler consults.
type Readiness interface {
	// Ready reports whether every dependency is connected.
	Ready() bool

	// Epoch increments on every transition to ready.
	Epoch() uint64

	// ReportLost marks a dependency as lost after a failed call.
	ReportLost(dep supervisor.Dependency, err error)
}

// Config holds configuration for the Reconciler.
type Config struct {
	// Realm and HostID scope the entries this agent owns.
	Realm  string
	HostID string

	// AgentID identifies this agent process in entry values.
	AgentID string

	// LeaseTTL is the lease attached to every entry.
	LeaseTTL time.Duration

	// RenewInterval is how often leases are renewed.
	// Defaults to a third of LeaseTTL.
	RenewInterval time.Duration

	// SweepInterval is how often a full sync runs in steady state.
	// Defaults to 5 minutes.
	SweepInterval time.Duration

	// OpTimeout bounds each registry call.
	// Defaults to 5 seconds.
	OpTimeout time.Duration

	// EnumerateTimeout bounds the runtime enumeration of one sync. The
	// runtime bounds its individual calls itself.
	// Defaults to 2 minutes.
	EnumerateTimeout time.Duration

	// ShutdownTimeout bounds deregistration at shutdown.
	// Defaults to 10 seconds.
	ShutdownTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.LeaseTTL == 0 {
		c.LeaseTTL = 30 * time.Second
	}
	if c.RenewInterval == 0 {
		c.RenewInterval = c.LeaseTTL / 3
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = 5 * time.Minute
	}
	if c.OpTimeout == 0 {
		c.OpTimeout = 5 * time.Second
	}
	if c.EnumerateTimeout == 0 {
		c.EnumerateTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Status is a snapshot of the reconciler.
type Status struct {
	State      State
	DegradedBy []supervisor.Dependency
	Desired    int
	LastSync   time.Time
	SyncEpoch  uint64
}
