package reconciler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"discover/internal/containerizer"
	"discover/internal/registry"
	"discover/internal/services"
	"discover/internal/supervisor"
	"discover/pkg/logging"
)

const subsystem = "Reconciler"

// Dependencies are the collaborators of a Reconciler.
type Dependencies struct {
	Runtime   containerizer.ContainerRuntime
	Store     registry.Store
	Layout    registry.Layout
	Extractor *services.Extractor
	Links     Readiness

	// Metrics may be nil.
	Metrics *Metrics

	// Now defaults to time.Now. Used for entry timestamps.
	Now func() time.Time
}

// Reconciler keeps the registry in line with the services of the running
// containers on this host.
//
// Every input (runtime observations, readiness transitions, renew and sweep
// timers, shutdown) becomes a request on one queue consumed by a single
// worker. The desired set and all registry writes are owned by that worker,
// so no two reconciliation steps ever interleave.
type Reconciler struct {
	cfg       Config
	runtime   containerizer.ContainerRuntime
	store     registry.Store
	layout    registry.Layout
	extractor *services.Extractor
	links     Readiness
	metrics   *Metrics
	now       func() time.Time

	queue *delayedQueue

	// mu guards the fields readable from other goroutines
	mu         sync.RWMutex
	state      State
	degradedBy []supervisor.Dependency
	lastSync   time.Time
	syncEpoch  uint64
	listeners  []func(State)
	desiredLen int

	// owned by the worker goroutine
	desired         map[services.Identity]services.Descriptor
	synced          bool
	lastSyncedEpoch uint64

	running  atomic.Bool
	stopping atomic.Bool
}

// New creates a reconciler in the Initializing state.
func New(cfg Config, deps Dependencies) *Reconciler {
	cfg.applyDefaults()
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(nil)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	r := &Reconciler{
		cfg:       cfg,
		runtime:   deps.Runtime,
		store:     deps.Store,
		layout:    deps.Layout,
		extractor: deps.Extractor,
		links:     deps.Links,
		metrics:   deps.Metrics,
		now:       deps.Now,
		queue:     NewDelayedQueue(),
		state:     StateInitializing,
		desired:   make(map[services.Identity]services.Descriptor),
	}
	r.metrics.setState(StateInitializing)
	return r
}

// OnStateChange registers fn to be called from the worker after every state
// change. fn must not block.
func (r *Reconciler) OnStateChange(fn func(State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// State returns the current state.
func (r *Reconciler) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Status returns a snapshot of the reconciler.
func (r *Reconciler) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Status{
		State:      r.state,
		DegradedBy: append([]supervisor.Dependency(nil), r.degradedBy...),
		Desired:    r.desiredLen,
		LastSync:   r.lastSync,
		SyncEpoch:  r.syncEpoch,
	}
}

// Observe queues a runtime observation. It never blocks, so it can be used
// directly as the event pump's sink.
func (r *Reconciler) Observe(obs containerizer.Observation) {
	r.enqueue(Request{Kind: KindContainer, Observation: obs})
}

// OnTransition queues a supervisor readiness transition.
func (r *Reconciler) OnTransition(t supervisor.Transition) {
	r.enqueue(Request{Kind: KindReadiness, Transition: t})
}

// TriggerRenew queues a lease renewal now.
func (r *Reconciler) TriggerRenew() {
	r.enqueue(Request{Kind: KindRenew})
}

// TriggerSweep queues a full sync now. It only has an effect in Steady.
func (r *Reconciler) TriggerSweep() {
	r.enqueue(Request{Kind: KindSweep})
}

func (r *Reconciler) enqueue(req Request) {
	req.Enqueued = r.now()
	r.queue.Add(req)
	r.metrics.queueDepth.Set(float64(r.queue.Len()))
}

// Run processes requests until ctx is cancelled, then deregisters this
// host's entries and returns once the reconciler is Stopped.
func (r *Reconciler) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return errors.New("reconciler already running")
	}

	r.queue.AddAfter(Request{Kind: KindRenew}, r.cfg.RenewInterval)
	r.queue.AddAfter(Request{Kind: KindSweep}, r.cfg.SweepInterval)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		r.worker()
	}()

	logging.Info(subsystem, "Started for host %s in realm %s (lease %s, renew every %s, sweep every %s)",
		r.cfg.HostID, r.cfg.Realm, r.cfg.LeaseTTL, r.cfg.RenewInterval, r.cfg.SweepInterval)

	<-ctx.Done()

	logging.Info(subsystem, "Shutting down, deregistering services")
	r.stopping.Store(true)
	r.queue.StopTimers()
	r.queue.Add(Request{Kind: KindDeregister, Enqueued: r.now()})
	r.queue.Shutdown()

	<-workerDone
	return nil
}

// worker drains the queue. During shutdown only the deregister request does
// any work.
func (r *Reconciler) worker() {
	for {
		req, ok := r.queue.Get(context.Background())
		if !ok {
			return
		}

		if r.stopping.Load() && req.Kind != KindDeregister {
			logging.Debug(subsystem, "Dropping %s request during shutdown", req.Kind)
		} else {
			r.process(req)
		}

		r.queue.Done(req)
		r.metrics.requests.WithLabelValues(string(req.Kind)).Inc()
		r.metrics.queueDepth.Set(float64(r.queue.Len()))
	}
}

func (r *Reconciler) process(req Request) {
	switch req.Kind {
	case KindContainer:
		r.handleContainer(req.Observation)
	case KindReadiness:
		r.handleReadiness(req.Transition)
	case KindRenew:
		r.handleRenew()
		r.queue.AddAfter(Request{Kind: KindRenew}, r.cfg.RenewInterval)
	case KindSweep:
		r.handleSweep()
		r.queue.AddAfter(Request{Kind: KindSweep}, r.cfg.SweepInterval)
	case KindDeregister:
		r.handleDeregister()
	default:
		logging.Warn(subsystem, "Unknown request kind %q", req.Kind)
	}
}

// setState records a state change and notifies listeners.
func (r *Reconciler) setState(s State, degradedBy ...supervisor.Dependency) {
	r.mu.Lock()
	prev := r.state
	r.state = s
	r.degradedBy = degradedBy
	if s == StateSteady {
		r.lastSync = r.now()
	}
	listeners := append([]func(State){}, r.listeners...)
	r.mu.Unlock()

	if prev == s {
		return
	}

	r.metrics.setState(s)
	if s == StateDegraded && len(degradedBy) > 0 {
		logging.Warn(subsystem, "State %s -> %s (%v)", prev, s, degradedBy)
	} else {
		logging.Info(subsystem, "State %s -> %s", prev, s)
	}
	for _, fn := range listeners {
		fn(s)
	}
}

func (r *Reconciler) currentState() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// degrade reports a failed dependency to the supervisor and stops registry
// writes until it recovers.
func (r *Reconciler) degrade(dep supervisor.Dependency, err error) {
	logging.Warn(subsystem, "%s unavailable: %v", dep, err)
	r.links.ReportLost(dep, err)
	r.setState(StateDegraded, dep)
}

// opContext bounds one registry call.
func (r *Reconciler) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.cfg.OpTimeout)
}

func (r *Reconciler) enumerateContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.cfg.EnumerateTimeout)
}

func (r *Reconciler) updateDesiredLen() {
	n := len(r.desired)
	r.mu.Lock()
	r.desiredLen = n
	r.mu.Unlock()
	r.metrics.desired.Set(float64(n))
}
