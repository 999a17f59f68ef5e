package supervisor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"discover/pkg/logging"
)

const subsystem = "Supervisor"

// Transition is an edge of the combined readiness signal.
type Transition struct {
	// Ready is true when every dependency just became connected, false when
	// at least one just dropped.
	Ready bool
	// Lost lists the dependencies that are not connected (empty when Ready).
	Lost []Dependency
	// Epoch counts ready edges. A Ready transition carries the new epoch.
	Epoch uint64
}

func (t Transition) String() string {
	if t.Ready {
		return fmt.Sprintf("ready (epoch %d)", t.Epoch)
	}
	return fmt.Sprintf("degraded %v (epoch %d)", t.Lost, t.Epoch)
}

// Options configures reconnect behaviour.
type Options struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	HealthInterval time.Duration
	ProbeTimeout   time.Duration

	// ProbeTimeouts overrides ProbeTimeout per dependency.
	ProbeTimeouts map[Dependency]time.Duration
}

func (o *Options) applyDefaults() {
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = time.Second
	}
	if o.MaxBackoff < o.InitialBackoff {
		o.MaxBackoff = o.InitialBackoff
	}
	if o.HealthInterval <= 0 {
		o.HealthInterval = 15 * time.Second
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 5 * time.Second
	}
}

// Supervisor owns the connection lifecycle of every dependency and derives a
// single readiness signal from them.
type Supervisor struct {
	opts Options

	mu      sync.Mutex
	links   map[Dependency]*link
	order   []Dependency
	ready   bool
	epoch   uint64
	changed chan struct{} // closed and replaced on every state change
	running bool

	// Transitions are queued under mu and delivered in order, outside the
	// lock, by the dispatcher.
	pending  []Transition
	notify   chan struct{}
	callback func(Transition)
}

// New creates a supervisor. Dependencies are registered with Add before Run.
func New(opts Options) *Supervisor {
	opts.applyDefaults()
	return &Supervisor{
		opts:    opts,
		links:   make(map[Dependency]*link),
		changed: make(chan struct{}),
		notify:  make(chan struct{}, 1),
	}
}

func (o Options) probeTimeout(dep Dependency) time.Duration {
	if d, ok := o.ProbeTimeouts[dep]; ok && d > 0 {
		return d
	}
	return o.ProbeTimeout
}

// Add registers a dependency and the probe used to (re)connect it.
func (s *Supervisor) Add(dep Dependency, probe ProbeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.links[dep]; exists {
		panic(fmt.Sprintf("supervisor: dependency %s registered twice", dep))
	}
	s.links[dep] = newLink(dep, probe)
	s.order = append(s.order, dep)
}

// OnTransition sets the readiness callback. It is called from a single
// goroutine, in order, and must not block for long.
func (s *Supervisor) OnTransition(fn func(Transition)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = fn
}

// Run supervises every dependency until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("supervisor already running")
	}
	s.running = true
	links := make([]*link, 0, len(s.order))
	for _, dep := range s.order {
		links = append(links, s.links[dep])
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.dispatch(ctx)
	}()
	for _, l := range links {
		wg.Add(1)
		go func(l *link) {
			defer wg.Done()
			s.runLink(ctx, l)
		}(l)
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

// Ready reports whether every dependency is connected.
func (s *Supervisor) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Epoch returns the number of ready edges so far.
func (s *Supervisor) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Status returns a snapshot of one link.
func (s *Supervisor) Status(dep Dependency) LinkStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.links[dep]; ok {
		return l.status
	}
	return LinkStatus{State: Disconnected}
}

// Dependencies returns the registered dependencies in registration order.
func (s *Supervisor) Dependencies() []Dependency {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Dependency(nil), s.order...)
}

// WaitConnected blocks until dep is connected or ctx ends.
func (s *Supervisor) WaitConnected(ctx context.Context, dep Dependency) error {
	for {
		s.mu.Lock()
		l, ok := s.links[dep]
		if !ok {
			s.mu.Unlock()
			return fmt.Errorf("unknown dependency %s", dep)
		}
		if l.status.State == Connected {
			s.mu.Unlock()
			return nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// ReportLost marks a connected dependency as lost right away, without
// waiting for the next health probe. Users of a dependency call it when an
// operation fails in a way that indicates the connection is gone.
func (s *Supervisor) ReportLost(dep Dependency, err error) {
	s.mu.Lock()
	l, ok := s.links[dep]
	if !ok || l.status.State != Connected {
		s.mu.Unlock()
		return
	}
	s.setStateLocked(l, Disconnected, err)
	s.mu.Unlock()

	select {
	case l.lost <- err:
	default:
	}
}

// Poke asks a disconnected dependency to retry now instead of waiting out
// its backoff.
func (s *Supervisor) Poke(dep Dependency) {
	s.mu.Lock()
	l, ok := s.links[dep]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case l.poke <- struct{}{}:
	default:
	}
}

func (s *Supervisor) setState(l *link, state LinkState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStateLocked(l, state, err)
}

func (s *Supervisor) setStateLocked(l *link, state LinkState, err error) {
	old := l.status.State
	if state == Connecting {
		l.status.Attempts++
	}
	if err != nil {
		l.status.LastError = err
	}
	if state == Connected {
		l.status.LastError = nil
		l.status.Attempts = 0
	}
	if old == state {
		return
	}
	l.status.State = state
	l.status.Since = time.Now()

	switch {
	case state == Connected:
		logging.Info(subsystem, "%s connected", l.dep)
	case old == Connected:
		logging.Warn(subsystem, "%s connection lost: %v", l.dep, err)
	case state == Disconnected && l.status.Attempts <= 1:
		logging.Warn(subsystem, "%s unavailable: %v", l.dep, err)
	}

	close(s.changed)
	s.changed = make(chan struct{})

	s.updateReadinessLocked()
}

// updateReadinessLocked emits a transition when the combined signal flips.
func (s *Supervisor) updateReadinessLocked() {
	var lost []Dependency
	for _, dep := range s.order {
		if s.links[dep].status.State != Connected {
			lost = append(lost, dep)
		}
	}
	sort.Slice(lost, func(i, j int) bool { return lost[i] < lost[j] })

	nowReady := len(s.order) > 0 && len(lost) == 0
	if nowReady == s.ready {
		return
	}
	s.ready = nowReady
	if nowReady {
		s.epoch++
	}

	t := Transition{Ready: nowReady, Lost: lost, Epoch: s.epoch}
	logging.Info(subsystem, "Dependencies %s", t)
	s.pending = append(s.pending, t)
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// dispatch delivers queued transitions to the callback in order.
func (s *Supervisor) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.notify:
		}

		for {
			s.mu.Lock()
			if len(s.pending) == 0 {
				s.mu.Unlock()
				break
			}
			t := s.pending[0]
			s.pending = s.pending[1:]
			cb := s.callback
			s.mu.Unlock()

			if cb != nil {
				cb(t)
			}
		}
	}
}
