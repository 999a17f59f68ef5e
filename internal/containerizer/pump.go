package containerizer

import (
	"context"
	"errors"
	"sync"
	"time"

	"discover/internal/supervisor"
	"discover/pkg/logging"
)

const pumpSubsystem = "EventPump"

const defaultInspectTimeout = 10 * time.Second

// LinkMonitor is the part of the connection supervisor the pump uses.
type LinkMonitor interface {
	WaitConnected(ctx context.Context, dep supervisor.Dependency) error
	ReportLost(dep supervisor.Dependency, err error)
}

// Observation is an event together with the container metadata read when it
// was received. Meta is set for started events only.
type Observation struct {
	Event Event
	Meta  *ContainerMeta
}

// Sink receives observations in event order. It must not block.
type Sink func(Observation)

// EventPump feeds runtime lifecycle events to a sink. Each time the runtime
// link is connected it subscribes, resuming from the last delivered event so
// a reconnect gap is replayed. A failing or ending stream is reported to the
// supervisor as a lost runtime.
type EventPump struct {
	runtime ContainerRuntime
	monitor LinkMonitor
	sink    Sink

	InspectTimeout time.Duration

	mu       sync.Mutex
	lastSeen time.Time
}

// NewEventPump creates a pump. Events are replayed from the moment it is
// created.
func NewEventPump(runtime ContainerRuntime, monitor LinkMonitor, sink Sink) *EventPump {
	return &EventPump{
		runtime:        runtime,
		monitor:        monitor,
		sink:           sink,
		InspectTimeout: defaultInspectTimeout,
		lastSeen:       time.Now(),
	}
}

// LastEvent returns the timestamp the next subscription resumes from.
func (p *EventPump) LastEvent() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen
}

// Run pumps events until ctx is cancelled.
func (p *EventPump) Run(ctx context.Context) error {
	for {
		if err := p.monitor.WaitConnected(ctx, supervisor.Runtime); err != nil {
			return nil
		}

		since := p.LastEvent()
		logging.Debug(pumpSubsystem, "Subscribing to runtime events since %s", since.Format(time.RFC3339Nano))
		err := p.consume(ctx, since)
		if ctx.Err() != nil {
			return nil
		}

		logging.Warn(pumpSubsystem, "Runtime event stream interrupted: %v", err)
		p.monitor.ReportLost(supervisor.Runtime, err)
	}
}

// consume reads one subscription until it fails.
func (p *EventPump) consume(ctx context.Context, since time.Time) error {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, errs := p.runtime.Subscribe(subCtx, since)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			return err

		case ev, ok := <-events:
			if !ok {
				// Prefer the reason if one was sent.
				select {
				case err, ok := <-errs:
					if ok && err != nil {
						return err
					}
				default:
				}
				return errors.New("runtime event stream ended")
			}
			if err := p.handle(ctx, ev); err != nil {
				return err
			}
		}
	}
}

// handle inspects started containers and forwards the observation. Only an
// unavailable runtime is an error; the event is then replayed after
// reconnecting.
func (p *EventPump) handle(ctx context.Context, ev Event) error {
	obs := Observation{Event: ev}

	if ev.Kind == EventStarted {
		inspectCtx, cancel := context.WithTimeout(ctx, p.InspectTimeout)
		meta, err := p.runtime.Inspect(inspectCtx, ev.ContainerID)
		cancel()

		switch {
		case errors.Is(err, ErrContainerNotFound):
			logging.Debug(pumpSubsystem, "Container %s is gone already, treating start as stop", shortID(ev.ContainerID))
			obs.Event.Kind = EventStopped
		case err != nil:
			return err
		case !meta.Running:
			logging.Debug(pumpSubsystem, "Container %s is no longer running, treating start as stop", shortID(ev.ContainerID))
			obs.Event.Kind = EventStopped
		default:
			obs.Meta = &meta
		}
	}

	logging.Debug(pumpSubsystem, "Runtime event: %s", obs.Event)
	p.sink(obs)

	p.mu.Lock()
	if ev.Timestamp.After(p.lastSeen) {
		p.lastSeen = ev.Timestamp
	}
	p.mu.Unlock()
	return nil
}
