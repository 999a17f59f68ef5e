package containerizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"discover/internal/supervisor"
)

type subscription struct {
	since  time.Time
	events chan Event
	errs   chan error
}

type fakeRuntime struct {
	mu         sync.Mutex
	metas      map[string]ContainerMeta
	inspectErr error

	subs chan *subscription
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		metas: make(map[string]ContainerMeta),
		subs:  make(chan *subscription, 8),
	}
}

func (f *fakeRuntime) Ping(ctx context.Context) error { return nil }

func (f *fakeRuntime) Enumerate(ctx context.Context) ([]ContainerMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ContainerMeta
	for _, m := range f.metas {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeRuntime) Inspect(ctx context.Context, id string) (ContainerMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inspectErr != nil {
		return ContainerMeta{}, f.inspectErr
	}
	m, ok := f.metas[id]
	if !ok {
		return ContainerMeta{}, fmt.Errorf("%w: %s", ErrContainerNotFound, id)
	}
	return m, nil
}

func (f *fakeRuntime) Subscribe(ctx context.Context, since time.Time) (<-chan Event, <-chan error) {
	sub := &subscription{since: since, events: make(chan Event, 8), errs: make(chan error, 1)}
	f.subs <- sub
	return sub.events, sub.errs
}

func (f *fakeRuntime) Close() error { return nil }

func (f *fakeRuntime) setInspectErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inspectErr = err
}

type fakeMonitor struct {
	mu   sync.Mutex
	lost []error
}

func (m *fakeMonitor) WaitConnected(ctx context.Context, dep supervisor.Dependency) error {
	return ctx.Err()
}

func (m *fakeMonitor) ReportLost(dep supervisor.Dependency, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lost = append(m.lost, err)
}

func (m *fakeMonitor) lostCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lost)
}

func startPump(t *testing.T, rt *fakeRuntime, mon *fakeMonitor) (*EventPump, chan Observation) {
	t.Helper()
	obs := make(chan Observation, 16)
	pump := NewEventPump(rt, mon, func(o Observation) { obs <- o })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pump.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return pump, obs
}

func nextSub(t *testing.T, rt *fakeRuntime) *subscription {
	t.Helper()
	select {
	case sub := <-rt.subs:
		return sub
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscription")
		return nil
	}
}

func nextObs(t *testing.T, obs chan Observation) Observation {
	t.Helper()
	select {
	case o := <-obs:
		return o
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for observation")
		return Observation{}
	}
}

func TestEventPump_ForwardsEvents(t *testing.T) {
	rt := newFakeRuntime()
	rt.metas["c1"] = ContainerMeta{ID: "c1", Running: true, Env: map[string]string{"DISCOVER": "web:80"}}
	rt.metas["c2"] = ContainerMeta{ID: "c2", Running: false}
	mon := &fakeMonitor{}
	_, obs := startPump(t, rt, mon)

	sub := nextSub(t, rt)
	base := time.Now().Add(time.Second)
	sub.events <- Event{Kind: EventStarted, ContainerID: "c1", Timestamp: base}
	sub.events <- Event{Kind: EventStarted, ContainerID: "gone", Timestamp: base.Add(time.Millisecond)}
	sub.events <- Event{Kind: EventStarted, ContainerID: "c2", Timestamp: base.Add(2 * time.Millisecond)}
	sub.events <- Event{Kind: EventStopped, ContainerID: "c1", Timestamp: base.Add(3 * time.Millisecond)}

	o := nextObs(t, obs)
	if o.Event.Kind != EventStarted || o.Meta == nil || o.Meta.ID != "c1" {
		t.Errorf("expected started c1 with metadata, got %+v", o)
	}

	o = nextObs(t, obs)
	if o.Event.Kind != EventStopped || o.Event.ContainerID != "gone" || o.Meta != nil {
		t.Errorf("expected vanished container to be reported stopped, got %+v", o)
	}

	o = nextObs(t, obs)
	if o.Event.Kind != EventStopped || o.Event.ContainerID != "c2" {
		t.Errorf("expected exited container to be reported stopped, got %+v", o)
	}

	o = nextObs(t, obs)
	if o.Event.Kind != EventStopped || o.Event.ContainerID != "c1" || o.Meta != nil {
		t.Errorf("expected stopped c1, got %+v", o)
	}

	if mon.lostCount() != 0 {
		t.Errorf("unexpected loss reports: %d", mon.lostCount())
	}
}

func TestEventPump_ResubscribesFromLastEvent(t *testing.T) {
	rt := newFakeRuntime()
	mon := &fakeMonitor{}
	pump, obs := startPump(t, rt, mon)

	sub := nextSub(t, rt)
	ts := time.Now().Add(time.Minute)
	sub.events <- Event{Kind: EventStopped, ContainerID: "c1", Timestamp: ts}
	nextObs(t, obs)

	sub.errs <- errors.New("stream broke")

	again := nextSub(t, rt)
	if !again.since.Equal(ts) {
		t.Errorf("expected resubscription since %v, got %v", ts, again.since)
	}
	if mon.lostCount() != 1 {
		t.Errorf("expected one loss report, got %d", mon.lostCount())
	}
	if !pump.LastEvent().Equal(ts) {
		t.Errorf("unexpected LastEvent %v", pump.LastEvent())
	}
}

func TestEventPump_ClosedStreamIsLoss(t *testing.T) {
	rt := newFakeRuntime()
	mon := &fakeMonitor{}
	_, _ = startPump(t, rt, mon)

	sub := nextSub(t, rt)
	close(sub.errs)
	close(sub.events)

	nextSub(t, rt)
	if mon.lostCount() != 1 {
		t.Errorf("expected one loss report, got %d", mon.lostCount())
	}
}

func TestEventPump_InspectFailureReplaysEvent(t *testing.T) {
	rt := newFakeRuntime()
	rt.metas["c1"] = ContainerMeta{ID: "c1", Running: true}
	rt.setInspectErr(fmt.Errorf("%w: timeout", ErrUnavailable))
	mon := &fakeMonitor{}
	pump, obs := startPump(t, rt, mon)

	sub := nextSub(t, rt)
	start := pump.LastEvent()
	sub.events <- Event{Kind: EventStarted, ContainerID: "c1", Timestamp: start.Add(time.Second)}

	// The event was not delivered, so the next subscription starts where the
	// previous one did.
	again := nextSub(t, rt)
	rt.setInspectErr(nil)
	if !again.since.Equal(start) {
		t.Errorf("expected resubscription since %v, got %v", start, again.since)
	}
	select {
	case o := <-obs:
		t.Errorf("unexpected observation %+v", o)
	default:
	}
	if mon.lostCount() != 1 {
		t.Errorf("expected one loss report, got %d", mon.lostCount())
	}
}
