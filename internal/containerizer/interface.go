package containerizer

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable marks failures caused by the runtime being unreachable.
var ErrUnavailable = errors.New("container runtime unavailable")

// ErrContainerNotFound is returned by Inspect for unknown container ids.
var ErrContainerNotFound = errors.New("container not found")

// ContainerRuntime defines the read-only runtime operations the agent needs.
// Implementations never mutate runtime state.
type ContainerRuntime interface {
	// Ping checks that the runtime is reachable
	Ping(ctx context.Context) error

	// Enumerate returns every running container, fully inspected
	Enumerate(ctx context.Context) ([]ContainerMeta, error)

	// Inspect returns the metadata of a single container
	Inspect(ctx context.Context, containerID string) (ContainerMeta, error)

	// Subscribe streams normalized lifecycle events starting at since (zero
	// means "from now"). The error channel yields at most one error; both
	// channels are closed when the stream ends.
	Subscribe(ctx context.Context, since time.Time) (<-chan Event, <-chan error)

	// Close releases the client
	Close() error
}

// EventKind is the normalized lifecycle vocabulary.
type EventKind string

const (
	EventStarted EventKind = "started"
	EventStopped EventKind = "stopped"
)

// Event is one normalized lifecycle event.
type Event struct {
	Kind        EventKind
	ContainerID string
	Timestamp   time.Time
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Kind, shortID(e.ContainerID))
}

// PortKey identifies an exposed container port.
type PortKey struct {
	Port     int
	Protocol string // tcp or udp
}

func (p PortKey) String() string {
	return fmt.Sprintf("%d/%s", p.Port, p.Protocol)
}

// HostBinding is a host-side publication of a container port.
type HostBinding struct {
	HostIP   string
	HostPort int
}

// ContainerMeta holds the container metadata services are derived from.
type ContainerMeta struct {
	ID          string
	Name        string
	Image       string
	Env         map[string]string
	Labels      map[string]string
	Ports       map[PortKey][]HostBinding
	HostNetwork bool
	Running     bool
}

// Lookup returns the value of an environment variable, falling back to a
// label with the same name.
func (m ContainerMeta) Lookup(name string) (string, bool) {
	if v, ok := m.Env[name]; ok {
		return v, true
	}
	v, ok := m.Labels[name]
	return v, ok
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
