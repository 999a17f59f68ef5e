package containerizer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"discover/pkg/logging"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"
)

const dockerSubsystem = "Docker"

// dockerAPI is the part of the engine client the runtime uses. It is an
// interface so tests can run without a daemon.
type dockerAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	Events(ctx context.Context, options events.ListOptions) (<-chan events.Message, <-chan error)
	Close() error
}

// DockerOptions configures the Docker runtime.
type DockerOptions struct {
	Host       string // e.g. unix:///var/run/docker.sock; DOCKER_HOST when empty
	APIVersion string // negotiated when empty

	// RequestTimeout bounds each engine API call, so a listing of many
	// containers is not limited by a single deadline.
	RequestTimeout time.Duration
}

const defaultRequestTimeout = 10 * time.Second

// DockerRuntime implements ContainerRuntime using the Docker engine API.
type DockerRuntime struct {
	api            dockerAPI
	requestTimeout time.Duration
}

// NewDockerRuntime creates the client. No connection is made until the
// first call.
func NewDockerRuntime(opts DockerOptions) (*DockerRuntime, error) {
	clientOpts := []client.Opt{client.FromEnv}
	if opts.Host != "" {
		clientOpts = append(clientOpts, client.WithHost(opts.Host))
	}
	if opts.APIVersion != "" {
		clientOpts = append(clientOpts, client.WithVersion(opts.APIVersion))
	} else {
		clientOpts = append(clientOpts, client.WithAPIVersionNegotiation())
	}

	cli, err := client.NewClientWithOpts(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return newDockerRuntimeWithAPI(cli, opts.RequestTimeout), nil
}

func newDockerRuntimeWithAPI(api dockerAPI, requestTimeout time.Duration) *DockerRuntime {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	return &DockerRuntime{api: api, requestTimeout: requestTimeout}
}

func (d *DockerRuntime) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.requestTimeout)
}

// Ping checks that the daemon answers
func (d *DockerRuntime) Ping(ctx context.Context) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	if _, err := d.api.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}
	return nil
}

// Enumerate lists running containers and inspects each one. Containers that
// disappear between listing and inspection are skipped. The listing and
// every inspect get their own request timeout; ctx bounds the whole walk.
func (d *DockerRuntime) Enumerate(ctx context.Context) ([]ContainerMeta, error) {
	listCtx, cancel := d.withTimeout(ctx)
	summaries, err := d.api.ContainerList(listCtx, container.ListOptions{})
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: list containers: %v", ErrUnavailable, err)
	}

	metas := make([]ContainerMeta, 0, len(summaries))
	for _, s := range summaries {
		meta, err := d.Inspect(ctx, s.ID)
		if errors.Is(err, ErrContainerNotFound) {
			logging.Debug(dockerSubsystem, "Container %s vanished during enumeration", shortID(s.ID))
			continue
		}
		if err != nil {
			return nil, err
		}
		if !meta.Running {
			continue
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

// Inspect returns the metadata of one container
func (d *DockerRuntime) Inspect(ctx context.Context, containerID string) (ContainerMeta, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	resp, err := d.api.ContainerInspect(ctx, containerID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return ContainerMeta{}, fmt.Errorf("%w: %s", ErrContainerNotFound, shortID(containerID))
		}
		return ContainerMeta{}, fmt.Errorf("%w: inspect %s: %v", ErrUnavailable, shortID(containerID), err)
	}
	return metaFromInspect(resp), nil
}

// Subscribe streams container lifecycle events. Actions outside the
// normalized vocabulary are dropped here.
func (d *DockerRuntime) Subscribe(ctx context.Context, since time.Time) (<-chan Event, <-chan error) {
	out := make(chan Event)
	errc := make(chan error, 1)

	opts := events.ListOptions{
		Filters: filters.NewArgs(filters.Arg("type", string(events.ContainerEventType))),
	}
	if !since.IsZero() {
		opts.Since = fmt.Sprintf("%d.%09d", since.Unix(), since.Nanosecond())
	}

	msgs, errs := d.api.Events(ctx, opts)

	go func() {
		defer close(out)
		defer close(errc)
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errs:
				if !ok {
					errc <- fmt.Errorf("%w: event stream closed", ErrUnavailable)
					return
				}
				if ctx.Err() != nil {
					return
				}
				errc <- fmt.Errorf("%w: event stream: %v", ErrUnavailable, err)
				return
			case msg, ok := <-msgs:
				if !ok {
					errc <- fmt.Errorf("%w: event stream closed", ErrUnavailable)
					return
				}
				ev, keep := normalizeEvent(msg)
				if !keep {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, errc
}

// Close releases the client
func (d *DockerRuntime) Close() error {
	return d.api.Close()
}

// normalizeEvent maps a docker event onto the lifecycle vocabulary.
func normalizeEvent(msg events.Message) (Event, bool) {
	if msg.Type != "" && msg.Type != events.ContainerEventType {
		return Event{}, false
	}

	var kind EventKind
	switch msg.Action {
	case events.ActionStart:
		kind = EventStarted
	case events.ActionDie, events.ActionStop, events.ActionDestroy:
		kind = EventStopped
	default:
		return Event{}, false
	}

	ts := time.Unix(msg.Time, 0)
	if msg.TimeNano != 0 {
		ts = time.Unix(0, msg.TimeNano)
	}
	return Event{Kind: kind, ContainerID: msg.Actor.ID, Timestamp: ts}, true
}

func metaFromInspect(resp container.InspectResponse) ContainerMeta {
	meta := ContainerMeta{
		Env:    make(map[string]string),
		Labels: make(map[string]string),
		Ports:  make(map[PortKey][]HostBinding),
	}
	if resp.ContainerJSONBase != nil {
		meta.ID = resp.ID
		meta.Name = strings.TrimPrefix(resp.Name, "/")
		meta.Running = resp.State != nil && resp.State.Running
		if resp.HostConfig != nil {
			meta.HostNetwork = resp.HostConfig.NetworkMode.IsHost()
		}
	}
	if resp.Config != nil {
		meta.Image = resp.Config.Image
		for _, kv := range resp.Config.Env {
			k, v, _ := strings.Cut(kv, "=")
			meta.Env[k] = v
		}
		for k, v := range resp.Config.Labels {
			meta.Labels[k] = v
		}
	}
	if resp.NetworkSettings != nil {
		meta.Ports = portsFromMap(resp.NetworkSettings.Ports)
	}
	return meta
}

// portsFromMap converts the engine's port map. Exposed but unpublished ports
// are kept with no bindings.
func portsFromMap(pm nat.PortMap) map[PortKey][]HostBinding {
	ports := make(map[PortKey][]HostBinding, len(pm))
	for port, bindings := range pm {
		key := PortKey{Port: port.Int(), Protocol: port.Proto()}
		if key.Port == 0 {
			continue
		}
		hb := make([]HostBinding, 0, len(bindings))
		for _, b := range bindings {
			hostPort, err := strconv.Atoi(b.HostPort)
			if err != nil || hostPort == 0 {
				continue
			}
			hb = append(hb, HostBinding{HostIP: b.HostIP, HostPort: hostPort})
		}
		ports[key] = hb
	}
	return ports
}
