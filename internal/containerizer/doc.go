// Package containerizer is the agent's read-only view of the container runtime.
//
// The agent never starts, stops or modifies containers. It only needs to know
// which containers are running, what their environment and port bindings look
// like, and when they start or stop.
//
// # Core Components
//
// ContainerRuntime: Interface over the runtime
//   - Ping: Reachability check used by the connection supervisor
//   - Enumerate: Every running container, inspected
//   - Inspect: Metadata of one container
//   - Subscribe: Normalized lifecycle events (started, stopped)
//
// DockerRuntime: Implementation on the Docker engine API. Errors caused by an
// unreachable daemon wrap ErrUnavailable; unknown containers give
// ErrContainerNotFound.
//
// EventPump: Subscribes whenever the runtime link is up, inspects started
// containers and hands observations to the reconciler. After an interruption
// it resubscribes from the last delivered event so the gap is replayed.
//
// SocketWatcher: Watches the runtime's unix socket and fires when it is
// recreated, so a restarted daemon is reconnected without waiting out the
// backoff.
//
// # Usage Example
//
//	runtime, err := containerizer.NewContainerRuntime("docker", containerizer.DockerOptions{})
//	if err != nil {
//	    return err
//	}
//	defer runtime.Close()
//
//	pump := containerizer.NewEventPump(runtime, sup, func(obs containerizer.Observation) {
//	    rec.Observe(obs)
//	})
//	go pump.Run(ctx)
package containerizer
