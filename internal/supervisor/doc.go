// Package supervisor manages the connections to the agent's external
// dependencies, the container runtime and the registry.
//
// Each dependency has its own link with a probe, an exponential backoff
// (reset on every successful connect) and a periodic health check while
// connected. Users of a dependency report failures with ReportLost, which
// drops the link immediately instead of waiting for the next probe.
//
// The links feed one combined readiness signal. Its edges are delivered as
// Transition values to a single callback, in order: Ready when every link
// is connected, degraded as soon as one drops. Every ready edge starts a new
// epoch, which lets consumers tell one recovery from the next.
package supervisor
