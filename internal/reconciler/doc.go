// Package reconciler keeps this host's part of the service registry in line
// with the containers that are running on it.
//
// # Overview
//
// The reconciler holds the desired set: every service descriptor extracted
// from a running container, keyed by its identity. It publishes that set to
// the registry, renews the leases, and removes entries that no longer belong
// to a running container.
//
// # Architecture
//
// All inputs are turned into requests on one deduplicating queue consumed by
// a single worker:
//
//   - container: a runtime observation; a newer observation of the same
//     container replaces a queued one
//   - readiness: a connection supervisor transition
//   - renew: lease renewal, rescheduled after every run
//   - sweep: periodic full sync, rescheduled after every run
//   - deregister: queued once at shutdown
//
// # States
//
//	Initializing -> Syncing -> Steady <-> Degraded -> Syncing
//	                                 any -> Stopped
//
// A sync enumerates the runtime, rebuilds the desired set, deletes this
// host's entries that are not desired and puts every desired entry with a
// fresh lease. It runs at startup, once per supervisor readiness epoch after
// an outage, and periodically in Steady.
//
// Any registry or runtime call that fails with an unavailable error reports
// the dependency lost to the supervisor and moves the reconciler to Degraded.
// While degraded, observations still update the desired set but nothing is
// written; the recovery sync publishes the result.
//
// # Usage
//
//	rec := reconciler.New(cfg, reconciler.Dependencies{
//	    Runtime:   runtime,
//	    Store:     store,
//	    Layout:    registry.NewLayout(prefix),
//	    Extractor: extractor,
//	    Links:     sup,
//	    Metrics:   reconciler.NewMetrics(promRegistry),
//	})
//	sup.OnTransition(rec.OnTransition)
//	pump := containerizer.NewEventPump(runtime, sup, rec.Observe)
//	go rec.Run(ctx)
package reconciler
