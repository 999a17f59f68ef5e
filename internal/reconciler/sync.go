package reconciler

import (
	"context"
	"errors"
	"sort"

	"discover/internal/containerizer"
	"discover/internal/registry"
	"discover/internal/services"
	"discover/internal/supervisor"
	"discover/pkg/logging"

	"github.com/google/uuid"
)

// errDegraded aborts a step after the reconciler has degraded.
var errDegraded = errors.New("reconciler degraded")

// handleReadiness reacts to the supervisor's combined readiness. The live
// state is consulted rather than the transition, because a later transition
// may have been coalesced into this request.
func (r *Reconciler) handleReadiness(t supervisor.Transition) {
	state := r.currentState()

	if !r.links.Ready() {
		if state != StateInitializing {
			r.setState(StateDegraded, t.Lost...)
		}
		return
	}

	epoch := r.links.Epoch()
	if state == StateSteady && epoch == r.lastSyncedEpoch {
		logging.Debug(subsystem, "Readiness epoch %d already synced", epoch)
		return
	}

	reason := SyncRecovery
	if !r.synced {
		reason = SyncStartup
	}
	r.sync(reason, epoch)
}

// handleSweep runs the periodic full sync. It repairs anything events missed.
func (r *Reconciler) handleSweep() {
	if r.currentState() != StateSteady {
		return
	}
	r.sync(SyncPeriodic, r.lastSyncedEpoch)
}

// sync rebuilds the desired set from an enumeration and makes this host's
// part of the registry match it exactly.
func (r *Reconciler) sync(reason SyncReason, epoch uint64) {
	r.setState(StateSyncing)
	r.metrics.syncs.WithLabelValues(string(reason)).Inc()

	syncID := uuid.NewString()[:8]
	logging.Info(subsystem, "Running %s sync %s (epoch %d)", reason, syncID, epoch)

	ctx, cancel := r.enumerateContext()
	metas, err := r.runtime.Enumerate(ctx)
	cancel()
	if err != nil {
		if !errors.Is(err, containerizer.ErrUnavailable) {
			logging.Error(subsystem, err, "Sync %s failed to enumerate containers", syncID)
		}
		r.degrade(supervisor.Runtime, err)
		return
	}

	desired := make(map[services.Identity]services.Descriptor)
	for _, meta := range metas {
		for _, d := range r.extract(meta) {
			desired[d.Identity()] = d
		}
	}
	r.desired = desired
	r.updateDesiredLen()

	removed, err := r.pushDesired()
	if err != nil {
		return
	}

	r.synced = true
	r.lastSyncedEpoch = epoch
	r.mu.Lock()
	r.syncEpoch = epoch
	r.mu.Unlock()
	logging.Info(subsystem, "Sync %s done: %d services registered from %d containers, %d orphans removed",
		syncID, len(r.desired), len(metas), removed)
	r.setState(StateSteady)
}

// pushDesired deletes this host's entries that are not desired and puts every
// desired entry with a fresh lease. It returns the number of orphans removed.
func (r *Reconciler) pushDesired() (int, error) {
	ctx, cancel := r.opContext()
	observed, err := r.store.List(ctx, r.layout.RealmPrefix(r.cfg.Realm))
	cancel()
	r.metrics.observeOp("list", err)
	if err != nil {
		r.degrade(supervisor.Registry, err)
		return 0, errDegraded
	}

	wanted := r.holders()

	removed := 0
	for _, e := range observed {
		if !r.layout.OwnedBy(e.Key, r.cfg.Realm, r.cfg.HostID) {
			continue
		}
		if _, ok := wanted[e.Key]; ok {
			continue
		}
		logging.Info(subsystem, "Removing orphaned entry %s (container %s)", e.Key, e.Container)
		if err := r.deleteKey(e.Key); err != nil {
			return removed, err
		}
		removed++
	}

	for _, key := range sortedKeys(wanted) {
		if err := r.put(wanted[key]); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// handleContainer replaces the descriptors of one container. Registry writes
// only happen in Steady; otherwise the next sync publishes the result.
func (r *Reconciler) handleContainer(obs containerizer.Observation) {
	id := obs.Event.ContainerID

	var next []services.Descriptor
	if obs.Event.Kind == containerizer.EventStarted && obs.Meta != nil {
		next = r.extract(*obs.Meta)
	}

	prev := r.descriptorsOf(id)
	if len(prev) == 0 && len(next) == 0 {
		logging.Debug(subsystem, "Nothing to do for %s", obs.Event)
		return
	}

	for _, d := range prev {
		delete(r.desired, d.Identity())
	}
	for _, d := range next {
		r.desired[d.Identity()] = d
	}
	r.updateDesiredLen()

	if r.currentState() != StateSteady {
		logging.Debug(subsystem, "Deferring registry writes for %s while %s", obs.Event, r.currentState())
		return
	}

	kept := make(map[services.Identity]services.Descriptor, len(next))
	for _, d := range next {
		kept[d.Identity()] = d
	}

	for _, d := range prev {
		if _, ok := kept[d.Identity()]; ok {
			continue
		}
		if err := r.release(d); err != nil {
			return
		}
	}

	previous := make(map[services.Identity]services.Descriptor, len(prev))
	for _, d := range prev {
		previous[d.Identity()] = d
	}
	for _, d := range next {
		if old, ok := previous[d.Identity()]; ok && old.Equal(d) {
			continue
		}
		// A shared key is published with its holder's values.
		holder := r.holders()[r.keyOf(d)]
		if err := r.put(holder); err != nil {
			return
		}
	}
}

// release removes the registration of a descriptor that is no longer desired.
// If another desired descriptor maps to the same key, that one is put
// instead so the key survives.
func (r *Reconciler) release(d services.Descriptor) error {
	key := r.keyOf(d)
	if survivor, ok := r.holders()[key]; ok {
		logging.Info(subsystem, "Key %s is still provided by container %s", key, shortID(survivor.ContainerID))
		return r.put(survivor)
	}
	logging.Info(subsystem, "Deregistering %s (container %s)", key, shortID(d.ContainerID))
	return r.deleteKey(key)
}

// handleRenew refreshes every lease. An entry whose lease is gone is put
// again.
func (r *Reconciler) handleRenew() {
	if r.currentState() != StateSteady {
		return
	}

	wanted := r.holders()
	for _, key := range sortedKeys(wanted) {
		ctx, cancel := r.opContext()
		err := r.store.Renew(ctx, key, r.cfg.LeaseTTL)
		cancel()
		r.metrics.observeOp("renew", err)

		switch {
		case err == nil:
		case registry.IsNotFound(err):
			logging.Warn(subsystem, "Lease of %s expired, registering again", key)
			r.metrics.staleLeases.Inc()
			if err := r.put(wanted[key]); err != nil {
				return
			}
		default:
			if r.registryFailure("renew", key, err) == errDegraded {
				return
			}
		}
	}
	logging.Debug(subsystem, "Renewed %d leases", len(wanted))
}

// handleDeregister deletes this host's entries and stops the reconciler.
// Failures are logged only: leases expire on their own.
func (r *Reconciler) handleDeregister() {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.ShutdownTimeout)
	defer cancel()

	keys := make(map[string]struct{})
	for _, d := range r.desired {
		keys[r.keyOf(d)] = struct{}{}
	}

	listCtx, listCancel := context.WithTimeout(ctx, r.cfg.OpTimeout)
	observed, err := r.store.List(listCtx, r.layout.RealmPrefix(r.cfg.Realm))
	listCancel()
	r.metrics.observeOp("list", err)
	if err != nil {
		logging.Warn(subsystem, "Could not list registry during shutdown: %v", err)
	}
	for _, e := range observed {
		if r.layout.OwnedBy(e.Key, r.cfg.Realm, r.cfg.HostID) {
			keys[e.Key] = struct{}{}
		}
	}

	failed := 0
	for _, key := range sortedKeys(keys) {
		delCtx, delCancel := context.WithTimeout(ctx, r.cfg.OpTimeout)
		err := r.store.Delete(delCtx, key)
		delCancel()
		r.metrics.observeOp("delete", err)
		if err != nil {
			failed++
			logging.Warn(subsystem, "Failed to deregister %s: %v", key, err)
		}
	}

	r.desired = make(map[services.Identity]services.Descriptor)
	r.updateDesiredLen()

	if failed > 0 {
		logging.Warn(subsystem, "Deregistered %d of %d entries, the rest expire with their leases", len(keys)-failed, len(keys))
	} else {
		logging.Info(subsystem, "Deregistered %d entries", len(keys))
	}
	r.setState(StateStopped)
}

// extract derives descriptors and logs the declarations that were skipped.
func (r *Reconciler) extract(meta containerizer.ContainerMeta) []services.Descriptor {
	descriptors, errs := r.extractor.Extract(meta)
	for _, err := range errs {
		r.metrics.malformed.Inc()
		var m *services.MalformedDeclarationError
		if errors.As(err, &m) {
			logging.Warn(subsystem, "Skipping declaration %q of container %s: %s", m.Declaration, shortID(meta.ID), m.Reason)
			continue
		}
		logging.Warn(subsystem, "Skipping declaration of container %s: %v", shortID(meta.ID), err)
	}
	return descriptors
}

func (r *Reconciler) put(d services.Descriptor) error {
	entry := registry.NewEntry(r.layout, d, r.cfg.AgentID, r.now())

	ctx, cancel := r.opContext()
	err := r.store.Put(ctx, entry, r.cfg.LeaseTTL)
	cancel()
	r.metrics.observeOp("put", err)

	if err != nil {
		return r.registryFailure("put", entry.Key, err)
	}
	logging.Debug(subsystem, "Registered %s -> %s:%d/%s", entry.Key, entry.IP, entry.Port, entry.Protocol)
	return nil
}

func (r *Reconciler) deleteKey(key string) error {
	ctx, cancel := r.opContext()
	err := r.store.Delete(ctx, key)
	cancel()
	r.metrics.observeOp("delete", err)

	if err != nil {
		return r.registryFailure("delete", key, err)
	}
	return nil
}

// registryFailure classifies a failed registry call. Unavailability degrades
// the reconciler and returns errDegraded; conflicts and other errors are
// logged and the caller continues with the next key.
func (r *Reconciler) registryFailure(op, key string, err error) error {
	switch {
	case registry.IsUnavailable(err):
		r.degrade(supervisor.Registry, err)
		return errDegraded
	case registry.IsConflict(err):
		logging.Error(subsystem, err, "Registry %s of %s conflicts with another host, check host ids", op, key)
		return nil
	default:
		logging.Error(subsystem, err, "Registry %s of %s failed", op, key)
		return nil
	}
}

func (r *Reconciler) keyOf(d services.Descriptor) string {
	return r.layout.Key(d.Realm, d.Name, d.HostID, d.Port)
}

// holders maps every desired registry key to the descriptor published under
// it. When descriptors share a key the one with the lowest container id wins.
func (r *Reconciler) holders() map[string]services.Descriptor {
	out := make(map[string]services.Descriptor, len(r.desired))
	for _, d := range r.desired {
		key := r.keyOf(d)
		if cur, ok := out[key]; ok && cur.ContainerID <= d.ContainerID {
			continue
		}
		out[key] = d
	}
	return out
}

// descriptorsOf returns the desired descriptors of one container.
func (r *Reconciler) descriptorsOf(containerID string) []services.Descriptor {
	var out []services.Descriptor
	for _, d := range r.desired {
		if d.ContainerID == containerID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Port < out[j].Port
	})
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
