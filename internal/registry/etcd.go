package registry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"discover/pkg/logging"

	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// EtcdOptions configures the etcd store.
type EtcdOptions struct {
	Endpoints      []string
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// EtcdStore implements Store on etcd v3. Every registration gets its own
// lease so entries can be renewed and expire independently.
type EtcdStore struct {
	client         *clientv3.Client // thread-safe, shared across goroutines
	requestTimeout time.Duration
}

// NewEtcdStore creates the client. It does not wait for the cluster to be
// reachable; use Ping for that.
func NewEtcdStore(opts EtcdOptions) (*EtcdStore, error) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c, err := clientv3.New(clientv3.Config{
		Endpoints:   opts.Endpoints,
		DialTimeout: opts.DialTimeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	return &EtcdStore{client: c, requestTimeout: opts.RequestTimeout}, nil
}

func (s *EtcdStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.requestTimeout)
}

// Put grants a new lease, writes the entry with it and revokes the lease the
// key held before, if any.
func (s *EtcdStore) Put(ctx context.Context, entry Entry, ttl time.Duration) error {
	value, err := entry.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode entry %s: %w", entry.Key, err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	existing, err := s.client.Get(ctx, entry.Key)
	if err != nil {
		return mapError("get", entry.Key, err)
	}
	var previousLease clientv3.LeaseID
	if len(existing.Kvs) > 0 {
		kv := existing.Kvs[0]
		if current, decodeErr := UnmarshalEntry(entry.Key, kv.Value); decodeErr == nil && current.Host != "" && current.Host != entry.Host {
			return fmt.Errorf("%w: %s is registered by host %s", ErrConflict, entry.Key, current.Host)
		}
		previousLease = clientv3.LeaseID(kv.Lease)
	}

	lease, err := s.client.Grant(ctx, ttlSeconds(ttl))
	if err != nil {
		return mapError("grant", entry.Key, err)
	}

	if _, err := s.client.Put(ctx, entry.Key, string(value), clientv3.WithLease(lease.ID)); err != nil {
		// Don't leak the fresh lease.
		_, _ = s.client.Revoke(ctx, lease.ID)
		return mapError("put", entry.Key, err)
	}

	if previousLease != clientv3.NoLease && previousLease != lease.ID {
		if _, err := s.client.Revoke(ctx, previousLease); err != nil && !errors.Is(err, rpctypes.ErrLeaseNotFound) {
			logging.Debug("Registry", "Failed to revoke replaced lease %x of %s: %v", int64(previousLease), entry.Key, err)
		}
	}
	return nil
}

// Renew sends one keep-alive for the lease attached to key. The ttl granted
// at Put time applies; etcd leases cannot change their TTL.
func (s *EtcdStore) Renew(ctx context.Context, key string, _ time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.Get(ctx, key)
	if err != nil {
		return mapError("get", key, err)
	}
	if len(resp.Kvs) == 0 || resp.Kvs[0].Lease == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	if _, err := s.client.KeepAliveOnce(ctx, clientv3.LeaseID(resp.Kvs[0].Lease)); err != nil {
		return mapError("keepalive", key, err)
	}
	return nil
}

// Delete removes key and revokes its lease.
func (s *EtcdStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.Delete(ctx, key, clientv3.WithPrevKV())
	if err != nil {
		return mapError("delete", key, err)
	}
	for _, kv := range resp.PrevKvs {
		if kv.Lease == 0 {
			continue
		}
		if _, err := s.client.Revoke(ctx, clientv3.LeaseID(kv.Lease)); err != nil && !errors.Is(err, rpctypes.ErrLeaseNotFound) {
			logging.Debug("Registry", "Failed to revoke lease %x of deleted %s: %v", kv.Lease, key, err)
		}
	}
	return nil
}

// List returns every entry under prefix. Values that cannot be decoded are
// returned with only their key set.
func (s *EtcdStore) List(ctx context.Context, prefix string) ([]Entry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, mapError("list", prefix, err)
	}

	entries := make([]Entry, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		entry, err := UnmarshalEntry(string(kv.Key), kv.Value)
		if err != nil {
			logging.Debug("Registry", "Undecodable value at %s: %v", kv.Key, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Ping issues a cheap count-only read.
func (s *EtcdStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.client.Get(ctx, "health", clientv3.WithCountOnly()); err != nil {
		return mapError("ping", "", err)
	}
	return nil
}

func (s *EtcdStore) Close() error {
	return s.client.Close()
}

// ttlSeconds rounds up to whole seconds, the granularity of etcd leases.
func ttlSeconds(ttl time.Duration) int64 {
	secs := int64(math.Ceil(ttl.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// mapError translates client errors into the registry taxonomy. Anything that
// is not a missing lease is treated as the store being unavailable: the
// reconciler retries after reconnecting.
func mapError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, rpctypes.ErrLeaseNotFound) {
		return fmt.Errorf("%w: %s %s: lease expired", ErrNotFound, op, key)
	}
	return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, op, key, err)
}
