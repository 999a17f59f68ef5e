package registry

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedStore throttles writes to the wrapped store. A full sweep on a
// busy host issues one write per registration; the limiter keeps such bursts
// from hammering a shared cluster. Reads pass straight through.
type RateLimitedStore struct {
	Store
	limiter *rate.Limiter
}

// NewRateLimited wraps store. A non-positive rate disables throttling and
// returns store unchanged.
func NewRateLimited(store Store, perSecond float64, burst int) Store {
	if perSecond <= 0 {
		return store
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedStore{
		Store:   store,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (r *RateLimitedStore) wait(ctx context.Context, op, key string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s %s: write throttled: %v", ErrUnavailable, op, key, err)
	}
	return nil
}

func (r *RateLimitedStore) Put(ctx context.Context, entry Entry, ttl time.Duration) error {
	if err := r.wait(ctx, "put", entry.Key); err != nil {
		return err
	}
	return r.Store.Put(ctx, entry, ttl)
}

func (r *RateLimitedStore) Renew(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.wait(ctx, "renew", key); err != nil {
		return err
	}
	return r.Store.Renew(ctx, key, ttl)
}

func (r *RateLimitedStore) Delete(ctx context.Context, key string) error {
	if err := r.wait(ctx, "delete", key); err != nil {
		return err
	}
	return r.Store.Delete(ctx, key)
}
