// Package registry stores service registrations in a distributed key-value
// store.
//
// Store is the capability the reconciler depends on: Put, Renew, Delete and
// List under the key layout described by Layout. EtcdStore is the production
// backend; MemoryStore serves tests and dry runs. RateLimitedStore can wrap
// either to bound the write rate.
//
// Errors fall into three classes, tested with IsUnavailable, IsNotFound and
// IsConflict. Timeouts are reported as unavailable.
package registry
