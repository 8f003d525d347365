// Package lookup answers identifier queries against the token store.
//
// Point lookups go through a Cache first. Only found records are cached;
// a miss is never remembered, since a running build may write the row a
// moment later. Batch lookups skip the cache and read the store once per
// request, so every key in a batch comes from the same read pass.
//
// Every store access is bounded by Config.Timeout. A timeout surfaces as
// ErrTimeout, distinct from store.ErrNotFound and from other read errors.
package lookup
