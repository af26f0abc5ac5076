// Package store is the durable key-value store for cached media.
//
// Records live in a single SQLite table keyed by id, with a unique index on
// the origin URL and a non-unique index on the owning post. The schema is
// versioned through PRAGMA user_version and upgraded in place on Open.
//
// Every engine failure is reported wrapped in ErrStoreUnavailable. A lookup
// miss returns ErrNotFound. The store never retries.
package store
