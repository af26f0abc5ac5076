// Package cache is the orchestrator of the media cache: it answers lookups
// from the store, populates misses through the fetcher (and the frame
// extractor for videos), and runs the expiry sweep and statistics.
//
// Handles returned by the cache are minted fresh on every call.
package cache
