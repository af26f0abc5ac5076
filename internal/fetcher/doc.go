// Package fetcher downloads remote media for the cache.
//
// A fetch validates the URL, issues a credential-free GET under a timeout
// (15s by default), checks that the declared or sniffed content type matches
// the expected media kind, and rejects empty bodies. Failures map onto the
// sentinel errors in errors.go. The fetcher does not retry.
package fetcher
