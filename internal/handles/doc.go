// Package handles mints object handles: revocable, process-local URLs that
// serve cached bytes to rendering surfaces. A handle is a pure function of
// the payload it was minted from and is never persisted.
package handles
