// Package retrieval implements the per-consumer state machine that turns a
// (post, url, kind) target into something displayable.
//
// A Hook always presents a usable URL: a cache handle once the media is
// stored, the original URL after a first failure, or the fallback image once
// automatic retries are exhausted. Errors are never returned to consumers;
// they only surface through the Snapshot flags.
//
// States:
//
//	Idle -> Loading -> Ready
//	                -> TransientError -> Loading (one automatic retry)
//	                -> PermanentError (left only through ManualCache)
package retrieval
