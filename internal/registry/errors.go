package registry

import "errors"

var (
	// ErrInvalidClaim: nil claim, or an id present where none is expected (or missing
	// where one is).
	ErrInvalidClaim = errors.New("registry: invalid claim")
	// ErrCacheInconsistency means the cache and the spatial index (or the parent/child
	// links) disagree. It is always a bug.
	ErrCacheInconsistency = errors.New("registry: cache inconsistency")
	ErrStoreFailure       = errors.New("registry: store failure")
	ErrTypeMismatch       = errors.New("registry: claim type mismatch")
	ErrRangeIllegal       = errors.New("registry: illegal range")
	ErrTransactionAborted = errors.New("registry: transaction aborted")
	ErrNotFound           = errors.New("registry: claim not found")
	ErrStoreTooNew        = errors.New("registry: store was written by a newer version")
	ErrClosed             = errors.New("registry: closed")
)
