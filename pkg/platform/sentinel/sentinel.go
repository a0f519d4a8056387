package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, locks, and remote adapters return
// these (optionally wrapped) so the receipt service can translate them into domain errors.
//
//   - ErrNotFound: record does not exist in the store
//   - ErrConflict: a uniqueness constraint rejected the write
//   - ErrAlreadyUsed: a lock or claim is currently held by someone else
//   - ErrInvalidState: backing data is unreadable or in the wrong shape
//   - ErrUnavailable: remote service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
