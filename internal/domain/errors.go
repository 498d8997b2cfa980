package domain

import "errors"

// Error taxonomy shared across pipeline stages and the session layer.
// Per-topic and per-source failures are absorbed where they occur; only the
// sentinel values below cross component boundaries.
var (
	ErrSearchTimeout     = errors.New("search timeout")
	ErrSearchEmpty       = errors.New("search returned no results")
	ErrFetchFailure      = errors.New("fetch failed")
	ErrFilterEmptyResult = errors.New("no sources left after filtering")
	ErrSynthesisFailure  = errors.New("synthesis failed")
	ErrDeliveryFailure   = errors.New("delivery failed")
	ErrConcurrentRequest = errors.New("briefing already in progress")
	ErrInvalidCommand    = errors.New("invalid command input")
	ErrSessionClosed     = errors.New("session closed")
)
