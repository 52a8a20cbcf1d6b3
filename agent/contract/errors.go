package contract

import "errors"

var (
	// Recoverable within the turn: the flow re-prompts the same step.
	ErrInvalidFieldFormat    = errors.New("field value has invalid format")
	ErrAmbiguousConfirmation = errors.New("confirmation reply is ambiguous")

	// Terminal for the turn, surfaced to the caller.
	ErrSessionLocked   = errors.New("session is locked")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrVisitorMismatch = errors.New("visitor does not own session")

	// The caller retries the whole turn; surfaced only once the retry
	// budget is exhausted.
	ErrConcurrentModification = errors.New("session modified concurrently")

	// Absorbed by the pipeline's fallback policy, never surfaced.
	ErrReasoningService = errors.New("reasoning service call failed")
	ErrRetrievalService = errors.New("retrieval service call failed")

	ErrValidation = errors.New("validation failed")
)
