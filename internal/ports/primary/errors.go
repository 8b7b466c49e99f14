package primary

import "errors"

// Sentinel errors shared by services and adapters. Wrap with %w and test
// with errors.Is.
var (
	// ErrNotFound means the referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyTerminal means the escalation is resolved or expired and
	// cannot change again.
	ErrAlreadyTerminal = errors.New("escalation already terminal")

	// ErrAlreadyQueued means a follow-up already exists for the request.
	ErrAlreadyQueued = errors.New("follow-up already queued")

	// ErrDeliveryFailure means the voice channel did not accept a message.
	ErrDeliveryFailure = errors.New("delivery failed")

	// ErrStoreUnavailable means the database could not be read or written.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrStoreCorruption means a persisted record failed validation.
	ErrStoreCorruption = errors.New("store corruption")

	// ErrInvalidInput means a caller supplied an unusable argument.
	ErrInvalidInput = errors.New("invalid input")
)
