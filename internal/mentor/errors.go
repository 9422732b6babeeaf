package mentor

import "errors"

var (
	// ErrEmptyContent indicates a chat turn with no user text. Rejected
	// before any network call or store write.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrBackend indicates the completion backend failed for a user-facing
	// turn. The raw backend error is logged, never surfaced.
	ErrBackend = errors.New("completion backend failure")
)
