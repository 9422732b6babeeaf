package thread

import "errors"

// Sentinel errors surfaced by the store. Callers check them with errors.Is
// and map them to transport-level status codes at the API boundary.
var (
	// ErrThreadNotFound indicates the requested thread does not exist.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrThreadNotActive indicates an operation that requires an ACTIVE
	// thread was attempted on a completed one.
	ErrThreadNotActive = errors.New("thread must be active")

	// ErrNotOwner indicates the caller does not own the thread.
	ErrNotOwner = errors.New("thread does not belong to user")

	// ErrInvalidRole indicates a message carried an unknown role.
	ErrInvalidRole = errors.New("invalid message role")
)
