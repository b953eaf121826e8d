package backup

import "errors"

// Sentinel errors shared across the service. Callers test with errors.Is;
// OS-specific error codes are mapped onto these by the filesystem layer.
var (
	// ErrTimeout is returned when a bounded wait (pipe deadline, state-file
	// lock budget) expires without progress.
	ErrTimeout = errors.New("operation timed out")

	// ErrInUse indicates a sharing violation: another process holds the file
	// open in a conflicting mode.
	ErrInUse = errors.New("file in use")

	// ErrIdentityUnresolved indicates the identity resolver could not produce
	// a usable profile for a SID. The condition is usually transient (the
	// user's profile is not loaded yet) and callers retry.
	ErrIdentityUnresolved = errors.New("cannot resolve user profile")
)
