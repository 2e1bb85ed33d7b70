package voicesession

import "errors"

// Sentinel errors for audio manager operations.
// These errors enable reliable error classification using errors.Is().
var (
	// ErrAlreadyInitialized indicates Initialize was called on a manager
	// that is still bound to a session. The binding is not reentrant;
	// call Cleanup first.
	ErrAlreadyInitialized = errors.New("audio manager already initialized")

	// ErrNoLocalTrack is the sentinel returned by control operations
	// invoked with no local track bound. Callers integrating UI controls
	// can treat it as a safe no-op.
	ErrNoLocalTrack = errors.New("no local track bound")

	// ErrNoSession indicates an operation that needs an active session
	// binding was invoked without one.
	ErrNoSession = errors.New("no active session")
)
