package admission

import "errors"

var (
	// ErrUnknownClient indicates the StackID is not a known client.
	ErrUnknownClient = errors.New("unknown client")
	// ErrRequestPending indicates the client already has a request queued or active.
	ErrRequestPending = errors.New("request pending")
	// ErrNothingToAbort indicates the client has no On request to abort.
	ErrNothingToAbort = errors.New("nothing to abort")
)
