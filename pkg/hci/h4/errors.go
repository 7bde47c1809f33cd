package h4

import "errors"

var (
	// ErrNotReady indicates the chip is not powered.
	ErrNotReady = errors.New("not ready")
	// ErrNoReply indicates no reply received from the controller.
	// This happens when a reply is received for a latter command, and all
	// previous commands fail with this error.
	ErrNoReply = errors.New("no reply")
	// ErrTimeout indicates the reply didn't arrive in time.
	ErrTimeout = errors.New("command timeout")
	// ErrParamsTooLong indicates command parameters exceed the HCI limit.
	ErrParamsTooLong = errors.New("command parameters too long")
)
