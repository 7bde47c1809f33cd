package hci

import (
	"errors"
	"fmt"
)

var (
	// ErrVendorMismatch indicates the chip is not made by the expected vendor.
	ErrVendorMismatch = errors.New("unexpected manufacturer")
	// ErrFailed is the error of a failed Reply without a specific reason.
	ErrFailed = errors.New("transport call failed")
	// ErrShortReply indicates a reply carries less data than expected.
	ErrShortReply = errors.New("reply too short")
)

// CommandError wraps a non-zero status in a command reply.
type CommandError struct {
	Opcode Opcode
	Status byte
}

// Error implements error.
func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed with status 0x%02x", e.Opcode, e.Status)
}

// UnexpectedEventError is returned when an event is not a reply to a command.
type UnexpectedEventError struct {
	Code EventCode
}

// Error implements error.
func (e *UnexpectedEventError) Error() string {
	return fmt.Sprintf("unexpected event 0x%02x", byte(e.Code))
}
