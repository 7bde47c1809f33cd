// Package radio defines the types shared by the transport lifecycle packages.
package radio

import "fmt"

// ChipID identifies a physical chip (one transport per chip).
type ChipID string

// StackID identifies a logical client of the transport.
type StackID int

// Known logical clients.
const (
	StackBT StackID = iota
	StackFMRX
	StackFMTX

	// NumStacks is the number of known logical clients.
	NumStacks int = iota
)

var stackNames = [NumStacks]string{"bt", "fm-rx", "fm-tx"}

// String implements fmt.Stringer.
func (s StackID) String() string {
	if s.IsValid() {
		return stackNames[s]
	}
	return fmt.Sprintf("stack(%d)", int(s))
}

// IsValid indicates the stack is a known logical client.
func (s StackID) IsValid() bool {
	return s >= 0 && int(s) < NumStacks
}

// ParseStackID converts a stack name back to StackID.
func ParseStackID(name string) (StackID, error) {
	for n, str := range stackNames {
		if str == name {
			return StackID(n), nil
		}
	}
	return -1, fmt.Errorf("unknown stack %q", name)
}

// Op is the operation requested by a logical client.
type Op int

// Operations.
const (
	OpOn Op = iota + 1
	OpOff
	OpAbort
)

// String implements fmt.Stringer.
func (o Op) String() string {
	switch o {
	case OpOn:
		return "on"
	case OpOff:
		return "off"
	case OpAbort:
		return "abort"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Result is the completion status surfaced by the lifecycle components.
type Result int

// Results.
const (
	Success Result = iota
	Pending
	Failed
	Aborted
	InvalidScript
)

// String implements fmt.Stringer.
func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Pending:
		return "pending"
	case Failed:
		return "failed"
	case Aborted:
		return "aborted"
	case InvalidScript:
		return "invalid-script"
	}
	return fmt.Sprintf("result(%d)", int(r))
}

// IsFinal indicates the result completes an operation.
func (r Result) IsFinal() bool {
	return r != Pending
}
