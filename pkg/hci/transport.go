package hci

// Status is the immediate outcome of a transport call.
type Status int

// Transport call status.
const (
	StatusSuccess Status = iota
	StatusPending
	StatusFailed
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusPending:
		return "pending"
	}
	return "failed"
}

// Reply is the outcome of a transport call.
// Event is only set for successfully completed commands.
type Reply struct {
	Status Status
	Event  *Event
	Err    error
}

// Succeeded creates a successful Reply.
func Succeeded(ev *Event) Reply {
	return Reply{Status: StatusSuccess, Event: ev}
}

// PendingReply is returned when the completion is delivered later.
func PendingReply() Reply {
	return Reply{Status: StatusPending}
}

// FailedReply creates a failed Reply.
func FailedReply(err error) Reply {
	return Reply{Status: StatusFailed, Err: err}
}

// Failure returns the error of a final Reply, including a non-zero status
// in its reply event.
func (r Reply) Failure() error {
	if r.Status != StatusSuccess {
		if r.Err != nil {
			return r.Err
		}
		return ErrFailed
	}
	if r.Event != nil {
		return r.Event.Err()
	}
	return nil
}

// ReplyFunc receives the completion of a pending transport call.
type ReplyFunc func(Reply)

// FlowControl is the UART flow control mode.
type FlowControl int

// Flow control modes.
const (
	FlowControlNone FlowControl = iota
	FlowControlHardware
)

// String implements fmt.Stringer.
func (f FlowControl) String() string {
	if f == FlowControlHardware {
		return "hardware"
	}
	return "none"
}

// Transport is the command path to the chip.
//
// Every call returns a Reply immediately. When the Reply is pending, the
// ReplyFunc is invoked exactly once later with a final Reply, never from
// within the call itself. Otherwise the ReplyFunc is never invoked.
type Transport interface {
	// SendCommand sends an HCI command and completes with its reply event.
	SendCommand(op Opcode, params []byte, done ReplyFunc) Reply
	// PowerOn powers the chip and completes after the power-on handshake.
	PowerOn(done ReplyFunc) Reply
	// PowerOff shuts the chip down. Outstanding commands are dropped.
	PowerOff(done ReplyFunc) Reply
	// ConfigureFlowControl applies the configured flow control on the host side.
	ConfigureFlowControl(done ReplyFunc) Reply
	// SetLinkParameters switches chip and host to the operational link speed.
	SetLinkParameters(speed uint32, flow FlowControl, done ReplyFunc) Reply
}
