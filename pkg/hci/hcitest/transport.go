// Package hcitest provides a scriptable hci.Transport for tests.
package hcitest

import (
	"sync"

	"github.com/robotalks/radio.go/pkg/hci"
)

// CallKind identifies the transport method invoked.
type CallKind int

// Call kinds.
const (
	CallCommand CallKind = iota
	CallPowerOn
	CallPowerOff
	CallFlowControl
	CallLinkParameters
)

// Call records one transport invocation.
type Call struct {
	Kind   CallKind
	Opcode hci.Opcode
	Params []byte
	Speed  uint32
	Flow   hci.FlowControl

	done hci.ReplyFunc
}

// Transport records calls and completes them synchronously or on demand.
type Transport struct {
	// Sync completes every call immediately with the Responder reply.
	Sync bool
	// Responder builds the reply of a call, DefaultReply if nil.
	Responder func(*Call) hci.Reply
	// Identity is reported by the default HCI_Read_Local_Version_Information reply.
	Identity hci.ChipIdentity

	lock    sync.Mutex
	calls   []*Call
	pending []*Call
}

// New creates a Transport answering asynchronously.
func New() *Transport {
	return &Transport{Identity: hci.ChipIdentity{ProjectType: 7, VersionMajor: 2, VersionMinor: 0}}
}

// DefaultReply answers every call successfully.
func (t *Transport) DefaultReply(c *Call) hci.Reply {
	if c.Kind != CallCommand {
		return hci.Succeeded(nil)
	}
	if c.Opcode == hci.OpcodeReadLocalVersion {
		return hci.Succeeded(hci.LocalVersionReply(hci.ManufacturerTI, t.Identity))
	}
	return hci.Succeeded(hci.NewCommandComplete(c.Opcode, 0))
}

func (t *Transport) invoke(c *Call) hci.Reply {
	t.lock.Lock()
	t.calls = append(t.calls, c)
	if !t.Sync {
		t.pending = append(t.pending, c)
		t.lock.Unlock()
		return hci.PendingReply()
	}
	t.lock.Unlock()
	return t.reply(c)
}

func (t *Transport) reply(c *Call) hci.Reply {
	if t.Responder != nil {
		return t.Responder(c)
	}
	return t.DefaultReply(c)
}

// SendCommand implements hci.Transport.
func (t *Transport) SendCommand(op hci.Opcode, params []byte, done hci.ReplyFunc) hci.Reply {
	return t.invoke(&Call{Kind: CallCommand, Opcode: op, Params: append([]byte(nil), params...), done: done})
}

// PowerOn implements hci.Transport.
func (t *Transport) PowerOn(done hci.ReplyFunc) hci.Reply {
	return t.invoke(&Call{Kind: CallPowerOn, done: done})
}

// PowerOff implements hci.Transport.
func (t *Transport) PowerOff(done hci.ReplyFunc) hci.Reply {
	return t.invoke(&Call{Kind: CallPowerOff, done: done})
}

// ConfigureFlowControl implements hci.Transport.
func (t *Transport) ConfigureFlowControl(done hci.ReplyFunc) hci.Reply {
	return t.invoke(&Call{Kind: CallFlowControl, done: done})
}

// SetLinkParameters implements hci.Transport.
func (t *Transport) SetLinkParameters(speed uint32, flow hci.FlowControl, done hci.ReplyFunc) hci.Reply {
	return t.invoke(&Call{Kind: CallLinkParameters, Speed: speed, Flow: flow, done: done})
}

// Pending returns the number of calls waiting for completion.
func (t *Transport) Pending() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.pending)
}

// Peek returns the oldest pending call without completing it.
func (t *Transport) Peek() *Call {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.pending) == 0 {
		return nil
	}
	return t.pending[0]
}

// Complete completes the oldest pending call with the Responder reply.
// It returns nil if nothing is pending.
func (t *Transport) Complete() *Call {
	c := t.pop()
	if c != nil {
		c.done(t.reply(c))
	}
	return c
}

// CompleteWith completes the oldest pending call with the given reply.
func (t *Transport) CompleteWith(r hci.Reply) *Call {
	c := t.pop()
	if c != nil {
		c.done(r)
	}
	return c
}

// CompleteAll completes pending calls, including the ones issued while
// completing, until nothing is pending. It returns the number completed.
func (t *Transport) CompleteAll() (n int) {
	for t.Complete() != nil {
		n++
	}
	return
}

func (t *Transport) pop() *Call {
	t.lock.Lock()
	defer t.lock.Unlock()
	if len(t.pending) == 0 {
		return nil
	}
	c := t.pending[0]
	t.pending = t.pending[1:]
	return c
}

// Calls returns all recorded calls.
func (t *Transport) Calls() []*Call {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]*Call(nil), t.calls...)
}

// Count returns the number of recorded calls of a kind.
func (t *Transport) Count(kind CallKind) (n int) {
	for _, c := range t.Calls() {
		if c.Kind == kind {
			n++
		}
	}
	return
}

// Opcodes returns the opcodes of recorded commands in order.
func (t *Transport) Opcodes() (ops []hci.Opcode) {
	for _, c := range t.Calls() {
		if c.Kind == CallCommand {
			ops = append(ops, c.Opcode)
		}
	}
	return
}

// Reset drops recorded and pending calls.
func (t *Transport) Reset() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.calls, t.pending = nil, nil
}
