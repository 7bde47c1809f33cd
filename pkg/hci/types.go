// Package hci provides the Host Controller Interface primitives used to
// control the chip once the transport is powered.
package hci

import (
	"encoding/binary"
	"fmt"
)

// PacketType is the H4 packet indicator.
type PacketType byte

// Packet types.
const (
	PacketTypeCommand PacketType = 0x01
	PacketTypeACLData PacketType = 0x02
	PacketTypeSCOData PacketType = 0x03
	PacketTypeEvent   PacketType = 0x04
)

// Opcode is a 16-bit HCI command opcode (OGF << 10 | OCF).
type Opcode uint16

// Opcodes used by the lifecycle stack.
const (
	OpcodeNone                     Opcode = 0x0000
	OpcodeReset                    Opcode = 0x0C03
	OpcodeReadLocalVersion         Opcode = 0x1001
	OpcodeVSUpdateUARTBaudrate     Opcode = 0xFF36
	OpcodeVSWriteBDAddr            Opcode = 0xFC06
	OpcodeVSSleepModeConfiguration Opcode = 0xFD0C
)

// MakeOpcode builds an opcode from group and command fields.
func MakeOpcode(ogf byte, ocf uint16) Opcode {
	return Opcode(uint16(ogf&0x3f)<<10 | ocf&0x03ff)
}

// OGF returns the opcode group field.
func (o Opcode) OGF() byte {
	return byte(o >> 10)
}

// OCF returns the opcode command field.
func (o Opcode) OCF() uint16 {
	return uint16(o) & 0x03ff
}

// IsVendor indicates a vendor specific command.
func (o Opcode) IsVendor() bool {
	return o.OGF() == 0x3f
}

// String implements fmt.Stringer.
func (o Opcode) String() string {
	return fmt.Sprintf("0x%04x", uint16(o))
}

// EventCode is the HCI event code.
type EventCode byte

// Event codes.
const (
	EventCodeCommandComplete EventCode = 0x0E
	EventCodeCommandStatus   EventCode = 0x0F
	EventCodeHardwareError   EventCode = 0x10
	EventCodeVendorSpecific  EventCode = 0xFF
)

// MaxParamsLen is the maximum length of command parameters or event payload.
const MaxParamsLen = 255

// Command is an encodable HCI command packet.
type Command struct {
	Opcode Opcode
	Params []byte
}

// Bytes encodes the command as an H4 packet.
func (c *Command) Bytes() []byte {
	b := make([]byte, 4+len(c.Params))
	b[0] = byte(PacketTypeCommand)
	binary.LittleEndian.PutUint16(b[1:], uint16(c.Opcode))
	b[3] = byte(len(c.Params))
	copy(b[4:], c.Params)
	return b
}

// ParseCommand decodes an H4 command packet (including the packet indicator).
func ParseCommand(b []byte) (*Command, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("command packet too short: %d", len(b))
	}
	if PacketType(b[0]) != PacketTypeCommand {
		return nil, fmt.Errorf("not a command packet: 0x%02x", b[0])
	}
	plen := int(b[3])
	if len(b)-4 != plen {
		return nil, fmt.Errorf("command length mismatch: header %d, actual %d", plen, len(b)-4)
	}
	return &Command{
		Opcode: Opcode(binary.LittleEndian.Uint16(b[1:])),
		Params: append([]byte(nil), b[4:]...),
	}, nil
}

// Event is a received HCI event.
type Event struct {
	Code   EventCode
	Params []byte
}

// CommandComplete decodes a Command Complete event.
// The returned data starts with the status byte.
func (e *Event) CommandComplete() (op Opcode, ret []byte, ok bool) {
	if e.Code != EventCodeCommandComplete || len(e.Params) < 3 {
		return
	}
	return Opcode(binary.LittleEndian.Uint16(e.Params[1:])), e.Params[3:], true
}

// CommandStatus decodes a Command Status event.
func (e *Event) CommandStatus() (op Opcode, status byte, ok bool) {
	if e.Code != EventCodeCommandStatus || len(e.Params) < 4 {
		return
	}
	return Opcode(binary.LittleEndian.Uint16(e.Params[2:])), e.Params[0], true
}

// Opcode returns the opcode the event replies to, or OpcodeNone.
func (e *Event) Opcode() Opcode {
	if op, _, ok := e.CommandComplete(); ok {
		return op
	}
	if op, _, ok := e.CommandStatus(); ok {
		return op
	}
	return OpcodeNone
}

// Err converts a failed command reply into CommandError.
func (e *Event) Err() error {
	if op, ret, ok := e.CommandComplete(); ok {
		if len(ret) > 0 && ret[0] != 0 {
			return &CommandError{Opcode: op, Status: ret[0]}
		}
		return nil
	}
	if op, status, ok := e.CommandStatus(); ok {
		if status != 0 {
			return &CommandError{Opcode: op, Status: status}
		}
		return nil
	}
	return &UnexpectedEventError{Code: e.Code}
}

// Bytes encodes the event as an H4 packet.
func (e *Event) Bytes() []byte {
	b := make([]byte, 3+len(e.Params))
	b[0], b[1], b[2] = byte(PacketTypeEvent), byte(e.Code), byte(len(e.Params))
	copy(b[3:], e.Params)
	return b
}

// NewCommandComplete builds a Command Complete event, mainly for transports
// which complete locally and for tests.
func NewCommandComplete(op Opcode, status byte, ret ...byte) *Event {
	params := make([]byte, 4+len(ret))
	params[0] = 1
	binary.LittleEndian.PutUint16(params[1:], uint16(op))
	params[3] = status
	copy(params[4:], ret)
	return &Event{Code: EventCodeCommandComplete, Params: params}
}
