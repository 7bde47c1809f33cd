package script

import (
	"bytes"
	"encoding/binary"

	"github.com/robotalks/radio.go/pkg/hci"
)

// Encoder builds a script in memory.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder creates an Encoder with the header written.
func NewEncoder(version uint32) *Encoder {
	e := &Encoder{}
	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], Magic)
	binary.LittleEndian.PutUint32(hdr[4:], version)
	e.buf.Write(hdr[:])
	return e
}

// Action appends a raw action.
func (e *Encoder) Action(t ActionType, data []byte) *Encoder {
	var hdr [ActionHeaderSize]byte
	binary.LittleEndian.PutUint16(hdr[0:], uint16(t))
	binary.LittleEndian.PutUint16(hdr[2:], uint16(len(data)))
	e.buf.Write(hdr[:])
	e.buf.Write(data)
	return e
}

// SendCommand appends a SendCommand action.
func (e *Encoder) SendCommand(op hci.Opcode, params ...byte) *Encoder {
	return e.Action(ActionSendCommand, (&hci.Command{Opcode: op, Params: params}).Bytes())
}

// WaitForComplete appends a WaitForComplete action expecting the Command
// Complete of op.
func (e *Encoder) WaitForComplete(op hci.Opcode, timeoutMs uint32) *Encoder {
	ev := hci.NewCommandComplete(op, 0).Bytes()
	data := make([]byte, 8+len(ev))
	binary.LittleEndian.PutUint32(data[0:], timeoutMs)
	binary.LittleEndian.PutUint32(data[4:], uint32(len(ev)))
	copy(data[8:], ev)
	return e.Action(ActionWaitForComplete, data)
}

// Command appends a SendCommand with its WaitForComplete.
func (e *Encoder) Command(op hci.Opcode, params ...byte) *Encoder {
	return e.SendCommand(op, params...).WaitForComplete(op, 1000)
}

// Delay appends a Delay action.
func (e *Encoder) Delay(ms uint32) *Encoder {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, ms)
	return e.Action(ActionDelay, data)
}

// Remark appends a Remark action.
func (e *Encoder) Remark(text string) *Encoder {
	return e.Action(ActionRemark, append([]byte(text), 0))
}

// Bytes returns the encoded script.
func (e *Encoder) Bytes() []byte {
	return append([]byte(nil), e.buf.Bytes()...)
}
