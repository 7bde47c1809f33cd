// Package script parses and executes vendor init scripts (BTS format).
package script

// A script starts with a 32-byte header followed by actions back to back
// until the end of the file. All integers are little-endian.
//
//   header: magic(4) version(4) reserved(24)
//   action: type(2) len(2) data(len)
//
// Action data layouts:
//
//   SendCommand:      H4 command packet, 0x01 opcode(2) plen(1) params
//   WaitForComplete:  timeout_ms(4) size(4) expected event bytes
//   SetSerialParams:  baud(4) flow(4)
//   Delay:            duration_ms(4)
//   RunScript:        file name
//   Remark:           text

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic is the first word of every script ("BTSB" on the wire).
const Magic uint32 = 0x42535442

// Sizes.
const (
	HeaderSize       = 32
	ActionHeaderSize = 4
	// MaxActionSize bounds the data of a single action.
	MaxActionSize = 1024
)

// ActionType identifies a script action.
type ActionType uint16

// Action types.
const (
	ActionSendCommand     ActionType = 1
	ActionWaitForComplete ActionType = 2
	ActionSetSerialParams ActionType = 3
	ActionDelay           ActionType = 4
	ActionRunScript       ActionType = 5
	ActionRemark          ActionType = 6
)

// String implements fmt.Stringer.
func (t ActionType) String() string {
	switch t {
	case ActionSendCommand:
		return "send-command"
	case ActionWaitForComplete:
		return "wait-for-complete"
	case ActionSetSerialParams:
		return "set-serial-params"
	case ActionDelay:
		return "delay"
	case ActionRunScript:
		return "run-script"
	case ActionRemark:
		return "remark"
	}
	return fmt.Sprintf("action(%d)", uint16(t))
}

// Header is the decoded script header.
type Header struct {
	Magic   uint32
	Version uint32
}

// Action is one record of the action stream.
type Action struct {
	Type ActionType
	Data []byte
}

// FormatError describes a malformed script.
type FormatError struct {
	Offset int
	Reason string
}

// Error implements error.
func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid script at offset %d: %s", e.Offset, e.Reason)
}

func formatErr(offset int, format string, args ...interface{}) *FormatError {
	return &FormatError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// Decoder reads actions from a script stream.
type Decoder struct {
	r      io.Reader
	size   int
	cursor int
	buf    [MaxActionSize]byte
}

// NewDecoder creates a Decoder over a script of the given total size.
func NewDecoder(r io.Reader, size int) *Decoder {
	return &Decoder{r: r, size: size}
}

// Cursor returns the number of bytes consumed.
func (d *Decoder) Cursor() int {
	return d.cursor
}

// Remaining returns the number of bytes not consumed.
func (d *Decoder) Remaining() int {
	return d.size - d.cursor
}

// Done indicates all actions are consumed.
func (d *Decoder) Done() bool {
	return d.cursor >= d.size
}

func (d *Decoder) read(p []byte) error {
	if _, err := io.ReadFull(d.r, p); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return formatErr(d.cursor, "truncated")
		}
		return err
	}
	d.cursor += len(p)
	return nil
}

// ReadHeader reads and validates the header.
func (d *Decoder) ReadHeader() (h Header, err error) {
	if d.size < HeaderSize {
		return h, formatErr(0, "size %d smaller than header", d.size)
	}
	var b [HeaderSize]byte
	if err = d.read(b[:]); err != nil {
		return
	}
	h.Magic = binary.LittleEndian.Uint32(b[0:])
	h.Version = binary.LittleEndian.Uint32(b[4:])
	if h.Magic != Magic {
		return h, formatErr(0, "bad magic 0x%08x", h.Magic)
	}
	return
}

// Next reads the next action. The returned Data is only valid until the
// next call.
func (d *Decoder) Next() (a Action, err error) {
	offset := d.cursor
	if d.Remaining() < ActionHeaderSize {
		return a, formatErr(offset, "%d trailing bytes", d.Remaining())
	}
	var hdr [ActionHeaderSize]byte
	if err = d.read(hdr[:]); err != nil {
		return
	}
	a.Type = ActionType(binary.LittleEndian.Uint16(hdr[0:]))
	size := int(binary.LittleEndian.Uint16(hdr[2:]))
	if size > MaxActionSize {
		return a, formatErr(offset, "%s action size %d too large", a.Type, size)
	}
	if size > d.Remaining() {
		return a, formatErr(offset, "%s action size %d exceeds script", a.Type, size)
	}
	a.Data = d.buf[:size]
	err = d.read(a.Data)
	return
}

// DelayDuration decodes the data of a Delay action in milliseconds.
func DelayDuration(data []byte) (uint32, bool) {
	if len(data) < 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(data), true
}
