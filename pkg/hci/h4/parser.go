package h4

import (
	"encoding/binary"

	"github.com/robotalks/radio.go/pkg/hci"
)

// Parser parses bytes received from the controller.
type Parser struct {
	state   parseState
	ptype   hci.PacketType
	header  [4]byte
	hdrLen  int
	hdrRecv int
	data    []byte
	recvLen int
}

// ParseResult indicates the result after one parsing step.
type ParseResult struct {
	// Event is set when a complete event packet is received.
	Event *hci.Event
	// Receiving is true in the middle of a packet.
	Receiving bool
	// Dropped is true when bytes were discarded (unknown indicator or
	// incomplete packet on timeout).
	Dropped bool
}

type parseState int

const (
	stateIndicator parseState = iota // waiting for packet indicator
	stateHeader                      // receiving packet header
	stateData                        // receiving payload
)

// Receiving indicates the parser is in the middle of a packet.
func (p *Parser) Receiving() bool {
	return p.state != stateIndicator
}

// Reset drops any partially received packet.
func (p *Parser) Reset() {
	p.state, p.data, p.hdrRecv, p.recvLen = stateIndicator, nil, 0, 0
}

// Timeout notifies the parser the inter-byte timer expired.
func (p *Parser) Timeout() (pr ParseResult) {
	if p.state != stateIndicator {
		p.Reset()
		pr.Dropped = true
	}
	return
}

// Parse consumes one byte.
func (p *Parser) Parse(b byte) (pr ParseResult) {
	switch p.state {
	case stateIndicator:
		p.ptype = hci.PacketType(b)
		switch p.ptype {
		case hci.PacketTypeEvent:
			p.hdrLen = 2
		case hci.PacketTypeACLData:
			p.hdrLen = 4
		case hci.PacketTypeSCOData:
			p.hdrLen = 3
		default:
			pr.Dropped = true
			return
		}
		p.hdrRecv, p.state = 0, stateHeader
	case stateHeader:
		p.header[p.hdrRecv] = b
		if p.hdrRecv++; p.hdrRecv < p.hdrLen {
			break
		}
		size := p.payloadLen()
		if size == 0 {
			pr.Event = p.packetReady()
			break
		}
		p.data, p.recvLen, p.state = make([]byte, size), 0, stateData
	case stateData:
		p.data[p.recvLen] = b
		if p.recvLen++; p.recvLen >= len(p.data) {
			pr.Event = p.packetReady()
		}
	}
	pr.Receiving = p.Receiving()
	return
}

func (p *Parser) payloadLen() int {
	switch p.ptype {
	case hci.PacketTypeACLData:
		return int(binary.LittleEndian.Uint16(p.header[2:]))
	case hci.PacketTypeSCOData:
		return int(p.header[2])
	}
	return int(p.header[1])
}

func (p *Parser) packetReady() (ev *hci.Event) {
	if p.ptype == hci.PacketTypeEvent {
		ev = &hci.Event{Code: hci.EventCode(p.header[0]), Params: p.data}
		if ev.Params == nil {
			ev.Params = []byte{}
		}
	}
	p.Reset()
	return
}
