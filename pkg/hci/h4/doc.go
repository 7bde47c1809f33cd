// Package h4 implements the HCI transport over a UART (H4 framing).
package h4

// Every H4 packet starts with a one byte packet indicator followed by
// the HCI packet itself. The host only sends command packets during the
// bring-up, and the controller answers with event packets:
//
//   command: 0x01 opcode(2, LE) plen(1) params(plen)
//   event:   0x04 code(1) plen(1) params(plen)
//
// ACL and SCO packets may still arrive after the transport is up, they are
// parsed for framing and discarded here.
//
// H4 has no resynchronization mechanism. The parser drops a partially
// received packet when the inter-byte timeout expires.
