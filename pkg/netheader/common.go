// Package netheader parses and mutates IPv4, TCP, and UDP headers in place
// over a caller-owned byte slice. Unlike a parse-to-struct-then-serialize
// model, every view here aliases its backing buffer: callers read fields
// through accessors and write them through setters, so that a handful of
// fields (total length, identification, sequence number, checksum) can be
// patched without a full re-encode. This matches packets borrowed from a
// kernel queue, where the buffer is reused across iterations and a fragment
// is built by copying a verbatim header and only touching what changed.
package netheader

import (
	"encoding/binary"
	"fmt"
)

// Protocol is an IP protocol number (IANA assigned).
type Protocol uint8

// Protocol numbers used by the classifier and bypass engine.
const (
	ProtocolICMP Protocol = 1
	ProtocolTCP  Protocol = 6
	ProtocolUDP  Protocol = 17
)

// String returns a human-readable protocol name.
func (p Protocol) String() string {
	switch p {
	case ProtocolICMP:
		return "ICMP"
	case ProtocolTCP:
		return "TCP"
	case ProtocolUDP:
		return "UDP"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(p))
	}
}

// Addr is a 32-bit IPv4 address in network byte order.
type Addr [4]byte

// String returns the address in dotted-decimal form.
func (a Addr) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
}

// Checksum computes the RFC 1071 Internet checksum: the one's complement of
// the one's complement sum of 16-bit words, with an odd trailing byte padded
// with a zero low byte. Any checksum field inside data must be zeroed by the
// caller before calling this.
func Checksum(data []byte) uint16 {
	var sum uint32
	n := len(data)

	for i := 0; i+1 < n; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i : i+2]))
	}
	if n%2 == 1 {
		sum += uint32(data[n-1]) << 8
	}

	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}

// pseudoHeader serializes the 12-byte IPv4 pseudo-header used by TCP and UDP
// checksums (RFC 793 §3.1, RFC 768).
func pseudoHeader(src, dst Addr, protocol Protocol, length uint16) []byte {
	b := make([]byte, 12)
	copy(b[0:4], src[:])
	copy(b[4:8], dst[:])
	b[8] = 0
	b[9] = uint8(protocol)
	binary.BigEndian.PutUint16(b[10:12], length)
	return b
}

// ChecksumWithPseudoHeader computes a transport-layer checksum over the
// pseudo-header followed by the transport header+payload. The caller must
// have zeroed the transport checksum field in segment before calling this.
func ChecksumWithPseudoHeader(src, dst Addr, protocol Protocol, segment []byte) uint16 {
	ph := pseudoHeader(src, dst, protocol, uint16(len(segment)))
	combined := make([]byte, len(ph)+len(segment))
	copy(combined, ph)
	copy(combined[len(ph):], segment)
	return Checksum(combined)
}
