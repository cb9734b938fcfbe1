package netheader

import (
	"encoding/binary"
	"fmt"
)

const (
	// TCPMinHeaderLen is the minimum TCP header length (no options).
	TCPMinHeaderLen = 20

	// TCPMaxHeaderLen is the maximum TCP header length (15 32-bit words).
	TCPMaxHeaderLen = 60
)

// TCP flag bits, as stored in the header byte at offset 13.
const (
	FlagFIN uint8 = 1 << 0
	FlagSYN uint8 = 1 << 1
	FlagRST uint8 = 1 << 2
	FlagPSH uint8 = 1 << 3
	FlagACK uint8 = 1 << 4
	FlagURG uint8 = 1 << 5
)

// TCP is a view over a TCP segment (header plus payload) backed by a
// caller-owned slice.
type TCP struct {
	Raw []byte
}

// ParseTCP validates data as a well-formed TCP segment whose total length
// (header plus payload) is segLen bytes, per the enclosing IPv4 datagram's
// total length, and returns a view over it.
func ParseTCP(data []byte, segLen int) (TCP, error) {
	if len(data) < TCPMinHeaderLen {
		return TCP{}, fmt.Errorf("netheader: tcp segment too short: %d bytes", len(data))
	}
	if segLen > len(data) {
		return TCP{}, fmt.Errorf("netheader: tcp segment length %d exceeds available bytes %d", segLen, len(data))
	}

	hl := int(data[12]>>4) * 4
	if hl < TCPMinHeaderLen {
		return TCP{}, fmt.Errorf("netheader: invalid TCP data offset: %d bytes", hl)
	}
	if hl > segLen {
		return TCP{}, fmt.Errorf("netheader: tcp header length %d exceeds segment bounds %d", hl, segLen)
	}

	return TCP{Raw: data[:segLen]}, nil
}

// HeaderLen returns data_offset*4 in bytes.
func (v TCP) HeaderLen() int { return int(v.Raw[12]>>4) * 4 }

// SourcePort returns the TCP.source_port field in host byte order.
func (v TCP) SourcePort() uint16 { return binary.BigEndian.Uint16(v.Raw[0:2]) }

// DestinationPort returns the TCP.destination_port field in host byte order.
func (v TCP) DestinationPort() uint16 { return binary.BigEndian.Uint16(v.Raw[2:4]) }

// Seq returns the TCP.sequence_number field in host byte order.
func (v TCP) Seq() uint32 { return binary.BigEndian.Uint32(v.Raw[4:8]) }

// SetSeq overwrites TCP.sequence_number.
func (v TCP) SetSeq(seq uint32) { binary.BigEndian.PutUint32(v.Raw[4:8], seq) }

// Ack returns the TCP.ack_number field in host byte order.
func (v TCP) Ack() uint32 { return binary.BigEndian.Uint32(v.Raw[8:12]) }

// Flags returns the control-bit octet (SYN/ACK/PSH/FIN/RST/URG).
func (v TCP) Flags() uint8 { return v.Raw[13] }

// Checksum returns the stored TCP.checksum field.
func (v TCP) Checksum() uint16 { return binary.BigEndian.Uint16(v.Raw[16:18]) }

// SetChecksum overwrites TCP.checksum.
func (v TCP) SetChecksum(c uint16) { binary.BigEndian.PutUint16(v.Raw[16:18], c) }

// Payload returns the bytes following the TCP header.
func (v TCP) Payload() []byte { return v.Raw[v.HeaderLen():] }

// RecomputeChecksum zeroes and recomputes TCP.checksum using the given IPv4
// source/destination addresses for the pseudo-header.
func (v TCP) RecomputeChecksum(src, dst Addr) {
	v.SetChecksum(0)
	v.SetChecksum(ChecksumWithPseudoHeader(src, dst, ProtocolTCP, v.Raw))
}

// VerifyChecksum reports whether the stored checksum is consistent with the
// segment bytes under the given pseudo-header addresses.
func (v TCP) VerifyChecksum(src, dst Addr) bool {
	return ChecksumWithPseudoHeader(src, dst, ProtocolTCP, v.Raw) == 0
}
