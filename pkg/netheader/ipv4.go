package netheader

import (
	"encoding/binary"
	"fmt"
)

const (
	// IPv4MinHeaderLen is the minimum IPv4 header length (no options).
	IPv4MinHeaderLen = 20

	// IPv4MaxHeaderLen is the maximum IPv4 header length (15 32-bit words).
	IPv4MaxHeaderLen = 60

	ipv4Version = 4
)

// IPv4 is a view over an IPv4 datagram backed by a caller-owned slice. All
// accessors and setters operate directly on Raw; no field is cached.
type IPv4 struct {
	Raw []byte
}

// ParseIPv4 validates data as a well-formed IPv4 header (options included)
// and returns a view over it. It does not copy data.
func ParseIPv4(data []byte) (IPv4, error) {
	if len(data) < IPv4MinHeaderLen {
		return IPv4{}, fmt.Errorf("netheader: ipv4 packet too short: %d bytes", len(data))
	}

	version := data[0] >> 4
	if version != ipv4Version {
		return IPv4{}, fmt.Errorf("netheader: unsupported IP version %d", version)
	}

	ihl := int(data[0]&0x0F) * 4
	if ihl < IPv4MinHeaderLen {
		return IPv4{}, fmt.Errorf("netheader: invalid IHL: %d bytes", ihl)
	}
	if ihl > len(data) {
		return IPv4{}, fmt.Errorf("netheader: header length %d exceeds packet length %d", ihl, len(data))
	}

	totalLen := int(binary.BigEndian.Uint16(data[2:4]))
	if totalLen > len(data) {
		return IPv4{}, fmt.Errorf("netheader: total length %d exceeds packet length %d", totalLen, len(data))
	}

	return IPv4{Raw: data}, nil
}

// HeaderLen returns IHL*4 in bytes.
func (v IPv4) HeaderLen() int { return int(v.Raw[0]&0x0F) * 4 }

// TotalLen returns the IP.total_length field.
func (v IPv4) TotalLen() int { return int(binary.BigEndian.Uint16(v.Raw[2:4])) }

// SetTotalLen overwrites IP.total_length.
func (v IPv4) SetTotalLen(n int) { binary.BigEndian.PutUint16(v.Raw[2:4], uint16(n)) }

// ID returns the IP.identification field.
func (v IPv4) ID() uint16 { return binary.BigEndian.Uint16(v.Raw[4:6]) }

// SetID overwrites IP.identification.
func (v IPv4) SetID(id uint16) { binary.BigEndian.PutUint16(v.Raw[4:6], id) }

// Protocol returns the IP.protocol field.
func (v IPv4) Protocol() Protocol { return Protocol(v.Raw[9]) }

// Checksum returns the stored IP.header_checksum field.
func (v IPv4) Checksum() uint16 { return binary.BigEndian.Uint16(v.Raw[10:12]) }

// SetChecksum overwrites IP.header_checksum.
func (v IPv4) SetChecksum(c uint16) { binary.BigEndian.PutUint16(v.Raw[10:12], c) }

// Source returns the IP.source_address field.
func (v IPv4) Source() Addr {
	var a Addr
	copy(a[:], v.Raw[12:16])
	return a
}

// Destination returns the IP.destination_address field.
func (v IPv4) Destination() Addr {
	var a Addr
	copy(a[:], v.Raw[16:20])
	return a
}

// Payload returns the bytes following the IP header, up to TotalLen.
func (v IPv4) Payload() []byte {
	hl := v.HeaderLen()
	tl := v.TotalLen()
	if tl > len(v.Raw) || tl < hl {
		tl = len(v.Raw)
	}
	return v.Raw[hl:tl]
}

// RecomputeChecksum zeroes and recomputes IP.header_checksum over the
// header bytes (HeaderLen() of them).
func (v IPv4) RecomputeChecksum() {
	v.SetChecksum(0)
	v.SetChecksum(Checksum(v.Raw[:v.HeaderLen()]))
}

// VerifyChecksum reports whether the stored checksum is consistent with the
// header bytes (summing a correct header including its checksum yields 0).
func (v IPv4) VerifyChecksum() bool {
	return Checksum(v.Raw[:v.HeaderLen()]) == 0
}
