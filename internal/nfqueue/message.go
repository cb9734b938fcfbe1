package nfqueue

import "encoding/binary"

// nlmsghdr mirrors linux/netlink.h's struct nlmsghdr. Netlink header
// fields are host byte order; only the nfnetlink payload beneath it (and
// its own attribute values) use network byte order.
type nlmsghdr struct {
	Len   uint32
	Type  uint16
	Flags uint16
	Seq   uint32
	Pid   uint32
}

const nlmsghdrLen = 16

func putNlmsghdr(buf []byte, h nlmsghdr) {
	binary.NativeEndian.PutUint32(buf[0:4], h.Len)
	binary.NativeEndian.PutUint16(buf[4:6], h.Type)
	binary.NativeEndian.PutUint16(buf[6:8], h.Flags)
	binary.NativeEndian.PutUint32(buf[8:12], h.Seq)
	binary.NativeEndian.PutUint32(buf[12:16], h.Pid)
}

func getNlmsghdr(buf []byte) nlmsghdr {
	return nlmsghdr{
		Len:   binary.NativeEndian.Uint32(buf[0:4]),
		Type:  binary.NativeEndian.Uint16(buf[4:6]),
		Flags: binary.NativeEndian.Uint16(buf[6:8]),
		Seq:   binary.NativeEndian.Uint32(buf[8:12]),
		Pid:   binary.NativeEndian.Uint32(buf[12:16]),
	}
}

const nfgenmsgLen = 4

// putNfgenmsg writes the nfgenmsg header: nfgen_family, nfgen_version,
// and res_id in network byte order (spec.md §4.E, "nfgenmsg.res_id =
// htons(queue_num)").
func putNfgenmsg(buf []byte, family uint8, resID uint16) {
	buf[0] = family
	buf[1] = nfNetlinkVersion
	binary.BigEndian.PutUint16(buf[2:4], resID)
}

const nlattrHdrLen = 4

func align4(n int) int { return (n + 3) &^ 3 }

// appendAttr appends a type-length-value netlink attribute, padded to a
// 4-byte boundary.
func appendAttr(buf []byte, attrType uint16, value []byte) []byte {
	attrLen := nlattrHdrLen + len(value)

	header := make([]byte, nlattrHdrLen)
	binary.NativeEndian.PutUint16(header[0:2], uint16(attrLen))
	binary.NativeEndian.PutUint16(header[2:4], attrType)

	buf = append(buf, header...)
	buf = append(buf, value...)
	if pad := align4(attrLen) - attrLen; pad > 0 {
		buf = append(buf, make([]byte, pad)...)
	}
	return buf
}

// buildRequest assembles a complete nlmsghdr || nfgenmsg || attrs request
// for the nfnetlink_queue subsystem (spec.md §4.E, "Message framing"). It
// builds into dst[:0], reusing dst's backing array (typically drawn from
// netbuf.Send) instead of allocating a fresh send buffer per message.
func buildRequest(dst []byte, msgType uint16, family uint8, resID uint16, attrs []byte) []byte {
	dst = dst[:0]
	dst = append(dst, make([]byte, nlmsghdrLen)...)
	bodyStart := len(dst)
	dst = append(dst, make([]byte, nfgenmsgLen)...)
	putNfgenmsg(dst[bodyStart:], family, resID)
	dst = append(dst, attrs...)

	putNlmsghdr(dst[:nlmsghdrLen], nlmsghdr{
		Len:   uint32(len(dst)),
		Type:  (nfnlSubsysQueue << 8) | msgType,
		Flags: nlmFRequest | nlmFAck,
	})
	return dst
}

// walkMessages invokes fn for each complete nlmsghdr in buf, following the
// standard netlink NLMSG_OK / NLMSG_NEXT predicates, stopping at the
// first incomplete or malformed message.
func walkMessages(buf []byte, fn func(h nlmsghdr, body []byte)) {
	for len(buf) >= nlmsghdrLen {
		h := getNlmsghdr(buf)
		if h.Len < nlmsghdrLen || int(h.Len) > len(buf) {
			return
		}
		fn(h, buf[nlmsghdrLen:h.Len])
		next := align4(int(h.Len))
		if next >= len(buf) {
			return
		}
		buf = buf[next:]
	}
}

// parseAttrs walks a netlink attribute stream, invoking fn for each
// (attrType, value) pair. value aliases data; it is never copied.
func parseAttrs(data []byte, fn func(attrType uint16, value []byte)) {
	const nlaTypeMask = 0x3FFF // clears NLA_F_NESTED / NLA_F_NET_BYTEORDER

	for len(data) >= nlattrHdrLen {
		attrLen := int(binary.NativeEndian.Uint16(data[0:2]))
		attrType := binary.NativeEndian.Uint16(data[2:4]) & nlaTypeMask
		if attrLen < nlattrHdrLen || attrLen > len(data) {
			return
		}
		fn(attrType, data[nlattrHdrLen:attrLen])
		next := align4(attrLen)
		if next >= len(data) {
			return
		}
		data = data[next:]
	}
}
