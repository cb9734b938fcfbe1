package nfqueue

import "encoding/binary"

// Packet is one netfilter-queued frame, its fields borrowed from the
// worker's receive buffer for the duration of a single callback invocation
// (spec.md §3, "Packet"; spec.md §4.E, "PAYLOAD yields the raw IP frame…
// not a copy").
type Packet struct {
	ID      uint32
	Mark    uint32
	Payload []byte
}

// parsePacket extracts a Packet from a PACKET message's attribute stream
// (the bytes following the nfgenmsg header). ok is false if no
// PACKET_HDR attribute — and thus no packet_id — was present.
func parsePacket(body []byte) (pkt Packet, ok bool) {
	parseAttrs(body, func(attrType uint16, value []byte) {
		switch attrType {
		case nfqaPacketHdr:
			if len(value) >= 4 {
				pkt.ID = binary.BigEndian.Uint32(value[0:4])
				ok = true
			}
		case nfqaMark:
			if len(value) >= 4 {
				pkt.Mark = binary.BigEndian.Uint32(value[0:4])
			}
		case nfqaPayload:
			pkt.Payload = value
		}
	})
	return pkt, ok
}

// buildVerdict assembles a VERDICT message carrying VERDICT_HDR{verdict,
// id} for queueNum (spec.md §4.E). dst is the scratch send buffer the
// message is built into (typically drawn from netbuf.Send).
func buildVerdict(dst []byte, queueNum uint16, packetID uint32, verdict Verdict) []byte {
	hdr := make([]byte, 8)
	binary.BigEndian.PutUint32(hdr[0:4], uint32(verdict))
	binary.BigEndian.PutUint32(hdr[4:8], packetID)

	attrs := appendAttr(nil, nfqaVerdictHdr, hdr)
	return buildRequest(dst, nfqnlMsgVerdict, nfGenMsgFamily, queueNum, attrs)
}

// buildCfgCmd assembles a CONFIG message carrying CFG_CMD{cmd, pf}. dst is
// the scratch send buffer the message is built into.
func buildCfgCmd(dst []byte, cmd uint8, queueNum uint16) []byte {
	body := make([]byte, 4)
	body[0] = cmd
	binary.BigEndian.PutUint16(body[2:4], 2) // pf = AF_INET

	attrs := appendAttr(nil, nfqaCfgCmd, body)
	return buildRequest(dst, nfqnlMsgConfig, nfGenMsgFamily, queueNum, attrs)
}

// buildCfgParams assembles a CONFIG message carrying CFG_PARAMS{copy_range,
// copy_mode} (spec.md §4.E, "CFG_PARAMS(copy_mode = COPY_PACKET,
// copy_range = 0xFFFF)"). dst is the scratch send buffer the message is
// built into.
func buildCfgParams(dst []byte, queueNum uint16, copyMode uint8, copyRange uint32) []byte {
	body := make([]byte, 5)
	binary.BigEndian.PutUint32(body[0:4], copyRange)
	body[4] = copyMode

	attrs := appendAttr(nil, nfqaCfgParams, body)
	return buildRequest(dst, nfqnlMsgConfig, nfGenMsgFamily, queueNum, attrs)
}
