// Package fragment builds the checksum-correct TCP segment sequence that
// stands in for a single original segment once the bypass engine decides to
// desynchronize a connection (spec.md §4.C). Every fragment is a complete,
// independently valid IPv4/TCP datagram: original headers copied verbatim,
// then patched in place, never reparsed from scratch.
package fragment

import "github.com/outrider-net/desyncd/pkg/netheader"

// FragmentCount bounds for the DISORDER strategies.
const (
	MinFragmentCount = 2
	MaxFragmentCount = 10
)

// Range is a half-open byte range [Start, End) into an original payload.
type Range struct {
	Start int
	End   int
}

// Plan is the ordered sequence of payload byte ranges that together
// reconstruct the original payload, each destined for its own wire
// fragment. BuildSequence patches each fragment's TCP.seq from its range's
// start offset. MixHostCase does not take the plan: it locates the Host:
// value by offset in the built fragments' joined payloads.
type Plan struct {
	Ranges []Range
}

// Split computes a 2-fragment plan: [0,k) and [k,n). k is firstSplitOffset
// clamped to [1, n-1], falling back to n/2 when the configured offset
// does not fit the payload.
func Split(payloadLen int, firstSplitOffset int) Plan {
	if payloadLen <= 1 {
		return Plan{Ranges: []Range{{0, payloadLen}}}
	}

	k := firstSplitOffset
	if k < 1 || k > payloadLen-1 {
		k = payloadLen / 2
		if k < 1 {
			k = 1
		}
	}
	return Plan{Ranges: []Range{{0, k}, {k, payloadLen}}}
}

// Disorder computes a c-fragment plan of roughly equal size, c clamped to
// [MinFragmentCount, MaxFragmentCount]; the last fragment absorbs any
// remainder.
func Disorder(payloadLen int, fragmentCount int) Plan {
	c := fragmentCount
	if c < MinFragmentCount {
		c = MinFragmentCount
	}
	if c > MaxFragmentCount {
		c = MaxFragmentCount
	}

	size := payloadLen / c
	ranges := make([]Range, 0, c)
	start := 0
	for i := 0; i < c; i++ {
		end := start + size
		if i == c-1 {
			end = payloadLen
		}
		ranges = append(ranges, Range{start, end})
		start = end
	}
	return Plan{Ranges: ranges}
}

// BuildFragment assembles one fragment's wire bytes: origIP's and
// origTCP's headers copied verbatim, followed by subPayload, with
// IP.total_length, IP.id, TCP.seq patched in place and both checksums
// recomputed (spec.md §4.C, steps 1-4).
func BuildFragment(origIP netheader.IPv4, origTCP netheader.TCP, subPayload []byte, seqOffset uint32, idDelta uint16) []byte {
	ipHdrLen := origIP.HeaderLen()
	tcpHdrLen := origTCP.HeaderLen()
	total := ipHdrLen + tcpHdrLen + len(subPayload)

	buf := make([]byte, total)
	copy(buf[:ipHdrLen], origIP.Raw[:ipHdrLen])
	copy(buf[ipHdrLen:ipHdrLen+tcpHdrLen], origTCP.Raw[:tcpHdrLen])
	copy(buf[ipHdrLen+tcpHdrLen:], subPayload)

	ip := netheader.IPv4{Raw: buf[:ipHdrLen]}
	ip.SetTotalLen(total)
	ip.SetID(origIP.ID() + idDelta)
	ip.RecomputeChecksum()

	tcp := netheader.TCP{Raw: buf[ipHdrLen:]}
	tcp.SetSeq(origTCP.Seq() + seqOffset)
	tcp.RecomputeChecksum(ip.Source(), ip.Destination())

	return buf
}

// BuildSequence builds one fragment per Range in plan, in plan order. Each
// fragment's TCP.seq is patched by the range's start offset and its
// IP.id advances by the fragment's index (orig_id + index), so sibling
// fragments carry pairwise-distinct identification fields (spec property
// P5, resolved per the REDESIGN note in spec.md §9).
func BuildSequence(origIP netheader.IPv4, origTCP netheader.TCP, payload []byte, plan Plan) [][]byte {
	out := make([][]byte, 0, len(plan.Ranges))
	for i, r := range plan.Ranges {
		sub := payload[r.Start:r.End]
		out = append(out, BuildFragment(origIP, origTCP, sub, uint32(r.Start), uint16(i)))
	}
	return out
}
