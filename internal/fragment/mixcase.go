package fragment

import (
	"bytes"

	"github.com/outrider-net/desyncd/pkg/netheader"
)

var hostNeedle = []byte("host:")

// MixHostCase locates a literal "Host:" header by its offset in the
// fragments' payloads joined in slice order (each fragment is a complete
// wire-ready fragment: IP header, TCP header, payload, in payload order as
// BuildSequence returns them), flips the case of alternating alphabetic
// characters in the hostname value only, writes the result back into
// whichever fragments hold those bytes, and recomputes their TCP
// checksums. It is a no-op if the joined payload has no Host: header.
func MixHostCase(fragments [][]byte, ipHdrLen, tcpHdrLen int) {
	hdrLen := ipHdrLen + tcpHdrLen

	var joined []byte
	for _, frag := range fragments {
		if len(frag) > hdrLen {
			joined = append(joined, frag[hdrLen:]...)
		}
	}
	start, end, ok := hostValueRange(joined)
	if !ok {
		return
	}
	flipAlternatingCase(joined[start:end])

	off := 0
	for _, frag := range fragments {
		if len(frag) <= hdrLen {
			continue
		}
		payload := frag[hdrLen:]
		fragStart, fragEnd := off, off+len(payload)
		off = fragEnd
		if fragEnd <= start || fragStart >= end {
			continue
		}
		copy(payload, joined[fragStart:fragEnd])

		ip := netheader.IPv4{Raw: frag[:ipHdrLen]}
		tcp := netheader.TCP{Raw: frag[ipHdrLen:]}
		tcp.RecomputeChecksum(ip.Source(), ip.Destination())
	}
}

// hostValueRange returns the byte range of the hostname value following a
// case-insensitive "Host:" match in payload (skipping leading spaces, up
// to the first CR or LF), or ok == false if absent.
func hostValueRange(payload []byte) (start, end int, ok bool) {
	idx := indexFold(payload, hostNeedle)
	if idx < 0 {
		return 0, 0, false
	}

	i := idx + len(hostNeedle)
	for i < len(payload) && payload[i] == ' ' {
		i++
	}

	end = len(payload)
	for j := i; j < len(payload); j++ {
		if payload[j] == '\r' || payload[j] == '\n' {
			end = j
			break
		}
	}
	if end == i {
		return 0, 0, false
	}
	return i, end, true
}

func indexFold(payload, needle []byte) int {
	n := len(needle)
	for i := 0; i+n <= len(payload); i++ {
		if bytes.EqualFold(payload[i:i+n], needle) {
			return i
		}
	}
	return -1
}

// flipAlternatingCase flips the case of every other alphabetic byte in
// place; non-alphabetic bytes are untouched and don't count toward the
// alternation.
func flipAlternatingCase(b []byte) {
	flip := false
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z':
			if flip {
				b[i] = c - 'a' + 'A'
			}
			flip = !flip
		case c >= 'A' && c <= 'Z':
			if flip {
				b[i] = c - 'A' + 'a'
			}
			flip = !flip
		}
	}
}
