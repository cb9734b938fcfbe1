package fragment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outrider-net/desyncd/pkg/netheader"
)

// buildSample constructs a full IPv4+TCP packet carrying payload, mirroring
// pkg/netheader's own test fixture, and returns parsed views over it plus
// the raw payload.
func buildSample(payload string) (netheader.IPv4, netheader.TCP, []byte) {
	pkt := make([]byte, netheader.IPv4MinHeaderLen+netheader.TCPMinHeaderLen+len(payload))

	pkt[0] = 0x45
	totalLen := len(pkt)
	pkt[2], pkt[3] = byte(totalLen>>8), byte(totalLen)
	pkt[4], pkt[5] = 0x00, 0x2A // identification = 42
	pkt[8] = 64
	pkt[9] = byte(netheader.ProtocolTCP)
	copy(pkt[12:16], []byte{10, 0, 0, 1})
	copy(pkt[16:20], []byte{10, 0, 0, 2})

	tcp := pkt[netheader.IPv4MinHeaderLen:]
	tcp[0], tcp[1] = 0x04, 0xD2
	tcp[2], tcp[3] = 0x01, 0xBB
	tcp[4], tcp[5], tcp[6], tcp[7] = 0x00, 0x00, 0x00, 0x64 // seq = 100
	tcp[12] = 5 << 4
	copy(tcp[netheader.TCPMinHeaderLen:], payload)

	ip, err := netheader.ParseIPv4(pkt)
	if err != nil {
		panic(err)
	}
	tcpView, err := netheader.ParseTCP(pkt[ip.HeaderLen():], len(pkt)-ip.HeaderLen())
	if err != nil {
		panic(err)
	}
	return ip, tcpView, []byte(payload)
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name       string
		payloadLen int
		offset     int
		want       []Range
	}{
		{"normal offset", 10, 3, []Range{{0, 3}, {3, 10}}},
		{"offset too large falls back to half", 10, 10, []Range{{0, 5}, {5, 10}}},
		{"zero offset falls back to half", 10, 0, []Range{{0, 5}, {5, 10}}},
		{"tiny payload", 1, 1, []Range{{0, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Split(tt.payloadLen, tt.offset)
			assert.Equal(t, tt.want, plan.Ranges)
		})
	}
}

func TestDisorder(t *testing.T) {
	plan := Disorder(10, 4)
	require.Len(t, plan.Ranges, 4)

	var total int
	for _, r := range plan.Ranges {
		total += r.End - r.Start
	}
	assert.Equal(t, 10, total)
	assert.Equal(t, 0, plan.Ranges[0].Start)
	assert.Equal(t, 10, plan.Ranges[len(plan.Ranges)-1].End)
}

func TestDisorderClampsFragmentCount(t *testing.T) {
	assert.Len(t, Disorder(20, 1).Ranges, MinFragmentCount)
	assert.Len(t, Disorder(20, 99).Ranges, MaxFragmentCount)
}

// TestBuildFragmentChecksumsValid is P1/P2: every recomputed checksum
// self-verifies.
func TestBuildFragmentChecksumsValid(t *testing.T) {
	ip, tcp, payload := buildSample("hello world")

	frag := BuildFragment(ip, tcp, payload[:5], 0, 1)

	gotIP, err := netheader.ParseIPv4(frag)
	require.NoError(t, err)
	assert.True(t, gotIP.VerifyChecksum())

	gotTCP, err := netheader.ParseTCP(frag[gotIP.HeaderLen():], len(frag)-gotIP.HeaderLen())
	require.NoError(t, err)
	assert.True(t, gotTCP.VerifyChecksum(gotIP.Source(), gotIP.Destination()))

	assert.Equal(t, ip.ID()+1, gotIP.ID())
	assert.Equal(t, tcp.Seq(), gotTCP.Seq())
	assert.Equal(t, []byte("hello"), gotTCP.Payload())
}

// TestBuildSequenceDistinctIDs is P5: sibling fragments carry pairwise
// distinct IP.id values.
func TestBuildSequenceDistinctIDs(t *testing.T) {
	ip, tcp, payload := buildSample("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")

	plan := Disorder(len(payload), 4)
	frags := BuildSequence(ip, tcp, payload, plan)
	require.Len(t, frags, 4)

	seen := make(map[uint16]bool)
	for _, f := range frags {
		v, err := netheader.ParseIPv4(f)
		require.NoError(t, err)
		assert.False(t, seen[v.ID()], "duplicate IP.id %#04x", v.ID())
		seen[v.ID()] = true
	}
}

func TestBuildSequenceSeqOffsetsMatchRanges(t *testing.T) {
	ip, tcp, payload := buildSample("0123456789")

	plan := Split(len(payload), 4)
	frags := BuildSequence(ip, tcp, payload, plan)
	require.Len(t, frags, 2)

	for i, r := range plan.Ranges {
		ipv, err := netheader.ParseIPv4(frags[i])
		require.NoError(t, err)
		tcpv, err := netheader.ParseTCP(frags[i][ipv.HeaderLen():], len(frags[i])-ipv.HeaderLen())
		require.NoError(t, err)

		assert.Equal(t, tcp.Seq()+uint32(r.Start), tcpv.Seq())
		assert.Equal(t, payload[r.Start:r.End], tcpv.Payload())
	}
}
