package fragment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outrider-net/desyncd/pkg/netheader"
)

func TestMixHostCaseFlipsHostnameOnly(t *testing.T) {
	ip, tcp, payload := buildSample("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")
	plan := Split(len(payload), 20)
	frags := BuildSequence(ip, tcp, payload, plan)

	MixHostCase(frags, ip.HeaderLen(), tcp.HeaderLen())

	var sawFlip bool
	var joined string
	for i, f := range frags {
		v, err := netheader.ParseIPv4(f)
		require.NoError(t, err)
		tv, err := netheader.ParseTCP(f[v.HeaderLen():], len(f)-v.HeaderLen())
		require.NoError(t, err)

		assert.True(t, tv.VerifyChecksum(v.Source(), v.Destination()))

		p := string(tv.Payload())
		joined += p
		r := plan.Ranges[i]
		if len(p) > 0 && p != string(payload[r.Start:r.End]) {
			sawFlip = true
		}
	}
	assert.True(t, sawFlip, "expected at least one fragment's payload to differ from the original after case-flipping")
	assert.Equal(t, "GET / HTTP/1.1\r\nHost: eXaMpLe.CoM\r\n\r\n", joined, "only the Host value's letters change case")
}

func TestMixHostCaseNoHostHeaderIsNoop(t *testing.T) {
	ip, tcp, payload := buildSample("\x16\x03\x01\x00\x05hello")
	plan := Split(len(payload), 3)
	frags := BuildSequence(ip, tcp, payload, plan)

	before := make([][]byte, len(frags))
	for i, f := range frags {
		before[i] = append([]byte(nil), f...)
	}

	MixHostCase(frags, ip.HeaderLen(), tcp.HeaderLen())

	for i, f := range frags {
		assert.Equal(t, before[i], f)
	}
}

func TestFlipAlternatingCase(t *testing.T) {
	b := []byte("example.com")
	flipAlternatingCase(b)
	assert.NotEqual(t, "example.com", string(b))
	assert.Equal(t, len("example.com"), len(b))
}

func TestHostValueRange(t *testing.T) {
	payload := []byte("GET / HTTP/1.1\r\nHost:   example.com\r\n\r\n")
	start, end, ok := hostValueRange(payload)
	require.True(t, ok)
	assert.Equal(t, "example.com", string(payload[start:end]))
}
