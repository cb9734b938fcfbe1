package nfqueue

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequestFraming(t *testing.T) {
	attrs := appendAttr(nil, nfqaCfgCmd, []byte{1, 0, 0, 2})
	req := buildRequest(make([]byte, 0, 64), nfqnlMsgConfig, nfGenMsgFamily, 7, attrs)

	h := getNlmsghdr(req)
	assert.Equal(t, uint32(len(req)), h.Len)
	assert.Equal(t, uint16((nfnlSubsysQueue<<8)|nfqnlMsgConfig), h.Type)
	assert.Equal(t, uint16(nlmFRequest|nlmFAck), h.Flags)

	family := req[nlmsghdrLen]
	resID := binary.BigEndian.Uint16(req[nlmsghdrLen+2 : nlmsghdrLen+4])
	assert.Equal(t, uint8(nfGenMsgFamily), family)
	assert.Equal(t, uint16(7), resID)
}

func TestAppendAttrPadsTo4Bytes(t *testing.T) {
	buf := appendAttr(nil, 1, []byte{0x01, 0x02, 0x03})
	assert.Equal(t, 0, len(buf)%4, "attribute must be padded to a 4-byte boundary")

	var gotType uint16
	var gotValue []byte
	parseAttrs(buf, func(attrType uint16, value []byte) {
		gotType = attrType
		gotValue = value
	})
	assert.Equal(t, uint16(1), gotType)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, gotValue)
}

func TestParseAttrsMultiple(t *testing.T) {
	buf := appendAttr(nil, 1, []byte{0xAA})
	buf = appendAttr(buf, 2, []byte{0xBB, 0xCC})

	var types []uint16
	parseAttrs(buf, func(attrType uint16, value []byte) {
		types = append(types, attrType)
	})
	assert.Equal(t, []uint16{1, 2}, types)
}

func TestParseAttrsTruncatedNeverPanics(t *testing.T) {
	assert.NotPanics(t, func() {
		parseAttrs([]byte{0xFF, 0xFF, 0x00, 0x01}, func(uint16, []byte) {})
	})
	assert.NotPanics(t, func() {
		parseAttrs([]byte{0x01}, func(uint16, []byte) {})
	})
	assert.NotPanics(t, func() {
		parseAttrs(nil, func(uint16, []byte) {})
	})

	// Final attribute's declared length equals the remaining bytes exactly
	// but is not 4-aligned: len=6, type=1, followed by 2 bytes of value.
	// align4(6) == 8 overruns the 6-byte buffer.
	var gotType uint16
	var gotValue []byte
	buf := []byte{0x06, 0x00, 0x01, 0x00, 0xAA, 0xBB}
	assert.NotPanics(t, func() {
		parseAttrs(buf, func(attrType uint16, value []byte) {
			gotType = attrType
			gotValue = value
		})
	})
	assert.Equal(t, uint16(1), gotType)
	assert.Equal(t, []byte{0xAA, 0xBB}, gotValue)
}

func TestWalkMessagesMultiple(t *testing.T) {
	msg1 := buildRequest(make([]byte, 0, 64), nfqnlMsgConfig, nfGenMsgFamily, 1, nil)
	msg2 := buildRequest(make([]byte, 0, 64), nfqnlMsgVerdict, nfGenMsgFamily, 1, nil)
	buf := append(append([]byte(nil), msg1...), msg2...)

	var types []uint16
	walkMessages(buf, func(h nlmsghdr, body []byte) {
		types = append(types, h.Type&0xFF)
	})
	require.Len(t, types, 2)
	assert.Equal(t, uint16(nfqnlMsgConfig), types[0])
	assert.Equal(t, uint16(nfqnlMsgVerdict), types[1])
}

func TestWalkMessagesTruncatedNeverPanics(t *testing.T) {
	assert.NotPanics(t, func() {
		walkMessages([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, func(nlmsghdr, []byte) {})
	})
	assert.NotPanics(t, func() {
		walkMessages([]byte{1, 2, 3}, func(nlmsghdr, []byte) {})
	})

	// h.Len equals the total buffer length exactly but isn't 4-aligned:
	// 16-byte header + 2 bytes of body, Len=18. align4(18) == 20 overruns
	// the 18-byte buffer.
	buf := make([]byte, nlmsghdrLen+2)
	putNlmsghdr(buf, nlmsghdr{Len: uint32(len(buf))})
	var gotBodies int
	assert.NotPanics(t, func() {
		walkMessages(buf, func(h nlmsghdr, body []byte) {
			gotBodies++
			assert.Equal(t, 2, len(body))
		})
	})
	assert.Equal(t, 1, gotBodies)
}
