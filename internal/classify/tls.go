// Package classify recognizes the two censor-visible payload shapes this
// engine cares about — a TLS ClientHello's SNI extension and an HTTP
// request's Host header — and matches extracted hostnames against a
// whitelist. Every walk here is bounds-checked against the slice it reads:
// a malformed or adversarial length field must return "not found", never
// panic or read out of bounds (spec P6).
package classify

const (
	tlsContentTypeHandshake = 0x16
	tlsHandshakeClientHello = 0x01

	// sniExtensionType is the TLS extension type for server_name (RFC 6066).
	sniExtensionType = 0x0000

	// sniHostNameType is the only name_type this engine understands.
	sniHostNameType = 0x00

	// clientHelloBodyOffset is the byte offset, from the start of the TLS
	// record, where the variable-length session-id field begins: record
	// header (5) + handshake header (4) + client_version (2) + random (32).
	clientHelloBodyOffset = 43
)

// IsTLSClientHello reports whether payload begins a TLS handshake record
// carrying a ClientHello message.
func IsTLSClientHello(payload []byte) bool {
	return len(payload) >= 6 && payload[0] == tlsContentTypeHandshake && payload[5] == tlsHandshakeClientHello
}

// ExtractSNI walks a TLS ClientHello's extensions looking for the
// server_name (SNI) extension and returns the host_name it carries. It
// returns ok == false if the record is not a ClientHello, has no SNI
// extension, or any length field would read past the end of payload.
func ExtractSNI(payload []byte) (hostname string, ok bool) {
	if !IsTLSClientHello(payload) {
		return "", false
	}

	r := cursor{data: payload, pos: clientHelloBodyOffset}

	// session_id: 1-byte length prefix.
	sessionIDLen, ok := r.readUint8()
	if !ok || !r.skip(int(sessionIDLen)) {
		return "", false
	}

	// cipher_suites: 2-byte length prefix, in bytes.
	cipherSuitesLen, ok := r.readUint16()
	if !ok || !r.skip(int(cipherSuitesLen)) {
		return "", false
	}

	// compression_methods: 1-byte length prefix.
	compressionLen, ok := r.readUint8()
	if !ok || !r.skip(int(compressionLen)) {
		return "", false
	}

	// No extensions block present — RFC 5246 allows ClientHello without one.
	if r.remaining() == 0 {
		return "", false
	}

	extensionsLen, ok := r.readUint16()
	if !ok {
		return "", false
	}
	extensionsEnd := r.pos + int(extensionsLen)
	if extensionsEnd > len(payload) {
		return "", false
	}

	for r.pos < extensionsEnd {
		extType, ok := r.readUint16()
		if !ok {
			return "", false
		}
		extLen, ok := r.readUint16()
		if !ok {
			return "", false
		}
		extEnd := r.pos + int(extLen)
		if extEnd > extensionsEnd {
			return "", false
		}

		if extType != sniExtensionType {
			if !r.skip(int(extLen)) {
				return "", false
			}
			continue
		}

		return parseServerNameExtension(payload[r.pos:extEnd])
	}

	return "", false
}

// parseServerNameExtension parses the body of a server_name extension
// (RFC 6066 §3): a 2-byte server_name_list length, then one or more
// (name_type, length-prefixed name) entries. Only the first host_name entry
// is returned.
func parseServerNameExtension(body []byte) (string, bool) {
	r := cursor{data: body, pos: 0}

	listLen, ok := r.readUint16()
	if !ok {
		return "", false
	}
	listEnd := r.pos + int(listLen)
	if listEnd > len(body) {
		return "", false
	}

	for r.pos < listEnd {
		nameType, ok := r.readUint8()
		if !ok {
			return "", false
		}
		nameLen, ok := r.readUint16()
		if !ok {
			return "", false
		}
		nameEnd := r.pos + int(nameLen)
		if nameEnd > listEnd {
			return "", false
		}

		if nameType != sniHostNameType {
			if !r.skip(int(nameLen)) {
				return "", false
			}
			continue
		}

		return string(body[r.pos:nameEnd]), true
	}

	return "", false
}

// cursor is a bounds-checked forward-only reader over a byte slice.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) remaining() int { return len(c.data) - c.pos }

func (c *cursor) readUint8() (uint8, bool) {
	if c.remaining() < 1 {
		return 0, false
	}
	v := c.data[c.pos]
	c.pos++
	return v, true
}

func (c *cursor) readUint16() (uint16, bool) {
	if c.remaining() < 2 {
		return 0, false
	}
	v := uint16(c.data[c.pos])<<8 | uint16(c.data[c.pos+1])
	c.pos += 2
	return v, true
}

func (c *cursor) skip(n int) bool {
	if n < 0 || c.remaining() < n {
		return false
	}
	c.pos += n
	return true
}
