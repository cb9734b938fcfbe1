package classify

// HostnameOf extracts the censor-visible hostname from a TCP payload given
// its destination port, so that callers (the bypass engine) never need to
// know TLS or HTTP wire details themselves. It returns ok == false for any
// port other than 443 (TLS ClientHello/SNI) or 80 (HTTP Host header), and
// for port 443 when the payload is not a TLS ClientHello. Otherwise ok is
// true, with hostname empty when no SNI or Host header could be extracted.
func HostnameOf(dstPort uint16, payload []byte) (hostname string, ok bool) {
	switch dstPort {
	case 443:
		if !IsTLSClientHello(payload) {
			return "", false
		}
		hostname, _ = ExtractSNI(payload)
		return hostname, true
	case 80:
		hostname, _ = ExtractHTTPHost(payload)
		return hostname, true
	default:
		return "", false
	}
}
