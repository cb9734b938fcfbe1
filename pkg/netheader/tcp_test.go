package netheader

import "testing"

func TestParseTCP(t *testing.T) {
	pkt := sampleIPv4TCP([]byte("hello"))
	ip, err := ParseIPv4(pkt)
	if err != nil {
		t.Fatalf("ParseIPv4() error = %v", err)
	}

	tcp, err := ParseTCP(pkt[ip.HeaderLen():], ip.TotalLen()-ip.HeaderLen())
	if err != nil {
		t.Fatalf("ParseTCP() error = %v", err)
	}

	if tcp.DestinationPort() != 443 {
		t.Errorf("DestinationPort() = %d, want 443", tcp.DestinationPort())
	}
	if tcp.SourcePort() != 1234 {
		t.Errorf("SourcePort() = %d, want 1234", tcp.SourcePort())
	}
	if string(tcp.Payload()) != "hello" {
		t.Errorf("Payload() = %q, want %q", tcp.Payload(), "hello")
	}
}

func TestParseTCPTooShort(t *testing.T) {
	if _, err := ParseTCP([]byte{0x00, 0x50, 0x01, 0xbb}, 4); err == nil {
		t.Error("ParseTCP() expected error for short segment")
	}
}

// TestTCPRecomputeChecksum is P2: after recomputation, re-summing the
// pseudo-header + segment (including the stored checksum) yields zero.
func TestTCPRecomputeChecksum(t *testing.T) {
	pkt := sampleIPv4TCP([]byte("hello"))
	ip, _ := ParseIPv4(pkt)
	tcp, err := ParseTCP(pkt[ip.HeaderLen():], ip.TotalLen()-ip.HeaderLen())
	if err != nil {
		t.Fatalf("ParseTCP() error = %v", err)
	}

	tcp.SetSeq(1000)
	tcp.RecomputeChecksum(ip.Source(), ip.Destination())

	if !tcp.VerifyChecksum(ip.Source(), ip.Destination()) {
		t.Error("VerifyChecksum() = false after RecomputeChecksum()")
	}
	if tcp.Seq() != 1000 {
		t.Errorf("Seq() = %d, want 1000", tcp.Seq())
	}
}
