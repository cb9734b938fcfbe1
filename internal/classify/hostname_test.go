package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostnameOfTLS(t *testing.T) {
	hostname, ok := HostnameOf(443, buildClientHello("api.example.com"))
	assert.True(t, ok)
	assert.Equal(t, "api.example.com", hostname)
}

func TestHostnameOfHTTP(t *testing.T) {
	hostname, ok := HostnameOf(80, []byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	assert.True(t, ok)
	assert.Equal(t, "example.com", hostname)
}

func TestHostnameOfUninterestingPort(t *testing.T) {
	_, ok := HostnameOf(8080, []byte("anything"))
	assert.False(t, ok)
}

func TestHostnameOfNotAClientHello(t *testing.T) {
	_, ok := HostnameOf(443, []byte("not tls"))
	assert.False(t, ok)
}
