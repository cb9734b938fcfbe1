// Package inject owns the raw IPv4 socket the bypass engine uses to put
// its crafted fragment sequence on the wire in place of the kernel's
// would-be single segment (spec.md §4.D).
package inject

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/outrider-net/desyncd/internal/logging"
	"github.com/outrider-net/desyncd/pkg/netheader"
)

// SocketMark is the well-known SO_MARK value injected packets carry so a
// firewall rule can keep them from re-entering the same NFQUEUE (spec.md
// §6, "socket mark").
const SocketMark = 0x0010DEAD

type state int

const (
	stateUninitialized state = iota
	stateInitialized
	stateClosed
)

// Socket is a raw IPv4 injector with state machine Uninitialized ->
// Initialized -> Closed. Safe for concurrent use; Init is idempotent.
type Socket struct {
	mu    sync.Mutex
	state state
	fd    int
}

// New returns an uninitialized injector.
func New() *Socket {
	return &Socket{}
}

// Init creates AF_INET/SOCK_RAW/IPPROTO_RAW, sets IP_HDRINCL, and makes a
// best-effort attempt to set SO_MARK to SocketMark. A failing SO_MARK is
// logged, not fatal; only socket() and the IP_HDRINCL setsockopt can fail
// Init. Idempotent once Initialized.
func (s *Socket) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateInitialized {
		return nil
	}
	if s.state == stateClosed {
		return fmt.Errorf("inject: socket already closed")
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_RAW)
	if err != nil {
		return fmt.Errorf("inject: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_HDRINCL, 1); err != nil {
		unix.Close(fd)
		return fmt.Errorf("inject: setsockopt IP_HDRINCL: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_MARK, SocketMark); err != nil {
		logging.L.WithError(err).Warn("inject: SO_MARK unsupported, continuing without it")
	}

	s.fd = fd
	s.state = stateInitialized
	return nil
}

// Send transmits packetBytes verbatim to dst via sendto, returning an
// error unless the kernel accepted the full length. The caller guarantees
// well-formed headers; Send performs no mutation of packetBytes.
func (s *Socket) Send(packetBytes []byte, dst netheader.Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateInitialized {
		return fmt.Errorf("inject: socket not initialized")
	}

	sa := &unix.SockaddrInet4{Addr: dst}
	if err := unix.Sendto(s.fd, packetBytes, 0, sa); err != nil {
		return fmt.Errorf("inject: sendto: %w", err)
	}
	return nil
}

// Close closes the socket and transitions to Closed. Idempotent.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateInitialized {
		s.state = stateClosed
		return nil
	}

	err := unix.Close(s.fd)
	s.state = stateClosed
	if err != nil {
		return fmt.Errorf("inject: close: %w", err)
	}
	return nil
}

// Initialized reports whether Init has succeeded and Close has not yet
// been called.
func (s *Socket) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateInitialized
}
