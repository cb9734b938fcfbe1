package nfqueue

import (
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/outrider-net/desyncd/internal/logging"
	"github.com/outrider-net/desyncd/pkg/netbuf"
)

// Callback decides a packet's fate; the worker applies the returned
// verdict unless it is VerdictStolen.
type Callback func(Packet) Verdict

// Worker owns the nfnetlink_queue netlink conversation: one blocking
// socket, one dispatch loop, no internal concurrency (spec.md §4.E, §5).
type Worker struct {
	queueNum uint16
	callback Callback

	fd      int
	running atomic.Bool
}

// New returns a worker bound to queueNum, invoking callback for every
// received packet. callback may be nil, in which case every packet is
// accepted (spec.md §4.E, "default ACCEPT if no callback").
func New(queueNum uint16, callback Callback) *Worker {
	if callback == nil {
		callback = func(Packet) Verdict { return VerdictAccept }
	}
	return &Worker{queueNum: queueNum, callback: callback}
}

// Init opens the netlink socket and issues the PF_UNBIND / PF_BIND / BIND
// / CFG_PARAMS handshake (spec.md §4.E, steps 1-2). Any step sendto
// rejects fails Init with a human-readable reason.
func (w *Worker) Init() error {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW, unix.NETLINK_NETFILTER)
	if err != nil {
		return fmt.Errorf("nfqueue: socket: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Pid: uint32(unix.Getpid())}); err != nil {
		unix.Close(fd)
		return fmt.Errorf("nfqueue: bind: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, netbuf.RecvBufferSize); err != nil {
		logging.L.WithError(err).Warn("nfqueue: could not enlarge receive buffer")
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, netbuf.SendBufferSize); err != nil {
		logging.L.WithError(err).Warn("nfqueue: could not enlarge send buffer")
	}

	w.fd = fd

	sendBuf := netbuf.Send.Get()
	defer netbuf.Send.Put(sendBuf)

	// Each step is built into sendBuf and sent immediately: the steps
	// share one scratch buffer, so a step's request must not outlive the
	// next step's build.
	steps := []struct {
		name string
		req  func() []byte
	}{
		{"PF_UNBIND", func() []byte { return buildCfgCmd(sendBuf, nfqnlCfgCmdPFUnbind, 0) }},
		{"PF_BIND", func() []byte { return buildCfgCmd(sendBuf, nfqnlCfgCmdPFBind, 0) }},
		{"BIND", func() []byte { return buildCfgCmd(sendBuf, nfqnlCfgCmdBind, w.queueNum) }},
		{"PARAMS", func() []byte { return buildCfgParams(sendBuf, w.queueNum, nfqnlCopyPacket, 0xFFFF) }},
	}
	for _, step := range steps {
		if err := unix.Send(fd, step.req(), 0); err != nil {
			unix.Close(fd)
			return fmt.Errorf("nfqueue: config %s: %w", step.name, err)
		}
	}

	return nil
}

// Run blocks, receiving and dispatching packets until Stop is called or a
// fatal recvfrom error occurs. Must be called after a successful Init.
func (w *Worker) Run() error {
	w.running.Store(true)

	buf := netbuf.Recv.Get()
	defer netbuf.Recv.Put(buf)

	for w.running.Load() {
		n, _, err := unix.Recvfrom(w.fd, buf, 0)
		if err != nil {
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
				continue
			}
			if !w.running.Load() {
				return nil
			}
			return fmt.Errorf("nfqueue: recvfrom: %w", err)
		}
		if n == 0 {
			return nil
		}

		walkMessages(buf[:n], func(h nlmsghdr, body []byte) {
			subsys := uint8(h.Type >> 8)
			msgType := uint8(h.Type & 0xFF)

			switch {
			case msgType == nlmsgError:
				logging.L.WithField("bytes", len(body)).Debug("nfqueue: NLMSG_ERROR received")
			case subsys == nfnlSubsysQueue && msgType == nfqnlMsgPacket:
				w.dispatch(body)
			}
		})
	}
	return nil
}

func (w *Worker) dispatch(body []byte) {
	if len(body) < nfgenmsgLen {
		return
	}
	pkt, ok := parsePacket(body[nfgenmsgLen:])
	if !ok {
		return
	}

	verdict := w.callback(pkt)
	if verdict == VerdictStolen {
		return
	}

	sendBuf := netbuf.Send.Get()
	defer netbuf.Send.Put(sendBuf)

	req := buildVerdict(sendBuf, w.queueNum, pkt.ID, verdict)
	if err := unix.Send(w.fd, req, 0); err != nil {
		logging.L.WithError(err).Warn("nfqueue: send_verdict failed")
	}
}

// Stop clears the running flag and shuts down the netlink socket to
// unblock a pending recvfrom (spec.md §4.E, "Termination").
func (w *Worker) Stop() {
	w.running.Store(false)
	unix.Shutdown(w.fd, unix.SHUT_RDWR)
}

// Cleanup additionally sends CFG_CMD_UNBIND and closes the socket. Call
// after Run has returned.
func (w *Worker) Cleanup() error {
	sendBuf := netbuf.Send.Get()
	req := buildCfgCmd(sendBuf, nfqnlCfgCmdUnbind, w.queueNum)
	if err := unix.Send(w.fd, req, 0); err != nil {
		logging.L.WithError(err).Warn("nfqueue: CFG_CMD_UNBIND failed")
	}
	netbuf.Send.Put(sendBuf)
	return unix.Close(w.fd)
}
