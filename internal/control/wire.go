package control

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/outrider-net/desyncd/internal/logging"
)

// SocketPath is the well-known control-plane listen address (spec.md §6).
const SocketPath = "/var/run/desyncd.sock"

// SocketPerm is applied to SocketPath after Listen (spec.md §6,
// "permissions 0666").
const SocketPerm = 0o666

// Serve accepts client connections from path one at a time, decoding a
// stream of JSON Command objects and writing back JSON Response objects,
// until ctx is cancelled (spec.md §4.G, §6).
func Serve(ctx context.Context, path string, plane *Plane) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("control: remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("control: listen: %w", err)
	}
	defer ln.Close()

	if err := os.Chmod(path, SocketPerm); err != nil {
		return fmt.Errorf("control: chmod socket: %w", err)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("control: accept: %w", err)
			}
		}
		serveConn(ctx, conn, plane)
	}
}

// serveConn runs a read-parse-write loop on conn until EOF or the exit
// command, serving exactly one client at a time (spec.md §4.G).
func serveConn(ctx context.Context, conn net.Conn, plane *Plane) {
	defer conn.Close()

	dec := json.NewDecoder(bufio.NewReader(conn))
	enc := json.NewEncoder(conn)

	for {
		var cmd Command
		if err := dec.Decode(&cmd); err != nil {
			return
		}

		resp := plane.Dispatch(ctx, cmd)
		if err := enc.Encode(resp); err != nil {
			logging.L.WithError(err).Debug("control: encode response failed")
			return
		}

		if cmd.Cmd == "exit" {
			return
		}
	}
}
