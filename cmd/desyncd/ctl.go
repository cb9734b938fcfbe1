package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/outrider-net/desyncd/internal/bypass"
	"github.com/outrider-net/desyncd/internal/control"
)

var ctlSocketPath string

var ctlCmd = &cobra.Command{
	Use:   "ctl",
	Short: "talk to a running desyncd daemon over its control socket",
}

func init() {
	ctlCmd.PersistentFlags().StringVar(&ctlSocketPath, "socket", "/var/run/desyncd.sock", "control socket path")

	ctlCmd.AddCommand(
		newCtlSimpleCmd("ping", "check the daemon is alive"),
		newCtlSimpleCmd("status", "report run state and bypass statistics"),
		newCtlSimpleCmd("start", "start the bypass engine"),
		newCtlSimpleCmd("stop", "stop the bypass engine"),
		newCtlSimpleCmd("reset_stats", "zero the running packet/byte counters"),
		newCtlSettingsCmd(),
	)
	rootCmd.AddCommand(ctlCmd)
}

func newCtlSimpleCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(control.Command{Cmd: name})
		},
	}
}

func newCtlSettingsCmd() *cobra.Command {
	var method string
	var firstSplitOffset, interFragmentDelayMs, fragmentCount int
	var desyncHTTPS, desyncHTTP, mixHostCase, blockQUIC bool

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "update the bypass engine's settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := bypass.Settings{
				Method:               bypass.ParseMethod(method),
				FirstSplitOffset:     firstSplitOffset,
				InterFragmentDelayMs: interFragmentDelayMs,
				FragmentCount:        fragmentCount,
				DesyncHTTPS:          desyncHTTPS,
				DesyncHTTP:           desyncHTTP,
				MixHostCase:          mixHostCase,
				BlockQUIC:            blockQUIC,
			}
			return sendCommand(control.Command{Cmd: "settings", Settings: &settings})
		},
	}

	cmd.Flags().StringVar(&method, "method", "SPLIT", "NONE|SPLIT|SPLIT_REVERSE|DISORDER|DISORDER_REVERSE")
	cmd.Flags().IntVar(&firstSplitOffset, "first-split-offset", 2, "byte offset of the first SPLIT cut")
	cmd.Flags().IntVar(&interFragmentDelayMs, "inter-fragment-delay-ms", 50, "delay between injected fragments")
	cmd.Flags().IntVar(&fragmentCount, "fragment-count", 4, "DISORDER fragment count, clamped to [2,10]")
	cmd.Flags().BoolVar(&desyncHTTPS, "desync-https", true, "desynchronize TLS ClientHello segments")
	cmd.Flags().BoolVar(&desyncHTTP, "desync-http", true, "desynchronize HTTP request segments")
	cmd.Flags().BoolVar(&mixHostCase, "mix-host-case", true, "flip the case of alternating letters in the HTTP Host value")
	cmd.Flags().BoolVar(&blockQUIC, "block-quic", true, "drop UDP/443 QUIC to force TLS fallback")
	return cmd
}

func sendCommand(cmd control.Command) error {
	conn, err := net.Dial("unix", ctlSocketPath)
	if err != nil {
		return fmt.Errorf("ctl: dial %s: %w", ctlSocketPath, err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(cmd); err != nil {
		return fmt.Errorf("ctl: send command: %w", err)
	}

	var resp control.Response
	if err := json.NewDecoder(bufio.NewReader(conn)).Decode(&resp); err != nil {
		return fmt.Errorf("ctl: read response: %w", err)
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if resp.Status != "ok" {
		return fmt.Errorf("ctl: daemon returned error: %s", resp.Message)
	}
	return nil
}
