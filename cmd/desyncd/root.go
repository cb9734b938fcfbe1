package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd is the base command when desyncd is invoked without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "desyncd",
	Short: "desyncd desynchronizes censor-visible TCP segments past DPI",
	Long: `desyncd intercepts outbound TCP segments via NFQUEUE, classifies
their TLS ClientHello or HTTP Host payload, and on a match replaces a
single segment with a checksum-correct fragment sequence crafted to
desynchronize a passive DPI middlebox while reassembling correctly at
the real destination.

Run "desyncd serve" to start the daemon, and "desyncd ctl <cmd>" to talk
to a running daemon over its control socket.`,
}

// Execute runs the root command, exiting 1 on any error (spec.md §6, exit
// codes).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to YAML config file (default: built-in defaults + DESYNCD_ env overrides)")
}
