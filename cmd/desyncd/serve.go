package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/outrider-net/desyncd/internal/bypass"
	"github.com/outrider-net/desyncd/internal/config"
	"github.com/outrider-net/desyncd/internal/control"
	"github.com/outrider-net/desyncd/internal/firewall"
	"github.com/outrider-net/desyncd/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the desyncd daemon in the foreground",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	if err := logging.Init(logging.Config{
		Level:      cfg.Log.Level,
		JSON:       cfg.Log.JSON,
		FilePath:   cfg.Log.FilePath,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}); err != nil {
		return fmt.Errorf("serve: init logging: %w", err)
	}

	whitelist, whitelistErrs := cfg.Bypass.NewWhitelist()
	for _, werr := range whitelistErrs {
		logging.L.WithError(werr).Warn("serve: skipping whitelist entry")
	}

	engine := bypass.NewEngine(cfg.Bypass.Settings(), whitelist)
	defer engine.Close()

	fw := &firewall.IPTables{Binary: cfg.Firewall.Binary}
	plane := control.NewPlane(cfg.Queue.Num, cfg.Queue.Mark, fw, engine)

	if err := writePIDFile(cfg.Control.PIDFile); err != nil {
		logging.L.WithError(err).Warn("serve: could not write PID file")
	}
	defer os.Remove(cfg.Control.PIDFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if resp := plane.Dispatch(ctx, control.Command{Cmd: "start"}); resp.Status != "ok" {
		return fmt.Errorf("serve: start: %s", resp.Message)
	}
	logging.L.WithField("queue", cfg.Queue.Num).Info("desyncd: bypass engine running")

	serveErr := make(chan error, 1)
	go func() { serveErr <- control.Serve(ctx, cfg.Control.SocketPath, plane) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		logging.L.Info("desyncd: signal received, shutting down")
	case err := <-serveErr:
		if err != nil {
			logging.L.WithError(err).Error("desyncd: control socket exited")
		}
	}

	cancel()
	plane.Dispatch(context.Background(), control.Command{Cmd: "stop"})
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}
