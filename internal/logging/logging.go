// Package logging configures the structured logger every other package in
// this daemon writes through (spec.md §7, Error Handling Design). Parse
// errors are never logged above Debug; a failed raw-injector init is logged
// at Warn and a failed firewall remove at Error, while queue-init and
// firewall-install failures are returned to the control-plane caller.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls log level, format, and destination.
type Config struct {
	Level      string
	JSON       bool
	FilePath   string // empty means stderr only
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// L is the process-wide logger every package in this module writes
// through. Before Init is called it logs to stderr at Info level, which
// keeps package tests usable without configuring logging first.
var L = logrus.New()

// Init reconfigures L per cfg. Called once from cmd/desyncd's serve
// command before the queue worker starts.
func Init(cfg Config) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	L.SetLevel(level)

	if cfg.JSON {
		L.SetFormatter(&logrus.JSONFormatter{})
	} else {
		L.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var out io.Writer = os.Stderr
	if cfg.FilePath != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		})
	}
	L.SetOutput(out)

	return nil
}
