// Package config loads the daemon's static configuration using viper: a
// YAML file plus DESYNCD_-prefixed environment variable overrides,
// unmarshaled into a typed Config (spec.md §6, §4.G).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/outrider-net/desyncd/internal/bypass"
	"github.com/outrider-net/desyncd/internal/classify"
	"github.com/outrider-net/desyncd/internal/fragment"
)

// Config is the daemon's top-level static configuration.
type Config struct {
	Queue    QueueConfig    `mapstructure:"queue"`
	Control  ControlConfig  `mapstructure:"control"`
	Log      LogConfig      `mapstructure:"log"`
	Bypass   BypassConfig   `mapstructure:"bypass"`
	Firewall FirewallConfig `mapstructure:"firewall"`
}

// QueueConfig configures the NFQUEUE diversion.
type QueueConfig struct {
	Num  uint16 `mapstructure:"num"`  // NFQUEUE queue number (spec.md §4.E)
	Mark uint32 `mapstructure:"mark"` // mark the firewall rules exempt from diversion; the raw injector always stamps inject.SocketMark
}

// ControlConfig configures the Unix-domain control-plane listener.
type ControlConfig struct {
	SocketPath string `mapstructure:"socket_path"`
	PIDFile    string `mapstructure:"pid_file"`
}

// FirewallConfig configures the iptables backend.
type FirewallConfig struct {
	Binary string `mapstructure:"binary"` // defaults to "iptables"
}

// LogConfig mirrors internal/logging.Config, kept separate so config stays
// independent of the logging package's import graph.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	JSON       bool   `mapstructure:"json"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// BypassConfig is the on-disk form of bypass.Settings plus the initial
// whitelist (spec.md §3, "BypassSettings" / §4.C whitelist).
type BypassConfig struct {
	Method               string   `mapstructure:"method"`
	FirstSplitOffset     int      `mapstructure:"first_split_offset"`
	InterFragmentDelayMs int      `mapstructure:"inter_fragment_delay_ms"`
	FragmentCount        int      `mapstructure:"fragment_count"`
	DesyncHTTPS          bool     `mapstructure:"desync_https"`
	DesyncHTTP           bool     `mapstructure:"desync_http"`
	MixHostCase          bool     `mapstructure:"mix_host_case"`
	BlockQUIC            bool     `mapstructure:"block_quic"`
	Whitelist            []string `mapstructure:"whitelist"`
}

// Settings converts the on-disk bypass configuration to bypass.Settings.
func (b BypassConfig) Settings() bypass.Settings {
	return bypass.Settings{
		Method:               bypass.ParseMethod(b.Method),
		FirstSplitOffset:     b.FirstSplitOffset,
		InterFragmentDelayMs: b.InterFragmentDelayMs,
		FragmentCount:        b.FragmentCount,
		DesyncHTTPS:          b.DesyncHTTPS,
		DesyncHTTP:           b.DesyncHTTP,
		MixHostCase:          b.MixHostCase,
		BlockQUIC:            b.BlockQUIC,
	}
}

// NewWhitelist builds a classify.Whitelist from the configured entries.
// Entries that fail to add (too long, list full) are skipped with an
// error appended to the returned slice rather than aborting the load.
func (b BypassConfig) NewWhitelist() (*classify.Whitelist, []error) {
	w := classify.NewWhitelist()
	var errs []error
	for _, entry := range b.Whitelist {
		if err := w.Add(entry); err != nil {
			errs = append(errs, err)
		}
	}
	return w, errs
}

// envPrefix is the environment variable prefix viper matches against
// (e.g. "queue.num" -> DESYNCD_QUEUE_NUM).
const envPrefix = "DESYNCD"

// Load reads the YAML file at path (if non-empty; a missing or unreadable
// file is an error), applies
// DESYNCD_-prefixed environment variable overrides, and unmarshals the
// result into a Config seeded with reference defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("queue.num", 0)
	v.SetDefault("queue.mark", 0x0010DEAD)

	v.SetDefault("control.socket_path", "/var/run/desyncd.sock")
	v.SetDefault("control.pid_file", "/var/run/desyncd.pid")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", true)
	v.SetDefault("log.file_path", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("bypass.method", "SPLIT")
	v.SetDefault("bypass.first_split_offset", 2)
	v.SetDefault("bypass.inter_fragment_delay_ms", 50)
	v.SetDefault("bypass.fragment_count", 4)
	v.SetDefault("bypass.desync_https", true)
	v.SetDefault("bypass.desync_http", true)
	v.SetDefault("bypass.mix_host_case", true)
	v.SetDefault("bypass.block_quic", true)

	v.SetDefault("firewall.binary", "iptables")
}

func validate(cfg Config) error {
	if cfg.Bypass.FragmentCount != 0 && (cfg.Bypass.FragmentCount < fragment.MinFragmentCount || cfg.Bypass.FragmentCount > fragment.MaxFragmentCount) {
		return fmt.Errorf("config: bypass.fragment_count %d out of range [%d,%d]", cfg.Bypass.FragmentCount, fragment.MinFragmentCount, fragment.MaxFragmentCount)
	}
	if len(cfg.Bypass.Whitelist) > classify.MaxWhitelistEntries {
		return fmt.Errorf("config: bypass.whitelist has %d entries, exceeds max %d", len(cfg.Bypass.Whitelist), classify.MaxWhitelistEntries)
	}
	return nil
}
