package main

import (
	"encoding/hex"
	"fmt"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultLogLevel    = "info"
	defaultLogFilename = "cnwalletd.log"
	defaultMetricsAddr = "127.0.0.1:9736"
	defaultMaxLogRolls = 3
)

// config is the daemon's command-line and ini-file configuration, parsed
// with jessevdk/go-flags exactly as the teacher's cmd/dcrlncli does.
type config struct {
	ViewSecretKey string   `long:"viewsecretkey" description:"hex-encoded account view secret key shared by every watched spend key" required:"true"`
	SpendKeys     []string `long:"spendkey" description:"hex-encoded watched spend public key (may be given multiple times)"`

	LogDir      string `long:"logdir" description:"directory to log to" default:"./log"`
	LogLevel    string `long:"loglevel" description:"logging level for all subsystems {trace, debug, info, warn, error, critical}" default:"info"`
	MetricsAddr string `long:"metricsaddr" description:"listen address for the Prometheus /metrics endpoint" default:"127.0.0.1:9736"`

	viewSecretBytes [32]byte
	spendKeyBytes   [][32]byte
}

// loadConfig parses os.Args via go-flags and validates the hex-encoded key
// material.
func loadConfig() (*config, error) {
	cfg := config{
		LogDir:      "./log",
		LogLevel:    defaultLogLevel,
		MetricsAddr: defaultMetricsAddr,
	}

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}

	if err := cfg.parseKeys(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (cfg *config) parseKeys() error {
	viewBytes, err := decodeKey(cfg.ViewSecretKey)
	if err != nil {
		return fmt.Errorf("invalid --viewsecretkey: %w", err)
	}
	cfg.viewSecretBytes = viewBytes

	cfg.spendKeyBytes = make([][32]byte, 0, len(cfg.SpendKeys))
	for _, s := range cfg.SpendKeys {
		k, err := decodeKey(s)
		if err != nil {
			return fmt.Errorf("invalid --spendkey %q: %w", s, err)
		}
		cfg.spendKeyBytes = append(cfg.spendKeyBytes, k)
	}

	return nil
}

func decodeKey(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

func (cfg *config) logFilePath() string {
	return filepath.Join(cfg.LogDir, defaultLogFilename)
}
