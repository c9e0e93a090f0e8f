// Package config loads the board and kernel configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/practos/practos/internal/cli"
	kerrors "github.com/practos/practos/internal/errors"
)

// Clock sources.
const (
	ClockHost   = "host"
	ClockManual = "manual"
)

// Config is the JSON configuration of a practos machine.
type Config struct {
	QuantumMicros uint32 `json:"quantum_us"`
	UARTBuffer    int    `json:"uart_buffer"`
	LogLevel      string `json:"log_level"`
	ABI           string `json:"abi"`
	IRQRegDump    bool   `json:"irq_regdump"`
	FaultKeys     bool   `json:"fault_keys"`
	GDBAddr       string `json:"gdb_addr"`
	StatusAddr    string `json:"status_addr"`
	StatusCert    string `json:"status_cert,omitempty"`
	StatusKey     string `json:"status_key,omitempty"`
	Console       string `json:"console"`
	TracePNG      string `json:"trace_png"`
	Clock         string `json:"clock"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		QuantumMicros: 20000,
		UARTBuffer:    64,
		LogLevel:      "info",
		ABI:           ">=1.0.0, <2.0.0",
		Clock:         ClockHost,
	}
}

// Quantum returns the scheduling quantum as a duration.
func (c *Config) Quantum() time.Duration {
	return time.Duration(c.QuantumMicros) * time.Microsecond
}

// Level returns the parsed log level.
func (c *Config) Level() cli.Level {
	l, err := cli.ParseLevel(c.LogLevel)
	if err != nil {
		return cli.LevelInfo
	}
	return l
}

// Validate checks every field and the ABI constraint against this kernel.
func (c *Config) Validate() error {
	if c.QuantumMicros == 0 {
		return kerrors.InvalidConfig("quantum_us", fmt.Errorf("must be positive"))
	}
	if c.UARTBuffer <= 0 || c.UARTBuffer > 4096 {
		return kerrors.InvalidConfig("uart_buffer", fmt.Errorf("%d out of range 1..4096", c.UARTBuffer))
	}
	if _, err := cli.ParseLevel(c.LogLevel); err != nil {
		return kerrors.InvalidConfig("log_level", err)
	}
	if c.ABI != "" {
		if _, err := semver.NewConstraint(c.ABI); err != nil {
			return kerrors.InvalidConfig("abi", err)
		}
		if err := cli.CheckABI(c.ABI); err != nil {
			return kerrors.InvalidConfig("abi", err)
		}
	}
	if (c.StatusCert == "") != (c.StatusKey == "") {
		return kerrors.InvalidConfig("status_cert", fmt.Errorf("status_cert and status_key go together"))
	}
	switch c.Clock {
	case ClockHost, ClockManual:
	default:
		return kerrors.InvalidConfig("clock", fmt.Errorf("unknown clock %q", c.Clock))
	}
	return nil
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
