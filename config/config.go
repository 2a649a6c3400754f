// Package config loads the optional fleet configuration file that
// cmd/horus-demo and cmd/horus-router read at startup, in front of the
// environment-variable overrides each binary also accepts.
package config

import (
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Fleet is the top-level document at a TOML config path.
type Fleet struct {
	ShmRoot string          `toml:"shm_root"`
	Router  RouterConfig    `toml:"router"`
	Nodes   map[string]Node `toml:"nodes"`
}

// RouterConfig configures the horus-router daemon.
type RouterConfig struct {
	Addr        string `toml:"addr"`
	MetricsAddr string `toml:"metrics_addr"`
}

// Node is a named node's static scheduling configuration, keyed by
// node name in Fleet.Nodes.
type Node struct {
	Enabled  bool          `toml:"enabled"`
	Priority int           `toml:"priority"`
	WCET     time.Duration `toml:"wcet"`
}

// Load parses the fleet config file at path.
func Load(path string) (*Fleet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f Fleet
	if err := toml.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadOptional is Load, except a missing file is not an error: it
// returns a zero-value Fleet so callers can layer env vars and flags
// on top without special-casing "no config file given".
func LoadOptional(path string) (*Fleet, error) {
	if path == "" {
		return &Fleet{}, nil
	}
	f, err := Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Fleet{}, nil
		}
		return nil, err
	}
	return f, nil
}
