package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	DataDir         string                 `json:"dataDir"`
	Backend         string                 `json:"backend"` // "pebble" or "badger"
	Fsync           string                 `json:"fsync"`   // "always", "interval", "never"
	FsyncIntervalMs int                    `json:"fsyncIntervalMs"`
	Queues          map[string]QueueConfig `json:"queues"`
}

// QueueConfig is the shape of one named queue as written in a config
// file; its fields mirror perq.QueueSpec. cmd/perq does not read
// Config.Queues: queues are created and opened from their names alone.
type QueueConfig struct {
	Width           int    `json:"width"`
	PrefixWidth     int    `json:"prefixWidth"`
	PrefixValue     uint64 `json:"prefixValue"`
	MaxThreadNumber uint64 `json:"maxThreadNumber"`
}

// Default returns built-in defaults: a single 32-bit, unprefixed queue
// named "default" backed by Pebble with interval fsync.
func Default() Config {
	return Config{
		DataDir:         DefaultDataDir(),
		Backend:         "pebble",
		Fsync:           "interval",
		FsyncIntervalMs: 5,
		Queues: map[string]QueueConfig{
			"default": {Width: 32, PrefixWidth: 0, PrefixValue: 0, MaxThreadNumber: 0},
		},
	}
}

// Load reads configuration from a JSON file. If path is empty, returns
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	ext := filepath.Ext(path)
	switch ext {
	case ".yaml", ".yml":
		return Config{}, errors.New("yaml config not supported yet; use JSON for now")
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}
