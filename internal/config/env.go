package config

import (
	"os"
	"strconv"
)

// FromEnv overlays PERQ_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("PERQ_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("PERQ_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("PERQ_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("PERQ_FSYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FsyncIntervalMs = n
		}
	}
}
