// Package config provides loading and environment overlay for perq's
// runtime configuration. It exposes a Default() baseline and helpers to
// resolve a data directory, storage backend, fsync policy, and a set of
// named queue shapes (Config.Queues, which cmd/perq does not read).
//
// Example:
//
//	cfg := config.Default()
//	// Optionally load from file and overlay env vars
//	if fileCfg, err := config.Load("/etc/perq.json"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
package config
