package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Backend != "pebble" {
		t.Fatalf("default backend should be pebble")
	}
	if _, ok := cfg.Queues["default"]; !ok {
		t.Fatalf("default queue should exist")
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "perq.json")
	data := []byte(`{"backend":"badger","fsync":"always","queues":{"orders":{"width":64,"prefixWidth":8,"prefixValue":3,"maxThreadNumber":1000}}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != "badger" {
		t.Fatalf("expected badger, got %s", cfg.Backend)
	}
	q, ok := cfg.Queues["orders"]
	if !ok {
		t.Fatalf("expected orders queue")
	}
	if q.Width != 64 || q.PrefixWidth != 8 || q.PrefixValue != 3 {
		t.Fatalf("unexpected queue config: %+v", q)
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	os.Setenv("PERQ_BACKEND", "badger")
	os.Setenv("PERQ_FSYNC", "always")
	t.Cleanup(func() {
		os.Unsetenv("PERQ_BACKEND")
		os.Unsetenv("PERQ_FSYNC")
	})
	FromEnv(&cfg)
	if cfg.Backend != "badger" {
		t.Fatalf("env override backend")
	}
	if cfg.Fsync != "always" {
		t.Fatalf("env override fsync")
	}
}
