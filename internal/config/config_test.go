package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Expected default port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Streams.MaxStreams != 100 {
		t.Errorf("Expected default max_streams 100, got %d", cfg.Streams.MaxStreams)
	}
	if cfg.Audio.FlushThreshold != 10 {
		t.Errorf("Expected default flush_threshold 10, got %d", cfg.Audio.FlushThreshold)
	}
	if cfg.Streams.GetIdleThreshold() != 30*time.Minute {
		t.Errorf("Expected idle threshold 30m, got %v", cfg.Streams.GetIdleThreshold())
	}
	if cfg.Streams.GetCleanupInterval() != time.Minute {
		t.Errorf("Expected cleanup interval 1m, got %v", cfg.Streams.GetCleanupInterval())
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with empty path failed: %v", err)
	}
	if cfg.Server.Port != Default().Server.Port {
		t.Errorf("Expected default port, got %d", cfg.Server.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	content := `
server:
  address: "127.0.0.1"
  port: 9000
streams:
  max_streams: 50
  idle_threshold_minutes: 10
audio:
  flush_threshold: 20
logging:
  level: "debug"
  format: "json"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Address != "127.0.0.1" {
		t.Errorf("Expected address 127.0.0.1, got %s", cfg.Server.Address)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Streams.MaxStreams != 50 {
		t.Errorf("Expected max_streams 50, got %d", cfg.Streams.MaxStreams)
	}
	if cfg.Audio.FlushThreshold != 20 {
		t.Errorf("Expected flush_threshold 20, got %d", cfg.Audio.FlushThreshold)
	}
	// Unspecified sections keep their defaults
	if cfg.Audio.FlushWorkers != 4 {
		t.Errorf("Expected default flush_workers 4, got %d", cfg.Audio.FlushWorkers)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Logging.Level)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOST", "10.0.0.1")
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_STREAMS", "7")
	t.Setenv("AUDIO_BUFFER_SIZE", "25")
	t.Setenv("IDLE_THRESHOLD_MINUTES", "5")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("PROCESSOR_ENDPOINT", "http://processor:9000/ingest")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Address != "10.0.0.1" {
		t.Errorf("HOST override not applied, got %s", cfg.Server.Address)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("PORT override not applied, got %d", cfg.Server.Port)
	}
	if cfg.Streams.MaxStreams != 7 {
		t.Errorf("MAX_STREAMS override not applied, got %d", cfg.Streams.MaxStreams)
	}
	if cfg.Audio.FlushThreshold != 25 {
		t.Errorf("AUDIO_BUFFER_SIZE override not applied, got %d", cfg.Audio.FlushThreshold)
	}
	if cfg.Streams.IdleThresholdMinutes != 5 {
		t.Errorf("IDLE_THRESHOLD_MINUTES override not applied, got %d", cfg.Streams.IdleThresholdMinutes)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("LOG_LEVEL override not applied, got %s", cfg.Logging.Level)
	}
	if cfg.Processor.Endpoint != "http://processor:9000/ingest" {
		t.Errorf("PROCESSOR_ENDPOINT override not applied, got %s", cfg.Processor.Endpoint)
	}
}

func TestEnvOverridesIgnoreMalformedInts(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Malformed PORT should be ignored, got %d", cfg.Server.Port)
	}
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"empty address", func(c *Config) { c.Server.Address = "" }, "address"},
		{"zero max streams", func(c *Config) { c.Streams.MaxStreams = 0 }, "max_streams"},
		{"zero idle threshold", func(c *Config) { c.Streams.IdleThresholdMinutes = 0 }, "idle_threshold_minutes"},
		{"zero cleanup interval", func(c *Config) { c.Streams.CleanupIntervalSeconds = 0 }, "cleanup_interval_seconds"},
		{"zero flush threshold", func(c *Config) { c.Audio.FlushThreshold = 0 }, "flush_threshold"},
		{"cap below threshold", func(c *Config) { c.Audio.MaxBufferedChunks = 5 }, "max_buffered_chunks"},
		{"zero flush workers", func(c *Config) { c.Audio.FlushWorkers = 0 }, "flush_workers"},
		{"zero queue size", func(c *Config) { c.Audio.FlushQueueSize = 0 }, "flush_queue_size"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "format"},
		{"processor zero timeout", func(c *Config) { c.Processor.Endpoint = "http://x"; c.Processor.Timeout = 0 }, "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Expected error mentioning %q, got: %v", tt.wantSub, err)
			}
		})
	}
}

func TestProcessorDisabledSkipsValidation(t *testing.T) {
	cfg := Default()
	cfg.Processor.Endpoint = ""
	cfg.Processor.Timeout = 0
	cfg.Processor.MaxConcurrent = 0

	if err := cfg.Validate(); err != nil {
		t.Errorf("Disabled processor should skip field validation, got %v", err)
	}
}
