package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Streams   StreamsConfig   `yaml:"streams"`
	Audio     AudioConfig     `yaml:"audio"`
	Processor ProcessorConfig `yaml:"processor"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains HTTP/WebSocket server configuration
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// StreamsConfig contains stream registry and idle eviction parameters
type StreamsConfig struct {
	MaxStreams             int `yaml:"max_streams"`
	IdleThresholdMinutes   int `yaml:"idle_threshold_minutes"`
	CleanupIntervalSeconds int `yaml:"cleanup_interval_seconds"`
}

// AudioConfig contains audio buffering and flush parameters
type AudioConfig struct {
	FlushThreshold    int `yaml:"flush_threshold"`
	MaxBufferedChunks int `yaml:"max_buffered_chunks"`
	FlushWorkers      int `yaml:"flush_workers"`
	FlushQueueSize    int `yaml:"flush_queue_size"`
}

// ProcessorConfig contains the external media processor client configuration.
// An empty endpoint disables the HTTP client and flushed payloads are only logged.
type ProcessorConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address: "0.0.0.0",
			Port:    8000,
		},
		Streams: StreamsConfig{
			MaxStreams:             100,
			IdleThresholdMinutes:   30,
			CleanupIntervalSeconds: 60,
		},
		Audio: AudioConfig{
			FlushThreshold:    10,
			MaxBufferedChunks: 512,
			FlushWorkers:      4,
			FlushQueueSize:    256,
		},
		Processor: ProcessorConfig{
			Timeout:       30,
			MaxRetries:    3,
			MaxConcurrent: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads the configuration file, applies environment overrides and
// validates the result. An empty path loads defaults plus environment
// overrides only.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	config.applyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies the environment variable surface kept compatible
// with earlier deployments of the backend.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Address = v
	}
	if v, ok := envInt("PORT"); ok {
		c.Server.Port = v
	}
	if v, ok := envInt("MAX_STREAMS"); ok {
		c.Streams.MaxStreams = v
	}
	if v, ok := envInt("AUDIO_BUFFER_SIZE"); ok {
		c.Audio.FlushThreshold = v
	}
	if v, ok := envInt("IDLE_THRESHOLD_MINUTES"); ok {
		c.Streams.IdleThresholdMinutes = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PROCESSOR_ENDPOINT"); v != "" {
		c.Processor.Endpoint = v
	}
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Streams.Validate(); err != nil {
		return fmt.Errorf("streams config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Processor.Validate(); err != nil {
		return fmt.Errorf("processor config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	return nil
}

// Validate validates stream registry configuration
func (s *StreamsConfig) Validate() error {
	if s.MaxStreams < 1 {
		return fmt.Errorf("max_streams must be at least 1, got %d", s.MaxStreams)
	}

	if s.IdleThresholdMinutes < 1 {
		return fmt.Errorf("idle_threshold_minutes must be at least 1, got %d", s.IdleThresholdMinutes)
	}

	if s.CleanupIntervalSeconds < 1 {
		return fmt.Errorf("cleanup_interval_seconds must be at least 1, got %d", s.CleanupIntervalSeconds)
	}

	return nil
}

// Validate validates audio buffering configuration
func (a *AudioConfig) Validate() error {
	if a.FlushThreshold < 1 {
		return fmt.Errorf("flush_threshold must be at least 1, got %d", a.FlushThreshold)
	}

	if a.MaxBufferedChunks < a.FlushThreshold {
		return fmt.Errorf("max_buffered_chunks (%d) must be at least flush_threshold (%d)",
			a.MaxBufferedChunks, a.FlushThreshold)
	}

	if a.FlushWorkers < 1 {
		return fmt.Errorf("flush_workers must be at least 1, got %d", a.FlushWorkers)
	}

	if a.FlushQueueSize < 1 {
		return fmt.Errorf("flush_queue_size must be at least 1, got %d", a.FlushQueueSize)
	}

	return nil
}

// Validate validates processor client configuration
func (p *ProcessorConfig) Validate() error {
	if p.Endpoint == "" {
		// Client disabled, remaining fields are unused.
		return nil
	}

	if p.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", p.Timeout)
	}

	if p.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", p.MaxRetries)
	}

	if p.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", p.MaxConcurrent)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetIdleThreshold returns the idle eviction threshold as a time.Duration
func (s *StreamsConfig) GetIdleThreshold() time.Duration {
	return time.Duration(s.IdleThresholdMinutes) * time.Minute
}

// GetCleanupInterval returns the reaper sweep interval as a time.Duration
func (s *StreamsConfig) GetCleanupInterval() time.Duration {
	return time.Duration(s.CleanupIntervalSeconds) * time.Second
}

// GetTimeoutDuration returns the processor request timeout as a time.Duration
func (p *ProcessorConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(p.Timeout) * time.Second
}
