// Package config provides configuration loading and validation for the
// FastRTC audio interface service. It handles YAML-based configuration with
// struct validation and supports environment variable overrides for the
// deployment-facing knobs (MAX_STREAMS, AUDIO_BUFFER_SIZE, ...).
package config
