// Package stream provides the media stream registry and lifecycle handling.
// It manages concurrent streams with uniqueness and capacity enforcement, a
// created/active/inactive/removed state machine, per-stream audio buffers and
// automatic idle eviction based on configurable thresholds.
package stream
