// Package processor implements the external media processor sink. The HTTP
// client posts flushed audio payloads with retry and rate limiting; the log
// processor is the fallback when no endpoint is configured.
package processor
