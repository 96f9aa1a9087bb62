// Package audio implements per-stream audio chunk buffering and the flush
// policy that batches buffered chunks into single payloads for the external
// media processor. Flushes run on a bounded worker pool so ingestion rate is
// decoupled from sink latency.
package audio
