package processor

import (
	"context"
	"log/slog"
	"sync"
)

// LogProcessor accepts every payload and records it at debug level. It is
// the sink used when no processor endpoint is configured.
type LogProcessor struct {
	logger *slog.Logger

	mu       sync.RWMutex
	payloads uint64
	bytes    uint64
}

// NewLogProcessor creates a log-only media processor.
func NewLogProcessor(logger *slog.Logger) *LogProcessor {
	return &LogProcessor{logger: logger}
}

// Process implements the media processor sink.
func (p *LogProcessor) Process(_ context.Context, streamID string, payload []byte) error {
	p.mu.Lock()
	p.payloads++
	p.bytes += uint64(len(payload))
	p.mu.Unlock()

	p.logger.Debug("Processing flushed audio payload",
		slog.String("webrtc_id", streamID),
		slog.Int("payload_bytes", len(payload)),
	)
	return nil
}

// GetStats returns aggregate counters for monitoring endpoints.
func (p *LogProcessor) GetStats() ClientStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return ClientStats{
		TotalRequests:   p.payloads,
		SuccessRequests: p.payloads,
		SuccessRate:     100,
	}
}
