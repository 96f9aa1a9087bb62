package audio

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/metrics"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/stream"
)

// Processor is the external sink receiving flushed payloads. Implementations
// must tolerate concurrent calls for different streams.
type Processor interface {
	Process(ctx context.Context, streamID string, payload []byte) error
}

// EngineConfig contains buffering and flush configuration
type EngineConfig struct {
	FlushThreshold    int
	MaxBufferedChunks int
	FlushWorkers      int
	FlushQueueSize    int
}

// Engine accumulates audio chunks per stream and triggers flushes once the
// configured threshold is reached. At most one flush executes per stream at
// any instant; flushes for different streams proceed concurrently.
type Engine struct {
	registry  *stream.Registry
	processor Processor
	logger    *slog.Logger
	config    EngineConfig
	metrics   *metrics.Metrics

	jobs chan *stream.Stream

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a buffer engine and starts its flush workers.
func NewEngine(logger *slog.Logger, config EngineConfig, registry *stream.Registry, processor Processor, m *metrics.Metrics) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		registry:  registry,
		processor: processor,
		logger:    logger,
		config:    config,
		metrics:   m,
		jobs:      make(chan *stream.Stream, config.FlushQueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}

	for i := 0; i < config.FlushWorkers; i++ {
		e.wg.Add(1)
		go e.flushWorker(i)
	}

	return e
}

// Append buffers a chunk for the given stream and updates its activity.
// Chunks for unknown streams are reported with ErrStreamNotFound and cause
// no mutation; the caller decides whether that is worth more than a log
// line. Chunks for streams that are not active are silently dropped.
func (e *Engine) Append(streamID string, chunk []byte) error {
	s, exists := e.registry.Get(streamID)
	if !exists {
		e.metrics.RecordUnknownStreamChunk()
		e.logger.Warn("Received audio chunk for unknown stream",
			slog.String("webrtc_id", streamID),
			slog.Int("chunk_size", len(chunk)),
		)
		return stream.ErrStreamNotFound
	}

	size, dropped, accepted := s.AppendChunk(chunk, e.config.MaxBufferedChunks)
	if !accepted {
		e.logger.Debug("Dropping audio chunk for non-active stream",
			slog.String("webrtc_id", streamID),
			slog.String("state", s.State().String()),
		)
		return nil
	}

	e.metrics.RecordChunkBuffered()

	if dropped {
		e.metrics.RecordChunkDropped()
		e.logger.Warn("Buffer cap reached, discarded oldest chunk",
			slog.String("webrtc_id", streamID),
			slog.Int("max_buffered_chunks", e.config.MaxBufferedChunks),
		)
	}

	if size >= e.config.FlushThreshold {
		e.triggerFlush(s)
	}

	return nil
}

// Flush forces a flush of the stream's buffer if none is in flight. It is
// used by shutdown and management paths; threshold flushes go through the
// same guard.
func (e *Engine) Flush(streamID string) error {
	s, exists := e.registry.Get(streamID)
	if !exists {
		return stream.ErrStreamNotFound
	}

	if s.TryBeginFlush() {
		e.flush(s)
	}
	return nil
}

// triggerFlush claims the stream's flush guard and hands the stream to a
// worker. If the queue is full the guard is released so a later append can
// retrigger; the buffered chunks stay put, nothing is lost.
func (e *Engine) triggerFlush(s *stream.Stream) {
	if !s.TryBeginFlush() {
		return
	}

	select {
	case e.jobs <- s:
	default:
		s.FinishFlush()
		e.logger.Warn("Flush queue full, deferring flush",
			slog.String("webrtc_id", s.ID),
			slog.Int("queue_capacity", cap(e.jobs)),
		)
	}
}

// flushWorker drains the flush queue
func (e *Engine) flushWorker(workerID int) {
	defer e.wg.Done()

	e.logger.Debug("Flush worker started", slog.Int("worker_id", workerID))

	for {
		select {
		case <-e.ctx.Done():
			return
		case s := <-e.jobs:
			e.flush(s)
		}
	}
}

// flush drains the stream's buffer into one payload and hands it to the
// processor. The registry-wide lock is never held here; only the per-stream
// guard, which is released on every path. The payload is copied out before
// the sink call, so a stream removed mid-flush still completes normally.
func (e *Engine) flush(s *stream.Stream) {
	defer s.FinishFlush()

	payload := s.TakeBuffer()
	if len(payload) == 0 {
		return
	}

	start := time.Now()
	err := e.processor.Process(e.ctx, s.ID, payload)
	duration := time.Since(start)

	e.metrics.RecordFlush(duration.Seconds(), len(payload), err != nil)

	if err != nil {
		// Sink failures are absorbed: the buffer was already cleared and
		// the stream keeps accepting chunks.
		e.logger.Error("Media processor rejected flushed payload",
			slog.String("webrtc_id", s.ID),
			slog.Int("payload_bytes", len(payload)),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		return
	}

	e.logger.Debug("Flushed audio buffer",
		slog.String("webrtc_id", s.ID),
		slog.Int("payload_bytes", len(payload)),
		slog.Duration("duration", duration),
	)
}

// Close stops the flush workers. Queued flushes that have not started are
// abandoned; their chunks remain in the stream buffers.
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}
