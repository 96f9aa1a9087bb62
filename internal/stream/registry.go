package stream

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/metrics"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/protocol"
)

// invalidIDSentinel is the literal some clients send when their local stream
// id was never assigned. It is rejected the same way as an empty id.
const invalidIDSentinel = "None"

// RegistryConfig contains configuration for the stream registry
type RegistryConfig struct {
	MaxStreams      int
	IdleThreshold   time.Duration
	CleanupInterval time.Duration
}

// Registry owns the set of live streams and enforces uniqueness and
// capacity. All collection operations are serialized behind a single lock;
// per-stream buffer state is guarded by each stream's own mutex.
type Registry struct {
	streams map[string]*Stream
	mu      sync.RWMutex
	logger  *slog.Logger
	config  RegistryConfig
	metrics *metrics.Metrics

	// Cleanup management
	ctx     context.Context
	cancel  context.CancelFunc
	cleanup chan struct{}
}

// NewRegistry creates a stream registry and starts its idle eviction routine.
func NewRegistry(logger *slog.Logger, config RegistryConfig, m *metrics.Metrics) *Registry {
	ctx, cancel := context.WithCancel(context.Background())

	r := &Registry{
		streams: make(map[string]*Stream),
		logger:  logger,
		config:  config,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
		cleanup: make(chan struct{}),
	}

	go r.startCleanupRoutine()

	return r
}

// Create registers a new stream in state created. It fails with
// ErrInvalidStreamID for empty or sentinel ids, ErrDuplicateStream when the
// id is already present and ErrCapacityExceeded at the configured limit.
func (r *Registry) Create(id string, modality protocol.Modality, mode protocol.Mode) (*Stream, error) {
	if id == "" || id == invalidIDSentinel {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStreamID, id)
	}
	if !modality.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidModality, modality)
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.streams[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateStream, id)
	}

	if len(r.streams) >= r.config.MaxStreams {
		return nil, fmt.Errorf("%w: limit %d", ErrCapacityExceeded, r.config.MaxStreams)
	}

	s := newStream(id, modality, mode)
	r.streams[id] = s

	r.metrics.RecordStreamCreated()
	r.metrics.SetActiveStreams(len(r.streams))

	r.logger.Info("Created stream",
		slog.String("webrtc_id", id),
		slog.String("modality", string(modality)),
		slog.String("mode", string(mode)),
	)

	return s, nil
}

// Get retrieves a stream by id. It never mutates registry state.
func (r *Registry) Get(id string) (*Stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.streams[id]
	return s, exists
}

// Remove deletes a stream, forcing it out of active first. Removal of an
// unknown or already-removed id fails with ErrStreamNotFound.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.streams[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrStreamNotFound, id)
	}

	s.markRemoved()
	delete(r.streams, id)

	r.metrics.RecordStreamDestroyed(time.Since(s.CreatedAt).Seconds())
	r.metrics.SetActiveStreams(len(r.streams))

	r.logger.Info("Removed stream",
		slog.String("webrtc_id", id),
		slog.Duration("lifetime", time.Since(s.CreatedAt)),
		slog.Int("discarded_chunks", s.BufferLen()),
	)

	return nil
}

// Start transitions a stream to active. Unknown ids fail with ErrStreamNotFound.
func (r *Registry) Start(id string) error {
	s, exists := r.Get(id)
	if !exists {
		return fmt.Errorf("%w: %s", ErrStreamNotFound, id)
	}

	if err := s.Start(); err != nil {
		return err
	}

	r.logger.Info("Started stream", slog.String("webrtc_id", id))
	return nil
}

// Stop transitions a stream out of active. Unknown ids fail with ErrStreamNotFound.
func (r *Registry) Stop(id string) error {
	s, exists := r.Get(id)
	if !exists {
		return fmt.Errorf("%w: %s", ErrStreamNotFound, id)
	}

	if err := s.Stop(); err != nil {
		return err
	}

	r.logger.Info("Stopped stream", slog.String("webrtc_id", id))
	return nil
}

// Count returns the number of registered streams.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.streams)
}

// ActiveCount returns the number of streams currently in the active state.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := 0
	for _, s := range r.streams {
		if s.IsActive() {
			active++
		}
	}
	return active
}

// List returns a snapshot of the registered streams, consistent at the
// instant of the call.
func (r *Registry) List() []*Stream {
	r.mu.RLock()
	defer r.mu.RUnlock()

	streams := make([]*Stream, 0, len(r.streams))
	for _, s := range r.streams {
		streams = append(streams, s)
	}

	return streams
}

// All returns a restartable iterator over a snapshot of the registry. Later
// mutations do not affect an iteration already produced.
func (r *Registry) All() iter.Seq[*Stream] {
	snapshot := r.List()
	return func(yield func(*Stream) bool) {
		for _, s := range snapshot {
			if !yield(s) {
				return
			}
		}
	}
}

// Statuses returns status snapshots for every registered stream.
func (r *Registry) Statuses() []protocol.StreamStatus {
	streams := r.List()
	statuses := make([]protocol.StreamStatus, 0, len(streams))
	for _, s := range streams {
		statuses = append(statuses, s.Status())
	}
	return statuses
}

// MaxStreams returns the configured capacity limit.
func (r *Registry) MaxStreams() int {
	return r.config.MaxStreams
}

// Close gracefully stops the registry's background routines.
func (r *Registry) Close() {
	r.cancel()
	<-r.cleanup

	r.logger.Info("Stream registry stopped",
		slog.Int("remaining_streams", r.Count()),
	)
}

// startCleanupRoutine runs in a separate goroutine to evict idle streams
func (r *Registry) startCleanupRoutine() {
	defer close(r.cleanup)

	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	r.logger.Info("Idle eviction routine started",
		slog.Duration("idle_threshold", r.config.IdleThreshold),
		slog.Duration("check_interval", r.config.CleanupInterval),
	)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Info("Idle eviction routine stopping")
			return

		case <-ticker.C:
			r.cleanupIdleStreams()
		}
	}
}

// cleanupIdleStreams removes streams inactive beyond the idle threshold.
// A stream that becomes active between the scan and the removal call may
// still be removed; Remove is the authority and later appends for the dead
// id are logged, not fatal.
func (r *Registry) cleanupIdleStreams() {
	now := time.Now()
	expired := make([]string, 0)

	r.mu.RLock()
	for id, s := range r.streams {
		if now.Sub(s.LastActivity()) > r.config.IdleThreshold {
			expired = append(expired, id)
		}
	}
	r.mu.RUnlock()

	if len(expired) == 0 {
		return
	}

	r.logger.Info("Evicting idle streams",
		slog.Int("expired_count", len(expired)),
	)

	for _, id := range expired {
		if err := r.Remove(id); err != nil {
			continue
		}
		r.metrics.RecordStreamReaped()
	}
}
