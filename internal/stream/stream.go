package stream

import (
	"errors"
	"sync"
	"time"

	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/protocol"
)

// Registry and lifecycle errors. Callers map these to transport-level
// responses; none of them is fatal to a serving loop.
var (
	ErrInvalidStreamID  = errors.New("invalid stream id")
	ErrInvalidModality  = errors.New("invalid modality")
	ErrInvalidMode      = errors.New("invalid mode")
	ErrDuplicateStream  = errors.New("stream already exists")
	ErrCapacityExceeded = errors.New("maximum number of streams reached")
	ErrStreamNotFound   = errors.New("stream not found")
	ErrStreamRemoved    = errors.New("stream removed")
)

// State is the lifecycle state of a stream.
type State int

const (
	StateCreated State = iota
	StateActive
	StateInactive
	StateRemoved
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateInactive:
		return "inactive"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Stream represents a media session under management. Mutable fields are
// guarded by the stream's own mutex so buffer operations on different
// streams never contend with each other.
type Stream struct {
	ID        string
	Modality  protocol.Modality
	Mode      protocol.Mode
	CreatedAt time.Time

	mu            sync.RWMutex
	state         State
	lastActivity  time.Time
	buffer        [][]byte
	bufferBytes   int
	flushInFlight bool
}

func newStream(id string, modality protocol.Modality, mode protocol.Mode) *Stream {
	now := time.Now()
	return &Stream{
		ID:           id,
		Modality:     modality,
		Mode:         mode,
		CreatedAt:    now,
		state:        StateCreated,
		lastActivity: now,
	}
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsActive reports whether the stream is in the active state.
func (s *Stream) IsActive() bool {
	return s.State() == StateActive
}

// LastActivity returns the time of the last state transition or buffered chunk.
func (s *Stream) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// Touch updates the last activity timestamp.
func (s *Stream) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Start transitions created|inactive to active. Starting an already active
// stream is a no-op success; a removed stream cannot be revived.
func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateActive:
		return nil
	case StateRemoved:
		return ErrStreamRemoved
	default:
		s.state = StateActive
		s.lastActivity = time.Now()
		return nil
	}
}

// Stop transitions active to inactive. Stopping a stream that is not active
// is a no-op success, except for removed streams.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateRemoved:
		return ErrStreamRemoved
	case StateActive:
		s.state = StateInactive
	}
	return nil
}

// markRemoved forces the stream out of active and into the terminal state.
func (s *Stream) markRemoved() {
	s.mu.Lock()
	s.state = StateRemoved
	s.mu.Unlock()
}

// AppendChunk appends a chunk to the buffer if the stream is active and
// updates last activity. maxChunks caps the buffer: when exceeded the oldest
// chunk is discarded. It returns the resulting buffer length, whether a chunk
// was discarded, and whether the chunk was accepted at all.
func (s *Stream) AppendChunk(chunk []byte, maxChunks int) (size int, dropped, accepted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return len(s.buffer), false, false
	}

	s.lastActivity = time.Now()
	s.buffer = append(s.buffer, chunk)
	s.bufferBytes += len(chunk)

	if maxChunks > 0 && len(s.buffer) > maxChunks {
		s.bufferBytes -= len(s.buffer[0])
		s.buffer[0] = nil
		s.buffer = s.buffer[1:]
		dropped = true
	}

	return len(s.buffer), dropped, true
}

// BufferLen returns the number of buffered chunks awaiting flush.
func (s *Stream) BufferLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buffer)
}

// TryBeginFlush claims the per-stream flush guard. It returns false if a
// flush is already in flight; the caller that receives true owns the guard
// until FinishFlush.
func (s *Stream) TryBeginFlush() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flushInFlight {
		return false
	}
	s.flushInFlight = true
	return true
}

// TakeBuffer concatenates the buffered chunks in arrival order into one
// payload and clears the buffer atomically. Chunks appended afterwards belong
// to the next flush.
func (s *Stream) TakeBuffer() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buffer) == 0 {
		return nil
	}

	payload := make([]byte, 0, s.bufferBytes)
	for _, chunk := range s.buffer {
		payload = append(payload, chunk...)
	}
	s.buffer = nil
	s.bufferBytes = 0

	return payload
}

// FinishFlush releases the flush guard. It must be called on every path out
// of a flush, including sink failure.
func (s *Stream) FinishFlush() {
	s.mu.Lock()
	s.flushInFlight = false
	s.mu.Unlock()
}

// FlushInFlight reports whether a flush currently owns the guard.
func (s *Stream) FlushInFlight() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flushInFlight
}

// Status returns a point-in-time snapshot of the stream for clients and
// monitoring endpoints.
func (s *Stream) Status() protocol.StreamStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return protocol.StreamStatus{
		WebRTCID:     s.ID,
		Modality:     s.Modality,
		Mode:         s.Mode,
		IsActive:     s.state == StateActive,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.lastActivity,
		BufferSize:   len(s.buffer),
		Processing:   s.flushInFlight,
	}
}
