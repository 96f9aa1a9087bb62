package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies a control-channel message. The set is closed:
// anything outside it is answered with a structured error, never dropped.
type MessageType string

// Message types routed through the dispatcher.
const (
	TypeSendInput   MessageType = "send_input"
	TypeFetchOutput MessageType = "fetch_output"
	TypeStopword    MessageType = "stopword"
	TypeError       MessageType = "error"
	TypeWarning     MessageType = "warning"
	TypeLog         MessageType = "log"
)

// Channel-level control message types handled by the connection owner.
const (
	TypeStartStreaming MessageType = "start_streaming"
	TypeStopStreaming  MessageType = "stop_streaming"
	TypePing           MessageType = "ping"
)

// Routed reports whether the message type belongs to the dispatcher's
// closed set rather than the channel-level control set.
func (t MessageType) Routed() bool {
	switch t {
	case TypeSendInput, TypeFetchOutput, TypeStopword, TypeError, TypeWarning, TypeLog:
		return true
	}
	return false
}

// Message is an inbound control-channel message.
type Message struct {
	Type     MessageType     `json:"type"`
	WebRTCID string          `json:"webrtc_id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// ParseMessage decodes a text frame into a Message. A missing type tag is a
// protocol error; an unknown tag is not (the dispatcher answers it).
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid message JSON: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("message missing type tag")
	}
	return &msg, nil
}

// DataString decodes the data field as a plain string, falling back to the
// raw JSON text for non-string payloads.
func (m *Message) DataString() string {
	if len(m.Data) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.Data, &s); err == nil {
		return s
	}
	return string(m.Data)
}

// Response statuses returned to control channels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusWarning = "warning"
)

// Response is the structured result returned for every dispatched message.
type Response struct {
	Status  string         `json:"status"`
	Type    MessageType    `json:"type,omitempty"`
	Message string         `json:"message,omitempty"`
	Output  map[string]any `json:"output,omitempty"`
}

// Modality describes the media kind negotiated for a stream.
type Modality string

const (
	ModalityAudio      Modality = "audio"
	ModalityVideo      Modality = "video"
	ModalityAudioVideo Modality = "audio-video"
)

// Valid reports whether the modality is one of the supported values.
func (m Modality) Valid() bool {
	switch m {
	case ModalityAudio, ModalityVideo, ModalityAudioVideo:
		return true
	}
	return false
}

// HasAudio reports whether the modality carries an audio section.
func (m Modality) HasAudio() bool {
	return m == ModalityAudio || m == ModalityAudioVideo
}

// HasVideo reports whether the modality carries a video section.
func (m Modality) HasVideo() bool {
	return m == ModalityVideo || m == ModalityAudioVideo
}

// Mode describes the negotiated transfer direction for a stream.
type Mode string

const (
	ModeSend        Mode = "send"
	ModeReceive     Mode = "receive"
	ModeSendReceive Mode = "send-receive"
)

// Valid reports whether the mode is one of the supported values.
func (m Mode) Valid() bool {
	switch m {
	case ModeSend, ModeReceive, ModeSendReceive:
		return true
	}
	return false
}

// OfferRequest is the offer half of the negotiation handshake.
type OfferRequest struct {
	SDP      string   `json:"sdp"`
	Modality Modality `json:"modality"`
	Mode     Mode     `json:"mode"`
}

// Answer statuses.
const (
	AnswerSuccess = "success"
	AnswerFailed  = "failed"
)

// Answer failure codes carried in AnswerMeta.Error.
const (
	ErrorConcurrencyLimit     = "concurrency_limit_reached"
	ErrorStreamCreationFailed = "stream_creation_failed"
	ErrorInternalServer       = "internal_server_error"
)

// AnswerResponse is the answer half of the negotiation handshake. A failed
// answer is still a well-formed response object, never a transport error.
type AnswerResponse struct {
	Status   string      `json:"status"`
	SDP      string      `json:"sdp,omitempty"`
	WebRTCID string      `json:"webrtc_id,omitempty"`
	Meta     *AnswerMeta `json:"meta,omitempty"`
}

// AnswerMeta carries stream metadata on success, or the failure kind with a
// human-readable message on failure.
type AnswerMeta struct {
	Modality  Modality `json:"modality,omitempty"`
	Mode      Mode     `json:"mode,omitempty"`
	CreatedAt string   `json:"created_at,omitempty"`
	Error     string   `json:"error,omitempty"`
	Limit     int      `json:"limit,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// StreamStatus is the point-in-time snapshot of a stream exposed to clients.
type StreamStatus struct {
	WebRTCID     string    `json:"webrtc_id"`
	Modality     Modality  `json:"modality"`
	Mode         Mode      `json:"mode"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	BufferSize   int       `json:"buffer_size"`
	Processing   bool      `json:"processing"`
}
