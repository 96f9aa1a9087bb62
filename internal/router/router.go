package router

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/metrics"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/protocol"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/stream"
)

// InputHandler receives the payload of send_input messages for a known
// stream. Input semantics live with the application, not this core.
type InputHandler func(streamID string, data json.RawMessage)

// Router inspects the type tag of inbound messages and routes them to the
// matching operation. Dispatch never panics on unknown tags.
type Router struct {
	registry     *stream.Registry
	logger       *slog.Logger
	metrics      *metrics.Metrics
	inputHandler InputHandler

	handlers map[protocol.MessageType]func(*protocol.Message) *protocol.Response
}

// NewRouter creates a message router over the given registry. inputHandler
// may be nil; send_input payloads are then acknowledged and dropped.
func NewRouter(logger *slog.Logger, registry *stream.Registry, m *metrics.Metrics, inputHandler InputHandler) *Router {
	r := &Router{
		registry:     registry,
		logger:       logger,
		metrics:      m,
		inputHandler: inputHandler,
	}

	r.handlers = map[protocol.MessageType]func(*protocol.Message) *protocol.Response{
		protocol.TypeSendInput:   r.handleSendInput,
		protocol.TypeFetchOutput: r.handleFetchOutput,
		protocol.TypeStopword:    r.handleStopword,
		protocol.TypeError:       r.handleError,
		protocol.TypeWarning:     r.handleWarning,
		protocol.TypeLog:         r.handleLog,
	}

	return r
}

// Dispatch routes a message by its type tag and returns the structured
// result. Unknown tags produce a status=error response, never a failure.
func (r *Router) Dispatch(msg *protocol.Message) *protocol.Response {
	handler, known := r.handlers[msg.Type]
	if !known {
		resp := &protocol.Response{
			Status:  protocol.StatusError,
			Message: fmt.Sprintf("Unknown message type: %s", msg.Type),
		}
		r.metrics.RecordMessageDispatched(string(msg.Type), resp.Status)
		return resp
	}

	resp := handler(msg)
	r.metrics.RecordMessageDispatched(string(msg.Type), resp.Status)
	return resp
}

func (r *Router) handleSendInput(msg *protocol.Message) *protocol.Response {
	if msg.WebRTCID == "" {
		return &protocol.Response{Status: protocol.StatusError, Message: "webrtc_id required"}
	}

	if _, exists := r.registry.Get(msg.WebRTCID); !exists {
		return &protocol.Response{Status: protocol.StatusError, Message: "Stream not found"}
	}

	if r.inputHandler != nil {
		r.inputHandler(msg.WebRTCID, msg.Data)
	}

	r.logger.Info("Received input data for stream",
		slog.String("webrtc_id", msg.WebRTCID),
	)

	return &protocol.Response{Status: protocol.StatusSuccess, Message: "Input processed"}
}

func (r *Router) handleFetchOutput(msg *protocol.Message) *protocol.Response {
	if msg.WebRTCID == "" {
		return &protocol.Response{Status: protocol.StatusError, Message: "webrtc_id required"}
	}

	s, exists := r.registry.Get(msg.WebRTCID)
	if !exists {
		return &protocol.Response{Status: protocol.StatusError, Message: "Stream not found"}
	}

	return &protocol.Response{
		Status: protocol.StatusSuccess,
		Output: map[string]any{
			"stream_id": msg.WebRTCID,
			"status":    s.Status(),
		},
	}
}

func (r *Router) handleStopword(msg *protocol.Message) *protocol.Response {
	r.logger.Info("Stopword detected for stream",
		slog.String("webrtc_id", msg.WebRTCID),
	)
	return &protocol.Response{Status: protocol.StatusSuccess, Message: "Stopword detected"}
}

func (r *Router) handleError(msg *protocol.Message) *protocol.Response {
	text := msg.DataString()
	if text == "" {
		text = "Unknown error"
	}
	r.logger.Error("Client reported error", slog.String("message", text))
	return &protocol.Response{Status: protocol.StatusError, Message: text}
}

func (r *Router) handleWarning(msg *protocol.Message) *protocol.Response {
	text := msg.DataString()
	if text == "" {
		text = "Unknown warning"
	}
	r.logger.Warn("Client reported warning", slog.String("message", text))
	return &protocol.Response{Status: protocol.StatusWarning, Message: text}
}

func (r *Router) handleLog(msg *protocol.Message) *protocol.Response {
	r.logger.Info("Client log", slog.String("message", msg.DataString()))
	return &protocol.Response{Status: protocol.StatusSuccess, Message: "Log recorded"}
}
