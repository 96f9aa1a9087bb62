package router

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/metrics"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/protocol"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/stream"
)

func newTestRouter(t *testing.T, inputHandler InputHandler) (*Router, *stream.Registry) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := stream.NewRegistry(logger, stream.RegistryConfig{
		MaxStreams:      100,
		IdleThreshold:   30 * time.Minute,
		CleanupInterval: time.Minute,
	}, metrics.New(prometheus.NewRegistry()))
	t.Cleanup(registry.Close)

	return NewRouter(logger, registry, metrics.New(prometheus.NewRegistry()), inputHandler), registry
}

func TestDispatchUnknownType(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	resp := r.Dispatch(&protocol.Message{Type: "telepathy"})
	require.NotNil(t, resp)
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, "Unknown message type: telepathy", resp.Message)
}

func TestDispatchSendInput(t *testing.T) {
	var mu sync.Mutex
	var gotStream string
	var gotData json.RawMessage

	r, registry := newTestRouter(t, func(streamID string, data json.RawMessage) {
		mu.Lock()
		defer mu.Unlock()
		gotStream = streamID
		gotData = data
	})

	_, err := registry.Create("s1", protocol.ModalityAudio, protocol.ModeSendReceive)
	require.NoError(t, err)

	resp := r.Dispatch(&protocol.Message{
		Type:     protocol.TypeSendInput,
		WebRTCID: "s1",
		Data:     json.RawMessage(`{"text":"hello"}`),
	})
	require.Equal(t, protocol.StatusSuccess, resp.Status)
	assert.Equal(t, "Input processed", resp.Message)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "s1", gotStream)
	assert.JSONEq(t, `{"text":"hello"}`, string(gotData))
}

func TestDispatchSendInputErrors(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	resp := r.Dispatch(&protocol.Message{Type: protocol.TypeSendInput})
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, "webrtc_id required", resp.Message)

	resp = r.Dispatch(&protocol.Message{Type: protocol.TypeSendInput, WebRTCID: "ghost"})
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, "Stream not found", resp.Message)
}

func TestDispatchFetchOutput(t *testing.T) {
	r, registry := newTestRouter(t, nil)

	s, err := registry.Create("s1", protocol.ModalityAudio, protocol.ModeSendReceive)
	require.NoError(t, err)
	require.NoError(t, s.Start())

	resp := r.Dispatch(&protocol.Message{Type: protocol.TypeFetchOutput, WebRTCID: "s1"})
	require.Equal(t, protocol.StatusSuccess, resp.Status)
	require.NotNil(t, resp.Output)
	assert.Equal(t, "s1", resp.Output["stream_id"])

	status, ok := resp.Output["status"].(protocol.StreamStatus)
	require.True(t, ok)
	assert.True(t, status.IsActive)

	resp = r.Dispatch(&protocol.Message{Type: protocol.TypeFetchOutput, WebRTCID: "ghost"})
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, "Stream not found", resp.Message)
}

func TestDispatchStopword(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	resp := r.Dispatch(&protocol.Message{Type: protocol.TypeStopword, WebRTCID: "s1"})
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	assert.Equal(t, "Stopword detected", resp.Message)
}

func TestDispatchErrorAndWarning(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	resp := r.Dispatch(&protocol.Message{
		Type: protocol.TypeError,
		Data: json.RawMessage(`"microphone denied"`),
	})
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, "microphone denied", resp.Message)

	resp = r.Dispatch(&protocol.Message{Type: protocol.TypeError})
	assert.Equal(t, "Unknown error", resp.Message)

	resp = r.Dispatch(&protocol.Message{
		Type: protocol.TypeWarning,
		Data: json.RawMessage(`"codec mismatch"`),
	})
	assert.Equal(t, protocol.StatusWarning, resp.Status)
	assert.Equal(t, "codec mismatch", resp.Message)

	resp = r.Dispatch(&protocol.Message{Type: protocol.TypeWarning})
	assert.Equal(t, "Unknown warning", resp.Message)
}

func TestDispatchLog(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	resp := r.Dispatch(&protocol.Message{
		Type: protocol.TypeLog,
		Data: json.RawMessage(`"client started"`),
	})
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	assert.Equal(t, "Log recorded", resp.Message)
}
