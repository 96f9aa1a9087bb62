package server

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/audio"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/metrics"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/protocol"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/router"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/stream"
)

const wsMaxMessageSize = 1 << 20 // 1MB

// Hub owns the connected control channels. Channel lifetime is independent
// of stream lifetime: a closed channel leaves its streams registered and the
// idle reaper is the sole cleanup path for them.
type Hub struct {
	logger   *slog.Logger
	registry *stream.Registry
	engine   *audio.Engine
	router   *router.Router
	metrics  *metrics.Metrics

	upgrader websocket.Upgrader

	clients map[string]*Client
	mu      sync.RWMutex
}

// Client is one connected control channel.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	clientID string

	connectedAt time.Time

	mu               sync.Mutex // guards writes and the mutable metadata below
	lastActivity     time.Time
	streamingEnabled bool
	boundStream      string
}

// ClientInfo is the monitoring snapshot of a connected channel.
type ClientInfo struct {
	ClientID       string    `json:"client_id"`
	ConnectedAt    time.Time `json:"connected_at"`
	LastActivity   time.Time `json:"last_activity"`
	AudioStreaming bool      `json:"audio_streaming"`
}

// NewHub creates the control channel hub.
func NewHub(logger *slog.Logger, registry *stream.Registry, engine *audio.Engine, r *router.Router, m *metrics.Metrics) *Hub {
	return &Hub{
		logger:   logger,
		registry: registry,
		engine:   engine,
		router:   r,
		metrics:  m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[string]*Client),
	}
}

// ServeHTTP upgrades /ws/audio/{client_id} requests and runs the channel's
// read loop until the connection drops.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimPrefix(r.URL.Path, "/ws/audio/")
	if clientID == "" || strings.Contains(clientID, "/") {
		http.Error(w, "Client ID required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed",
			slog.String("client_id", clientID),
			slog.String("error", err.Error()),
		)
		return
	}

	conn.SetReadLimit(wsMaxMessageSize)

	now := time.Now()
	client := &Client{
		hub:          h,
		conn:         conn,
		clientID:     clientID,
		connectedAt:  now,
		lastActivity: now,
	}

	h.register(client)
	defer h.unregister(client)

	client.readLoop()
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	if old, exists := h.clients[client.clientID]; exists {
		// A reconnect with the same id supersedes the stale channel.
		old.conn.Close()
	}
	h.clients[client.clientID] = client
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetConnections(count)
	h.logger.Info("Client connected", slog.String("client_id", client.clientID))
}

func (h *Hub) unregister(client *Client) {
	client.conn.Close()

	h.mu.Lock()
	if current, exists := h.clients[client.clientID]; exists && current == client {
		delete(h.clients, client.clientID)
	}
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetConnections(count)
	h.logger.Info("Client disconnected", slog.String("client_id", client.clientID))
}

// Count returns the number of connected control channels.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Infos returns monitoring snapshots for all connected channels.
func (h *Hub) Infos() []ClientInfo {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	infos := make([]ClientInfo, 0, len(clients))
	for _, c := range clients {
		infos = append(infos, c.info())
	}
	return infos
}

// Close drops every connected channel.
func (h *Hub) Close() {
	h.mu.Lock()
	for _, c := range h.clients {
		c.conn.Close()
	}
	h.mu.Unlock()
}

func (c *Client) info() ClientInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	return ClientInfo{
		ClientID:       c.clientID,
		ConnectedAt:    c.connectedAt,
		LastActivity:   c.lastActivity,
		AudioStreaming: c.streamingEnabled,
	}
}

// readLoop processes inbound frames until the connection fails. I/O errors
// terminate only this channel; registry state is untouched.
func (c *Client) readLoop() {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.Warn("WebSocket read error",
					slog.String("client_id", c.clientID),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		c.touch()

		switch messageType {
		case websocket.TextMessage:
			c.handleTextFrame(data)
		case websocket.BinaryMessage:
			c.handleBinaryFrame(data)
		}
	}
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// handleTextFrame parses a control frame and routes it: dispatcher-tagged
// messages go through the router, channel-level control is handled here.
func (c *Client) handleTextFrame(data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		c.hub.logger.Warn("Invalid control message",
			slog.String("client_id", c.clientID),
			slog.String("error", err.Error()),
		)
		return
	}

	if msg.Type.Routed() {
		resp := c.hub.router.Dispatch(msg)
		c.writeJSON(resp)
		return
	}

	c.handleControlMessage(msg)
}

func (c *Client) handleControlMessage(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeStartStreaming:
		c.setStreaming(true, msg.WebRTCID)

		if msg.WebRTCID != "" {
			if err := c.hub.registry.Start(msg.WebRTCID); err != nil {
				c.hub.logger.Warn("Failed to start stream for channel",
					slog.String("client_id", c.clientID),
					slog.String("webrtc_id", msg.WebRTCID),
					slog.String("error", err.Error()),
				)
			}
		}

		c.writeJSON(map[string]any{
			"type":      "streaming_started",
			"client_id": c.clientID,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})

	case protocol.TypeStopStreaming:
		streamID := msg.WebRTCID
		if streamID == "" {
			streamID = c.bound()
		}
		c.setStreaming(false, "")

		if streamID != "" {
			if err := c.hub.registry.Stop(streamID); err != nil {
				c.hub.logger.Warn("Failed to stop stream for channel",
					slog.String("client_id", c.clientID),
					slog.String("webrtc_id", streamID),
					slog.String("error", err.Error()),
				)
			}
		}

		c.writeJSON(map[string]any{
			"type":      "streaming_stopped",
			"client_id": c.clientID,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})

	case protocol.TypePing:
		c.writeJSON(map[string]any{
			"type":      "pong",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})

	default:
		c.hub.logger.Warn("Unknown control message type",
			slog.String("client_id", c.clientID),
			slog.String("type", string(msg.Type)),
		)
	}
}

// handleBinaryFrame feeds an audio chunk to the buffer engine, keyed by the
// stream the channel bound via start_streaming.
func (c *Client) handleBinaryFrame(data []byte) {
	streamID := c.bound()
	if streamID == "" {
		c.hub.logger.Debug("Binary frame on channel with no bound stream",
			slog.String("client_id", c.clientID),
			slog.Int("chunk_size", len(data)),
		)
		return
	}

	if err := c.hub.engine.Append(streamID, data); err != nil {
		c.hub.logger.Debug("Audio chunk not buffered",
			slog.String("client_id", c.clientID),
			slog.String("webrtc_id", streamID),
			slog.String("error", err.Error()),
		)
	}
}

func (c *Client) setStreaming(enabled bool, boundStream string) {
	c.mu.Lock()
	c.streamingEnabled = enabled
	if enabled {
		if boundStream != "" {
			c.boundStream = boundStream
		}
	} else {
		c.boundStream = ""
	}
	c.mu.Unlock()
}

func (c *Client) bound() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.boundStream
}

func (c *Client) writeJSON(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.WriteJSON(v); err != nil {
		c.hub.logger.Debug("WebSocket write failed",
			slog.String("client_id", c.clientID),
			slog.String("error", err.Error()),
		)
	}
}
