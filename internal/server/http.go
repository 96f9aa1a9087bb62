package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/config"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/metrics"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/processor"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/protocol"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/signaling"
	"github.com/Afrin-Sultana-Poushi/fastrtc-audio-interface/internal/stream"
)

const (
	serviceName    = "fastrtc-audio-interface"
	serviceVersion = "1.0.0"
)

// ProcessorStats exposes sink statistics for monitoring endpoints.
type ProcessorStats interface {
	GetStats() processor.ClientStats
}

// HTTPServer provides the negotiation endpoint, the WebSocket mount and the
// monitoring/management API.
type HTTPServer struct {
	server      *http.Server
	logger      *slog.Logger
	registry    *stream.Registry
	coordinator *signaling.Coordinator
	hub         *Hub
	metrics     *metrics.Metrics
	procStats   ProcessorStats

	startTime time.Time
}

// NewHTTPServer creates the HTTP server with all routes configured.
func NewHTTPServer(cfg config.ServerConfig, logger *slog.Logger, registry *stream.Registry,
	coordinator *signaling.Coordinator, hub *Hub, m *metrics.Metrics,
	gatherer prometheus.Gatherer, procStats ProcessorStats) *HTTPServer {

	h := &HTTPServer{
		logger:      logger,
		registry:    registry,
		coordinator: coordinator,
		hub:         hub,
		metrics:     m,
		procStats:   procStats,
		startTime:   time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux, gatherer)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      withCORS(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux, gatherer prometheus.Gatherer) {
	// Negotiation endpoint
	mux.HandleFunc("/webrtc/offer", h.withMetrics("/webrtc/offer", h.handleOffer))

	// WebSocket control channels (no metrics wrapper: the hub tracks its own)
	mux.Handle("/ws/audio/", h.hub)

	// Monitoring and management endpoints
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))
	mux.HandleFunc("/streams", h.withMetrics("/streams", h.handleStreams))
	mux.HandleFunc("/streams/", h.withMetrics("/streams/{id}", h.handleStreamDetail))

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Root endpoint with service info
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withCORS mirrors the permissive CORS policy of the development frontend.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP server...")

	h.hub.Close()
	return h.server.Shutdown(ctx)
}

// handleOffer implements POST /webrtc/offer. Expected negotiation failures
// still produce a 200 with a structured failed answer; only transport-level
// problems map to HTTP error codes.
func (h *HTTPServer) handleOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var offer protocol.OfferRequest
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.AnswerResponse{
			Status: protocol.AnswerFailed,
			Meta: &protocol.AnswerMeta{
				Error:   protocol.ErrorStreamCreationFailed,
				Message: "invalid offer payload",
			},
		})
		return
	}

	answer := h.coordinator.CreateAnswer(offer)

	if answer.Status == protocol.AnswerSuccess {
		h.logger.Info("WebRTC offer accepted",
			slog.String("webrtc_id", answer.WebRTCID),
		)
	}

	writeJSON(w, http.StatusOK, answer)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]any{
			"name":    serviceName,
			"version": serviceVersion,
		},
		"components": map[string]any{
			"control_channels": map[string]any{
				"status":      "running",
				"connections": h.hub.Count(),
			},
			"stream_registry": map[string]any{
				"status":         "running",
				"total_streams":  h.registry.Count(),
				"active_streams": h.registry.ActiveCount(),
				"max_streams":    h.registry.MaxStreams(),
			},
			"media_processor": map[string]any{
				"status": "running",
				"stats":  h.procStats.GetStats(),
			},
		},
	}

	writeJSON(w, http.StatusOK, health)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := map[string]any{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"websocket_connections": map[string]any{
			"total_connections": h.hub.Count(),
			"connections":       h.hub.Infos(),
		},
		"streams": map[string]any{
			"total_streams":  h.registry.Count(),
			"active_streams": h.registry.ActiveCount(),
			"max_streams":    h.registry.MaxStreams(),
		},
		"media_processor": h.procStats.GetStats(),
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleStreams implements GET /streams
func (h *HTTPServer) handleStreams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	statuses := h.registry.Statuses()

	writeJSON(w, http.StatusOK, map[string]any{
		"total_streams":  len(statuses),
		"active_streams": h.registry.ActiveCount(),
		"max_streams":    h.registry.MaxStreams(),
		"timestamp":      time.Now().UTC(),
		"streams":        statuses,
	})
}

// handleStreamDetail implements GET and DELETE on /streams/{webrtc_id}
func (h *HTTPServer) handleStreamDetail(w http.ResponseWriter, r *http.Request) {
	webrtcID := r.URL.Path[len("/streams/"):]
	if webrtcID == "" {
		http.Error(w, "Stream ID required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s, exists := h.registry.Get(webrtcID)
		if !exists {
			http.Error(w, "Stream not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, s.Status())

	case http.MethodDelete:
		if err := h.registry.Remove(webrtcID); err != nil {
			http.Error(w, fmt.Sprintf("Stream %s not found", webrtcID), http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "success",
			"message": fmt.Sprintf("Stream %s removed", webrtcID),
		})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRoot implements the / endpoint with service info
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service":     serviceName,
		"version":     serviceVersion,
		"status":      "running",
		"connections": h.hub.Count(),
		"streams": map[string]any{
			"total_streams":  h.registry.Count(),
			"active_streams": h.registry.ActiveCount(),
			"max_streams":    h.registry.MaxStreams(),
		},
		"endpoints": map[string]any{
			"POST /webrtc/offer":          "Negotiate a new media stream",
			"GET /ws/audio/{client_id}":   "WebSocket control channel",
			"GET /health":                 "Service health check",
			"GET /stats":                  "Service statistics",
			"GET /streams":                "List all registered streams",
			"GET /streams/{webrtc_id}":    "Get stream status snapshot",
			"DELETE /streams/{webrtc_id}": "Remove a stream",
			"GET /metrics":                "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
