// Package server implements the transport surface: the WebSocket control
// channels carrying signaling, control messages and binary audio chunks, and
// the HTTP API for negotiation, monitoring and management.
package server
