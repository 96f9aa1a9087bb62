// Package signaling implements the offer/answer handshake that negotiates
// and registers media streams. It synthesizes session descriptions for the
// transport layer; real ICE/DTLS negotiation happens outside this service.
package signaling
