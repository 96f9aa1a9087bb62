// Package protocol defines the control-channel wire format: tagged JSON
// messages, response envelopes, the offer/answer payloads used for stream
// negotiation and the stream status snapshot returned to clients.
package protocol
