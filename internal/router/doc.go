// Package router dispatches tagged control-channel messages to the owning
// component and always returns a structured result, including for unknown
// message types.
package router
