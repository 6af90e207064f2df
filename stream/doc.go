// Package stream provides the resilient websocket client used by every
// downstream consumer of the gateway.
//
// The client runs as a single goroutine owning an explicit state machine:
// DISCONNECTED → CONNECTING → [AUTHENTICATING] → CONNECTED, back to
// DISCONNECTED on close or error, then CONNECTING again after an exponential
// backoff (doubling per consecutive failure up to a ceiling, reset on a
// successful open). Subscription semantics survive reconnects because the
// connect→authenticate→subscribe handshake replays on every new socket.
package stream
