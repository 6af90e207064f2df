// Package protocol defines the frames exchanged between downstream clients
// and the gateway, and the validation applied to a client subscription before
// it is forwarded upstream.
//
// All frames are JSON text. A downstream session opens with either an
// AuthRequest (when the gateway is configured with a shared secret) or a
// Subscription; everything after a successful subscription is relayed
// verbatim.
package protocol
