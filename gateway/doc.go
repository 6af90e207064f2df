// Package gateway implements the websocket proxy between untrusted
// downstream consumers and the upstream AIS feed.
//
// Each accepted downstream connection gets its own session: admission is
// gated by a per-IP connection cap, the first message must authenticate
// (when a shared secret is configured) and then subscribe within the
// subscription timeout, and every inbound message counts against a rolling
// per-minute rate limit. A validated subscription is whitelisted, augmented
// with the server-held upstream credential, and sent as the first message of
// a dedicated upstream connection; from then on the session relays frames
// verbatim in both directions until either side closes.
package gateway
