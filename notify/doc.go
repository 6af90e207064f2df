// Package notify formats crossing events into human-readable push messages
// and submits them to an ntfy-compatible HTTP sink.
//
// Delivery is at-most-once and best-effort: a failed POST is logged and
// returned as an error, never retried. The tracker's cooldown already
// prevents a second attempt for the same passage.
package notify
