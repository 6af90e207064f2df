// Package feed defines the AIS feed message envelope and its decoding.
//
// The upstream feed delivers JSON text frames shaped as a tagged union: a
// MessageType discriminator, vessel MetaData common to every message, and a
// Message object holding exactly one payload keyed by the same discriminator.
// Unknown message types decode into an envelope with no payload so consumers
// can skip them without error.
package feed
