// Package tracking converts the continuous AIS position stream into discrete
// bridge-crossing events.
//
// This package handles:
// - Maintaining per-vessel state keyed by MMSI
// - Edge-triggered crossing detection against a distance threshold
// - Filtering stationary vessels whose reports jitter across the threshold
// - Per-vessel notification cooldown
// - Periodic eviction of stale vessels and expired cooldown records
//
// The Tracker is the single owner of all tracking state; every entry point
// serializes through its mutex so concurrent feeds cannot race on a vessel.
package tracking
