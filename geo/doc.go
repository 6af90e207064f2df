// Package geo provides stateless great-circle math used by the crossing
// detector and for human-readable output.
//
// Distances are in nautical miles throughout; bearings are degrees clockwise
// from true north, normalized to [0, 360).
package geo
