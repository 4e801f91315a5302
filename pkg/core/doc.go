// Package core holds the value types shared across the editor: field positions and poses,
// tagged waypoints and their positional IDs, the split trajectory sent to the solver and
// the polyline it returns, plus the session and generation records handed to journal sinks.
//
// All lengths are meters and all angles radians.
package core
