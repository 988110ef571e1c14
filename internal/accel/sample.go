// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package accel

import "errors"

// ErrSensorUnavailable is returned by a Source when the transport does not
// respond. It is fatal for the current run.
var ErrSensorUnavailable = errors.New("sensor unavailable")

// Sample represents a single 3-axis accelerometer reading.
type Sample struct {
	TimestampMs int64 `json:"t"`      // monotonic milliseconds, source-defined origin
	WallClockMs int64 `json:"t_wall"` // unix milliseconds

	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Source is anything that can provide samples on demand.
// Read may block on hardware latency.
type Source interface {
	Read() (Sample, error)
}

// MotionDiff returns the absolute value of the mean of the three signed
// axis deltas between prev and cur.
func MotionDiff(prev, cur Sample) float64 {
	d := ((cur.X - prev.X) + (cur.Y - prev.Y) + (cur.Z - prev.Z)) / 3
	if d < 0 {
		return -d
	}
	return d
}
