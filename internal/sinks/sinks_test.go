// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sinks

import (
	"github.com/relabs-tech/sleep_logger/internal/sleep"
)

// testChunk builds a chunk with n samples whose values are derived from
// the cycle so consecutive chunks are distinguishable.
func testChunk(label string, cycle, n int) *sleep.Chunk {
	c := &sleep.Chunk{RunLabel: label, Cycle: cycle}
	for i := 0; i < n; i++ {
		k := cycle*n + i
		c.TsOffsetMs = append(c.TsOffsetMs, int64(k*10))
		c.TsWallMs = append(c.TsWallMs, int64(1700000000000+k*10))
		c.Raw = append(c.Raw, [3]float64{float64(k), float64(-k), 1000})
		c.Activity = append(c.Activity, float64(k)/1000)
		c.Diff = append(c.Diff, float64(k)*0.5)
		c.Delay = append(c.Delay, 2+float64(i))
		c.State = append(c.State, sleep.State(k%3))
	}
	return c
}
