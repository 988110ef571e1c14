// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sleep

// Chunk is one fixed-length batch of samples and derived values. All slices
// are index-aligned by sample position. A chunk is read-only once handed to
// the dispatcher; every consumer shares the same value.
type Chunk struct {
	RunLabel string `json:"run"`
	Cycle    int    `json:"cycle"`

	TsOffsetMs []int64      `json:"ts"`
	TsWallMs   []int64      `json:"ts_realtime"`
	Raw        [][3]float64 `json:"raw"`
	Activity   []float64    `json:"acts"`
	Diff       []float64    `json:"diffs"`
	Delay      []float64    `json:"delays"`
	State      []State      `json:"states"`
}

func newChunk(n int) *Chunk {
	return &Chunk{
		TsOffsetMs: make([]int64, 0, n),
		TsWallMs:   make([]int64, 0, n),
		Raw:        make([][3]float64, 0, n),
		Activity:   make([]float64, 0, n),
		Diff:       make([]float64, 0, n),
		Delay:      make([]float64, 0, n),
		State:      make([]State, 0, n),
	}
}

// Len returns the number of samples in the chunk.
func (c *Chunk) Len() int { return len(c.TsOffsetMs) }

// Last returns the index of the newest sample, or -1 for an empty chunk.
func (c *Chunk) Last() int { return c.Len() - 1 }
