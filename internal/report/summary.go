// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package report turns a recorded run into a plot and summary statistics.
package report

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/sleep_logger/internal/sleep"
)

// MarkerThreshold is the diff above which a sample is marked as movement in
// plots and counted as a spike in summaries.
const MarkerThreshold = 17.0

// RunSummary holds the statistics logged when a run is finalized.
type RunSummary struct {
	Label        string                        `json:"label"`
	Samples      int                           `json:"samples"`
	Duration     time.Duration                 `json:"duration"`
	MeanActivity float64                       `json:"mean_activity"`
	StdActivity  float64                       `json:"std_activity"`
	MaxDiff      float64                       `json:"max_diff"`
	Spikes       int                           `json:"spikes"`
	TimeInState  map[sleep.State]time.Duration `json:"time_in_state"`
}

// Summarize computes run statistics. The interval between two samples is
// attributed to the state of the later one.
func Summarize(c *sleep.Chunk, spikeThreshold float64) RunSummary {
	s := RunSummary{
		Label:       c.RunLabel,
		Samples:     c.Len(),
		TimeInState: make(map[sleep.State]time.Duration),
	}
	if c.Len() == 0 {
		return s
	}
	s.Duration = time.Duration(c.TsOffsetMs[c.Last()]-c.TsOffsetMs[0]) * time.Millisecond
	s.MeanActivity, s.StdActivity = stat.MeanStdDev(c.Activity, nil)
	if c.Len() == 1 {
		s.StdActivity = 0
	}
	s.MaxDiff = floats.Max(c.Diff)
	for _, d := range c.Diff {
		if d > spikeThreshold {
			s.Spikes++
		}
	}
	for i := 1; i < c.Len(); i++ {
		dt := time.Duration(c.TsOffsetMs[i]-c.TsOffsetMs[i-1]) * time.Millisecond
		s.TimeInState[c.State[i]] += dt
	}
	return s
}
