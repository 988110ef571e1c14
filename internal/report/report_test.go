// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/sleep_logger/internal/sleep"
)

func sampleRun(label string) *sleep.Chunk {
	c := &sleep.Chunk{RunLabel: label}
	wall := time.Date(2026, 10, 17, 23, 0, 0, 0, time.UTC).UnixMilli()
	states := []sleep.State{sleep.Wake, sleep.Wake, sleep.Light, sleep.Deep, sleep.Deep}
	diffs := []float64{0, 20, 3, 0.5, 18}
	acts := []float64{0.8, 0.9, 0.5, 0.005, 0.3}
	for i := range states {
		c.TsOffsetMs = append(c.TsOffsetMs, int64(i)*1000)
		c.TsWallMs = append(c.TsWallMs, wall+int64(i)*1000)
		c.Raw = append(c.Raw, [3]float64{0, 0, 1024})
		c.Activity = append(c.Activity, acts[i])
		c.Diff = append(c.Diff, diffs[i])
		c.Delay = append(c.Delay, 2)
		c.State = append(c.State, states[i])
	}
	return c
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleRun("r"), MarkerThreshold)
	assert.Equal(t, "r", s.Label)
	assert.Equal(t, 5, s.Samples)
	assert.Equal(t, 4*time.Second, s.Duration)
	assert.InDelta(t, 0.501, s.MeanActivity, 1e-9)
	assert.Equal(t, 20.0, s.MaxDiff)
	assert.Equal(t, 2, s.Spikes)
	assert.Equal(t, time.Second, s.TimeInState[sleep.Wake])
	assert.Equal(t, time.Second, s.TimeInState[sleep.Light])
	assert.Equal(t, 2*time.Second, s.TimeInState[sleep.Deep])

	empty := Summarize(&sleep.Chunk{RunLabel: "e"}, MarkerThreshold)
	assert.Zero(t, empty.Samples)
	assert.Zero(t, empty.Duration)
}

func TestPlotRun_WritesOnce(t *testing.T) {
	path := PlotPath(filepath.Join(t.TempDir(), "plots"), "run-1")

	rendered, err := PlotRun(sampleRun("run-1"), path, MarkerThreshold)
	require.NoError(t, err)
	assert.True(t, rendered)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	rendered, err = PlotRun(sampleRun("run-1"), path, MarkerThreshold)
	require.NoError(t, err)
	assert.False(t, rendered)

	_, err = PlotRun(&sleep.Chunk{RunLabel: "empty"}, filepath.Join(t.TempDir(), "e.png"), MarkerThreshold)
	assert.Error(t, err)
}

type memRuns struct {
	labels []string
	runs   map[string]*sleep.Chunk
}

func (m *memRuns) ListRuns(context.Context) ([]string, error) { return m.labels, nil }
func (m *memRuns) LatestRun(context.Context) (string, error) {
	return m.labels[len(m.labels)-1], nil
}
func (m *memRuns) LoadRun(_ context.Context, label string) (*sleep.Chunk, error) {
	return m.runs[label], nil
}

func TestFinalizer(t *testing.T) {
	runs := &memRuns{
		labels: []string{"a", "b", "c"},
		runs:   map[string]*sleep.Chunk{"a": sampleRun("a"), "b": sampleRun("b"), "c": sampleRun("c")},
	}
	dir := t.TempDir()
	f := NewFinalizer(runs, dir, nil)

	res, err := f.FinalizeLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "c", res.Summary.Label)
	assert.True(t, res.Rendered)
	assert.FileExists(t, filepath.Join(dir, "c.png"))

	all, err := f.PlotLast(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c", all[0].Summary.Label)
	assert.False(t, all[0].Rendered)
	assert.Equal(t, "b", all[1].Summary.Label)
	assert.True(t, all[1].Rendered)
}
