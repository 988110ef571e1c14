// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package report

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/relabs-tech/sleep_logger/internal/sleep"
)

// RunLoader reads recorded runs back.
type RunLoader interface {
	ListRuns(ctx context.Context) ([]string, error)
	LatestRun(ctx context.Context) (string, error)
	LoadRun(ctx context.Context, label string) (*sleep.Chunk, error)
}

// Result describes one finalized run.
type Result struct {
	Summary  RunSummary `json:"summary"`
	PlotPath string     `json:"plot_path"`
	Rendered bool       `json:"rendered"`
}

// Finalizer summarizes and plots recorded runs.
type Finalizer struct {
	runs    RunLoader
	plotDir string
	logger  *zap.Logger
}

func NewFinalizer(runs RunLoader, plotDir string, logger *zap.Logger) *Finalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finalizer{runs: runs, plotDir: plotDir, logger: logger.Named("report")}
}

// FinalizeLatest processes the newest recorded run.
func (f *Finalizer) FinalizeLatest(ctx context.Context) (Result, error) {
	label, err := f.runs.LatestRun(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("latest run: %w", err)
	}
	return f.Finalize(ctx, label)
}

// Finalize processes the named run.
func (f *Finalizer) Finalize(ctx context.Context, label string) (Result, error) {
	run, err := f.runs.LoadRun(ctx, label)
	if err != nil {
		return Result{}, fmt.Errorf("load run %s: %w", label, err)
	}
	res := Result{
		Summary:  Summarize(run, MarkerThreshold),
		PlotPath: PlotPath(f.plotDir, label),
	}
	s := res.Summary
	f.logger.Info("run summary",
		zap.String("run", label),
		zap.Int("samples", s.Samples),
		zap.Duration("duration", s.Duration),
		zap.Float64("mean_activity", s.MeanActivity),
		zap.Int("spikes", s.Spikes),
		zap.Duration("wake", s.TimeInState[sleep.Wake]),
		zap.Duration("light", s.TimeInState[sleep.Light]),
		zap.Duration("deep", s.TimeInState[sleep.Deep]))

	if s.Samples == 0 {
		return res, nil
	}
	res.Rendered, err = PlotRun(run, res.PlotPath, MarkerThreshold)
	if err != nil {
		return res, err
	}
	if res.Rendered {
		f.logger.Info("plot written", zap.String("path", res.PlotPath))
	} else {
		f.logger.Info("plot exists, skipped", zap.String("path", res.PlotPath))
	}
	return res, nil
}

// PlotLast finalizes the newest n runs, newest first.
func (f *Finalizer) PlotLast(ctx context.Context, n int) ([]Result, error) {
	labels, err := f.runs.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(labels) > n {
		labels = labels[len(labels)-n:]
	}
	out := make([]Result, 0, len(labels))
	for i := len(labels) - 1; i >= 0; i-- {
		res, err := f.Finalize(ctx, labels[i])
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}
