// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package report

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/relabs-tech/sleep_logger/internal/sleep"
)

var (
	activityFill = color.RGBA{R: 31, G: 119, B: 180, A: 102}
	markerColor  = color.RGBA{R: 255, A: 77}
)

// PlotPath returns where the image for label is written.
func PlotPath(dir, label string) string {
	return filepath.Join(dir, label+".png")
}

// PlotRun renders activity against wall time with movement markers and
// writes it to path. An existing file is left untouched and reported with
// rendered == false.
func PlotRun(c *sleep.Chunk, path string, markerThreshold float64) (rendered bool, err error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if c.Len() == 0 {
		return false, fmt.Errorf("run %s has no samples", c.RunLabel)
	}

	p := plot.New()
	p.Title.Text = c.RunLabel
	p.X.Label.Text = "Time"
	p.Y.Label.Text = "Activity"
	p.X.Tick.Marker = plot.TimeTicks{Format: "15:04:05"}
	p.Y.Min, p.Y.Max = 0, 1

	pts := make(plotter.XYs, c.Len())
	for i := range pts {
		pts[i].X = float64(c.TsWallMs[i]) / 1000
		pts[i].Y = c.Activity[i]
	}

	for i, d := range c.Diff {
		if d <= markerThreshold {
			continue
		}
		x := pts[i].X
		marker, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: 1}})
		if err != nil {
			return false, err
		}
		marker.Color = markerColor
		marker.Width = vg.Points(1)
		p.Add(marker)
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return false, err
	}
	line.Color = color.Black
	line.Width = vg.Points(3)
	line.FillColor = activityFill
	p.Add(line)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	if err := p.Save(14*vg.Inch, 4*vg.Inch, path); err != nil {
		return false, fmt.Errorf("save plot %s: %w", path, err)
	}
	return true, nil
}
