// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/sleep_logger/internal/accel"
	"github.com/relabs-tech/sleep_logger/internal/config"
	"github.com/relabs-tech/sleep_logger/internal/timeutil"
)

// RunSensorConsole prints raw samples and their motion difference from the
// configured sensor every interval until ctx is done. With dumpRegisters
// set, the MMA8452Q register file is printed once first.
func RunSensorConsole(ctx context.Context, cfg *config.Config, out io.Writer, interval time.Duration, dumpRegisters bool, logger *zap.Logger) error {
	src, mma, closer, err := openSource(cfg, timeutil.RealClock{})
	if err != nil {
		return err
	}
	defer closer.Close()
	logger.Info("sensor console started", zap.String("sensor", cfg.SensorType))

	if dumpRegisters {
		if mma == nil {
			logger.Warn("register dump needs the mma8452q sensor", zap.String("sensor", cfg.SensorType))
		} else if err := printRegisters(out, mma); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prev *accel.Sample
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		s, err := src.Read()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, formatSampleLine(s, prev))
		prev = &s
	}
}

func formatSampleLine(s accel.Sample, prev *accel.Sample) string {
	line := fmt.Sprintf("t=%8dms  X=%6.0f  Y=%6.0f  Z=%6.0f", s.TimestampMs, s.X, s.Y, s.Z)
	if prev != nil {
		line += fmt.Sprintf("  diff=%7.2f", accel.MotionDiff(*prev, s))
	}
	return line
}

func printRegisters(out io.Writer, r RegisterReader) error {
	values, err := r.DumpRegisters()
	if err != nil {
		return err
	}
	addrs := make([]int, 0, len(values))
	for a := range values {
		addrs = append(addrs, int(a))
	}
	sort.Ints(addrs)
	for _, a := range addrs {
		fmt.Fprintf(out, "reg 0x%02X = 0x%02X\n", a, values[byte(a)])
	}
	return nil
}
