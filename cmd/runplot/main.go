// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/relabs-tech/sleep_logger/internal/config"
	"github.com/relabs-tech/sleep_logger/internal/logging"
	"github.com/relabs-tech/sleep_logger/internal/report"
	"github.com/relabs-tech/sleep_logger/internal/sinks"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		log.Printf("runplot: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("runplot", flag.ContinueOnError)
	configPath := fs.String("config", "sleep_config.txt", "path to the KEY=VALUE config file")
	last := fs.Int("n", 1, "number of most recent runs to plot")
	runLabel := fs.String("run", "", "plot this run label instead of the latest ones")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, "sleep-runplot")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	store, err := sinks.OpenRunStore(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer store.Close()

	f := report.NewFinalizer(store, cfg.PlotDir, logger)

	var results []report.Result
	if *runLabel != "" {
		r, err := f.Finalize(ctx, *runLabel)
		if err != nil {
			return fmt.Errorf("finalize run %s: %w", *runLabel, err)
		}
		results = append(results, r)
	} else {
		results, err = f.PlotLast(ctx, *last)
		if err != nil {
			return fmt.Errorf("plot runs: %w", err)
		}
	}

	for _, r := range results {
		s := r.Summary
		fmt.Fprintf(out, "%s  samples=%d  duration=%s  mean=%.4f  spikes=%d  plot=%s\n",
			s.Label, s.Samples, s.Duration, s.MeanActivity, s.Spikes, r.PlotPath)
	}
	return nil
}
