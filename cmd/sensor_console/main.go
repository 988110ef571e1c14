// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/sleep_logger/internal/app"
	"github.com/relabs-tech/sleep_logger/internal/config"
	"github.com/relabs-tech/sleep_logger/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()
	if err != nil {
		log.Printf("sensor_console: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sensor_console", flag.ContinueOnError)
	configPath := fs.String("config", "sleep_config.txt", "path to the KEY=VALUE config file")
	interval := fs.Duration("interval", 100*time.Millisecond, "time between reads")
	registers := fs.Bool("registers", false, "dump the accelerometer registers before sampling")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, "sensor-console")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	if err := app.RunSensorConsole(ctx, cfg, os.Stdout, *interval, *registers, logger); err != nil {
		logger.Error("sensor console stopped", zap.Error(err))
		return err
	}
	return nil
}
