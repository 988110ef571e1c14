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
		log.Printf("sleep_logger: %v", err)
		os.Exit(1)
	}
}

// run returns only after every deferred cleanup has happened, so main can
// exit with a status code without skipping them.
func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sleep_logger", flag.ContinueOnError)
	configPath := fs.String("config", "sleep_config.txt", "path to the KEY=VALUE config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, "sleep-logger")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting sleep logger", zap.String("config", *configPath), zap.String("sensor", cfg.SensorType))
	if err := app.RunSleepLogger(ctx, cfg, logger); err != nil {
		logger.Error("sleep logger stopped", zap.Error(err))
		return err
	}
	return nil
}
