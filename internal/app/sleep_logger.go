// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/sleep_logger/internal/config"
	"github.com/relabs-tech/sleep_logger/internal/dispatch"
	"github.com/relabs-tech/sleep_logger/internal/display"
	"github.com/relabs-tech/sleep_logger/internal/report"
	"github.com/relabs-tech/sleep_logger/internal/session"
	"github.com/relabs-tech/sleep_logger/internal/sinks"
	"github.com/relabs-tech/sleep_logger/internal/stimulus"
	"github.com/relabs-tech/sleep_logger/internal/timeutil"
)

// RunSleepLogger wires the sensor, stimulus, display and sinks into a
// session controller and serves it over MQTT and HTTP until ctx is done.
func RunSleepLogger(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	clock := timeutil.RealClock{}
	var cl closers
	defer cl.closeAll(logger)

	// ---- 1) MQTT broker ----
	var client mqtt.Client
	if cfg.LogToMQTT || cfg.TopicControl != "" {
		c, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientID)
		switch {
		case err == nil:
			client = c
			defer client.Disconnect(250)
			logger.Info("connected to MQTT broker", zap.String("broker", cfg.MQTTBroker))
		case cfg.LogToMQTT:
			return err
		default:
			logger.Warn("MQTT unavailable, remote control disabled", zap.Error(err))
		}
	}

	// ---- 2) Sensor ----
	src, mma, srcCloser, err := openSource(cfg, clock)
	if err != nil {
		return fmt.Errorf("sensor: %w", err)
	}
	cl.add(srcCloser)
	logger.Info("sensor ready", zap.String("type", cfg.SensorType))

	// ---- 3) Stimulus ----
	device, err := openStimulus(cfg, logger)
	if err != nil {
		return fmt.Errorf("stimulus: %w", err)
	}
	logger.Info("stimulus ready", zap.String("device", cfg.StimulusDevice))

	// ---- 4) Displays ----
	feed := display.NewWebFeed(logger)
	targets := display.Multi{feed}
	if cfg.DisplayEnabled {
		oled, err := display.OpenOLED(cfg.I2CBus)
		if err != nil {
			logger.Warn("OLED unavailable", zap.Error(err))
		} else {
			cl.add(oled)
			targets = append(targets, oled)
			logger.Info("OLED initialized", zap.Uint16("addr", cfg.I2COLEDAddr))
		}
	}
	renderer := display.NewAsync(targets, logger)
	defer renderer.Close()

	// ---- 5) Sinks ----
	sinkList, store, sinkClosers, err := openSinks(ctx, cfg, client, logger)
	if err != nil {
		return fmt.Errorf("sinks: %w", err)
	}
	cl = append(cl, sinkClosers...)
	dispatcher := dispatch.New(sinkList, cfg.SinkQueueSize, logger)
	defer dispatcher.Close()

	// ---- 6) Session control ----
	var finalizer *report.Finalizer
	if store != nil {
		finalizer = report.NewFinalizer(store, cfg.PlotDir, logger)
	}
	opts := session.Options{
		Factory: func() (*session.Session, error) {
			return session.New(cfg.SleepParams(), session.Deps{
				Source:     src,
				Stimulus:   stimulus.NewController(device, logger),
				Dispatcher: dispatcher,
				Display:    renderer,
				Clock:      clock,
				Logger:     logger,
			})
		},
		Flush: dispatcher.Barrier,
		Finalize: func(ctx context.Context, label string) error {
			if finalizer == nil {
				return nil
			}
			_, err := finalizer.Finalize(ctx, label)
			if errors.Is(err, sinks.ErrRunNotFound) {
				logger.Info("nothing recorded for run", zap.String("run", label))
				return nil
			}
			return err
		},
		Logger: logger,
	}
	if client != nil && cfg.TopicStatus != "" {
		opts.OnStatus = statusPublisher(client, cfg.TopicStatus, logger)
	}
	ctrl := session.NewController(ctx, opts)
	defer ctrl.Shutdown()

	if client != nil && cfg.TopicControl != "" {
		if err := SubscribeControl(client, cfg.TopicControl, ctrl, logger); err != nil {
			return err
		}
	}

	// ---- 7) Web server ----
	web := WebDeps{
		Control:   ctrl,
		SinkStats: dispatcher.Stats,
		Feed:      feed,
		PlotDir:   cfg.PlotDir,
		Logger:    logger,
	}
	if store != nil {
		web.Runs = store
	}
	if mma != nil {
		web.Registers = mma
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           NewWebHandler(web),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() {
		logger.Info("web server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if cfg.Autostart {
		if _, err := ctrl.Start(); err != nil {
			return err
		}
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-srvErr:
		return fmt.Errorf("web server: %w", err)
	}
}
