// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relabs-tech/sleep_logger/internal/accel"
	"github.com/relabs-tech/sleep_logger/internal/config"
	"github.com/relabs-tech/sleep_logger/internal/dispatch"
	"github.com/relabs-tech/sleep_logger/internal/sensors"
	"github.com/relabs-tech/sleep_logger/internal/sinks"
	"github.com/relabs-tech/sleep_logger/internal/stimulus"
	"github.com/relabs-tech/sleep_logger/internal/timeutil"
)

// closers releases resources in reverse order of acquisition. closeAll has
// a pointer receiver so a deferred call sees closers added afterwards.
type closers []io.Closer

func (c *closers) add(x io.Closer) { *c = append(*c, x) }

func (c *closers) closeAll(logger *zap.Logger) {
	for i := len(*c) - 1; i >= 0; i-- {
		if err := (*c)[i].Close(); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}
	*c = nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openSource builds the configured accelerometer. The MMA8452Q is also
// returned so its registers can be inspected.
func openSource(cfg *config.Config, clock timeutil.Clock) (accel.Source, *sensors.MMA8452Q, io.Closer, error) {
	switch cfg.SensorType {
	case config.SensorMMA8452Q:
		m, err := sensors.OpenMMA8452Q(cfg.I2CBus, cfg.I2CAccelAddr, clock)
		if err != nil {
			return nil, nil, nil, err
		}
		return m, m, m, nil
	case config.SensorSerial:
		s, err := sensors.OpenSerialSource(cfg.SerialPort, cfg.SerialBaudRate, clock)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, nil, s, nil
	case config.SensorMock:
		return sensors.NewMockSource(clock, cfg.MockBurstInterval), nil, nopCloser{}, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown sensor type %q", cfg.SensorType)
}

// openStimulus builds the configured stimulus device.
func openStimulus(cfg *config.Config, logger *zap.Logger) (stimulus.Device, error) {
	switch cfg.StimulusDevice {
	case config.StimulusGPIO:
		d, err := stimulus.NewGPIODevice(cfg.StimulusGPIOPin)
		if err != nil {
			return nil, err
		}
		return d, nil
	case config.StimulusTone:
		player := stimulus.PlayerCommand(cfg.TonePlayer[0], cfg.TonePlayer[1:]...)
		return stimulus.NewToneDevice(cfg.ToneParams(), player, logger), nil
	default:
		return &stimulus.NopDevice{}, nil
	}
}

// connectMQTT connects a client with a unique id derived from the
// configured prefix.
func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID + "-" + uuid.NewString()[:8]).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return client, nil
}

// openSinks builds every enabled sink. The run store is also returned for
// the finalize pass and the web API.
func openSinks(ctx context.Context, cfg *config.Config, client mqtt.Client, logger *zap.Logger) ([]dispatch.Sink, *sinks.RunStore, closers, error) {
	var (
		out   []dispatch.Sink
		store *sinks.RunStore
		cl    closers
	)
	if cfg.LogToStore {
		s, err := sinks.OpenRunStore(cfg.StorePath)
		if err != nil {
			cl.closeAll(logger)
			return nil, nil, nil, err
		}
		cl.add(s)
		store = s
		out = append(out, s)
		logger.Info("run store opened", zap.String("path", cfg.StorePath))
	}
	if cfg.LogToRedis {
		r, err := sinks.DialRedisStream(ctx, cfg.RedisAddr, cfg.RedisStream, cfg.RedisMaxLen)
		if err != nil {
			cl.closeAll(logger)
			return nil, nil, nil, err
		}
		cl.add(r)
		out = append(out, r)
		logger.Info("redis stream sink connected", zap.String("addr", cfg.RedisAddr), zap.String("stream", cfg.RedisStream))
	}
	if cfg.LogToMQTT && client != nil {
		out = append(out, sinks.NewMQTT(client, cfg.TopicChunk))
		logger.Info("mqtt chunk sink enabled", zap.String("topic", cfg.TopicChunk))
	}
	return out, store, cl, nil
}
