// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/sleep_logger/internal/config"
	"github.com/relabs-tech/sleep_logger/internal/session"
	"github.com/relabs-tech/sleep_logger/internal/sleep"
)

// RunConsoleMQTT prints chunk and status messages from the broker to out
// until ctx is done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, out io.Writer, logger *zap.Logger) error {
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientID+"-console")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	logger.Info("console connected to MQTT broker", zap.String("broker", cfg.MQTTBroker))

	subscribe := func(topic string, format func([]byte) (string, error)) error {
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			line, err := format(msg.Payload())
			if err != nil {
				logger.Warn("console: unmarshal error", zap.String("topic", msg.Topic()), zap.Error(err))
				return
			}
			fmt.Fprintln(out, line)
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		logger.Info("console subscribed", zap.String("topic", topic))
		return nil
	}

	if err := subscribe(cfg.TopicChunk, formatChunkLine); err != nil {
		return err
	}
	if err := subscribe(cfg.TopicStatus, formatStatusLine); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("console shutting down")
	return nil
}

func formatChunkLine(payload []byte) (string, error) {
	var c sleep.Chunk
	if err := json.Unmarshal(payload, &c); err != nil {
		return "", err
	}
	i := c.Last()
	if i < 0 {
		return fmt.Sprintf("[CHUNK] run=%s cycle=%d empty", c.RunLabel, c.Cycle), nil
	}
	var peak float64
	for _, d := range c.Diff {
		if d > peak {
			peak = d
		}
	}
	return fmt.Sprintf(
		"[CHUNK] run=%s cycle=%4d n=%d  act=%6.4f  delay=%6.2fms  peak=%7.2f  state=%s",
		c.RunLabel, c.Cycle, c.Len(), c.Activity[i], c.Delay[i], peak, c.State[i],
	), nil
}

func formatStatusLine(payload []byte) (string, error) {
	var s session.Status
	if err := json.Unmarshal(payload, &s); err != nil {
		return "", err
	}
	line := fmt.Sprintf("[STAT ] run=%s state=%s cycles=%d", s.Label, s.State, s.Cycles)
	if s.Error != "" {
		line += " error=" + s.Error
	}
	return line, nil
}
