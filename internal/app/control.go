// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/sleep_logger/internal/session"
	"github.com/relabs-tech/sleep_logger/internal/sinks"
)

// Commander is the session control surface shared by MQTT and HTTP.
type Commander interface {
	Start() (session.StartStatus, error)
	Stop() session.StopStatus
}

type controlMessage struct {
	Command string `json:"command"`
}

// HandleControl applies one control payload: "start", "stop" or
// {"command":"start"}. It returns the resulting status text.
func HandleControl(cmd Commander, payload []byte) (string, error) {
	command := strings.ToLower(strings.TrimSpace(string(payload)))
	if strings.HasPrefix(command, "{") {
		var msg controlMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return "", fmt.Errorf("control payload: %w", err)
		}
		command = strings.ToLower(strings.TrimSpace(msg.Command))
	}

	switch command {
	case "start":
		st, err := cmd.Start()
		if err != nil {
			return "", err
		}
		return st.String(), nil
	case "stop":
		return cmd.Stop().String(), nil
	default:
		return "", fmt.Errorf("unknown control command %q", command)
	}
}

// SubscribeControl routes messages on topic to cmd.
func SubscribeControl(client mqtt.Client, topic string, cmd Commander, logger *zap.Logger) error {
	token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		status, err := HandleControl(cmd, msg.Payload())
		if err != nil {
			logger.Warn("control command rejected", zap.String("topic", msg.Topic()), zap.Error(err))
			return
		}
		logger.Info("control command", zap.ByteString("payload", msg.Payload()), zap.String("status", status))
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	logger.Info("subscribed to control topic", zap.String("topic", topic))
	return nil
}

// statusPublisher returns a session observer publishing retained status
// documents.
func statusPublisher(pub sinks.Publisher, topic string, logger *zap.Logger) func(session.Status) {
	return func(s session.Status) {
		if err := sinks.PublishStatus(context.Background(), pub, topic, s); err != nil {
			logger.Warn("status publish failed", zap.Error(err))
		}
	}
}
