// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/sleep_logger/internal/sleep"
)

// Default topics.
const (
	TopicChunk   = "sleep/chunk"
	TopicStatus  = "sleep/status"
	TopicControl = "sleep/control"
)

// Publisher is the subset of mqtt.Client the sink needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes every chunk as JSON.
type MQTT struct {
	pub     Publisher
	topic   string
	timeout time.Duration
}

// NewMQTT builds a chunk publisher on topic (TopicChunk when empty).
func NewMQTT(pub Publisher, topic string) *MQTT {
	if topic == "" {
		topic = TopicChunk
	}
	return &MQTT{pub: pub, topic: topic, timeout: 5 * time.Second}
}

func (m *MQTT) Name() string { return "mqtt:" + m.topic }

func (m *MQTT) Write(ctx context.Context, c *sleep.Chunk) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return publish(ctx, m.pub, m.topic, false, payload, m.timeout)
}

// PublishStatus sends a retained status document.
func PublishStatus(ctx context.Context, pub Publisher, topic string, status interface{}) error {
	if topic == "" {
		topic = TopicStatus
	}
	payload, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return publish(ctx, pub, topic, true, payload, 5*time.Second)
}

func publish(ctx context.Context, pub Publisher, topic string, retained bool, payload []byte, timeout time.Duration) error {
	token := pub.Publish(topic, 0, retained, payload)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("publish %s: timeout after %s", topic, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
