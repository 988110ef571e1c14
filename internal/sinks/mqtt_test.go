// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/sleep_logger/internal/sleep"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error, completed bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if completed {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool { <-t.done; return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type message struct {
	topic    string
	retained bool
	payload  []byte
}

type fakePublisher struct {
	mu    sync.Mutex
	msgs  []message
	err   error
	stall bool
}

func (p *fakePublisher) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, message{topic: topic, retained: retained, payload: payload.([]byte)})
	return newFakeToken(p.err, !p.stall)
}

func TestMQTT_PublishesChunkJSON(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTT(pub, "")
	assert.Equal(t, "mqtt:sleep/chunk", sink.Name())

	c := testChunk("run-a", 2, 3)
	require.NoError(t, sink.Write(context.Background(), c))
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, TopicChunk, pub.msgs[0].topic)
	assert.False(t, pub.msgs[0].retained)

	var got sleep.Chunk
	require.NoError(t, json.Unmarshal(pub.msgs[0].payload, &got))
	assert.Equal(t, "run-a", got.RunLabel)
	assert.Equal(t, 2, got.Cycle)
	assert.Equal(t, c.Activity, got.Activity)
}

func TestMQTT_Errors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	err := NewMQTT(pub, "t").Write(context.Background(), testChunk("r", 0, 1))
	assert.ErrorContains(t, err, "not connected")

	stalled := &fakePublisher{stall: true}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewMQTT(stalled, "t").Write(ctx, testChunk("r", 0, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublishStatus_Retained(t *testing.T) {
	pub := &fakePublisher{}
	require.NoError(t, PublishStatus(context.Background(), pub, "", map[string]string{"state": "running"}))
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, TopicStatus, pub.msgs[0].topic)
	assert.True(t, pub.msgs[0].retained)
	assert.JSONEq(t, `{"state":"running"}`, string(pub.msgs[0].payload))
}
