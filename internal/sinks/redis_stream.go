// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sinks holds the persistence and broadcast adapters fed by the
// chunk dispatcher.
package sinks

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/relabs-tech/sleep_logger/internal/sleep"
)

// DefaultStream is the stream every sample record is appended to.
const DefaultStream = "accel"

// RedisStream appends one stream record per sample.
type RedisStream struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStream wraps an existing client. maxLen caps the stream length
// approximately; 0 leaves it unbounded.
func NewRedisStream(client *redis.Client, stream string, maxLen int64) *RedisStream {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStream{client: client, stream: stream, maxLen: maxLen}
}

// DialRedisStream connects to addr and checks the server answers.
func DialRedisStream(ctx context.Context, addr, stream string, maxLen int64) (*RedisStream, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedisStream(client, stream, maxLen), nil
}

func (r *RedisStream) Name() string { return "redis:" + r.stream }

// Write sends the whole chunk in a single pipeline.
func (r *RedisStream) Write(ctx context.Context, c *sleep.Chunk) error {
	pipe := r.client.Pipeline()
	for i := 0; i < c.Len(); i++ {
		args := &redis.XAddArgs{
			Stream: r.stream,
			Values: sampleRecord(c, i),
		}
		if r.maxLen > 0 {
			args.MaxLen = r.maxLen
			args.Approx = true
		}
		pipe.XAdd(ctx, args)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	return nil
}

// Close releases the client.
func (r *RedisStream) Close() error { return r.client.Close() }

// sampleRecord renders sample i as ordered field/value pairs.
func sampleRecord(c *sleep.Chunk, i int) []interface{} {
	return []interface{}{
		"t", c.TsOffsetMs[i],
		"t_wall", c.TsWallMs[i],
		"x", c.Raw[i][0],
		"y", c.Raw[i][1],
		"z", c.Raw[i][2],
		"activity", strconv.FormatFloat(c.Activity[i], 'f', 4, 64),
		"diff", strconv.FormatFloat(c.Diff[i], 'f', 2, 64),
		"delay", strconv.FormatFloat(c.Delay[i], 'f', 2, 64),
		"state", int(c.State[i]),
	}
}
