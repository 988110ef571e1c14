// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package dispatch fans chunks out to persistence sinks without ever
// blocking the sampling loop.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/relabs-tech/sleep_logger/internal/sleep"
)

var (
	// ErrSinkWriteFailed wraps every error a sink returns. It never leaves
	// the sink's worker except through Stats and the log.
	ErrSinkWriteFailed = errors.New("sink write failed")

	ErrClosed = errors.New("dispatcher closed")
)

// Sink persists chunks. Write is called from a single goroutine per sink, in
// production order. The chunk must not be modified.
type Sink interface {
	Name() string
	Write(ctx context.Context, c *sleep.Chunk) error
}

// SinkStats describes one sink's queue.
type SinkStats struct {
	Name    string `json:"name"`
	Queued  int    `json:"queued"`
	Cap     int    `json:"capacity"`
	Written uint64 `json:"written"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
}

type job struct {
	chunk   *sleep.Chunk
	barrier chan struct{}
}

type worker struct {
	sink    Sink
	queue   chan job
	written uint64
	failed  uint64
	dropped uint64
}

// Dispatcher owns one bounded queue and one worker goroutine per sink.
type Dispatcher struct {
	mu      sync.RWMutex
	closed  bool
	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	logger  *zap.Logger
}

// New starts a worker for every sink. queueSize bounds the number of chunks
// waiting per sink; beyond it new chunks are dropped for that sink only.
func New(sinks []Sink, queueSize int, logger *zap.Logger) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		ctx:    context.Background(),
		logger: logger.Named("dispatch"),
	}
	for _, s := range sinks {
		w := &worker{sink: s, queue: make(chan job, queueSize)}
		d.workers = append(d.workers, w)
		d.wg.Add(1)
		go d.run(w)
	}
	return d
}

// Dispatch queues c for every sink and returns immediately.
func (d *Dispatcher) Dispatch(c *sleep.Chunk) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	for _, w := range d.workers {
		select {
		case w.queue <- job{chunk: c}:
		default:
			atomic.AddUint64(&w.dropped, 1)
			d.logger.Warn("sink queue full, chunk dropped",
				zap.String("sink", w.sink.Name()),
				zap.String("run", c.RunLabel),
				zap.Int("cycle", c.Cycle))
		}
	}
}

// Barrier blocks until every chunk dispatched before the call has been
// handled by every sink, or ctx is done. Never call it from the sampling
// loop.
func (d *Dispatcher) Barrier(ctx context.Context) error {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return ErrClosed
	}
	marks := make([]chan struct{}, 0, len(d.workers))
	for _, w := range d.workers {
		mark := make(chan struct{})
		select {
		case w.queue <- job{barrier: mark}:
			marks = append(marks, mark)
		case <-ctx.Done():
			d.mu.RUnlock()
			return ctx.Err()
		}
	}
	d.mu.RUnlock()

	for _, mark := range marks {
		select {
		case <-mark:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Stats returns a snapshot of every sink queue.
func (d *Dispatcher) Stats() []SinkStats {
	out := make([]SinkStats, 0, len(d.workers))
	for _, w := range d.workers {
		out = append(out, SinkStats{
			Name:    w.sink.Name(),
			Queued:  len(w.queue),
			Cap:     cap(w.queue),
			Written: atomic.LoadUint64(&w.written),
			Failed:  atomic.LoadUint64(&w.failed),
			Dropped: atomic.LoadUint64(&w.dropped),
		})
	}
	return out
}

// Close stops accepting chunks and waits for the queues to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, w := range d.workers {
		close(w.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) run(w *worker) {
	defer d.wg.Done()
	for j := range w.queue {
		if j.barrier != nil {
			close(j.barrier)
			continue
		}
		if err := d.write(w.sink, j.chunk); err != nil {
			atomic.AddUint64(&w.failed, 1)
			d.logger.Error("sink write failed",
				zap.String("sink", w.sink.Name()),
				zap.String("run", j.chunk.RunLabel),
				zap.Int("cycle", j.chunk.Cycle),
				zap.Error(err))
			continue
		}
		atomic.AddUint64(&w.written, 1)
	}
}

func (d *Dispatcher) write(s Sink, c *sleep.Chunk) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: panic: %v", ErrSinkWriteFailed, s.Name(), r)
		}
	}()
	if werr := s.Write(d.ctx, c); werr != nil {
		return fmt.Errorf("%w: %s: %v", ErrSinkWriteFailed, s.Name(), werr)
	}
	return nil
}
