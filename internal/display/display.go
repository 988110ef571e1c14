// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package display renders per-chunk summaries to the OLED panel and to
// live web clients. Rendering never blocks the sampling loop.
package display

import (
	"sync"

	"go.uber.org/zap"
)

// Summary is what a display shows after every chunk.
type Summary struct {
	Timeseries []float64 `json:"timeseries"`
	StatusText string    `json:"status"`
	Trigger    bool      `json:"trigger"`
}

// Display renders a summary. Show may be slow.
type Display interface {
	Show(Summary) error
}

// Multi shows the same summary on several displays and returns the first
// error after trying all of them.
type Multi []Display

func (m Multi) Show(s Summary) error {
	var first error
	for _, d := range m {
		if err := d.Show(s); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Async decouples producers from a slow Display. It keeps only the newest
// pending summary; older ones are overwritten.
type Async struct {
	target Display
	logger *zap.Logger

	mu      sync.Mutex
	pending *Summary
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	shown   uint64
	skipped uint64
}

// NewAsync starts the render goroutine.
func NewAsync(target Display, logger *zap.Logger) *Async {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Async{
		target: target,
		logger: logger.Named("display"),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go a.loop()
	return a
}

// Update replaces the pending summary and returns immediately.
func (a *Async) Update(s Summary) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	if a.pending != nil {
		a.skipped++
	}
	a.pending = &s
	select {
	case a.wake <- struct{}{}:
	default:
	}
	a.mu.Unlock()
}

// Counts returns how many summaries were rendered and how many were
// overwritten before they could be.
func (a *Async) Counts() (shown, skipped uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.shown, a.skipped
}

// Close renders whatever is still pending and stops the goroutine.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.wake)
	a.mu.Unlock()
	<-a.done
}

func (a *Async) loop() {
	defer close(a.done)
	for range a.wake {
		a.drain()
	}
	a.drain()
}

func (a *Async) drain() {
	a.mu.Lock()
	s := a.pending
	a.pending = nil
	a.mu.Unlock()
	if s == nil {
		return
	}
	if err := a.target.Show(*s); err != nil {
		a.logger.Warn("render failed", zap.Error(err))
	}
	a.mu.Lock()
	a.shown++
	a.mu.Unlock()
}
