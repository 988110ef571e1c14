// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StartStatus is the outcome of Controller.Start.
type StartStatus int

const (
	Started StartStatus = iota
	AlreadyRunning
)

func (s StartStatus) String() string {
	if s == AlreadyRunning {
		return "already_running"
	}
	return "started"
}

func (s StartStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// StopStatus is the outcome of Controller.Stop.
type StopStatus int

const (
	Stopping StopStatus = iota
	NotRunning
)

func (s StopStatus) String() string {
	if s == NotRunning {
		return "not_running"
	}
	return "stopping"
}

func (s StopStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Factory builds a fresh session for every start.
type Factory func() (*Session, error)

// Options configures a Controller. Only Factory is required.
type Options struct {
	Factory Factory

	// Flush waits until every chunk handed to the sinks has been written.
	Flush func(ctx context.Context) error

	// Finalize post-processes the run once it has ended and been flushed.
	Finalize func(ctx context.Context, label string) error

	// OnStatus observes every lifecycle transition.
	OnStatus func(Status)

	FinalizeTimeout time.Duration
	Logger          *zap.Logger
}

// Controller owns at most one running session. It replaces a process-wide
// "current run" with an explicit handle held by the caller.
type Controller struct {
	ctx  context.Context
	opts Options
	log  *zap.Logger

	mu      sync.Mutex
	current *Session
	running bool
	labels  map[string]struct{} // labels handed out so far
	wg      sync.WaitGroup
}

// NewController returns an idle controller. Runs are bound to ctx.
func NewController(ctx context.Context, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.FinalizeTimeout <= 0 {
		opts.FinalizeTimeout = 2 * time.Minute
	}
	return &Controller{
		ctx:    ctx,
		opts:   opts,
		log:    opts.Logger.Named("control"),
		labels: make(map[string]struct{}),
	}
}

// Start begins a new session unless one is already running.
func (c *Controller) Start() (StartStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return AlreadyRunning, nil
	}
	sess, err := c.opts.Factory()
	if err != nil {
		return Started, fmt.Errorf("create session: %w", err)
	}
	if label := c.uniqueLabel(sess.Label()); label != sess.Label() {
		c.log.Warn("run label already used, renaming", zap.String("label", sess.Label()), zap.String("run", label))
		sess.relabel(label)
	}
	if err := sess.begin(); err != nil {
		return Started, err
	}
	c.labels[sess.Label()] = struct{}{}
	c.current = sess
	c.running = true
	c.notify(sess)
	c.wg.Add(1)
	go c.run(sess)
	c.log.Info("session started", zap.String("run", sess.Label()))
	return Started, nil
}

// Stop asks the running session to halt at its next chunk boundary. The
// finalize pass runs in the background once it has.
func (c *Controller) Stop() StopStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return NotRunning
	}
	c.current.Stop()
	c.log.Info("stop requested", zap.String("run", c.current.Label()))
	return Stopping
}

// Running reports whether a session is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Status describes the current or most recent session.
func (c *Controller) Status() Status {
	c.mu.Lock()
	sess := c.current
	c.mu.Unlock()
	if sess == nil {
		return Status{State: Idle}
	}
	return sess.Status()
}

// Current returns the current or most recent session, nil before the first.
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Wait blocks until the running session and its finalize pass are done.
func (c *Controller) Wait() { c.wg.Wait() }

// Shutdown stops any running session and waits for it.
func (c *Controller) Shutdown() {
	c.Stop()
	c.Wait()
}

// uniqueLabel suffixes label with -2, -3, ... when a run started within the
// same second already used it. Must be called with mu held.
func (c *Controller) uniqueLabel(label string) string {
	if _, taken := c.labels[label]; !taken {
		return label
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", label, n)
		if _, taken := c.labels[candidate]; !taken {
			return candidate
		}
	}
}

func (c *Controller) run(sess *Session) {
	defer c.wg.Done()
	err := sess.loop(c.ctx)

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	c.notify(sess)
	if err != nil {
		c.log.Error("session failed", zap.String("run", sess.Label()), zap.Error(err))
	}
	c.finalize(sess)
}

func (c *Controller) finalize(sess *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.FinalizeTimeout)
	defer cancel()
	if c.opts.Flush != nil {
		if err := c.opts.Flush(ctx); err != nil {
			c.log.Warn("flush before finalize failed", zap.Error(err))
		}
	}
	if c.opts.Finalize == nil {
		return
	}
	if err := c.opts.Finalize(ctx, sess.Label()); err != nil {
		c.log.Warn("finalize failed", zap.String("run", sess.Label()), zap.Error(err))
	}
}

func (c *Controller) notify(sess *Session) {
	if c.opts.OnStatus != nil {
		c.opts.OnStatus(sess.Status())
	}
}
