// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session runs the chunk cycle loop and exposes start/stop control.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relabs-tech/sleep_logger/internal/accel"
	"github.com/relabs-tech/sleep_logger/internal/display"
	"github.com/relabs-tech/sleep_logger/internal/sleep"
	"github.com/relabs-tech/sleep_logger/internal/timeutil"
)

// LabelFormat names a run after its start time, e.g. 2026-10-17-23H-04M-05S.
const LabelFormat = "2006-01-02-15H-04M-05S"

// State is the lifecycle state of a session.
type State int

const (
	Idle State = iota
	Running
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for _, v := range []State{Idle, Running, Stopped, Failed} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", b)
}

// Dispatcher receives every completed chunk. Dispatch must not block.
type Dispatcher interface {
	Dispatch(c *sleep.Chunk)
}

// Renderer receives a summary after every chunk. Update must not block.
type Renderer interface {
	Update(display.Summary)
}

// Stimulus is the actuator driven by every classified sample.
type Stimulus interface {
	sleep.Actuator
	Active() bool
	Release() error
}

// Deps are the collaborators of one session. Stimulus, Display and Clock
// are optional.
type Deps struct {
	Source     accel.Source
	Stimulus   Stimulus
	Dispatcher Dispatcher
	Display    Renderer
	Clock      timeutil.Clock
	Logger     *zap.Logger
}

// Status is a snapshot of a session, safe to share.
type Status struct {
	ID           string     `json:"id"`
	Label        string     `json:"label"`
	State        State      `json:"state"`
	Cycles       int        `json:"cycles"`
	LastActivity float64    `json:"last_activity"`
	LastDelayMs  float64    `json:"last_delay_ms"`
	LastState    string     `json:"last_state,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// Session samples chunk after chunk, carrying the integrator and sampler
// state across chunk boundaries, until stopped or the sensor fails.
type Session struct {
	id      uuid.UUID
	label   string
	params  sleep.Params
	sampler *sleep.Sampler
	deps    Deps
	logger  *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}

	mu     sync.RWMutex
	status Status
	last   *sleep.Chunk
}

// New builds an idle session. The run label is taken from the clock now.
func New(params sleep.Params, deps Deps) (*Session, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("%w: session needs a sensor source", sleep.ErrConfigInvalid)
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("%w: session needs a dispatcher", sleep.ErrConfigInvalid)
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	var actuator sleep.Actuator
	if deps.Stimulus != nil {
		actuator = deps.Stimulus
	}
	sampler, err := sleep.NewSampler(params, deps.Source, actuator, deps.Clock, deps.Logger)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	now := deps.Clock.Now()
	label := now.Format(LabelFormat)
	return &Session{
		id:      id,
		label:   label,
		params:  params,
		sampler: sampler,
		deps:    deps,
		logger:  deps.Logger.Named("session").With(zap.String("run", label), zap.String("session_id", id.String())),
		stop:    make(chan struct{}),
		status: Status{
			ID:          id.String(),
			Label:       label,
			State:       Idle,
			LastDelayMs: params.Sampler.InitDelayMs,
		},
	}, nil
}

// relabel renames an idle session.
func (s *Session) relabel(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.label = label
	s.status.Label = label
	s.logger = s.deps.Logger.Named("session").With(zap.String("run", label), zap.String("session_id", s.id.String()))
}

func (s *Session) ID() string    { return s.id.String() }
func (s *Session) Label() string { return s.label }

// Stop asks the session to halt at the next chunk boundary. The chunk in
// progress always completes.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Status returns a snapshot.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// LastChunk returns the most recent completed chunk, nil before the first.
func (s *Session) LastChunk() *sleep.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Run executes chunk cycles until Stop is called, ctx is done, or the sensor
// fails. Both stop conditions are only observed between chunks. Run returns
// nil for a clean stop and an error wrapping accel.ErrSensorUnavailable on
// sensor failure.
func (s *Session) Run(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	return s.loop(ctx)
}

// begin moves an idle session to Running.
func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.State != Idle {
		return fmt.Errorf("session %s already %s", s.label, s.status.State)
	}
	s.status.State = Running
	s.status.StartedAt = s.deps.Clock.Now()
	return nil
}

func (s *Session) loop(ctx context.Context) error {
	s.logger.Info("run started", zap.Int("sample_size", s.sampler.SampleSize()))
	defer s.releaseStimulus()

	carry := sleep.InitialCarry(s.params.Sampler)
	for cycle := 0; ; cycle++ {
		if s.stopRequested(ctx) {
			s.finish(Stopped, nil)
			return nil
		}

		chunk, next, err := s.sampler.Run(carry)
		if err != nil {
			s.logger.Error("run aborted", zap.Int("cycle", cycle), zap.Error(err))
			s.finish(Failed, err)
			return err
		}
		carry = next
		chunk.RunLabel = s.label
		chunk.Cycle = cycle

		s.deps.Dispatcher.Dispatch(chunk)
		s.publish(chunk, carry)
	}
}

func (s *Session) stopRequested(ctx context.Context) bool {
	select {
	case <-s.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// publish records the chunk and hands a summary to the display.
func (s *Session) publish(c *sleep.Chunk, carry sleep.Carry) {
	i := c.Last()
	activity, diff, state := c.Activity[i], c.Diff[i], c.State[i]
	trigger := s.deps.Stimulus != nil && s.deps.Stimulus.Active()

	s.mu.Lock()
	s.last = c
	s.status.Cycles = c.Cycle + 1
	s.status.LastActivity = activity
	s.status.LastDelayMs = carry.DelayMs
	s.status.LastState = state.String()
	s.mu.Unlock()

	s.logger.Info("chunk complete",
		zap.Int("cycle", c.Cycle),
		zap.Float64("delay_ms", carry.DelayMs),
		zap.Float64("activity", activity),
		zap.Float64("diff", diff),
		zap.Stringer("state", state),
		zap.Bool("stimulus", trigger))

	if s.deps.Display != nil {
		s.deps.Display.Update(display.Summary{
			Timeseries: c.Diff,
			StatusText: fmt.Sprintf("%.2f", activity),
			Trigger:    trigger,
		})
	}
}

func (s *Session) finish(state State, err error) {
	now := s.deps.Clock.Now()
	s.mu.Lock()
	s.status.State = state
	s.status.EndedAt = &now
	if err != nil {
		s.status.Error = err.Error()
	}
	cycles := s.status.Cycles
	s.mu.Unlock()
	s.logger.Info("run ended", zap.Stringer("state", state), zap.Int("cycles", cycles))
}

func (s *Session) releaseStimulus() {
	if s.deps.Stimulus == nil {
		return
	}
	if err := s.deps.Stimulus.Release(); err != nil {
		s.logger.Warn("stimulus release failed", zap.Error(err))
	}
}
