// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sleep

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/sleep_logger/internal/accel"
	"github.com/relabs-tech/sleep_logger/internal/timeutil"
)

// Actuator reacts to the classified state of every sample.
type Actuator interface {
	OnState(State) error
}

// Carry is the loop state handed from one chunk to the next. Feeding the
// Carry returned by one Run into the next makes the chunk boundary invisible
// to the control dynamics.
type Carry struct {
	Integrator IntegratorState
	DelayMs    float64

	// Last is the previous raw sample; nil until the first priming read.
	Last *accel.Sample

	// OriginMs is the sample timestamp chunk offsets are measured from.
	OriginMs int64
}

// InitialCarry returns the state of a run that has not sampled yet.
func InitialCarry(p SamplerParams) Carry {
	return Carry{
		Integrator: IntegratorState{LastSpikeTimeMs: NeverSpiked},
		DelayMs:    p.InitDelayMs,
	}
}

// Sampler drives the per-chunk sampling loop. It is not safe for concurrent
// use: exactly one goroutine owns it and the Carry it produces.
type Sampler struct {
	p          SamplerParams
	source     accel.Source
	integrator *Integrator
	classifier *Classifier
	actuator   Actuator
	clock      timeutil.Clock
	logger     *zap.Logger
}

// NewSampler validates params and assembles a Sampler. actuator may be nil.
func NewSampler(params Params, source accel.Source, actuator Actuator, clock timeutil.Clock, logger *zap.Logger) (*Sampler, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	integrator, err := NewIntegrator(params.Integrator)
	if err != nil {
		return nil, err
	}
	classifier, err := NewClassifier(params.Classifier)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sampler{
		p:          params.Sampler,
		source:     source,
		integrator: integrator,
		classifier: classifier,
		actuator:   actuator,
		clock:      clock,
		logger:     logger.Named("sampler"),
	}, nil
}

// SampleSize returns the number of samples per chunk.
func (s *Sampler) SampleSize() int { return s.p.SampleSize }

// Run samples one full chunk starting from carry and returns the chunk and
// the carry for the next one. The loop cannot be interrupted; it only ends
// early when the sensor fails, in which case the error wraps
// accel.ErrSensorUnavailable and the partial chunk is discarded.
func (s *Sampler) Run(carry Carry) (*Chunk, Carry, error) {
	if carry.Last == nil {
		first, err := s.read()
		if err != nil {
			return nil, carry, err
		}
		carry.Last = &first
		carry.OriginMs = first.TimestampMs
	}

	chunk := newChunk(s.p.SampleSize)
	last := *carry.Last
	state := carry.Integrator
	delay := carry.DelayMs

	for i := 0; i < s.p.SampleSize; i++ {
		cur, err := s.read()
		if err != nil {
			return nil, carry, fmt.Errorf("sample %d: %w", i, err)
		}

		diff := accel.MotionDiff(last, cur)
		dt := cur.TimestampMs - last.TimestampMs

		state = s.integrator.Update(state, diff, dt, cur.TimestampMs)
		delay = s.nextDelay(delay, diff)
		sleepState := s.classifier.Classify(state.Activity)

		if s.actuator != nil {
			if err := s.actuator.OnState(sleepState); err != nil {
				s.logger.Warn("actuator error", zap.Error(err), zap.Stringer("state", sleepState))
			}
		}

		chunk.TsOffsetMs = append(chunk.TsOffsetMs, cur.TimestampMs-carry.OriginMs)
		chunk.TsWallMs = append(chunk.TsWallMs, cur.WallClockMs)
		chunk.Raw = append(chunk.Raw, [3]float64{cur.X, cur.Y, cur.Z})
		chunk.Activity = append(chunk.Activity, state.Activity)
		chunk.Diff = append(chunk.Diff, diff)
		chunk.Delay = append(chunk.Delay, delay)
		chunk.State = append(chunk.State, sleepState)

		last = cur
		s.clock.Sleep(time.Duration(delay * float64(time.Millisecond)))
	}

	next := Carry{
		Integrator: state,
		DelayMs:    delay,
		Last:       &last,
		OriginMs:   carry.OriginMs,
	}
	return chunk, next, nil
}

// nextDelay is a multiplicative controller: divide on movement, creep up
// when idle, always clamped to [min, max].
func (s *Sampler) nextDelay(delay, diff float64) float64 {
	if diff > s.integrator.Threshold() {
		delay /= s.p.SpeedupDivisor
		if delay < s.p.MinDelayMs {
			delay = s.p.MinDelayMs
		}
		return delay
	}
	delay *= s.p.SlowdownFactor
	if delay > s.p.MaxDelayMs {
		delay = s.p.MaxDelayMs
	}
	return delay
}

func (s *Sampler) read() (accel.Sample, error) {
	sample, err := s.source.Read()
	if err != nil {
		if errors.Is(err, accel.ErrSensorUnavailable) {
			return accel.Sample{}, err
		}
		return accel.Sample{}, fmt.Errorf("%w: %v", accel.ErrSensorUnavailable, err)
	}
	return sample, nil
}
