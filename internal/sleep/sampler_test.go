// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sleep

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/sleep_logger/internal/accel"
	"github.com/relabs-tech/sleep_logger/internal/timeutil"
)

type sliceSource struct {
	samples []accel.Sample
	pos     int
	failAt  int // -1 disables
}

func newSliceSource(samples []accel.Sample) *sliceSource {
	return &sliceSource{samples: samples, failAt: -1}
}

func (s *sliceSource) Read() (accel.Sample, error) {
	if s.pos == s.failAt || s.pos >= len(s.samples) {
		return accel.Sample{}, errors.New("i2c: no ack")
	}
	out := s.samples[s.pos]
	s.pos++
	return out, nil
}

type recordingActuator struct {
	states []State
}

func (r *recordingActuator) OnState(s State) error {
	r.states = append(r.states, s)
	return nil
}

// syntheticStream produces quiet noise with bursts of movement and the
// occasional repeated timestamp.
func syntheticStream(n int, seed int64) []accel.Sample {
	rng := rand.New(rand.NewSource(seed))
	out := make([]accel.Sample, n)
	ts := int64(1000)
	x, y, z := 10.0, -4.0, 1024.0
	for i := range out {
		switch {
		case i%97 < 6:
			x += rng.NormFloat64() * 80
			y += rng.NormFloat64() * 80
			z += rng.NormFloat64() * 80
		default:
			x += rng.NormFloat64()
			y += rng.NormFloat64()
			z += rng.NormFloat64()
		}
		if i%31 != 0 {
			ts += 1 + rng.Int63n(150)
		}
		out[i] = accel.Sample{TimestampMs: ts, WallClockMs: 1_700_000_000_000 + ts, X: x, Y: y, Z: z}
	}
	return out
}

func newTestSampler(t *testing.T, size int, src accel.Source, act Actuator, clock timeutil.Clock) *Sampler {
	t.Helper()
	p := DefaultParams()
	p.Sampler.SampleSize = size
	p.Integrator.DecayDelayMs = 2000
	p.Integrator.DecayConstantMs = 5000
	s, err := NewSampler(p, src, act, clock, nil)
	require.NoError(t, err)
	return s
}

func concat(chunks ...*Chunk) *Chunk {
	out := newChunk(0)
	for _, c := range chunks {
		out.TsOffsetMs = append(out.TsOffsetMs, c.TsOffsetMs...)
		out.TsWallMs = append(out.TsWallMs, c.TsWallMs...)
		out.Raw = append(out.Raw, c.Raw...)
		out.Activity = append(out.Activity, c.Activity...)
		out.Diff = append(out.Diff, c.Diff...)
		out.Delay = append(out.Delay, c.Delay...)
		out.State = append(out.State, c.State...)
	}
	return out
}

func TestSampler_DelayStaysInBoundsAndRatioIsLimited(t *testing.T) {
	stream := syntheticStream(2001, 1)
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	s := newTestSampler(t, 2000, newSliceSource(stream), nil, clock)

	chunk, _, err := s.Run(InitialCarry(s.p))
	require.NoError(t, err)
	require.Equal(t, 2000, chunk.Len())

	prev := s.p.InitDelayMs
	sawMin, sawMax := false, false
	for i, d := range chunk.Delay {
		require.GreaterOrEqual(t, d, s.p.MinDelayMs, "slot %d", i)
		require.LessOrEqual(t, d, s.p.MaxDelayMs, "slot %d", i)
		require.LessOrEqual(t, d/prev, s.p.SlowdownFactor+1e-9, "slot %d", i)
		require.LessOrEqual(t, prev/d, s.p.SpeedupDivisor+1e-9, "slot %d", i)
		sawMin = sawMin || d == s.p.MinDelayMs
		sawMax = sawMax || d == s.p.MaxDelayMs
		prev = d
	}
	assert.True(t, sawMin, "movement bursts should pin the delay to the minimum")
	assert.True(t, sawMax, "quiet stretches should pin the delay to the maximum")
}

func TestSampler_SleepsForTheCurrentDelay(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	s := newTestSampler(t, 50, newSliceSource(syntheticStream(51, 2)), nil, clock)

	chunk, _, err := s.Run(InitialCarry(s.p))
	require.NoError(t, err)

	sleeps := clock.Sleeps()
	require.Len(t, sleeps, 50)
	for i, d := range chunk.Delay {
		assert.Equal(t, time.Duration(d*float64(time.Millisecond)), sleeps[i])
	}
}

func TestSampler_ChunkBoundariesAreInvisible(t *testing.T) {
	stream := syntheticStream(129, 3)

	split := newTestSampler(t, 64, newSliceSource(stream), nil, timeutil.NewMockClock(time.Unix(0, 0)))
	first, carry, err := split.Run(InitialCarry(split.p))
	require.NoError(t, err)
	second, carrySplit, err := split.Run(carry)
	require.NoError(t, err)

	whole := newTestSampler(t, 128, newSliceSource(stream), nil, timeutil.NewMockClock(time.Unix(0, 0)))
	single, carryWhole, err := whole.Run(InitialCarry(whole.p))
	require.NoError(t, err)

	assert.Equal(t, carryWhole.Integrator, carrySplit.Integrator)
	assert.Equal(t, carryWhole.DelayMs, carrySplit.DelayMs)
	assert.Equal(t, *carryWhole.Last, *carrySplit.Last)
	if diff := cmp.Diff(single, concat(first, second)); diff != "" {
		t.Errorf("split run differs from single run (-single +split):\n%s", diff)
	}
}

func TestSampler_FirstChunkPrimesFromExtraRead(t *testing.T) {
	stream := syntheticStream(11, 4)
	src := newSliceSource(stream)
	s := newTestSampler(t, 10, src, nil, timeutil.NewMockClock(time.Unix(0, 0)))

	chunk, carry, err := s.Run(InitialCarry(s.p))
	require.NoError(t, err)
	assert.Equal(t, 11, src.pos)
	assert.Equal(t, stream[1].TimestampMs-stream[0].TimestampMs, chunk.TsOffsetMs[0])
	assert.Equal(t, stream[0].TimestampMs, carry.OriginMs)
	assert.InDelta(t, accel.MotionDiff(stream[0], stream[1]), chunk.Diff[0], 1e-12)
}

func TestSampler_SensorFailureAbortsChunk(t *testing.T) {
	src := newSliceSource(syntheticStream(100, 5))
	src.failAt = 20
	s := newTestSampler(t, 64, src, nil, timeutil.NewMockClock(time.Unix(0, 0)))

	chunk, _, err := s.Run(InitialCarry(s.p))
	assert.Nil(t, chunk)
	assert.ErrorIs(t, err, accel.ErrSensorUnavailable)
}

func TestSampler_ActuatorSeesEverySample(t *testing.T) {
	act := &recordingActuator{}
	s := newTestSampler(t, 40, newSliceSource(syntheticStream(41, 6)), act, timeutil.NewMockClock(time.Unix(0, 0)))

	chunk, _, err := s.Run(InitialCarry(s.p))
	require.NoError(t, err)
	assert.Equal(t, chunk.State, act.states)
}

func TestSampler_RepeatedTimestampDoesNotDecay(t *testing.T) {
	stream := []accel.Sample{
		{TimestampMs: 0},
		{TimestampMs: 0},
		{TimestampMs: 0},
	}
	s := newTestSampler(t, 2, newSliceSource(stream), nil, timeutil.NewMockClock(time.Unix(0, 0)))
	carry := InitialCarry(s.p)
	carry.Integrator.Activity = 0.5

	chunk, _, err := s.Run(carry)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5}, chunk.Activity)
}
