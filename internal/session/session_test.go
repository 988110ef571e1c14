// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/sleep_logger/internal/accel"
	"github.com/relabs-tech/sleep_logger/internal/display"
	"github.com/relabs-tech/sleep_logger/internal/sleep"
	"github.com/relabs-tech/sleep_logger/internal/timeutil"
)

var epoch = time.Date(2026, 10, 17, 23, 4, 5, 0, time.UTC)

// scriptedSource moves every fifth sample and can fail or call back on a
// given read.
type scriptedSource struct {
	clock  *timeutil.MockClock
	mu     sync.Mutex
	reads  int
	failAt int
	onRead func(n int)
}

func (s *scriptedSource) Read() (accel.Sample, error) {
	s.mu.Lock()
	s.reads++
	n := s.reads
	s.mu.Unlock()
	if s.onRead != nil {
		s.onRead(n)
	}
	if s.failAt > 0 && n >= s.failAt {
		return accel.Sample{}, errors.New("i2c timeout")
	}
	now := s.clock.Now()
	x := 0.0
	if n%5 == 0 {
		x = 90
	}
	return accel.Sample{
		TimestampMs: now.Sub(epoch).Milliseconds(),
		WallClockMs: now.UnixMilli(),
		X:           x,
		Z:           1024,
	}, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	chunks []*sleep.Chunk
}

func (d *recordingDispatcher) Dispatch(c *sleep.Chunk) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.chunks = append(d.chunks, c)
}

func (d *recordingDispatcher) all() []*sleep.Chunk {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*sleep.Chunk(nil), d.chunks...)
}

type recordingRenderer struct {
	mu        sync.Mutex
	summaries []display.Summary
}

func (r *recordingRenderer) Update(s display.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, s)
}

type fakeStimulus struct {
	active   bool
	released int
}

func (f *fakeStimulus) OnState(s sleep.State) error { f.active = s == sleep.Deep; return nil }
func (f *fakeStimulus) Active() bool                { return f.active }
func (f *fakeStimulus) Release() error              { f.released++; f.active = false; return nil }

func testParams(size int) sleep.Params {
	p := sleep.DefaultParams()
	p.Sampler.SampleSize = size
	return p
}

func newTestSession(t *testing.T, src *scriptedSource, size int) (*Session, *recordingDispatcher, *recordingRenderer, *fakeStimulus) {
	t.Helper()
	d, r, st := &recordingDispatcher{}, &recordingRenderer{}, &fakeStimulus{}
	sess, err := New(testParams(size), Deps{
		Source:     src,
		Stimulus:   st,
		Dispatcher: d,
		Display:    r,
		Clock:      src.clock,
	})
	require.NoError(t, err)
	return sess, d, r, st
}

func TestSession_StopMidChunkCompletesChunk(t *testing.T) {
	src := &scriptedSource{clock: timeutil.NewMockClock(epoch)}
	sess, d, r, st := newTestSession(t, src, 16)
	// Read 1 primes, reads 2..17 fill chunk 0, stop arrives during chunk 1.
	src.onRead = func(n int) {
		if n == 20 {
			sess.Stop()
		}
	}

	assert.Equal(t, "2026-10-17-23H-04M-05S", sess.Label())
	assert.Equal(t, Idle, sess.Status().State)

	require.NoError(t, sess.Run(context.Background()))

	chunks := d.all()
	require.Len(t, chunks, 2)
	for i, c := range chunks {
		assert.Equal(t, 16, c.Len())
		assert.Equal(t, i, c.Cycle)
		assert.Equal(t, sess.Label(), c.RunLabel)
	}
	assert.Same(t, chunks[1], sess.LastChunk())
	assert.Equal(t, 33, src.reads)

	status := sess.Status()
	assert.Equal(t, Stopped, status.State)
	assert.Equal(t, 2, status.Cycles)
	assert.NotNil(t, status.EndedAt)
	assert.NotEmpty(t, status.ID)

	require.Len(t, r.summaries, 2)
	assert.Equal(t, chunks[1].Diff, r.summaries[1].Timeseries)
	assert.Len(t, r.summaries[1].StatusText, 4)
	assert.Equal(t, 1, st.released)

	assert.Error(t, sess.Run(context.Background()), "a session runs once")
}

func TestSession_OffsetsContinueAcrossChunks(t *testing.T) {
	src := &scriptedSource{clock: timeutil.NewMockClock(epoch)}
	sess, d, _, _ := newTestSession(t, src, 8)
	src.onRead = func(n int) {
		if n == 30 {
			sess.Stop()
		}
	}
	require.NoError(t, sess.Run(context.Background()))

	var prev int64 = -1
	for _, c := range d.all() {
		for _, ts := range c.TsOffsetMs {
			assert.Greater(t, ts, prev)
			prev = ts
		}
	}
}

func TestSession_SensorFailure(t *testing.T) {
	src := &scriptedSource{clock: timeutil.NewMockClock(epoch), failAt: 40}
	sess, d, _, st := newTestSession(t, src, 16)

	err := sess.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, accel.ErrSensorUnavailable)
	assert.Len(t, d.all(), 2, "partial chunk is discarded")

	status := sess.Status()
	assert.Equal(t, Failed, status.State)
	assert.Contains(t, status.Error, "i2c timeout")
	assert.Equal(t, 1, st.released)
}

func TestSession_ContextCancelStopsAtBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &scriptedSource{clock: timeutil.NewMockClock(epoch)}
	sess, d, _, _ := newTestSession(t, src, 10)
	src.onRead = func(n int) {
		if n == 5 {
			cancel()
		}
	}
	require.NoError(t, sess.Run(ctx))
	require.Len(t, d.all(), 1)
	assert.Equal(t, 10, d.all()[0].Len())
}

func TestNew_Validation(t *testing.T) {
	src := &scriptedSource{clock: timeutil.NewMockClock(epoch)}
	_, err := New(testParams(8), Deps{Source: src})
	assert.ErrorIs(t, err, sleep.ErrConfigInvalid)

	_, err = New(testParams(8), Deps{Dispatcher: &recordingDispatcher{}})
	assert.ErrorIs(t, err, sleep.ErrConfigInvalid)

	bad := testParams(8)
	bad.Classifier.DeepThreshold = 0.9
	_, err = New(bad, Deps{Source: src, Dispatcher: &recordingDispatcher{}})
	assert.ErrorIs(t, err, sleep.ErrConfigInvalid)
}

func TestState_Text(t *testing.T) {
	for _, s := range []State{Idle, Running, Stopped, Failed} {
		b, err := s.MarshalText()
		require.NoError(t, err)
		var got State
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, s, got)
	}
	var s State
	assert.Error(t, s.UnmarshalText([]byte("sleeping")))
}
