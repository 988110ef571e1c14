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

	"github.com/relabs-tech/sleep_logger/internal/timeutil"
)

type controllerHarness struct {
	mu        sync.Mutex
	calls     []string
	statuses  []State
	finalized []string
	src       *scriptedSource
	disp      *recordingDispatcher
}

func newHarness(t *testing.T, failAt int) (*Controller, *controllerHarness) {
	t.Helper()
	h := &controllerHarness{disp: &recordingDispatcher{}}
	ctrl := NewController(context.Background(), Options{
		Factory: func() (*Session, error) {
			h.src = &scriptedSource{clock: timeutil.NewMockClock(epoch), failAt: failAt}
			return New(testParams(8), Deps{Source: h.src, Dispatcher: h.disp, Clock: h.src.clock})
		},
		Flush: func(context.Context) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.calls = append(h.calls, "flush")
			return nil
		},
		Finalize: func(_ context.Context, label string) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.calls = append(h.calls, "finalize")
			h.finalized = append(h.finalized, label)
			return nil
		},
		OnStatus: func(s Status) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.statuses = append(h.statuses, s.State)
		},
	})
	return ctrl, h
}

func TestController_StartStop(t *testing.T) {
	ctrl, h := newHarness(t, 0)
	assert.Equal(t, Idle, ctrl.Status().State)
	assert.Equal(t, NotRunning, ctrl.Stop())

	st, err := ctrl.Start()
	require.NoError(t, err)
	assert.Equal(t, Started, st)
	assert.True(t, ctrl.Running())

	st, err = ctrl.Start()
	require.NoError(t, err)
	assert.Equal(t, AlreadyRunning, st)

	require.Eventually(t, func() bool { return len(h.disp.all()) >= 2 }, time.Second, time.Millisecond)
	assert.Equal(t, Stopping, ctrl.Stop())
	ctrl.Wait()

	assert.False(t, ctrl.Running())
	assert.Equal(t, NotRunning, ctrl.Stop())
	assert.Equal(t, Stopped, ctrl.Status().State)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, []string{"flush", "finalize"}, h.calls)
	assert.Equal(t, []string{ctrl.Current().Label()}, h.finalized)
	assert.Equal(t, []State{Running, Stopped}, h.statuses)
	for _, c := range h.disp.chunks {
		assert.Equal(t, 8, c.Len())
	}
}

func TestController_RestartAfterStop(t *testing.T) {
	ctrl, _ := newHarness(t, 0)
	_, err := ctrl.Start()
	require.NoError(t, err)
	first := ctrl.Current()
	ctrl.Shutdown()

	st, err := ctrl.Start()
	require.NoError(t, err)
	assert.Equal(t, Started, st)
	assert.NotSame(t, first, ctrl.Current())
	assert.NotEqual(t, first.ID(), ctrl.Current().ID())
	ctrl.Shutdown()
}

func TestController_SameSecondRestartGetsDistinctLabel(t *testing.T) {
	ctrl, h := newHarness(t, 0)
	var labels []string
	for i := 0; i < 3; i++ {
		before := len(h.disp.all())
		_, err := ctrl.Start()
		require.NoError(t, err)
		labels = append(labels, ctrl.Current().Label())
		assert.Equal(t, ctrl.Current().Label(), ctrl.Status().Label)
		require.Eventually(t, func() bool { return len(h.disp.all()) > before }, time.Second, time.Millisecond)
		ctrl.Shutdown()
	}

	base := epoch.Format(LabelFormat)
	assert.Equal(t, []string{base, base + "-2", base + "-3"}, labels)
	h.mu.Lock()
	assert.Equal(t, labels, h.finalized)
	h.mu.Unlock()

	seen := map[string]bool{}
	for _, c := range h.disp.all() {
		seen[c.RunLabel] = true
	}
	for _, l := range labels {
		assert.True(t, seen[l], "chunks of run %s must carry its label", l)
	}
}

func TestController_SensorFailureEndsRun(t *testing.T) {
	ctrl, h := newHarness(t, 12)
	_, err := ctrl.Start()
	require.NoError(t, err)
	ctrl.Wait()

	assert.False(t, ctrl.Running())
	assert.Equal(t, Failed, ctrl.Status().State)
	assert.Equal(t, NotRunning, ctrl.Stop())
	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Len(t, h.finalized, 1)
}

func TestController_FactoryError(t *testing.T) {
	ctrl := NewController(context.Background(), Options{
		Factory: func() (*Session, error) { return nil, errors.New("no sensor") },
	})
	_, err := ctrl.Start()
	assert.ErrorContains(t, err, "no sensor")
	assert.False(t, ctrl.Running())
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, "started", Started.String())
	assert.Equal(t, "already_running", AlreadyRunning.String())
	assert.Equal(t, "stopping", Stopping.String())
	assert.Equal(t, "not_running", NotRunning.String())
}
