// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"time"

	"github.com/relabs-tech/sleep_logger/internal/accel"
	"github.com/relabs-tech/sleep_logger/internal/timeutil"
)

// MockSource generates a resting sensor (gravity on Z with slow drift)
// interrupted by a burst of movement every burstEvery.
type MockSource struct {
	stamp      stamper
	start      time.Time
	burstEvery time.Duration
	burstLen   time.Duration
}

// NewMockSource creates a synthetic source. burstEvery 0 disables movement.
func NewMockSource(clock timeutil.Clock, burstEvery time.Duration) *MockSource {
	st := newStamper(clock)
	return &MockSource{
		stamp:      st,
		start:      st.clock.Now(),
		burstEvery: burstEvery,
		burstLen:   2 * time.Second,
	}
}

func (m *MockSource) Read() (accel.Sample, error) {
	s := m.stamp.sample()
	elapsed := m.stamp.clock.Since(m.start)
	sec := elapsed.Seconds()

	s.X = 2 * math.Sin(sec*0.1)
	s.Y = 2 * math.Cos(sec*0.07)
	s.Z = 1024

	if m.burstEvery > 0 && elapsed%m.burstEvery < m.burstLen {
		s.X += 300 * math.Sin(sec*9)
		s.Y += 200 * math.Cos(sec*13)
		s.Z += 150 * math.Sin(sec*7)
	}
	return s, nil
}
