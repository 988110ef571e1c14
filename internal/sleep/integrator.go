// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sleep

// NeverSpiked is the initial spike time of a fresh integrator: far enough in
// the past that decay is never gated by it.
const NeverSpiked int64 = -1e10

// IntegratorState is the integrator's only memory.
type IntegratorState struct {
	Activity        float64 `json:"activity"`
	LastSpikeTimeMs int64   `json:"last_spike_time_ms"`
}

// Integrator is a non-linear leaky integrator. Spikes push activity towards 1
// by a fixed fraction of the remaining headroom; once no spike was seen for
// longer than the decay delay, activity decays exponentially.
type Integrator struct {
	p IntegratorParams
}

// NewIntegrator validates p and returns an Integrator.
func NewIntegrator(p IntegratorParams) (*Integrator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Integrator{p: p}, nil
}

// Threshold returns the spike threshold.
func (in *Integrator) Threshold() float64 { return in.p.Threshold }

// Update advances s by one sample.
//
// The spike update runs before the decay gate, and the gate reads the spike
// time that update may just have written: a step holding a fresh spike never
// decays.
func (in *Integrator) Update(s IntegratorState, diff float64, dtMs, nowMs int64) IntegratorState {
	if diff > in.p.Threshold {
		s.Activity += (1 - s.Activity) * in.p.SpikeStrength
		s.LastSpikeTimeMs = nowMs
	}

	if nowMs-s.LastSpikeTimeMs > in.p.DecayDelayMs && s.Activity > in.p.LowerBound {
		s.Activity -= s.Activity / in.p.DecayConstantMs * float64(dtMs)
	}

	// large dt can undershoot
	if s.Activity < in.p.LowerBound {
		s.Activity = 0
	}
	return s
}
