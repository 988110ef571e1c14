// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sleep

import (
	"errors"
	"fmt"
)

// ErrConfigInvalid marks a parameter set that must be rejected at startup.
var ErrConfigInvalid = errors.New("invalid configuration")

// IntegratorParams tunes the leaky activity integrator.
type IntegratorParams struct {
	Threshold       float64 // diff above which a sample counts as a spike
	SpikeStrength   float64 // fraction of the remaining headroom added per spike
	DecayConstantMs float64 // exponential decay time constant
	DecayDelayMs    int64   // quiet period before decay starts
	LowerBound      float64 // activity below this snaps to 0
}

// SamplerParams controls the adaptive sampling cadence.
type SamplerParams struct {
	SampleSize     int
	MinDelayMs     float64
	MaxDelayMs     float64
	InitDelayMs    float64
	SpeedupDivisor float64 // delay /= divisor on activity
	SlowdownFactor float64 // delay *= factor when idle
}

// ClassifierParams holds the sleep state thresholds.
type ClassifierParams struct {
	DeepThreshold float64
	WakeThreshold float64
}

// Params groups every tunable of the control loop.
type Params struct {
	Integrator IntegratorParams
	Sampler    SamplerParams
	Classifier ClassifierParams
}

// DefaultParams returns the constants the logger has always shipped with.
func DefaultParams() Params {
	return Params{
		Integrator: IntegratorParams{
			Threshold:       12.5,
			SpikeStrength:   0.07,
			DecayConstantMs: 2 * 60 * 1000,
			DecayDelayMs:    5 * 60 * 1000,
			LowerBound:      1e-3,
		},
		Sampler: SamplerParams{
			SampleSize:     128,
			MinDelayMs:     2,
			MaxDelayMs:     200,
			InitDelayMs:    2,
			SpeedupDivisor: 10,
			SlowdownFactor: 1.2,
		},
		Classifier: ClassifierParams{
			DeepThreshold: 0.01,
			WakeThreshold: 0.7,
		},
	}
}

// Validate reports the first inconsistency found, wrapped in ErrConfigInvalid.
func (p Params) Validate() error {
	if err := p.Integrator.Validate(); err != nil {
		return err
	}
	if err := p.Sampler.Validate(); err != nil {
		return err
	}
	return p.Classifier.Validate()
}

// Validate checks the integrator constants.
func (p IntegratorParams) Validate() error {
	switch {
	case p.DecayConstantMs == 0:
		return fmt.Errorf("%w: decay constant must be non-zero", ErrConfigInvalid)
	case p.DecayConstantMs < 0:
		return fmt.Errorf("%w: decay constant must be positive, got %g", ErrConfigInvalid, p.DecayConstantMs)
	case p.DecayDelayMs < 0:
		return fmt.Errorf("%w: decay delay must not be negative, got %d", ErrConfigInvalid, p.DecayDelayMs)
	case p.SpikeStrength <= 0 || p.SpikeStrength > 1:
		return fmt.Errorf("%w: spike strength must be in (0, 1], got %g", ErrConfigInvalid, p.SpikeStrength)
	case p.LowerBound < 0:
		return fmt.Errorf("%w: activity lower bound must not be negative, got %g", ErrConfigInvalid, p.LowerBound)
	case p.Threshold < 0:
		return fmt.Errorf("%w: activity threshold must not be negative, got %g", ErrConfigInvalid, p.Threshold)
	}
	return nil
}

// Validate checks the sampler bounds and factors.
func (p SamplerParams) Validate() error {
	switch {
	case p.SampleSize <= 0:
		return fmt.Errorf("%w: sample size must be positive, got %d", ErrConfigInvalid, p.SampleSize)
	case p.MinDelayMs <= 0:
		return fmt.Errorf("%w: min delay must be positive, got %g", ErrConfigInvalid, p.MinDelayMs)
	case p.MaxDelayMs < p.MinDelayMs:
		return fmt.Errorf("%w: max delay %g below min delay %g", ErrConfigInvalid, p.MaxDelayMs, p.MinDelayMs)
	case p.InitDelayMs < p.MinDelayMs || p.InitDelayMs > p.MaxDelayMs:
		return fmt.Errorf("%w: initial delay %g outside [%g, %g]", ErrConfigInvalid, p.InitDelayMs, p.MinDelayMs, p.MaxDelayMs)
	case p.SpeedupDivisor <= 1:
		return fmt.Errorf("%w: speedup divisor must be > 1, got %g", ErrConfigInvalid, p.SpeedupDivisor)
	case p.SlowdownFactor <= 1:
		return fmt.Errorf("%w: slowdown factor must be > 1, got %g", ErrConfigInvalid, p.SlowdownFactor)
	}
	return nil
}

// Validate checks that the thresholds are ordered.
func (p ClassifierParams) Validate() error {
	if !(p.DeepThreshold < p.WakeThreshold) {
		return fmt.Errorf("%w: deep threshold %g must be below wake threshold %g",
			ErrConfigInvalid, p.DeepThreshold, p.WakeThreshold)
	}
	return nil
}
