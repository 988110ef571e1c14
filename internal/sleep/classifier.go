// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sleep

import "fmt"

// State is the discrete sleep state derived from activity.
type State int

const (
	Wake State = iota
	Light
	Deep
)

func (s State) String() string {
	switch s {
	case Wake:
		return "wake"
	case Light:
		return "light"
	case Deep:
		return "deep"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Classifier maps activity to a State. There is no hysteresis band: the
// thresholds are re-evaluated on every sample, so a value hovering around a
// threshold flips state on every crossing.
type Classifier struct {
	deep float64
	wake float64
}

// NewClassifier rejects thresholds that are not strictly ordered.
func NewClassifier(p ClassifierParams) (*Classifier, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{deep: p.DeepThreshold, wake: p.WakeThreshold}, nil
}

// Classify returns the state for the given activity.
func (c *Classifier) Classify(activity float64) State {
	switch {
	case activity < c.deep:
		return Deep
	case activity < c.wake:
		return Light
	default:
		return Wake
	}
}
