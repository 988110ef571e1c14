// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package stimulus drives the feedback stimulus from the classified sleep
// state.
package stimulus

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/relabs-tech/sleep_logger/internal/sleep"
)

// Device is the physical stimulus. Start on an active device and Stop on an
// inactive one must both be no-ops.
type Device interface {
	Start() error
	Stop() error
	IsActive() bool
}

// Controller turns the device on while the subject is in deep sleep and off
// otherwise. It has no debounce: activity oscillating around the deep
// threshold toggles the device on every crossing.
//
// active is owned by the controller and only mutated from the goroutine
// calling OnState. A device's own playback goroutine never touches it.
type Controller struct {
	device Device
	active bool
	logger *zap.Logger
}

// NewController wraps device.
func NewController(device Device, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{device: device, logger: logger.Named("stimulus")}
}

// OnState implements sleep.Actuator.
func (c *Controller) OnState(state sleep.State) error {
	switch {
	case state == sleep.Deep && !c.active:
		if err := c.device.Start(); err != nil {
			return fmt.Errorf("start stimulus: %w", err)
		}
		c.active = true
		c.logger.Info("stimulus started")
	case state != sleep.Deep && c.active:
		if err := c.device.Stop(); err != nil {
			return fmt.Errorf("stop stimulus: %w", err)
		}
		c.active = false
		c.logger.Info("stimulus stopped", zap.Stringer("state", state))
	}
	return nil
}

// Active reports whether the controller last switched the device on.
func (c *Controller) Active() bool { return c.active }

// Release stops the device if the controller left it running.
func (c *Controller) Release() error {
	if !c.active {
		return nil
	}
	c.active = false
	return c.device.Stop()
}

// NopDevice is used when no stimulus hardware is configured.
type NopDevice struct {
	active bool
}

func (d *NopDevice) Start() error   { d.active = true; return nil }
func (d *NopDevice) Stop() error    { d.active = false; return nil }
func (d *NopDevice) IsActive() bool { return d.active }
