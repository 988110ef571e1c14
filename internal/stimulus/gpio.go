// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package stimulus

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// GPIODevice drives a single output pin, typically the enable line of an
// amplifier or a vibration motor driver. High while active.
type GPIODevice struct {
	mu     sync.Mutex
	pin    gpio.PinOut
	active bool
}

// NewGPIODevice opens the named pin (e.g. "GPIO17") and drives it low.
func NewGPIODevice(pinName string) (*GPIODevice, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("stimulus: periph host init: %w", err)
	}
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("stimulus: pin %q not found", pinName)
	}
	return newGPIODevice(pin)
}

func newGPIODevice(pin gpio.PinOut) (*GPIODevice, error) {
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("stimulus: pin %s low: %w", pin, err)
	}
	return &GPIODevice{pin: pin}, nil
}

// Start drives the pin high.
func (d *GPIODevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active {
		return nil
	}
	if err := d.pin.Out(gpio.High); err != nil {
		return fmt.Errorf("stimulus: pin %s high: %w", d.pin, err)
	}
	d.active = true
	return nil
}

// Stop drives the pin low.
func (d *GPIODevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active {
		return nil
	}
	if err := d.pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("stimulus: pin %s low: %w", d.pin, err)
	}
	d.active = false
	return nil
}

// IsActive reports whether the pin is currently driven high.
func (d *GPIODevice) IsActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}
