// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors provides the accelerometer sources: the MMA8452Q over
// I2C, a serial line bridge and a synthetic source.
package sensors

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/sleep_logger/internal/accel"
	"github.com/relabs-tech/sleep_logger/internal/timeutil"
)

// MMA8452Q reads the 12-bit three axis accelerometer at ±2 g, 800 Hz.
type MMA8452Q struct {
	mu     sync.Mutex
	dev    *i2c.Dev
	closer interface{ Close() error }
	stamp  stamper
}

// OpenMMA8452Q opens the named I2C bus ("" for the first one) and configures
// the device at addr.
func OpenMMA8452Q(busName string, addr uint16, clock timeutil.Clock) (*MMA8452Q, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%w: periph host init: %v", accel.ErrSensorUnavailable, err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("%w: i2c open %q: %v", accel.ErrSensorUnavailable, busName, err)
	}
	m, err := NewMMA8452Q(bus, addr, clock)
	if err != nil {
		bus.Close()
		return nil, err
	}
	m.closer = bus
	return m, nil
}

// NewMMA8452Q configures the device on an already open bus.
func NewMMA8452Q(bus i2c.Bus, addr uint16, clock timeutil.Clock) (*MMA8452Q, error) {
	if addr == 0 {
		addr = MMA8452QDefaultAddr
	}
	m := &MMA8452Q{
		dev:   &i2c.Dev{Bus: bus, Addr: addr},
		stamp: newStamper(clock),
	}
	id, err := m.ReadRegister(regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("%w: MMA8452Q WHO_AM_I: %v", accel.ErrSensorUnavailable, err)
	}
	if id != whoAmIValue {
		return nil, fmt.Errorf("%w: unexpected WHO_AM_I 0x%02X at 0x%02X", accel.ErrSensorUnavailable, id, addr)
	}
	if err := m.writeRegister(regCtrlReg1, odr800|modeActive); err != nil {
		return nil, fmt.Errorf("%w: MMA8452Q CTRL_REG1: %v", accel.ErrSensorUnavailable, err)
	}
	if err := m.writeRegister(regXYZDataCfg, fullScale2G); err != nil {
		return nil, fmt.Errorf("%w: MMA8452Q XYZ_DATA_CFG: %v", accel.ErrSensorUnavailable, err)
	}
	return m, nil
}

// Read returns one sample in raw counts (1 g = 1024 at ±2 g).
func (m *MMA8452Q) Read() (accel.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var buf [7]byte
	if err := m.dev.Tx([]byte{regStatus}, buf[:]); err != nil {
		return accel.Sample{}, fmt.Errorf("%w: MMA8452Q read: %v", accel.ErrSensorUnavailable, err)
	}
	s := m.stamp.sample()
	s.X = decodeAxis(buf[1], buf[2])
	s.Y = decodeAxis(buf[3], buf[4])
	s.Z = decodeAxis(buf[5], buf[6])
	return s, nil
}

// ReadRegister returns the value of a single register.
func (m *MMA8452Q) ReadRegister(addr byte) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var v [1]byte
	if err := m.dev.Tx([]byte{addr}, v[:]); err != nil {
		return 0, err
	}
	return v[0], nil
}

// DumpRegisters reads every register listed in MMA8452QRegisterMap.
func (m *MMA8452Q) DumpRegisters() (map[byte]byte, error) {
	out := make(map[byte]byte)
	for _, r := range MMA8452QRegisterMap() {
		v, err := m.ReadRegister(r.Address)
		if err != nil {
			return nil, fmt.Errorf("register 0x%02X (%s): %w", r.Address, r.Name, err)
		}
		out[r.Address] = v
	}
	return out, nil
}

// Close releases the bus when the driver opened it.
func (m *MMA8452Q) Close() error {
	if m.closer == nil {
		return nil
	}
	return m.closer.Close()
}

func (m *MMA8452Q) writeRegister(reg, value byte) error {
	return m.dev.Tx([]byte{reg, value}, nil)
}

// decodeAxis converts a left-justified 12-bit two's complement pair.
func decodeAxis(msb, lsb byte) float64 {
	raw := (int(msb)<<8 | int(lsb)) >> 4
	if raw > 2047 {
		raw -= 4096
	}
	return float64(raw)
}

// stamper assigns monotonic and wall clock timestamps to samples.
type stamper struct {
	clock  timeutil.Clock
	origin time.Time
}

func newStamper(clock timeutil.Clock) stamper {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return stamper{clock: clock, origin: clock.Now()}
}

func (s stamper) sample() accel.Sample {
	now := s.clock.Now()
	return accel.Sample{
		TimestampMs: now.Sub(s.origin).Milliseconds(),
		WallClockMs: now.UnixMilli(),
	}
}
