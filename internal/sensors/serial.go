// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/sleep_logger/internal/accel"
	"github.com/relabs-tech/sleep_logger/internal/timeutil"
)

// SerialSource reads "x,y,z" lines from a microcontroller bridging the
// accelerometer over a serial port. Lines that do not parse are skipped.
type SerialSource struct {
	port   io.Closer
	reader *bufio.Reader
	stamp  stamper
}

// OpenSerialSource opens portName at baud, 8N1.
func OpenSerialSource(portName string, baud uint, clock timeutil.Clock) (*SerialSource, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: serial open %s: %v", accel.ErrSensorUnavailable, portName, err)
	}
	return NewSerialSource(port, clock), nil
}

// NewSerialSource reads lines from r. r is closed by Close when it is an
// io.Closer.
func NewSerialSource(r io.Reader, clock timeutil.Clock) *SerialSource {
	s := &SerialSource{reader: bufio.NewReader(r), stamp: newStamper(clock)}
	if c, ok := r.(io.Closer); ok {
		s.port = c
	}
	return s
}

// Read blocks until a complete sample line arrives.
func (s *SerialSource) Read() (accel.Sample, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return accel.Sample{}, fmt.Errorf("%w: serial read: %v", accel.ErrSensorUnavailable, err)
		}
		x, y, z, ok := parseXYZ(line)
		if !ok {
			continue
		}
		sample := s.stamp.sample()
		sample.X, sample.Y, sample.Z = x, y, z
		return sample, nil
	}
}

func (s *SerialSource) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}

func parseXYZ(line string) (x, y, z float64, ok bool) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 3 {
		return 0, 0, 0, false
	}
	var v [3]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return 0, 0, 0, false
		}
		v[i] = n
	}
	return v[0], v[1], v[2], true
}
