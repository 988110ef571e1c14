// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package stimulus

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ToneParams describes the looped beat stimulus: two phase-opposed sines at
// BaseHz and BaseHz+BeatHz.
type ToneParams struct {
	BaseHz     float64
	BeatHz     float64
	Seconds    float64
	SampleRate int
	Gap        time.Duration // pause between loops
}

// DefaultToneParams returns a 40 Hz carrier with a 0.75 Hz beat.
func DefaultToneParams() ToneParams {
	return ToneParams{
		BaseHz:     40,
		BeatHz:     0.75,
		Seconds:    6.68,
		SampleRate: 48000,
		Gap:        500 * time.Millisecond,
	}
}

// Waveform renders one loop of the stimulus, normalized by its maximum.
func Waveform(p ToneParams) []float32 {
	n := int(p.Seconds * float64(p.SampleRate))
	out := make([]float32, n)
	f1 := p.BaseHz
	f2 := p.BaseHz + p.BeatHz
	rate := float64(p.SampleRate)

	var peak float64
	raw := make([]float64, n)
	for i := range raw {
		v := math.Sin(f1*float64(i)/rate*2*math.Pi) + math.Sin(f2*float64(i)/rate*2*math.Pi+math.Pi)
		raw[i] = v
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		return out
	}
	for i, v := range raw {
		out[i] = float32(v / peak)
	}
	return out
}

// OutputFactory opens the sink for one playback run: one mono float32
// little-endian PCM stream.
type OutputFactory func() (io.WriteCloser, error)

// PlayerCommand returns an OutputFactory feeding the waveform to an external
// player's stdin, e.g. "aplay -q -t raw -f FLOAT_LE -c 1 -r 48000".
func PlayerCommand(name string, args ...string) OutputFactory {
	return func() (io.WriteCloser, error) {
		cmd := exec.Command(name, args...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		return &cmdWriter{WriteCloser: stdin, cmd: cmd}, nil
	}
}

type cmdWriter struct {
	io.WriteCloser
	cmd *exec.Cmd
}

func (w *cmdWriter) Close() error {
	err := w.WriteCloser.Close()
	if werr := w.cmd.Wait(); err == nil {
		err = werr
	}
	return err
}

// frameBytes is the PCM written per call; stop is checked between frames.
const frameBytes = 4096

// ToneDevice loops the waveform on a background goroutine while active.
// Each playback only reads the stop channel it was started with.
type ToneDevice struct {
	mu     sync.Mutex
	pcm    []byte
	gap    time.Duration
	open   OutputFactory
	cur    *playback // running playback, nil when inactive
	last   *playback // most recently started playback
	logger *zap.Logger
	loops  int
}

type playback struct {
	stop chan struct{}
	done chan struct{}
	err  error // guarded by ToneDevice.mu
}

// NewToneDevice pre-renders the waveform.
func NewToneDevice(p ToneParams, open OutputFactory, logger *zap.Logger) *ToneDevice {
	if logger == nil {
		logger = zap.NewNop()
	}
	wave := Waveform(p)
	pcm := make([]byte, 4*len(wave))
	for i, v := range wave {
		binary.LittleEndian.PutUint32(pcm[4*i:], math.Float32bits(v))
	}
	return &ToneDevice{
		pcm:    pcm,
		gap:    p.Gap,
		open:   open,
		logger: logger.Named("tone"),
	}
}

// Start launches playback unless it is already running.
func (d *ToneDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cur != nil {
		return nil
	}
	out, err := d.open()
	if err != nil {
		return fmt.Errorf("tone: open output: %w", err)
	}
	pb := &playback{stop: make(chan struct{}), done: make(chan struct{})}
	d.cur, d.last = pb, pb
	go d.play(out, pb)
	return nil
}

// Stop signals the running playback and returns without waiting for it.
// The player stops within one frame and is closed in the background.
func (d *ToneDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cur == nil {
		return nil
	}
	close(d.cur.stop)
	d.cur = nil
	return nil
}

// IsActive reports whether a playback is running.
func (d *ToneDevice) IsActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cur != nil
}

// Loops returns how many full waveform loops were written.
func (d *ToneDevice) Loops() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loops
}

// Err returns the error of the most recent playback, if it failed.
func (d *ToneDevice) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return nil
	}
	return d.last.err
}

func (d *ToneDevice) play(out io.WriteCloser, pb *playback) {
	defer close(pb.done)
	defer func() {
		if err := out.Close(); err != nil {
			d.fail(pb, fmt.Errorf("tone: close output: %w", err))
		}
	}()

	for {
		for off := 0; off < len(d.pcm); off += frameBytes {
			select {
			case <-pb.stop:
				return
			default:
			}
			end := off + frameBytes
			if end > len(d.pcm) {
				end = len(d.pcm)
			}
			if _, err := out.Write(d.pcm[off:end]); err != nil {
				d.fail(pb, fmt.Errorf("tone: write: %w", err))
				return
			}
		}
		d.mu.Lock()
		d.loops++
		d.mu.Unlock()

		select {
		case <-pb.stop:
			return
		case <-time.After(d.gap):
		}
	}
}

// fail records err on pb and marks the device inactive if pb is still
// running.
func (d *ToneDevice) fail(pb *playback, err error) {
	d.logger.Warn("playback error", zap.Error(err))
	d.mu.Lock()
	defer d.mu.Unlock()
	if pb.err == nil {
		pb.err = err
	}
	if d.cur == pb {
		close(pb.stop)
		d.cur = nil
	}
}
