// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package display

import (
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"
)

// Panel geometry.
const (
	Width  = 128
	Height = 32

	DefaultOLEDAddr uint16 = 0x3C

	// noiseLevel is the diff peak below which the trace is drawn at a third
	// of the panel height.
	noiseLevel = 20
)

// panel is the part of ssd1306.Dev the renderer needs.
type panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// OLED shows summaries on a 128x32 SSD1306.
type OLED struct {
	dev    panel
	closer interface{ Close() error }
}

// OpenOLED opens the I2C bus, initializes the panel at DefaultOLEDAddr and
// shows the splash screen. The driver only talks to 0x3C.
func OpenOLED(busName string) (*OLED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}
	opts := ssd1306.DefaultOpts
	opts.W, opts.H = Width, Height
	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to initialize display at 0x%02X: %w", DefaultOLEDAddr, err)
	}
	o := &OLED{dev: dev, closer: bus}
	if err := o.Splash(); err != nil {
		o.Close()
		return nil, err
	}
	return o, nil
}

func newOLED(p panel) *OLED { return &OLED{dev: p} }

// Splash draws the framed greeting.
func (o *OLED) Splash() error {
	return o.dev.Draw(o.dev.Bounds(), RenderSplash(), image.Point{})
}

func (o *OLED) Show(s Summary) error {
	return o.dev.Draw(o.dev.Bounds(), RenderFrame(s), image.Point{})
}

func (o *OLED) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}

// RenderSplash returns the "Sleep Well" frame.
func RenderSplash() *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, Width, Height))
	for x := 0; x < Width; x++ {
		img.SetBit(x, 0, image1bit.On)
		img.SetBit(x, Height-1, image1bit.On)
	}
	for y := 0; y < Height; y++ {
		img.SetBit(0, y, image1bit.On)
		img.SetBit(Width-1, y, image1bit.On)
	}
	drawCentered(img, "Sleep Well")
	return img
}

// RenderFrame draws the diff trace with the status text in the top-right
// corner. A triggered summary shows only "STIMULUS".
func RenderFrame(s Summary) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, Width, Height))
	if s.Trigger {
		drawCentered(img, "STIMULUS")
		return img
	}

	ys := TraceRows(s.Timeseries)
	for x := 0; x+1 < len(ys); x++ {
		drawLine(img, x, ys[x], x+1, ys[x+1])
	}
	if len(ys) == 1 {
		img.SetBit(0, ys[0], image1bit.On)
	}
	if s.StatusText != "" {
		w := textWidth(s.StatusText)
		drawText(img, s.StatusText, Width-w, basicfont.Face7x13.Ascent)
	}
	return img
}

// TraceRows maps a diff series to panel rows, one per column. Series longer
// than two panel widths are decimated, then only the newest Width points
// are kept. Peaks above noiseLevel use the full height.
func TraceRows(data []float64) []int {
	if len(data) == 0 {
		return nil
	}
	if step := len(data) / Width; step > 1 {
		sub := make([]float64, 0, len(data)/step+1)
		for i := 0; i < len(data); i += step {
			sub = append(sub, data[i])
		}
		data = sub
	}
	if len(data) > Width {
		data = data[len(data)-Width:]
	}

	peak := 0.0
	for _, v := range data {
		if v > peak {
			peak = v
		}
	}
	span := float64(Height)
	if peak <= noiseLevel {
		span = float64(Height) / 3
	}

	rows := make([]int, len(data))
	for i, v := range data {
		h := 0.0
		if peak > 0 {
			h = v / peak * span
		}
		y := Height - 1 - int(h)
		if y < 0 {
			y = 0
		}
		if y > Height-1 {
			y = Height - 1
		}
		rows[i] = y
	}
	return rows
}

func drawLine(img *image1bit.VerticalLSB, x0, y0, x1, y1 int) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		img.SetBit(x0, y0, image1bit.On)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func drawCentered(img *image1bit.VerticalLSB, text string) {
	face := basicfont.Face7x13
	x := (Width - textWidth(text)) / 2
	y := (Height + face.Ascent - face.Descent) / 2
	drawText(img, text, x, y)
}

func drawText(img *image1bit.VerticalLSB, text string, x, y int) {
	d := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func textWidth(text string) int {
	return font.MeasureString(basicfont.Face7x13, text).Ceil()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
