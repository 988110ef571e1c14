// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package display

import (
	"errors"
	"image"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

type recordingDisplay struct {
	mu    sync.Mutex
	shown []Summary
	gate  chan struct{}
	err   error
}

func (d *recordingDisplay) Show(s Summary) error {
	if d.gate != nil {
		<-d.gate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown = append(d.shown, s)
	return d.err
}

func (d *recordingDisplay) all() []Summary {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Summary(nil), d.shown...)
}

func TestAsync_UpdateDoesNotBlock(t *testing.T) {
	target := &recordingDisplay{gate: make(chan struct{})}
	a := NewAsync(target, nil)

	start := time.Now()
	for i := 0; i < 100; i++ {
		a.Update(Summary{StatusText: string(rune('a' + i%26))})
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	close(target.gate)
	a.Update(Summary{StatusText: "last"})
	a.Close()

	shown := target.all()
	require.NotEmpty(t, shown)
	assert.Equal(t, "last", shown[len(shown)-1].StatusText)
	n, skipped := a.Counts()
	assert.Equal(t, uint64(len(shown)), n)
	assert.Equal(t, uint64(101), n+skipped)
}

func TestAsync_RenderErrorIsLogged(t *testing.T) {
	target := &recordingDisplay{err: errors.New("i2c nack")}
	a := NewAsync(target, nil)
	a.Update(Summary{StatusText: "x"})
	a.Close()
	a.Update(Summary{StatusText: "after close"})
	assert.Len(t, target.all(), 1)
}

func TestMulti_ShowsOnAll(t *testing.T) {
	a, b := &recordingDisplay{err: errors.New("down")}, &recordingDisplay{}
	err := Multi{a, b}.Show(Summary{StatusText: "0.12"})
	assert.EqualError(t, err, "down")
	assert.Len(t, b.all(), 1)
}

func TestTraceRows(t *testing.T) {
	assert.Nil(t, TraceRows(nil))

	// Quiet signal is drawn at a third of the height.
	rows := TraceRows([]float64{0, 5, 10})
	assert.Equal(t, []int{Height - 1, Height - 1 - 5, Height - 1 - 10}, rows)

	// Movement uses the full height.
	rows = TraceRows([]float64{0, 50, 100})
	assert.Equal(t, []int{Height - 1, Height - 1 - 16, 0}, rows)

	// All zeros stay on the bottom row.
	assert.Equal(t, []int{Height - 1, Height - 1}, TraceRows([]float64{0, 0}))

	// 300 points are decimated by 2 and trimmed to the newest Width.
	long := make([]float64, 300)
	for i := range long {
		long[i] = float64(i)
	}
	rows = TraceRows(long)
	assert.Len(t, rows, Width)
	assert.Equal(t, 0, rows[len(rows)-1])
}

func countOn(img *image1bit.VerticalLSB, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.BitAt(x, y) == image1bit.On {
				n++
			}
		}
	}
	return n
}

func TestRenderFrame(t *testing.T) {
	trace := make([]float64, 64)
	trace[32] = 100
	img := RenderFrame(Summary{Timeseries: trace, StatusText: "0.42"})

	assert.Equal(t, image1bit.On, img.BitAt(0, Height-1), "trace baseline")
	assert.Equal(t, image1bit.On, img.BitAt(32, 0), "spike reaches the top")
	assert.Positive(t, countOn(img, image.Rect(Width-textWidth("0.42"), 0, Width, 13)), "status text top-right")

	stim := RenderFrame(Summary{Timeseries: trace, Trigger: true})
	assert.Equal(t, image1bit.Off, stim.BitAt(0, Height-1), "stimulus frame hides the trace")
	assert.Positive(t, countOn(stim, stim.Bounds()))
}

func TestRenderSplash(t *testing.T) {
	img := RenderSplash()
	assert.Equal(t, image1bit.On, img.BitAt(0, 0))
	assert.Equal(t, image1bit.On, img.BitAt(Width-1, Height-1))
	assert.Positive(t, countOn(img, image.Rect(2, 2, Width-2, Height-2)))
}

type fakePanel struct {
	draws int
}

func (p *fakePanel) Bounds() image.Rectangle { return image.Rect(0, 0, Width, Height) }
func (p *fakePanel) Draw(image.Rectangle, image.Image, image.Point) error {
	p.draws++
	return nil
}

func TestOLED_ShowDraws(t *testing.T) {
	p := &fakePanel{}
	o := newOLED(p)
	require.NoError(t, o.Splash())
	require.NoError(t, o.Show(Summary{Timeseries: []float64{1, 2}}))
	assert.Equal(t, 2, p.draws)
	assert.NoError(t, o.Close())
}

func TestWebFeed_Broadcast(t *testing.T) {
	feed := NewWebFeed(nil)
	require.NoError(t, feed.Show(Summary{StatusText: "first"}))

	srv := httptest.NewServer(feed)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var got Summary
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "first", got.StatusText)

	require.Eventually(t, func() bool { return feed.Clients() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, feed.Show(Summary{StatusText: "second", Trigger: true}))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "second", got.StatusText)
	assert.True(t, got.Trigger)

	conn.Close()
	assert.Eventually(t, func() bool { return feed.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestOffer_EvictsOldest(t *testing.T) {
	ch := make(chan Summary, 2)
	for _, s := range []string{"a", "b", "c"} {
		offer(ch, Summary{StatusText: s})
	}
	assert.Equal(t, "b", (<-ch).StatusText)
	assert.Equal(t, "c", (<-ch).StatusText)
}
