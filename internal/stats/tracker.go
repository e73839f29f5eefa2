// Package stats collects bridge counters for the dashboard and periodic
// log lines. It is the observability side channel: nothing in the dispatch
// path depends on it.
package stats

import (
	"sync"
	"time"
)

// Color is one forwarded RGB triple.
type Color struct {
	R, G, B uint8
}

// Counters are the cumulative bridge counters since start (or last reset).
type Counters struct {
	Accepted        uint64 // frames that passed universe and sequence gates
	Forwarded       uint64 // pixel writes handed to the fixture
	DroppedStale    uint64 // old/duplicate sequence numbers
	DroppedUniverse uint64 // frames for other universes
	Malformed       uint64 // datagrams the decoder rejected
	Insufficient    uint64 // frames with too little channel data for the mapping
	DeviceErrors    uint64 // failed fixture writes
}

// Snapshot is a point-in-time copy of everything the dashboard renders.
type Snapshot struct {
	Counters
	Rate       float64 // accepted frames per second
	Pixels     []Color // last color forwarded per pixel
	LastFrame  time.Time
	LastSource string
	DeviceUp   bool
}

// Tracker tracks bridge statistics. Safe for concurrent use.
type Tracker struct {
	mu         sync.RWMutex
	rateWindow time.Duration
	window     []time.Time // accepted-frame timestamps for rate calculation
	counters   Counters
	pixels     []Color
	lastFrame  time.Time
	lastSource string
	deviceUp   bool
}

// NewTracker creates a tracker for a fixture with pixelCount pixels.
func NewTracker(pixelCount int) *Tracker {
	return &Tracker{
		rateWindow: time.Second,
		pixels:     make([]Color, pixelCount),
	}
}

// RecordAccepted records a frame that passed the gates.
func (t *Tracker) RecordAccepted(sourceName string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.counters.Accepted++
	t.lastFrame = now
	t.lastSource = sourceName

	t.window = append(t.window, now)
	cutoff := now.Add(-t.rateWindow)
	kept := t.window[:0]
	for _, ts := range t.window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	t.window = kept
}

// RecordForwarded records one pixel write handed to the fixture.
func (t *Tracker) RecordForwarded(pixel int, c Color) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counters.Forwarded++
	if pixel >= 0 && pixel < len(t.pixels) {
		t.pixels[pixel] = c
	}
}

func (t *Tracker) RecordStale() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counters.DroppedStale++
}

func (t *Tracker) RecordOtherUniverse() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counters.DroppedUniverse++
}

func (t *Tracker) RecordMalformed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counters.Malformed++
}

func (t *Tracker) RecordInsufficient() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counters.Insufficient++
}

func (t *Tracker) RecordDeviceError() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counters.DeviceErrors++
}

// SetDeviceState records whether the fixture is currently reachable.
func (t *Tracker) SetDeviceState(up bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deviceUp = up
}

// Rate returns accepted frames per second over the last second.
func (t *Tracker) Rate() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := time.Now().Add(-t.rateWindow)
	count := 0
	for _, ts := range t.window {
		if ts.After(cutoff) {
			count++
		}
	}
	return float64(count) / t.rateWindow.Seconds()
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	rate := t.Rate()

	t.mu.RLock()
	defer t.mu.RUnlock()

	pixels := make([]Color, len(t.pixels))
	copy(pixels, t.pixels)

	return Snapshot{
		Counters:   t.counters,
		Rate:       rate,
		Pixels:     pixels,
		LastFrame:  t.lastFrame,
		LastSource: t.lastSource,
		DeviceUp:   t.deviceUp,
	}
}

// Reset clears all counters and pixel state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counters = Counters{}
	t.window = nil
	for i := range t.pixels {
		t.pixels[i] = Color{}
	}
	t.lastFrame = time.Time{}
	t.lastSource = ""
}
