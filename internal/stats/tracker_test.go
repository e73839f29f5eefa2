package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_Counters(t *testing.T) {
	tr := NewTracker(2)

	tr.RecordAccepted("console")
	tr.RecordAccepted("console")
	tr.RecordStale()
	tr.RecordOtherUniverse()
	tr.RecordMalformed()
	tr.RecordInsufficient()
	tr.RecordDeviceError()
	tr.RecordForwarded(0, Color{R: 1, G: 2, B: 3})

	snap := tr.Snapshot()
	assert.Equal(t, uint64(2), snap.Accepted)
	assert.Equal(t, uint64(1), snap.Forwarded)
	assert.Equal(t, uint64(1), snap.DroppedStale)
	assert.Equal(t, uint64(1), snap.DroppedUniverse)
	assert.Equal(t, uint64(1), snap.Malformed)
	assert.Equal(t, uint64(1), snap.Insufficient)
	assert.Equal(t, uint64(1), snap.DeviceErrors)
	assert.Equal(t, "console", snap.LastSource)
	assert.False(t, snap.LastFrame.IsZero())
}

func TestTracker_PixelSnapshot(t *testing.T) {
	tr := NewTracker(2)

	tr.RecordForwarded(0, Color{R: 10, G: 20, B: 30})
	tr.RecordForwarded(1, Color{R: 40, G: 50, B: 60})
	tr.RecordForwarded(5, Color{R: 99}) // out of range, ignored

	snap := tr.Snapshot()
	assert.Equal(t, []Color{{10, 20, 30}, {40, 50, 60}}, snap.Pixels)

	// Snapshot is a copy, later updates must not leak into it
	tr.RecordForwarded(0, Color{})
	assert.Equal(t, Color{10, 20, 30}, snap.Pixels[0])
}

func TestTracker_Rate(t *testing.T) {
	tr := NewTracker(1)

	assert.Zero(t, tr.Rate())

	for i := 0; i < 40; i++ {
		tr.RecordAccepted("src")
	}
	assert.GreaterOrEqual(t, tr.Rate(), 40.0)
}

func TestTracker_DeviceState(t *testing.T) {
	tr := NewTracker(1)
	assert.False(t, tr.Snapshot().DeviceUp)

	tr.SetDeviceState(true)
	assert.True(t, tr.Snapshot().DeviceUp)
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker(1)
	tr.RecordAccepted("src")
	tr.RecordForwarded(0, Color{R: 255})

	tr.Reset()

	snap := tr.Snapshot()
	assert.Equal(t, Counters{}, snap.Counters)
	assert.Equal(t, Color{}, snap.Pixels[0])
	assert.True(t, snap.LastFrame.IsZero())
	assert.Zero(t, tr.Rate())
}
