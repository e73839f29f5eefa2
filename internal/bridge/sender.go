package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/mfalme0/open-zengee/internal/fixture"
	"github.com/mfalme0/open-zengee/internal/stats"
)

// DefaultFlushInterval matches the ~40 Hz refresh of E1.31 sources.
const DefaultFlushInterval = 25 * time.Millisecond

// SenderConfig configures a Sender.
type SenderConfig struct {
	// Fixture is the device the sender writes to. Required.
	Fixture fixture.Fixture

	// PixelCount is the number of pixel slots.
	PixelCount int

	// FlushInterval is how often pending pixels are written out.
	// Defaults to DefaultFlushInterval.
	FlushInterval time.Duration

	// Tracker records forwarded pixels and device errors. Optional.
	Tracker *stats.Tracker

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

type pixelSlot struct {
	color stats.Color
	dirty bool
}

// Sender decouples the dispatch pipeline from the fixture's network
// round-trip. ApplyRGB only records the latest color per pixel; a flush
// loop writes dirty pixels out on a ticker. Intermediate values that are
// superseded before a flush are never sent, and a wedged device can never
// back up into the UDP receive path.
//
// A flush skips pixels whose color matches the last successful write, so
// a console holding a static look doesn't generate device traffic.
type Sender struct {
	cfg SenderConfig
	log logging.LeveledLogger

	mu      sync.Mutex
	pending []pixelSlot

	flushMu  sync.Mutex  // serializes flushes; lastSent is owned by it
	lastSent []pixelSlot // dirty here means "a write succeeded at least once"

	runMu   sync.Mutex
	started bool
	done    chan struct{}
}

// NewSender creates a sender in front of cfg.Fixture.
func NewSender(cfg SenderConfig) (*Sender, error) {
	if cfg.Fixture == nil {
		return nil, fmt.Errorf("sender: no fixture configured")
	}
	if cfg.PixelCount < 1 {
		return nil, fmt.Errorf("sender: pixel count must be at least 1, got %d", cfg.PixelCount)
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}

	s := &Sender{
		cfg:      cfg,
		pending:  make([]pixelSlot, cfg.PixelCount),
		lastSent: make([]pixelSlot, cfg.PixelCount),
	}
	if cfg.LoggerFactory != nil {
		s.log = cfg.LoggerFactory.NewLogger("sender")
	}
	return s, nil
}

// ApplyRGB stores the latest color for a pixel. It never blocks and never
// touches the network.
func (s *Sender) ApplyRGB(pixel int, r, g, b uint8) error {
	if pixel < 0 || pixel >= s.cfg.PixelCount {
		return fmt.Errorf("sender: pixel %d out of range 0-%d", pixel, s.cfg.PixelCount-1)
	}
	s.mu.Lock()
	s.pending[pixel] = pixelSlot{color: stats.Color{R: r, G: g, B: b}, dirty: true}
	s.mu.Unlock()
	return nil
}

// Start launches the flush loop. It runs until the context is done.
func (s *Sender) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.started {
		return fmt.Errorf("sender already started")
	}
	s.started = true
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.cfg.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				// One last flush so the fixture ends on the final look
				s.Flush()
				return
			case <-ticker.C:
				s.Flush()
			}
		}
	}()
	return nil
}

// Wait blocks until the flush loop has exited.
func (s *Sender) Wait() {
	s.runMu.Lock()
	done := s.done
	s.runMu.Unlock()
	if done != nil {
		<-done
	}
}

// Flush writes every dirty pixel to the fixture. Writes happen outside the
// pending lock, so ApplyRGB is never delayed by the device.
func (s *Sender) Flush() {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	batch := make([]pixelSlot, len(s.pending))
	copy(batch, s.pending)
	for i := range s.pending {
		s.pending[i].dirty = false
	}
	s.mu.Unlock()

	for i, slot := range batch {
		if !slot.dirty {
			continue
		}
		if s.lastSent[i].dirty && s.lastSent[i].color == slot.color {
			continue // unchanged since last successful write
		}

		err := s.cfg.Fixture.ApplyRGB(i, slot.color.R, slot.color.G, slot.color.B)
		if err != nil {
			// lastSent keeps the old value: the next frame carrying this
			// color marks the pixel dirty again and the write is retried.
			if s.cfg.Tracker != nil {
				s.cfg.Tracker.RecordDeviceError()
				s.cfg.Tracker.SetDeviceState(false)
			}
			if s.log != nil {
				s.log.Warnf("pixel %d write failed: %v", i, err)
			}
			continue
		}

		s.lastSent[i] = pixelSlot{color: slot.color, dirty: true}
		if s.cfg.Tracker != nil {
			s.cfg.Tracker.RecordForwarded(i, slot.color)
			s.cfg.Tracker.SetDeviceState(true)
		}
	}
}
