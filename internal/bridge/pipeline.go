// Package bridge decides which decoded E1.31 frames reach the fixture and
// turns their channel data into per-pixel RGB writes.
package bridge

import (
	"errors"
	"fmt"

	"github.com/pion/logging"

	"github.com/mfalme0/open-zengee/internal/fixture"
	"github.com/mfalme0/open-zengee/internal/sacn"
	"github.com/mfalme0/open-zengee/internal/stats"
)

// AcceptWindow is the sequence acceptance window: a frame is accepted when
// (seq - last) mod 256 is in [1, AcceptWindow]. 127 is the standard
// half-range split; consoles with stricter reordering tolerance may want a
// smaller window.
const AcceptWindow = 127

// InsufficientChannelsError reports a frame whose channel data cannot cover
// the configured pixel mapping. This is a console/configuration mismatch
// that recurs every frame, not a transient fault.
type InsufficientChannelsError struct {
	Have, Need int
}

func (e *InsufficientChannelsError) Error() string {
	return fmt.Sprintf("insufficient channel data: have %d channels, need %d", e.Have, e.Need)
}

// Pipeline filters decoded frames to the configured universe, rejects
// duplicates and stragglers by sequence number, maps channel data to pixels
// and forwards each pixel to the fixture.
//
// Pipeline is not safe for concurrent use: exactly one goroutine must own
// it, so sequence state advances monotonically and writes reach the fixture
// in acceptance order.
type Pipeline struct {
	cfg     Config
	out     fixture.Fixture
	tracker *stats.Tracker
	log     logging.LeveledLogger

	lastSeq  map[uint16]uint8
	accepted uint64
}

// NewPipeline creates a pipeline forwarding to out. The tracker is optional.
func NewPipeline(cfg Config, out fixture.Fixture, tracker *stats.Tracker, loggerFactory logging.LoggerFactory) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		out:     out,
		tracker: tracker,
		lastSeq: make(map[uint16]uint8),
	}
	if loggerFactory != nil {
		p.log = loggerFactory.NewLogger("bridge")
	}
	return p
}

// Dispatch runs one frame through the pipeline. Frames for other universes
// and stale frames are dropped silently with a nil return; an
// *InsufficientChannelsError or fixture write errors are returned for the
// caller to surface. Errors never stop the pipeline: every frame is
// independent and the next one supersedes whatever this one failed to
// deliver.
func (p *Pipeline) Dispatch(pkt *sacn.Packet) error {
	// Step 1: universe filter. Other universes on the wire are normal
	// multicast traffic, not errors.
	if pkt.Universe != p.cfg.Universe {
		if p.tracker != nil {
			p.tracker.RecordOtherUniverse()
		}
		return nil
	}

	// Step 2: sequence gate. The first frame for a universe is always
	// accepted; after that, only forward movement within the window.
	// State is committed here, before forwarding, so a failed device
	// write can never make an old frame acceptable again.
	if last, tracking := p.lastSeq[pkt.Universe]; tracking {
		delta := pkt.Sequence - last // mod-256 distance
		if delta == 0 || delta > AcceptWindow {
			if p.tracker != nil {
				p.tracker.RecordStale()
			}
			if p.log != nil {
				p.log.Tracef("dropping stale frame: seq %d after %d", pkt.Sequence, last)
			}
			return nil
		}
	}
	p.lastSeq[pkt.Universe] = pkt.Sequence
	if p.tracker != nil {
		p.tracker.RecordAccepted(pkt.SourceName)
	}
	p.accepted++
	if p.log != nil && p.accepted%100 == 0 {
		p.log.Debugf("accepted %d frames from %q, seq %d", p.accepted, pkt.SourceName, pkt.Sequence)
	}

	// Step 3: the mapping must fit inside the payload.
	need := p.cfg.PixelCount * 3
	if pkt.ChannelCount() < need {
		if p.tracker != nil {
			p.tracker.RecordInsufficient()
		}
		return &InsufficientChannelsError{Have: pkt.ChannelCount(), Need: need}
	}

	// Steps 4-5: map and forward in pixel order. A failed pixel does not
	// skip the remaining pixels.
	var errs []error
	for i := 0; i < p.cfg.PixelCount; i++ {
		r, g, b := pkt.ChannelData[3*i], pkt.ChannelData[3*i+1], pkt.ChannelData[3*i+2]
		if err := p.out.ApplyRGB(i, r, g, b); err != nil {
			if p.log != nil {
				p.log.Warnf("pixel %d write failed: %v", i, err)
			}
			errs = append(errs, fmt.Errorf("pixel %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
