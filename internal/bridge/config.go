package bridge

import (
	"fmt"

	"github.com/mfalme0/open-zengee/internal/sacn"
)

// Config is the bridge's process configuration, passed explicitly into the
// pipeline rather than held as globals.
type Config struct {
	// DeviceAddr is the fixture's address (host or host:port).
	DeviceAddr string

	// Universe is the E1.31 universe the bridge listens to.
	Universe uint16

	// PixelCount is how many RGB triples are read from the start of the
	// channel data, pixel i from channels 3i..3i+2.
	PixelCount int
}

// Validate reports the first configuration problem, or nil.
func (c Config) Validate() error {
	if c.DeviceAddr == "" {
		return fmt.Errorf("no device address configured")
	}
	if c.Universe < sacn.MinUniverse || c.Universe > sacn.MaxUniverse {
		return fmt.Errorf("universe %d out of range %d-%d", c.Universe, sacn.MinUniverse, sacn.MaxUniverse)
	}
	if c.PixelCount < 1 {
		return fmt.Errorf("pixel count must be at least 1, got %d", c.PixelCount)
	}
	if c.PixelCount*3 > sacn.E131MaxChannels {
		return fmt.Errorf("%d pixels need %d channels, a universe only has %d",
			c.PixelCount, c.PixelCount*3, sacn.E131MaxChannels)
	}
	return nil
}
