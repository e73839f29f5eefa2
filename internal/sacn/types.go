package sacn

import (
	"net"
	"time"
)

// E131 protocol constants
const (
	E131Port        = 5568
	E131MaxChannels = 512
	E131HeaderSize  = 126

	E131RootVector    = 0x00000004
	E131FramingVector = 0x00000002
	E131DMPVector     = 0x02
	E131DMPAddrType   = 0xa1

	// MinUniverse and MaxUniverse bound the valid data universe range.
	// Universes 64000-65535 are reserved by the standard.
	MinUniverse = 1
	MaxUniverse = 63999

	// MaxPacketSize is a full 512-channel data packet.
	MaxPacketSize = E131HeaderSize + E131MaxChannels

	rootLayerOffset    = 16
	framingLayerOffset = 38
	dmpLayerOffset     = 115
)

// ACNPacketIdentifier is the magic bytes for E1.31 packets ("ASC-E1.17")
var ACNPacketIdentifier = []byte{0x41, 0x53, 0x43, 0x2d, 0x45, 0x31, 0x2e, 0x31, 0x37, 0x00, 0x00, 0x00}

// Packet is a validated E1.31 data packet. Constructed once by Parse and
// never mutated afterwards.
type Packet struct {
	// Root layer
	CID [16]byte // Component Identifier (UUID)

	// Framing layer
	SourceName string
	Priority   uint8
	Sequence   uint8
	Universe   uint16

	// DMP layer
	ChannelData []byte // DMX channel values, start code stripped

	// Metadata
	SourceAddr net.Addr
	ReceivedAt time.Time
}

// ChannelCount returns the number of channels in this packet
func (p *Packet) ChannelCount() int {
	return len(p.ChannelData)
}

// ParseError represents an error during packet parsing
type ParseError struct {
	Message string
	Offset  int
}

func (e *ParseError) Error() string {
	return e.Message
}

// NewParseError creates a new ParseError
func NewParseError(message string, offset int) *ParseError {
	return &ParseError{Message: message, Offset: offset}
}
