package sacn

import (
	"encoding/binary"
	"fmt"
)

// Marshal encodes a Packet into E1.31 wire format. It is the inverse of
// Parse for every field Parse extracts; metadata (SourceAddr, ReceivedAt)
// is not part of the wire format. Used by the test source and the codec
// round-trip tests.
func Marshal(p *Packet) ([]byte, error) {
	if len(p.ChannelData) > E131MaxChannels {
		return nil, fmt.Errorf("channel data too long: %d > %d", len(p.ChannelData), E131MaxChannels)
	}
	if p.Universe < MinUniverse || p.Universe > MaxUniverse {
		return nil, fmt.Errorf("universe %d out of range", p.Universe)
	}

	size := E131HeaderSize + len(p.ChannelData)
	data := make([]byte, size)

	// === Root layer ===
	// Preamble size, postamble size (zero)
	data[0] = 0x00
	data[1] = 0x10
	copy(data[4:16], ACNPacketIdentifier)
	putFlagsLength(data[16:18], size-rootLayerOffset)
	binary.BigEndian.PutUint32(data[18:22], E131RootVector)
	copy(data[22:38], p.CID[:])

	// === Framing layer ===
	putFlagsLength(data[38:40], size-framingLayerOffset)
	binary.BigEndian.PutUint32(data[40:44], E131FramingVector)
	name := p.SourceName
	if len(name) > 63 {
		name = name[:63] // keep room for the terminating null
	}
	copy(data[44:108], name)
	data[108] = p.Priority
	data[111] = p.Sequence
	binary.BigEndian.PutUint16(data[113:115], p.Universe)

	// === DMP layer ===
	putFlagsLength(data[115:117], size-dmpLayerOffset)
	data[117] = E131DMPVector
	data[118] = E131DMPAddrType
	// First property address 0x0000, address increment 0x0001
	binary.BigEndian.PutUint16(data[121:123], 0x0001)
	binary.BigEndian.PutUint16(data[123:125], uint16(1+len(p.ChannelData)))
	data[125] = 0x00 // DMX start code
	copy(data[E131HeaderSize:], p.ChannelData)

	return data, nil
}

func putFlagsLength(field []byte, length int) {
	binary.BigEndian.PutUint16(field, 0x7000|uint16(length&0x0fff))
}
