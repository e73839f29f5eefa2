package sacn

import (
	"bytes"
	"encoding/binary"
	"time"
)

// flagsLength splits an ACN flags-and-length field: top nibble is the flags
// (always 0x7 for E1.31), low 12 bits are the PDU length.
func flagsLength(field []byte) (flags uint8, length int) {
	v := binary.BigEndian.Uint16(field)
	return uint8(v >> 12), int(v & 0x0fff)
}

// Parse decodes a raw datagram into a Packet, or rejects it with a
// *ParseError. Decoding is all-or-nothing: no partially filled Packet is
// ever returned. Parse has no side effects and is safe for concurrent use.
func Parse(data []byte) (*Packet, error) {
	if len(data) < E131HeaderSize {
		return nil, NewParseError("packet too short", 0)
	}
	if len(data) > MaxPacketSize {
		return nil, NewParseError("packet too long", 0)
	}

	// Validate preamble size (offset 0-1): must be 0x0010
	if data[0] != 0x00 || data[1] != 0x10 {
		return nil, NewParseError("invalid preamble size", 0)
	}

	// Validate ACN Packet Identifier (offset 4-15)
	if !bytes.Equal(data[4:16], ACNPacketIdentifier) {
		return nil, NewParseError("invalid ACN packet identifier", 4)
	}

	// Root layer flags & length (offset 16-17): the declared PDU length runs
	// from the field to the end of the packet. A mismatch means the sender's
	// framing disagrees with what actually arrived, so nothing downstream of
	// it can be trusted.
	flags, length := flagsLength(data[16:18])
	if flags != 0x7 {
		return nil, NewParseError("invalid root layer flags", rootLayerOffset)
	}
	if length != len(data)-rootLayerOffset {
		return nil, NewParseError("root layer length mismatch", rootLayerOffset)
	}

	// Validate Root Vector (offset 18-21): must be 0x00000004
	rootVector := binary.BigEndian.Uint32(data[18:22])
	if rootVector != E131RootVector {
		return nil, NewParseError("invalid root vector", 18)
	}

	// Framing layer flags & length (offset 38-39)
	flags, length = flagsLength(data[38:40])
	if flags != 0x7 {
		return nil, NewParseError("invalid framing layer flags", framingLayerOffset)
	}
	if length != len(data)-framingLayerOffset {
		return nil, NewParseError("framing layer length mismatch", framingLayerOffset)
	}

	// Validate Framing Vector (offset 40-43): must be 0x00000002
	framingVector := binary.BigEndian.Uint32(data[40:44])
	if framingVector != E131FramingVector {
		return nil, NewParseError("invalid framing vector", 40)
	}

	// DMP layer flags & length (offset 115-116)
	flags, length = flagsLength(data[115:117])
	if flags != 0x7 {
		return nil, NewParseError("invalid DMP layer flags", dmpLayerOffset)
	}
	if length != len(data)-dmpLayerOffset {
		return nil, NewParseError("DMP layer length mismatch", dmpLayerOffset)
	}

	// Validate DMP Vector (offset 117): must be 0x02
	if data[117] != E131DMPVector {
		return nil, NewParseError("invalid DMP vector", 117)
	}

	// Address & data type (offset 118): must be 0xa1
	if data[118] != E131DMPAddrType {
		return nil, NewParseError("invalid DMP address type", 118)
	}

	// Property value count (offset 123-124) covers the start code plus the
	// channel data, so it must account for every remaining byte.
	propCount := int(binary.BigEndian.Uint16(data[123:125]))
	if propCount != len(data)-E131HeaderSize+1 {
		return nil, NewParseError("property value count mismatch", 123)
	}

	// DMX start code (offset 125): 0x00 is dimmer data. Anything else
	// (RDM, text packets) is not channel data and must not reach a fixture.
	if data[125] != 0x00 {
		return nil, NewParseError("unsupported start code", 125)
	}

	universe := binary.BigEndian.Uint16(data[113:115])
	if universe < MinUniverse || universe > MaxUniverse {
		return nil, NewParseError("universe out of range", 113)
	}

	packet := &Packet{
		Universe:   universe,
		Priority:   data[108],
		Sequence:   data[111],
		ReceivedAt: time.Now(),
	}

	// Extract CID (offset 22-37)
	copy(packet.CID[:], data[22:38])

	// Extract Source Name (offset 44-107): 64 bytes, null-terminated
	sourceNameBytes := data[44:108]
	if nullIdx := bytes.IndexByte(sourceNameBytes, 0); nullIdx >= 0 {
		packet.SourceName = string(sourceNameBytes[:nullIdx])
	} else {
		packet.SourceName = string(sourceNameBytes)
	}

	// Extract channel data (offset 126+)
	packet.ChannelData = make([]byte, len(data)-E131HeaderSize)
	copy(packet.ChannelData, data[E131HeaderSize:])

	return packet, nil
}
