package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	BuffMaxSize    = 256
	PayloadMaxSize = 252

	StartByte byte = 0xAA
	EmptyByte byte = 0x00
	EndByte   byte = 0xBB

	headerLen     = 3
	payloadOffset = headerLen
	endOffset     = payloadOffset + PayloadMaxSize
)

var (
	ErrShortPacket     = errors.New("packet: short packet")
	ErrInvalidStart    = errors.New("packet: invalid start marker")
	ErrInvalidEnd      = errors.New("packet: invalid end marker")
	ErrPayloadTooLarge = errors.New("packet: payload too large")
)

// Marker is the classification of a packet's first byte.
type Marker int

const (
	MarkerValid Marker = iota
	MarkerEmpty
	MarkerMalformed
)

func (m Marker) String() string {
	switch m {
	case MarkerValid:
		return "valid"
	case MarkerEmpty:
		return "empty"
	default:
		return "malformed"
	}
}

// Packet is one fixed-size transfer unit.
type Packet [BuffMaxSize]byte

// Classify inspects only the leading marker byte.
func Classify(raw []byte) Marker {
	if len(raw) == 0 {
		return MarkerEmpty
	}
	switch raw[0] {
	case StartByte:
		return MarkerValid
	case EmptyByte:
		return MarkerEmpty
	default:
		return MarkerMalformed
	}
}

// Encode places payload into a framed packet.
func Encode(payload []byte) (Packet, error) {
	var p Packet
	if len(payload) > PayloadMaxSize {
		return p, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), PayloadMaxSize)
	}
	p[0] = StartByte
	binary.LittleEndian.PutUint16(p[1:3], uint16(len(payload)))
	copy(p[payloadOffset:endOffset], payload)
	p[endOffset] = EndByte
	return p, nil
}

// Parse validates a raw packet and returns its payload. The returned slice
// aliases raw.
func Parse(raw []byte) ([]byte, error) {
	if len(raw) < BuffMaxSize {
		return nil, ErrShortPacket
	}
	if raw[0] != StartByte {
		return nil, ErrInvalidStart
	}
	if raw[endOffset] != EndByte {
		return nil, ErrInvalidEnd
	}
	n := int(binary.LittleEndian.Uint16(raw[1:3]))
	if n > PayloadMaxSize {
		return nil, ErrPayloadTooLarge
	}
	return raw[payloadOffset : payloadOffset+n], nil
}

// Bytes returns the packet as a slice backed by p.
func (p *Packet) Bytes() []byte {
	return p[:]
}
