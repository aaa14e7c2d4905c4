package messaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	MaxStreams        = 12
	MaxStreamNameSize = 16
)

// Status is the single-code outcome of pop-style commands.
type Status uint32

const (
	StatusSuccess Status = 0
	StatusFailure Status = 1
)

var (
	ErrShortResponse  = errors.New("messaging: short response payload")
	ErrTooManyStreams = errors.New("messaging: too many streams")
	ErrStreamNameSize = errors.New("messaging: stream name too long")
)

// DecodeSize reads a SizeResponse.
func DecodeSize(payload []byte) (uint32, error) {
	if len(payload) < 4 {
		return 0, ErrShortResponse
	}
	return binary.LittleEndian.Uint32(payload[0:4]), nil
}

func EncodeSize(size uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, size)
	return buf
}

// DecodeStatus reads a StatusResponse.
func DecodeStatus(payload []byte) (Status, error) {
	if len(payload) < 4 {
		return StatusFailure, ErrShortResponse
	}
	return Status(binary.LittleEndian.Uint32(payload[0:4])), nil
}

func EncodeStatus(s Status) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(s))
	return buf
}

// DecodeStreams reads a count-prefixed list of fixed-width stream names.
func DecodeStreams(payload []byte) ([]string, error) {
	if len(payload) < 1 {
		return nil, ErrShortResponse
	}
	count := int(payload[0])
	if count > MaxStreams {
		return nil, fmt.Errorf("%w: %d", ErrTooManyStreams, count)
	}
	if len(payload) < 1+count*MaxStreamNameSize {
		return nil, ErrShortResponse
	}
	streams := make([]string, 0, count)
	for i := 0; i < count; i++ {
		off := 1 + i*MaxStreamNameSize
		name := payload[off : off+MaxStreamNameSize]
		if n := bytes.IndexByte(name, 0); n >= 0 {
			name = name[:n]
		}
		streams = append(streams, string(name))
	}
	return streams, nil
}

// EncodeStreams writes names in the GET_STREAMS response layout. Names must
// leave room for a terminating NUL.
func EncodeStreams(names []string) ([]byte, error) {
	if len(names) > MaxStreams {
		return nil, fmt.Errorf("%w: %d", ErrTooManyStreams, len(names))
	}
	buf := make([]byte, 1+len(names)*MaxStreamNameSize)
	buf[0] = byte(len(names))
	for i, name := range names {
		if len(name) >= MaxStreamNameSize {
			return nil, fmt.Errorf("%w: %q", ErrStreamNameSize, name)
		}
		copy(buf[1+i*MaxStreamNameSize:], name)
	}
	return buf, nil
}
