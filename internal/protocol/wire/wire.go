// Package wire serializes a buffer, its metadata and its datatype tag into the
// stream layout shared with the peripheral:
//
//	[ payload ][ metadata ][ datatype:LE32 ][ metadataLen:LE32 ]
//
// EncodeFooter produces the same bytes without the leading payload so callers
// that already hold the payload in place can write the two halves separately.
package wire

import (
	"encoding/binary"
	"errors"
	"reflect"

	"github.com/danmuck/spilink/internal/protocol/datatype"
)

const FooterLen = 8

var (
	ErrShortFooter    = errors.New("wire: buffer shorter than footer")
	ErrMetadataLength = errors.New("wire: metadata length exceeds buffer")
)

// Serializable is an object that can describe itself on the wire.
type Serializable interface {
	Payload() []byte
	SerializeMetadata() ([]byte, datatype.Type, error)
}

// EncodeFull returns payload ‖ metadata ‖ datatype ‖ metadataLen. A nil obj
// encodes to an empty slice.
func EncodeFull(obj Serializable) ([]byte, error) {
	if isNil(obj) {
		return []byte{}, nil
	}
	meta, dt, err := obj.SerializeMetadata()
	if err != nil {
		return nil, err
	}
	payload := obj.Payload()
	out := make([]byte, 0, len(payload)+len(meta)+FooterLen)
	out = append(out, payload...)
	return AppendFooter(out, meta, dt), nil
}

// EncodeFooter returns metadata ‖ datatype ‖ metadataLen, skipping the
// payload copy.
func EncodeFooter(obj Serializable) ([]byte, error) {
	if isNil(obj) {
		return []byte{}, nil
	}
	meta, dt, err := obj.SerializeMetadata()
	if err != nil {
		return nil, err
	}
	return AppendFooter(make([]byte, 0, len(meta)+FooterLen), meta, dt), nil
}

// AppendFooter appends the footer for meta and dt to dst.
func AppendFooter(dst, meta []byte, dt datatype.Type) []byte {
	dst = append(dst, meta...)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(int32(dt)))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(meta)))
	return dst
}

// Decode splits a full encoding. The returned slices alias buf.
func Decode(buf []byte) (payload, meta []byte, dt datatype.Type, err error) {
	if len(buf) < FooterLen {
		return nil, nil, 0, ErrShortFooter
	}
	tail := buf[len(buf)-FooterLen:]
	dt = datatype.Type(int32(binary.LittleEndian.Uint32(tail[0:4])))
	metaLen := uint64(binary.LittleEndian.Uint32(tail[4:8]))
	body := buf[:len(buf)-FooterLen]
	if metaLen > uint64(len(body)) {
		return nil, nil, 0, ErrMetadataLength
	}
	split := len(body) - int(metaLen)
	return body[:split], body[split:], dt, nil
}

// DecodeFooter decodes a footer-only encoding; leading bytes before the
// metadata are rejected.
func DecodeFooter(buf []byte) (meta []byte, dt datatype.Type, err error) {
	payload, meta, dt, err := Decode(buf)
	if err != nil {
		return nil, 0, err
	}
	if len(payload) != 0 {
		return nil, 0, ErrMetadataLength
	}
	return meta, dt, nil
}

func isNil(obj Serializable) bool {
	if obj == nil {
		return true
	}
	v := reflect.ValueOf(obj)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}
