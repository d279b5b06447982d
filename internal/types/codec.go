package types

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

// ErrSerialization is the base error for malformed on-disk bytes:
// truncated buffers, invalid UTF-8, bad compression frames.
var ErrSerialization = errors.New("types: serialization error")

// ErrTypeMismatch is the base error for a Value presented to a slot
// whose DataType differs, including cross-type comparisons that reach
// the codec layer.
var ErrTypeMismatch = errors.New("types: type mismatch")

// ErrInvalidData is the base error for schema-level violations.
var ErrInvalidData = errors.New("types: invalid data")

// SerializedSize returns the number of bytes Serialize would emit for
// v: 4 for numerics, 4+len(bytes) for strings.
func (v Value) SerializedSize() int {
	switch v.Type {
	case Int32, Float32:
		return 4
	case String:
		return 4 + len(v.S)
	default:
		return 0
	}
}

// Serialize encodes v little-endian: Int32/Float32 as 4 raw bytes,
// String as a u32 length prefix followed by UTF-8 bytes.
func (v Value) Serialize() []byte {
	switch v.Type {
	case Int32:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(v.I))
		return buf
	case Float32:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v.F))
		return buf
	case String:
		b := []byte(v.S)
		buf := make([]byte, 4+len(b))
		binary.LittleEndian.PutUint32(buf, uint32(len(b)))
		copy(buf[4:], b)
		return buf
	default:
		return nil
	}
}

// DeserializeValue decodes a single value of the given type from the
// front of buf. It fails with ErrSerialization if buf is too short or
// a string's bytes are not valid UTF-8.
func DeserializeValue(dt DataType, buf []byte) (Value, error) {
	switch dt {
	case Int32:
		if len(buf) < 4 {
			return Value{}, errors.Wrap(ErrSerialization, "truncated int32")
		}
		return NewInt32(int32(binary.LittleEndian.Uint32(buf))), nil
	case Float32:
		if len(buf) < 4 {
			return Value{}, errors.Wrap(ErrSerialization, "truncated float32")
		}
		return NewFloat32(math.Float32frombits(binary.LittleEndian.Uint32(buf))), nil
	case String:
		if len(buf) < 4 {
			return Value{}, errors.Wrap(ErrSerialization, "truncated string length prefix")
		}
		n := int(binary.LittleEndian.Uint32(buf))
		if len(buf) < 4+n {
			return Value{}, errors.Wrap(ErrSerialization, "truncated string contents")
		}
		b := buf[4 : 4+n]
		if !utf8.Valid(b) {
			return Value{}, errors.Wrap(ErrSerialization, "invalid utf-8")
		}
		return NewString(string(b)), nil
	default:
		return Value{}, errors.Wrap(ErrTypeMismatch, "unknown data type")
	}
}
