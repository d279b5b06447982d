package block

import (
	"encoding/binary"

	"github.com/DataDog/zstd"
	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"

	"github.com/omerghazali/vddb/internal/types"
)

// PhysicalCodec selects the page-level byte compression applied to an
// already logically-encoded block before it is written to a column
// file. It is independent of, and sits strictly beneath, the spec's
// logical CompressionType (None/RLE/Dictionary): the logical encoding
// runs first, and PhysicalCodec only squeezes the resulting bytes
// further, the same layering sstable block compression (Snappy/Zstd/
// None) uses beneath the key/value encoding.
type PhysicalCodec byte

const (
	PhysicalNone PhysicalCodec = iota
	PhysicalSnappy
	PhysicalZstd
)

// trailerLen is 1 compression-tag byte + 4 checksum bytes, mirroring
// the block-trailer layout described in the sstable package: a 1 byte
// block type and a 4 byte checksum computed over the compressed data
// and that type byte.
const trailerLen = 5

// WrapWithTrailer physically compresses logical (already
// RLE/Dictionary/None-encoded) bytes and appends the 5-byte trailer.
func WrapWithTrailer(logical []byte, codec PhysicalCodec) ([]byte, error) {
	var compressed []byte
	switch codec {
	case PhysicalNone:
		compressed = logical
	case PhysicalSnappy:
		compressed = snappy.Encode(nil, logical)
	case PhysicalZstd:
		c, err := zstd.Compress(nil, logical)
		if err != nil {
			return nil, errors.Wrap(err, "block: zstd compress")
		}
		compressed = c
	default:
		return nil, errors.Newf("block: unknown physical codec %d", codec)
	}

	out := make([]byte, len(compressed)+trailerLen)
	copy(out, compressed)
	out[len(compressed)] = byte(codec)
	checksum := checksumOf(out[:len(compressed)+1])
	binary.LittleEndian.PutUint32(out[len(compressed)+1:], checksum)
	return out, nil
}

// UnwrapTrailer verifies the trailer checksum, strips it, and
// physically decompresses the remaining bytes back to the logical
// encoding WrapWithTrailer was given.
func UnwrapTrailer(raw []byte) ([]byte, error) {
	if len(raw) < trailerLen {
		return nil, errors.Wrap(types.ErrSerialization, "block: truncated trailer")
	}
	bodyAndTag := raw[:len(raw)-4]
	wantChecksum := binary.LittleEndian.Uint32(raw[len(raw)-4:])
	if checksumOf(bodyAndTag) != wantChecksum {
		return nil, errors.Wrap(types.ErrSerialization, "block: checksum mismatch")
	}
	codec := PhysicalCodec(bodyAndTag[len(bodyAndTag)-1])
	compressed := bodyAndTag[:len(bodyAndTag)-1]

	switch codec {
	case PhysicalNone:
		return compressed, nil
	case PhysicalSnappy:
		logical, err := snappy.Decode(nil, compressed)
		if err != nil {
			return nil, errors.Wrap(types.ErrSerialization, "block: snappy decompress")
		}
		return logical, nil
	case PhysicalZstd:
		logical, err := zstd.Decompress(nil, compressed)
		if err != nil {
			return nil, errors.Wrap(types.ErrSerialization, "block: zstd decompress")
		}
		return logical, nil
	default:
		return nil, errors.Wrap(types.ErrSerialization, "block: unknown physical codec in trailer")
	}
}

func checksumOf(b []byte) uint32 {
	return uint32(xxhash.Sum64(b))
}
