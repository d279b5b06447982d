// Package block implements the on-disk block format: a compressed,
// fixed-schema run of Values plus the physical (page-level) compression
// and checksum trailer that wraps it on its way to a column file.
package block

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/swiss"

	"github.com/omerghazali/vddb/internal/types"
)

// maxRunLength is the largest count an RLE run can carry in one byte.
// Longer runs of identical values are split into consecutive runs, per
// the block format's 1-byte run-count field.
const maxRunLength = 255

// encodeLogical compresses values under the requested CompressionType
// and returns the logical (pre-physical-compression) byte stream. It is
// the direct implementation of the spec's Compression codec.
func encodeLogical(values []types.Value, ct types.CompressionType) ([]byte, error) {
	switch ct {
	case types.CompressionNone:
		return encodeNone(values), nil
	case types.CompressionRLE:
		return encodeRLE(values), nil
	case types.CompressionDictionary:
		return encodeDictionary(values)
	default:
		return nil, errors.Wrapf(types.ErrInvalidData, "unknown compression type %d", ct)
	}
}

// decodeLogical is the inverse of encodeLogical.
func decodeLogical(data []byte, dt types.DataType, ct types.CompressionType, rowCount int) ([]types.Value, error) {
	switch ct {
	case types.CompressionNone:
		return decodeNone(data, dt, rowCount)
	case types.CompressionRLE:
		return decodeRLE(data, dt)
	case types.CompressionDictionary:
		return decodeDictionary(data, dt)
	default:
		return nil, errors.Wrapf(types.ErrInvalidData, "unknown compression type %d", ct)
	}
}

func encodeNone(values []types.Value) []byte {
	var buf []byte
	for _, v := range values {
		buf = append(buf, v.Serialize()...)
	}
	return buf
}

func decodeNone(data []byte, dt types.DataType, rowCount int) ([]types.Value, error) {
	values := make([]types.Value, 0, rowCount)
	cursor := 0
	for cursor < len(data) {
		v, err := types.DeserializeValue(dt, data[cursor:])
		if err != nil {
			return nil, err
		}
		cursor += v.SerializedSize()
		values = append(values, v)
	}
	return values, nil
}

// encodeRLE emits a sequence of runs. Each run is a single byte count
// (1..255) followed by one encoded value; a left-to-right single pass
// groups adjacent equal values, splitting runs longer than 255 into
// consecutive runs of the same value.
func encodeRLE(values []types.Value) []byte {
	var buf []byte
	i := 0
	for i < len(values) {
		current := values[i]
		run := 1
		for i+run < len(values) && run < maxRunLength && values[i+run].Equal(current) {
			run++
		}
		buf = append(buf, byte(run))
		buf = append(buf, current.Serialize()...)
		i += run
	}
	return buf
}

func decodeRLE(data []byte, dt types.DataType) ([]types.Value, error) {
	var values []types.Value
	cursor := 0
	for cursor < len(data) {
		if cursor+1 > len(data) {
			return nil, errors.Wrap(types.ErrSerialization, "truncated rle run count")
		}
		count := int(data[cursor])
		if count == 0 {
			return nil, errors.Wrap(types.ErrSerialization, "rle run count of 0")
		}
		cursor++
		v, err := types.DeserializeValue(dt, data[cursor:])
		if err != nil {
			return nil, err
		}
		cursor += v.SerializedSize()
		for j := 0; j < count; j++ {
			values = append(values, v)
		}
	}
	return values, nil
}

// encodeDictionary assigns dictionary IDs in first-appearance order and
// emits: u64 N, N u64 ids, u64 D, then D records of {u64 id, u64
// byte_len, bytes}. Only valid for String columns.
func encodeDictionary(values []types.Value) ([]byte, error) {
	forward := swiss.New[string, uint64](len(values))
	var dictOrder []string
	ids := make([]uint64, len(values))
	for i, v := range values {
		if v.Type != types.String {
			return nil, errors.Wrap(types.ErrInvalidData, "dictionary compression requires string values")
		}
		id, ok := forward.Get(v.S)
		if !ok {
			id = uint64(len(dictOrder))
			forward.Put(v.S, id)
			dictOrder = append(dictOrder, v.S)
		}
		ids[i] = id
	}

	var buf []byte
	buf = appendU64(buf, uint64(len(values)))
	for _, id := range ids {
		buf = appendU64(buf, id)
	}
	buf = appendU64(buf, uint64(len(dictOrder)))
	for id, s := range dictOrder {
		buf = appendU64(buf, uint64(id))
		b := []byte(s)
		buf = appendU64(buf, uint64(len(b)))
		buf = append(buf, b...)
	}
	return buf, nil
}

func decodeDictionary(data []byte, dt types.DataType) ([]types.Value, error) {
	if dt != types.String {
		return nil, errors.Wrap(types.ErrInvalidData, "dictionary compression requires string column")
	}
	cursor := 0
	n, err := readU64(data, &cursor)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, n)
	for i := range ids {
		id, err := readU64(data, &cursor)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	d, err := readU64(data, &cursor)
	if err != nil {
		return nil, err
	}
	dict := make(map[uint64]string, d)
	for i := uint64(0); i < d; i++ {
		id, err := readU64(data, &cursor)
		if err != nil {
			return nil, err
		}
		byteLen, err := readU64(data, &cursor)
		if err != nil {
			return nil, err
		}
		if cursor+int(byteLen) > len(data) {
			return nil, errors.Wrap(types.ErrSerialization, "truncated dictionary entry")
		}
		dict[id] = string(data[cursor : cursor+int(byteLen)])
		cursor += int(byteLen)
	}

	values := make([]types.Value, n)
	for i, id := range ids {
		s, ok := dict[id]
		if !ok {
			return nil, errors.Wrap(types.ErrSerialization, "unknown dictionary id")
		}
		values[i] = types.NewString(s)
	}
	return values, nil
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func readU64(data []byte, cursor *int) (uint64, error) {
	if *cursor+8 > len(data) {
		return 0, errors.Wrap(types.ErrSerialization, "truncated u64 field")
	}
	v := binary.LittleEndian.Uint64(data[*cursor : *cursor+8])
	*cursor += 8
	return v, nil
}
