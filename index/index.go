// Package index implements the secondary index: an ordered Value ->
// list-of-offsets map persisted as a single binary blob. The query
// engine does not consult it for filtering (see spec Non-goals); it is
// maintained on insert and cleared on delete/drop so it stays
// consistent for future use.
package index

import (
	"encoding/binary"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/omerghazali/vddb/internal/types"
)

type entry struct {
	value   types.Value
	offsets []uint64
}

// Index is an ordered association from Value to a deduplicated list of
// u64 offsets, kept sorted by Value so RangeLookup can binary-search.
type Index struct {
	path     string
	dataType types.DataType
	entries  []entry
}

// Open loads (or creates) the index file at path.
func Open(path string, dataType types.DataType) (*Index, error) {
	idx := &Index{path: path, dataType: dataType}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, errors.Wrapf(types.ErrIO, "reading index %s: %v", path, err)
	}
	if len(raw) == 0 {
		return idx, nil
	}
	if err := idx.decode(raw); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) decode(raw []byte) error {
	cursor := 0
	readU32 := func() (uint32, error) {
		if cursor+4 > len(raw) {
			return 0, errors.Wrap(types.ErrSerialization, "index: truncated u32")
		}
		v := binary.LittleEndian.Uint32(raw[cursor : cursor+4])
		cursor += 4
		return v, nil
	}
	readU64 := func() (uint64, error) {
		if cursor+8 > len(raw) {
			return 0, errors.Wrap(types.ErrSerialization, "index: truncated u64")
		}
		v := binary.LittleEndian.Uint64(raw[cursor : cursor+8])
		cursor += 8
		return v, nil
	}

	n, err := readU32()
	if err != nil {
		return err
	}
	idx.entries = make([]entry, 0, n)
	for i := uint32(0); i < n; i++ {
		valueLen, err := readU32()
		if err != nil {
			return err
		}
		if cursor+int(valueLen) > len(raw) {
			return errors.Wrap(types.ErrSerialization, "index: truncated value bytes")
		}
		v, err := types.DeserializeValue(idx.dataType, raw[cursor:cursor+int(valueLen)])
		if err != nil {
			return err
		}
		cursor += int(valueLen)
		offsetCount, err := readU32()
		if err != nil {
			return err
		}
		offsets := make([]uint64, offsetCount)
		for j := range offsets {
			offsets[j], err = readU64()
			if err != nil {
				return err
			}
		}
		idx.entries = append(idx.entries, entry{value: v, offsets: offsets})
	}
	return nil
}

func (idx *Index) encode() []byte {
	var buf []byte
	var tmp4 [4]byte
	var tmp8 [8]byte
	putU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(tmp4[:], v)
		buf = append(buf, tmp4[:]...)
	}
	putU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(tmp8[:], v)
		buf = append(buf, tmp8[:]...)
	}
	putU32(uint32(len(idx.entries)))
	for _, e := range idx.entries {
		vb := e.value.Serialize()
		putU32(uint32(len(vb)))
		buf = append(buf, vb...)
		putU32(uint32(len(e.offsets)))
		for _, o := range e.offsets {
			putU64(o)
		}
	}
	return buf
}

func (idx *Index) save() error {
	return os.WriteFile(idx.path, idx.encode(), 0o644)
}

// find returns the index into idx.entries for value, and whether it
// was found, via binary search over the sorted entry list.
func (idx *Index) find(value types.Value) (int, bool) {
	lo, hi := 0, len(idx.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		c := types.Compare(idx.entries[mid].value, value)
		switch {
		case c == 0:
			return mid, true
		case c < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false
}

// Append records offset against every value in values, deduplicating
// offsets per bucket, then persists.
func (idx *Index) Append(values []types.Value, offset uint64) error {
	for _, v := range values {
		if v.Type != idx.dataType {
			return errors.Wrap(types.ErrTypeMismatch, "index: value type does not match indexed column type")
		}
		pos, found := idx.find(v)
		if found {
			e := &idx.entries[pos]
			dup := false
			for _, o := range e.offsets {
				if o == offset {
					dup = true
					break
				}
			}
			if !dup {
				e.offsets = append(e.offsets, offset)
			}
		} else {
			newEntry := entry{value: v, offsets: []uint64{offset}}
			idx.entries = append(idx.entries, entry{})
			copy(idx.entries[pos+1:], idx.entries[pos:])
			idx.entries[pos] = newEntry
		}
	}
	return idx.save()
}

// Lookup returns the offsets recorded for an exact value.
func (idx *Index) Lookup(value types.Value) ([]uint64, error) {
	if value.Type != idx.dataType {
		return nil, errors.Wrap(types.ErrTypeMismatch, "index: value type does not match indexed column type")
	}
	pos, found := idx.find(value)
	if !found {
		return nil, nil
	}
	return append([]uint64(nil), idx.entries[pos].offsets...), nil
}

// RangeLookup returns the offsets for every indexed value in [min, max].
func (idx *Index) RangeLookup(min, max types.Value) ([]uint64, error) {
	if min.Type != idx.dataType || max.Type != idx.dataType {
		return nil, errors.Wrap(types.ErrTypeMismatch, "index: value type does not match indexed column type")
	}
	lo, _ := idx.find(min)
	var out []uint64
	for i := lo; i < len(idx.entries); i++ {
		if types.Compare(idx.entries[i].value, max) > 0 {
			break
		}
		out = append(out, idx.entries[i].offsets...)
	}
	return out, nil
}

// Clear empties the index and persists the empty state.
func (idx *Index) Clear() error {
	idx.entries = nil
	return idx.save()
}

// Remove deletes the index file entirely.
func (idx *Index) Remove() error {
	if err := os.Remove(idx.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(types.ErrIO, err.Error())
	}
	return nil
}
