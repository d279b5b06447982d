// Package metadata persists, per column, the ordered list of on-disk
// block descriptors (offset, row count, min/max, compression, size)
// that make block-level predicate pruning possible without touching
// the column's data file.
package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/omerghazali/vddb/internal/types"
)

// BlockInfo describes one on-disk block.
type BlockInfo struct {
	Offset         int64
	RowCount       int
	Min            types.Value
	Max            types.Value
	Compression    types.CompressionType
	SerializedSize int64
}

// blockInfoJSON is BlockInfo's wire shape: types.Value doesn't marshal
// itself usefully (an empty String is indistinguishable from a zero
// Int32 under struct tags alone), so Min/Max are flattened explicitly.
type blockInfoJSON struct {
	Offset         int64
	RowCount       int
	MinType        types.DataType
	MinI           int32
	MinF           float32
	MinS           string
	MaxType        types.DataType
	MaxI           int32
	MaxF           float32
	MaxS           string
	Compression    types.CompressionType
	SerializedSize int64
}

func toJSON(b BlockInfo) blockInfoJSON {
	return blockInfoJSON{
		Offset: b.Offset, RowCount: b.RowCount,
		MinType: b.Min.Type, MinI: b.Min.I, MinF: b.Min.F, MinS: b.Min.S,
		MaxType: b.Max.Type, MaxI: b.Max.I, MaxF: b.Max.F, MaxS: b.Max.S,
		Compression: b.Compression, SerializedSize: b.SerializedSize,
	}
}

func fromJSON(j blockInfoJSON) BlockInfo {
	return BlockInfo{
		Offset: j.Offset, RowCount: j.RowCount,
		Min:         types.Value{Type: j.MinType, I: j.MinI, F: j.MinF, S: j.MinS},
		Max:         types.Value{Type: j.MaxType, I: j.MaxI, F: j.MaxF, S: j.MaxS},
		Compression: j.Compression, SerializedSize: j.SerializedSize,
	}
}

// BlockMetadata is the persistent, append-ordered list of BlockInfo for
// a single column.
type BlockMetadata struct {
	dataType types.DataType
	path     string
	blocks   []BlockInfo
}

// Load reads the metadata JSON at <metadataDir>/<columnName>.json. A
// missing file yields an empty BlockMetadata.
func Load(metadataDir, columnName string, dataType types.DataType) (*BlockMetadata, error) {
	path := filepath.Join(metadataDir, columnName+".json")
	m := &BlockMetadata{dataType: dataType, path: path}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, errors.Wrapf(types.ErrIO, "reading block metadata %s: %v", path, err)
	}
	var entries []blockInfoJSON
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errors.Wrapf(types.ErrSerialization, "parsing block metadata %s: %v", path, err)
	}
	m.blocks = make([]BlockInfo, len(entries))
	for i, e := range entries {
		m.blocks[i] = fromJSON(e)
	}
	return m, nil
}

// Save persists the metadata as a single JSON document.
func (m *BlockMetadata) Save() error {
	entries := make([]blockInfoJSON, len(m.blocks))
	for i, b := range m.blocks {
		entries[i] = toJSON(b)
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return errors.Wrap(types.ErrSerialization, err.Error())
	}
	if err := os.WriteFile(m.path, raw, 0o644); err != nil {
		return errors.Wrapf(types.ErrIO, "writing block metadata %s: %v", m.path, err)
	}
	return nil
}

// AddBlock appends a new BlockInfo and immediately persists.
func (m *BlockMetadata) AddBlock(min, max types.Value, offset int64, rowCount int, compression types.CompressionType, serializedSize int64) error {
	if min.Type != m.dataType || max.Type != m.dataType {
		return errors.Wrap(types.ErrTypeMismatch, "block min/max type does not match column type")
	}
	m.blocks = append(m.blocks, BlockInfo{
		Offset: offset, RowCount: rowCount, Min: min, Max: max,
		Compression: compression, SerializedSize: serializedSize,
	})
	return m.Save()
}

// Blocks returns the BlockInfo list, in append order, optionally
// filtered by a block-level predicate. A nil predicate returns every
// block. Block deduplication by offset is applied so metadata entries
// that might reference the same offset are never read twice.
func (m *BlockMetadata) Blocks(surviving func(BlockInfo) bool) []BlockInfo {
	seen := make(map[int64]bool, len(m.blocks))
	out := make([]BlockInfo, 0, len(m.blocks))
	for _, b := range m.blocks {
		if seen[b.Offset] {
			continue
		}
		seen[b.Offset] = true
		if surviving == nil || surviving(b) {
			out = append(out, b)
		}
	}
	return out
}

// Clear drops every block descriptor and persists the empty list.
func (m *BlockMetadata) Clear() error {
	m.blocks = nil
	return m.Save()
}

// DataType returns the owning column's declared type.
func (m *BlockMetadata) DataType() types.DataType { return m.dataType }
