// Package column implements the append-only per-column data file: the
// column store delegates encoding to block and offset bookkeeping to
// metadata, and is the only component that knows how block-level
// predicate pruning interacts with the physical file.
package column

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/omerghazali/vddb/block"
	"github.com/omerghazali/vddb/internal/types"
	"github.com/omerghazali/vddb/metadata"
	"github.com/omerghazali/vddb/schema"
)

// Condition is the minimal interface the column store needs from a
// predicate to prune blocks: the query package's Condition type
// satisfies it.
type Condition interface {
	EvalBlock(columnName string, min, max types.Value) bool
}

// Store owns one column's append-only data file and its block
// metadata.
type Store struct {
	col        schema.Column
	dataPath   string
	metaDir    string
	physical   block.PhysicalCodec
	meta       *metadata.BlockMetadata
	cache      *Cache
}

// Open opens (creating if absent) the column file
// <dataDir>/columns/<name>.dat and loads its BlockMetadata from
// <dataDir>/metadata/<name>.json.
func Open(dataDir string, col schema.Column, physical block.PhysicalCodec, cache *Cache) (*Store, error) {
	columnsDir := filepath.Join(dataDir, "columns")
	metaDir := filepath.Join(dataDir, "metadata")
	if err := os.MkdirAll(columnsDir, 0o755); err != nil {
		return nil, errors.Wrap(types.ErrIO, err.Error())
	}
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return nil, errors.Wrap(types.ErrIO, err.Error())
	}
	dataPath := filepath.Join(columnsDir, col.Name+".dat")
	f, err := os.OpenFile(dataPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrapf(types.ErrIO, "opening column file %s: %v", dataPath, err)
	}
	f.Close()

	meta, err := metadata.Load(metaDir, col.Name, col.DataType)
	if err != nil {
		return nil, err
	}
	return &Store{col: col, dataPath: dataPath, metaDir: metaDir, physical: physical, meta: meta, cache: cache}, nil
}

// Append validates every value's type, builds a Block, writes it
// (logically encoded, then physically compressed with a checksum
// trailer) to the end of the data file, fsyncs, and records the
// resulting BlockInfo. It returns the block's offset.
func (s *Store) Append(values []types.Value, compression types.CompressionType) (int64, error) {
	for _, v := range values {
		if v.Type != s.col.DataType {
			return 0, errors.Wrapf(types.ErrTypeMismatch, "column %s: value type %s does not match column type %s", s.col.Name, v.Type, s.col.DataType)
		}
	}
	b, err := block.New(values, compression)
	if err != nil {
		return 0, err
	}
	min, max := b.MinMax()

	logical, err := b.Serialize()
	if err != nil {
		return 0, err
	}
	physical, err := block.WrapWithTrailer(logical, s.physical)
	if err != nil {
		return 0, err
	}

	f, err := os.OpenFile(s.dataPath, os.O_RDWR, 0o644)
	if err != nil {
		return 0, errors.Wrap(types.ErrIO, err.Error())
	}
	defer f.Close()

	offset, err := f.Seek(0, os.SEEK_END)
	if err != nil {
		return 0, errors.Wrap(types.ErrIO, err.Error())
	}
	if _, err := f.Write(physical); err != nil {
		return 0, errors.Wrap(types.ErrIO, err.Error())
	}
	if err := f.Sync(); err != nil {
		return 0, errors.Wrap(types.ErrIO, err.Error())
	}

	if err := s.meta.AddBlock(min, max, offset, len(values), compression, int64(len(physical))); err != nil {
		return 0, err
	}
	s.cache.put(s.col.Name, offset, logical)
	return offset, nil
}

// Read returns the column's values, restricted to blocks surviving
// block-level pruning under cond (nil reads every block), in append
// order.
func (s *Store) Read(cond Condition) ([]types.Value, error) {
	var surviving func(metadata.BlockInfo) bool
	if cond != nil {
		surviving = func(bi metadata.BlockInfo) bool {
			return cond.EvalBlock(s.col.Name, bi.Min, bi.Max)
		}
	}
	blocks := s.meta.Blocks(surviving)

	f, err := os.Open(s.dataPath)
	if err != nil {
		return nil, errors.Wrap(types.ErrIO, err.Error())
	}
	defer f.Close()

	var values []types.Value
	for _, bi := range blocks {
		logical, ok := s.cache.get(s.col.Name, bi.Offset)
		if !ok {
			raw := make([]byte, bi.SerializedSize)
			if _, err := f.ReadAt(raw, bi.Offset); err != nil {
				return nil, errors.Wrapf(types.ErrIO, "reading block at offset %d: %v", bi.Offset, err)
			}
			logical, err = block.UnwrapTrailer(raw)
			if err != nil {
				return nil, err
			}
			s.cache.put(s.col.Name, bi.Offset, logical)
		}
		b, err := block.Deserialize(logical, s.col.DataType, bi.Compression, bi.RowCount)
		if err != nil {
			return nil, err
		}
		values = append(values, b.Values...)
	}
	return values, nil
}

// Clear truncates the data file and empties the block metadata.
func (s *Store) Clear() error {
	f, err := os.OpenFile(s.dataPath, os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(types.ErrIO, err.Error())
	}
	f.Close()
	s.cache.invalidateColumn(s.col.Name)
	return s.meta.Clear()
}

// Remove deletes the column's data and metadata files entirely (used
// by DROP TABLE).
func (s *Store) Remove() error {
	s.cache.invalidateColumn(s.col.Name)
	if err := os.Remove(s.dataPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(types.ErrIO, err.Error())
	}
	metaPath := filepath.Join(s.metaDir, s.col.Name+".json")
	if err := os.Remove(metaPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(types.ErrIO, err.Error())
	}
	return nil
}

// BlockCount reports how many distinct blocks the column currently has
// on disk.
func (s *Store) BlockCount() int { return len(s.meta.Blocks(nil)) }

// BlockSizes returns the serialized size of every block in append
// order, used by diagnostics.
func (s *Store) BlockSizes() []int64 {
	blocks := s.meta.Blocks(nil)
	out := make([]int64, len(blocks))
	for i, b := range blocks {
		out[i] = b.SerializedSize
	}
	return out
}
