package block

import (
	"github.com/cockroachdb/errors"

	"github.com/omerghazali/vddb/internal/types"
)

// Block is a non-empty, single-typed run of Values plus the
// compression scheme it will be serialized under.
type Block struct {
	Values      []types.Value
	Compression types.CompressionType
}

// New validates values (non-empty, single data type) and returns a
// Block. Constructing a block whose values span more than one
// data_type fails with TypeMismatch; an empty slice fails with
// InvalidData.
func New(values []types.Value, compression types.CompressionType) (*Block, error) {
	if len(values) == 0 {
		return nil, errors.Wrap(types.ErrInvalidData, "block cannot be empty")
	}
	dt := values[0].Type
	for _, v := range values[1:] {
		if v.Type != dt {
			return nil, errors.Wrap(types.ErrTypeMismatch, "block values span more than one data type")
		}
	}
	if compression == types.CompressionDictionary && dt != types.String {
		return nil, errors.Wrap(types.ErrInvalidData, "dictionary compression is only valid for string columns")
	}
	return &Block{Values: values, Compression: compression}, nil
}

// MinMax returns the minimum and maximum of the block's values under
// the total order defined on its data type.
func (b *Block) MinMax() (min, max types.Value) {
	min, max = b.Values[0], b.Values[0]
	for _, v := range b.Values[1:] {
		if v.Less(min) {
			min = v
		}
		if v.Greater(max) {
			max = v
		}
	}
	return min, max
}

// Serialize encodes the block's values under its compression scheme.
func (b *Block) Serialize() ([]byte, error) {
	return encodeLogical(b.Values, b.Compression)
}

// Deserialize decodes a block previously produced by Serialize. The
// caller supplies the column's data type and the compression scheme
// the bytes were written under (both come from BlockInfo, not the
// bytes themselves). rowCount is used only to presize the result slice
// for CompressionNone; it is not load-bearing for correctness.
func Deserialize(data []byte, dt types.DataType, compression types.CompressionType, rowCount int) (*Block, error) {
	values, err := decodeLogical(data, dt, compression, rowCount)
	if err != nil {
		return nil, err
	}
	return &Block{Values: values, Compression: compression}, nil
}
