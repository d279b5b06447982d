package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omerghazali/vddb/internal/types"
)

func TestAppendAndLookup(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "ID.idx"), types.Int32)
	require.NoError(t, err)

	require.NoError(t, idx.Append([]types.Value{types.NewInt32(5)}, 0))
	require.NoError(t, idx.Append([]types.Value{types.NewInt32(2)}, 10))
	require.NoError(t, idx.Append([]types.Value{types.NewInt32(5)}, 20))

	offsets, err := idx.Lookup(types.NewInt32(5))
	require.NoError(t, err)
	require.ElementsMatch(t, []uint64{0, 20}, offsets)

	offsets, err = idx.Lookup(types.NewInt32(2))
	require.NoError(t, err)
	require.Equal(t, []uint64{10}, offsets)

	offsets, err = idx.Lookup(types.NewInt32(99))
	require.NoError(t, err)
	require.Nil(t, offsets)
}

func TestAppendDedupesOffsetPerBucket(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "ID.idx"), types.Int32)
	require.NoError(t, err)

	require.NoError(t, idx.Append([]types.Value{types.NewInt32(1)}, 7))
	require.NoError(t, idx.Append([]types.Value{types.NewInt32(1)}, 7))

	offsets, err := idx.Lookup(types.NewInt32(1))
	require.NoError(t, err)
	require.Equal(t, []uint64{7}, offsets)
}

func TestRangeLookup(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "ID.idx"), types.Int32)
	require.NoError(t, err)

	for i, v := range []int32{1, 5, 10, 15, 20} {
		require.NoError(t, idx.Append([]types.Value{types.NewInt32(v)}, uint64(i)))
	}

	offsets, err := idx.RangeLookup(types.NewInt32(5), types.NewInt32(15))
	require.NoError(t, err)
	require.ElementsMatch(t, []uint64{1, 2, 3}, offsets)
}

func TestLookupTypeMismatch(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "Name.idx"), types.String)
	require.NoError(t, err)
	_, err = idx.Lookup(types.NewInt32(1))
	require.Error(t, err)
}

func TestReloadPersistsEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ID.idx")
	idx, err := Open(path, types.Int32)
	require.NoError(t, err)
	require.NoError(t, idx.Append([]types.Value{types.NewInt32(3), types.NewInt32(4)}, 0))

	reloaded, err := Open(path, types.Int32)
	require.NoError(t, err)
	offsets, err := reloaded.Lookup(types.NewInt32(3))
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, offsets)
	offsets, err = reloaded.Lookup(types.NewInt32(4))
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, offsets)
}

func TestClearEmptiesIndex(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "ID.idx"), types.Int32)
	require.NoError(t, err)
	require.NoError(t, idx.Append([]types.Value{types.NewInt32(1)}, 0))
	require.NoError(t, idx.Clear())
	offsets, err := idx.Lookup(types.NewInt32(1))
	require.NoError(t, err)
	require.Nil(t, offsets)
}
