package block

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omerghazali/vddb/internal/types"
)

func TestValueRoundTrip(t *testing.T) {
	values := []types.Value{
		types.NewInt32(-7),
		types.NewFloat32(3.5),
		types.NewFloat32(0),
		types.NewString("hello"),
		types.NewString(""),
	}
	for _, v := range values {
		decoded, err := types.DeserializeValue(v.Type, v.Serialize())
		require.NoError(t, err)
		require.True(t, v.Equal(decoded))
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		ct   types.CompressionType
		vals []types.Value
	}{
		{"none-int", types.CompressionNone, []types.Value{types.NewInt32(1), types.NewInt32(2), types.NewInt32(2)}},
		{"rle-int", types.CompressionRLE, []types.Value{types.NewInt32(1), types.NewInt32(1), types.NewInt32(2)}},
		{"rle-long-run", types.CompressionRLE, repeatInt32(300, 9)},
		{"dict-string", types.CompressionDictionary, []types.Value{types.NewString("a"), types.NewString("b"), types.NewString("a")}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b, err := New(c.vals, c.ct)
			require.NoError(t, err)
			raw, err := b.Serialize()
			require.NoError(t, err)
			decoded, err := Deserialize(raw, c.vals[0].Type, c.ct, len(c.vals))
			require.NoError(t, err)
			require.Equal(t, len(c.vals), len(decoded.Values))
			for i := range c.vals {
				require.True(t, c.vals[i].Equal(decoded.Values[i]), "index %d", i)
			}
		})
	}
}

func TestRLESplitsLongRuns(t *testing.T) {
	vals := repeatInt32(600, 4)
	raw := encodeRLE(vals)
	// 600 identical values split into runs of at most 255: 255+255+90 = 3 runs.
	runs := 0
	cursor := 0
	for cursor < len(raw) {
		count := int(raw[cursor])
		require.LessOrEqual(t, count, maxRunLength)
		require.Greater(t, count, 0)
		cursor += 1 + 4
		runs++
	}
	require.Equal(t, 3, runs)
}

func TestDictionaryAllIdentical(t *testing.T) {
	n := 10
	vals := make([]types.Value, n)
	for i := range vals {
		vals[i] = types.NewString("same")
	}
	raw, err := encodeDictionary(vals)
	require.NoError(t, err)
	decoded, err := decodeDictionary(raw, types.String)
	require.NoError(t, err)
	require.Len(t, decoded, n)
	for _, v := range decoded {
		require.Equal(t, "same", v.S)
	}
}

func TestDictionaryRejectsNonString(t *testing.T) {
	_, err := encodeDictionary([]types.Value{types.NewInt32(1)})
	require.Error(t, err)
}

func TestNewBlockEmptyFails(t *testing.T) {
	_, err := New(nil, types.CompressionNone)
	require.Error(t, err)
}

func TestNewBlockMixedTypesFails(t *testing.T) {
	_, err := New([]types.Value{types.NewInt32(1), types.NewString("x")}, types.CompressionNone)
	require.Error(t, err)
}

func TestPhysicalTrailerRoundTrip(t *testing.T) {
	for _, codec := range []PhysicalCodec{PhysicalNone, PhysicalSnappy, PhysicalZstd} {
		logical := []byte("some logical block bytes to compress physically")
		wrapped, err := WrapWithTrailer(logical, codec)
		require.NoError(t, err)
		got, err := UnwrapTrailer(wrapped)
		require.NoError(t, err)
		require.Equal(t, logical, got)
	}
}

func TestPhysicalTrailerDetectsCorruption(t *testing.T) {
	wrapped, err := WrapWithTrailer([]byte("abc"), PhysicalNone)
	require.NoError(t, err)
	wrapped[0] ^= 0xFF
	_, err = UnwrapTrailer(wrapped)
	require.Error(t, err)
}

func repeatInt32(n int, v int32) []types.Value {
	out := make([]types.Value, n)
	for i := range out {
		out[i] = types.NewInt32(v)
	}
	return out
}

func TestMinMax(t *testing.T) {
	vals := make([]types.Value, 0, 5)
	for i := 0; i < 5; i++ {
		vals = append(vals, types.NewInt32(int32(i)-2))
	}
	b, err := New(vals, types.CompressionNone)
	require.NoError(t, err)
	min, max := b.MinMax()
	require.Equal(t, int32(-2), min.I)
	require.Equal(t, int32(2), max.I)
}
