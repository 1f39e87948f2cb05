package jsonmap

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestFromStringMapHandlesNil(t *testing.T) {
	require.Empty(t, FromStringMap(nil))
}

func TestRoundTrip(t *testing.T) {
	in := map[string]string{"prompt": "a red fox", "style": "photo"}
	out := ToStringMap(FromStringMap(in))
	require.Equal(t, in, out)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := datatypes.JSONMap{"seed": 42}
	overlay := datatypes.JSONMap{"batch_index": 1}

	merged := Merge(base, overlay)

	require.Len(t, merged, 2)
	require.Len(t, base, 1)
	require.NotContains(t, base, "batch_index")
}

func TestMergeOverlayWins(t *testing.T) {
	merged := Merge(
		datatypes.JSONMap{"batch_index": 0},
		datatypes.JSONMap{"batch_index": 2},
	)

	idx, ok := Int(merged, "batch_index")
	require.True(t, ok)
	require.Equal(t, 2, idx)
}

func TestIntAcceptsFloat64(t *testing.T) {
	// JSON round trips store numbers as float64.
	idx, ok := Int(datatypes.JSONMap{"batch_size": float64(3)}, "batch_size")
	require.True(t, ok)
	require.Equal(t, 3, idx)

	_, ok = Int(datatypes.JSONMap{"batch_size": "three"}, "batch_size")
	require.False(t, ok)
}

func TestString(t *testing.T) {
	id, ok := String(datatypes.JSONMap{"batch_id": "b-1"}, "batch_id")
	require.True(t, ok)
	require.Equal(t, "b-1", id)

	_, ok = String(datatypes.JSONMap{}, "batch_id")
	require.False(t, ok)
}
