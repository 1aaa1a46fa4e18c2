package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumel(t *testing.T) {
	t.Run("valid shapes", func(t *testing.T) {
		n, err := Numel([]int{2, 3, 4})
		require.NoError(t, err)
		assert.Equal(t, 24, n)

		n, err = Numel(nil)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = Numel([]int{0, 5})
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("negative dimension", func(t *testing.T) {
		_, err := Numel([]int{2, -1})
		require.Error(t, err)
	})
}

func TestNew(t *testing.T) {
	tt, err := New(Float32, 2, 3)
	require.NoError(t, err)

	assert.Equal(t, Float32, tt.Dtype())
	assert.Equal(t, []int{2, 3}, tt.Shape())
	assert.Equal(t, 6, tt.Numel())
	assert.Len(t, tt.Bytes(), 24)
}

func TestFromBytes(t *testing.T) {
	t.Run("zero copy", func(t *testing.T) {
		buf := make([]byte, 8)
		tt, err := FromBytes(Float32, []int{2}, buf)
		require.NoError(t, err)

		tt.Float32s()[0] = 1.5
		assert.NotEqual(t, make([]byte, 8), buf, "writes must reach the backing buffer")
	})

	t.Run("size mismatch", func(t *testing.T) {
		_, err := FromBytes(Float32, []int{3}, make([]byte, 8))
		require.Error(t, err)
	})

	t.Run("invalid dtype", func(t *testing.T) {
		_, err := FromBytes(Dtype(99), []int{2}, make([]byte, 8))
		require.Error(t, err)
	})
}

func TestTypedViews(t *testing.T) {
	t.Run("float32 roundtrip", func(t *testing.T) {
		tt, err := FromFloat32s([]float32{1, 2, 3, 4}, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2, 3, 4}, tt.Float32s())
	})

	t.Run("float64 roundtrip", func(t *testing.T) {
		tt, err := FromFloat64s([]float64{1.5, 2.5}, 2)
		require.NoError(t, err)
		assert.Equal(t, []float64{1.5, 2.5}, tt.Float64s())
	})

	t.Run("int64 roundtrip", func(t *testing.T) {
		tt, err := FromInt64s([]int64{-1, 7}, 2)
		require.NoError(t, err)
		assert.Equal(t, []int64{-1, 7}, tt.Int64s())
	})

	t.Run("dtype mismatch panics", func(t *testing.T) {
		tt, err := New(Float32, 2)
		require.NoError(t, err)
		assert.Panics(t, func() { tt.Int64s() })
	})

	t.Run("shape mismatch", func(t *testing.T) {
		_, err := FromFloat32s([]float32{1, 2, 3}, 2, 2)
		require.Error(t, err)
	})
}

func TestEqual(t *testing.T) {
	a, err := FromFloat32s([]float32{1, 2, 3, 4}, 2, 2)
	require.NoError(t, err)
	b, err := FromFloat32s([]float32{1, 2, 3, 4}, 2, 2)
	require.NoError(t, err)
	c, err := FromFloat32s([]float32{1, 2, 3, 5}, 2, 2)
	require.NoError(t, err)
	d, err := FromFloat32s([]float32{1, 2, 3, 4}, 4)
	require.NoError(t, err)

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
	assert.False(t, Equal(a, d))
	assert.True(t, SameShape(a, b))
	assert.False(t, SameShape(a, d))
}

func TestDtype(t *testing.T) {
	assert.Equal(t, 4, Float32.Size())
	assert.Equal(t, 8, Float64.Size())
	assert.Equal(t, 4, Int32.Size())
	assert.Equal(t, 8, Int64.Size())
	assert.Equal(t, 1, Uint8.Size())

	assert.True(t, Float32.Valid())
	assert.False(t, Dtype(99).Valid())
	assert.Equal(t, "float32", Float32.String())
}

func TestClone(t *testing.T) {
	src, err := FromFloat32s([]float32{1, 2, 3, 4}, 2, 2)
	require.NoError(t, err)

	c := src.Clone()
	assert.True(t, Equal(src, c))

	src.Float32s()[0] = 9
	assert.Equal(t, float32(1), c.Float32s()[0], "clone owns its bytes")

	c.Shape()[0] = 4
	assert.Equal(t, []int{2, 2}, src.Shape())
}
