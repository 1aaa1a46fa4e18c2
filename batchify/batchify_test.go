package batchify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dataload/sample"
	"github.com/hupe1980/dataload/tensor"
)

func mustTensor(t *testing.T, vals []float32, shape ...int) *tensor.Tensor {
	t.Helper()
	tt, err := tensor.FromFloat32s(vals, shape...)
	require.NoError(t, err)
	return tt
}

func TestDefaultStacksTensors(t *testing.T) {
	fn := Default()

	batch, err := fn([]sample.Sample{
		sample.FromTensor(mustTensor(t, []float32{1, 2}, 2)),
		sample.FromTensor(mustTensor(t, []float32{3, 4}, 2)),
		sample.FromTensor(mustTensor(t, []float32{5, 6}, 2)),
	})
	require.NoError(t, err)

	tt, err := batch.Tensor()
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, tt.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, tt.Float32s())
}

func TestDefaultStacksScalars(t *testing.T) {
	fn := Default()

	batch, err := fn([]sample.Sample{
		sample.FromScalar(1),
		sample.FromScalar(2.5),
		sample.FromScalar(-3),
	})
	require.NoError(t, err)

	tt, err := batch.Tensor()
	require.NoError(t, err)
	assert.Equal(t, tensor.Float64, tt.Dtype())
	assert.Equal(t, []int{3}, tt.Shape())
	assert.Equal(t, []float64{1, 2.5, -3}, tt.Float64s())
}

func TestDefaultCollatesTuples(t *testing.T) {
	fn := Default()

	batch, err := fn([]sample.Sample{
		sample.Tuple(sample.FromTensor(mustTensor(t, []float32{1, 2}, 2)), sample.FromScalar(10)),
		sample.Tuple(sample.FromTensor(mustTensor(t, []float32{3, 4}, 2)), sample.FromScalar(20)),
	})
	require.NoError(t, err)
	require.Equal(t, sample.KindTuple, batch.Kind())
	require.Equal(t, 2, batch.Len())

	fields, err := batch.Fields()
	require.NoError(t, err)

	feat, err := fields[0].Tensor()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, feat.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4}, feat.Float32s())

	label, err := fields[1].Tensor()
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20}, label.Float64s())
}

func TestNestedTuples(t *testing.T) {
	fn := Default()

	batch, err := fn([]sample.Sample{
		sample.Tuple(sample.FromScalar(1), sample.Tuple(sample.FromScalar(2), sample.FromScalar(3))),
		sample.Tuple(sample.FromScalar(4), sample.Tuple(sample.FromScalar(5), sample.FromScalar(6))),
	})
	require.NoError(t, err)

	fields, err := batch.Fields()
	require.NoError(t, err)
	require.Len(t, fields, 2)

	inner, err := fields[1].Fields()
	require.NoError(t, err)
	require.Len(t, inner, 2)

	tt, err := inner[0].Tensor()
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 5}, tt.Float64s())
}

func TestErrors(t *testing.T) {
	fn := Default()

	t.Run("empty batch", func(t *testing.T) {
		_, err := fn(nil)
		require.ErrorIs(t, err, ErrEmptyBatch)
	})

	t.Run("shape mismatch", func(t *testing.T) {
		_, err := fn([]sample.Sample{
			sample.FromTensor(mustTensor(t, []float32{1, 2}, 2)),
			sample.FromTensor(mustTensor(t, []float32{1, 2, 3}, 3)),
		})
		require.Error(t, err)
	})

	t.Run("dtype mismatch", func(t *testing.T) {
		i64, err := tensor.FromInt64s([]int64{1, 2}, 2)
		require.NoError(t, err)

		_, err = fn([]sample.Sample{
			sample.FromTensor(mustTensor(t, []float32{1, 2}, 2)),
			sample.FromTensor(i64),
		})
		require.Error(t, err)
	})

	t.Run("mixed kinds", func(t *testing.T) {
		_, err := fn([]sample.Sample{
			sample.FromTensor(mustTensor(t, []float32{1}, 1)),
			sample.FromScalar(2),
		})
		require.Error(t, err)
	})

	t.Run("arity mismatch", func(t *testing.T) {
		_, err := fn([]sample.Sample{
			sample.Tuple(sample.FromScalar(1), sample.FromScalar(2)),
			sample.Tuple(sample.FromScalar(3)),
		})
		require.Error(t, err)
	})
}

// countingAllocator verifies the allocation policy is actually consulted.
type countingAllocator struct {
	calls int
}

func (a *countingAllocator) Alloc(dtype tensor.Dtype, shape ...int) (*tensor.Tensor, error) {
	a.calls++
	return tensor.New(dtype, shape...)
}

func TestWithAllocator(t *testing.T) {
	alloc := &countingAllocator{}
	fn := WithAllocator(alloc)

	_, err := fn([]sample.Sample{
		sample.Tuple(sample.FromTensor(mustTensor(t, []float32{1}, 1)), sample.FromScalar(0)),
		sample.Tuple(sample.FromTensor(mustTensor(t, []float32{2}, 1)), sample.FromScalar(1)),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, alloc.calls, "one allocation per tensor leaf of the batch")
}
