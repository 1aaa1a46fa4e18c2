package sample

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dataload/tensor"
)

func mustTensor(t *testing.T, vals []float32, shape ...int) *tensor.Tensor {
	t.Helper()
	tt, err := tensor.FromFloat32s(vals, shape...)
	require.NoError(t, err)
	return tt
}

func TestKinds(t *testing.T) {
	tt := mustTensor(t, []float32{1, 2}, 2)

	t.Run("tensor", func(t *testing.T) {
		s := FromTensor(tt)
		assert.Equal(t, KindTensor, s.Kind())

		got, err := s.Tensor()
		require.NoError(t, err)
		assert.True(t, tensor.Equal(tt, got))

		_, err = s.Scalar()
		require.Error(t, err)
		_, err = s.Fields()
		require.Error(t, err)
	})

	t.Run("scalar", func(t *testing.T) {
		s := FromScalar(3.5)
		assert.Equal(t, KindScalar, s.Kind())

		v, err := s.Scalar()
		require.NoError(t, err)
		assert.Equal(t, 3.5, v)

		_, err = s.Tensor()
		require.Error(t, err)
	})

	t.Run("tuple", func(t *testing.T) {
		s := Tuple(FromTensor(tt), FromScalar(1))
		assert.Equal(t, KindTuple, s.Kind())
		assert.Equal(t, 2, s.Len())

		fields, err := s.Fields()
		require.NoError(t, err)
		assert.Equal(t, KindTensor, fields[0].Kind())
		assert.Equal(t, KindScalar, fields[1].Kind())
	})

	t.Run("must tensor panics on scalar", func(t *testing.T) {
		assert.Panics(t, func() { FromScalar(1).MustTensor() })
	})
}

func TestEqual(t *testing.T) {
	a := Tuple(FromTensor(mustTensor(t, []float32{1, 2}, 2)), FromScalar(7))
	b := Tuple(FromTensor(mustTensor(t, []float32{1, 2}, 2)), FromScalar(7))
	c := Tuple(FromTensor(mustTensor(t, []float32{1, 3}, 2)), FromScalar(7))
	d := Tuple(FromScalar(7))

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
	assert.False(t, Equal(a, d))
	assert.False(t, Equal(a, FromScalar(7)))
}

func TestWalk(t *testing.T) {
	t1 := mustTensor(t, []float32{1}, 1)
	t2 := mustTensor(t, []float32{2}, 1)
	s := Tuple(FromTensor(t1), Tuple(FromScalar(0), FromTensor(t2)))

	var seen []*tensor.Tensor
	err := s.Walk(func(tt *tensor.Tensor) error {
		seen = append(seen, tt)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Same(t, t1, seen[0])
	assert.Same(t, t2, seen[1])
}

func TestJSONRoundtrip(t *testing.T) {
	orig := Tuple(
		FromTensor(mustTensor(t, []float32{1.5, -2, 3, 4}, 2, 2)),
		FromScalar(42),
		Tuple(FromScalar(1), FromScalar(2)),
	)

	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var got Sample
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, Equal(orig, got))
}

func TestJSONInvalid(t *testing.T) {
	var s Sample
	require.Error(t, json.Unmarshal([]byte(`{"kind":"nope"}`), &s))

	_, err := json.Marshal(Sample{})
	require.Error(t, err)
}

func TestClone(t *testing.T) {
	tt := mustTensor(t, []float32{1, 2}, 2)
	s := Tuple(FromTensor(tt), FromScalar(3))

	c := s.Clone()
	require.True(t, Equal(s, c))

	tt.Float32s()[0] = 9
	leaf, err := c.Fields()
	require.NoError(t, err)
	cloned, err := leaf[0].Tensor()
	require.NoError(t, err)
	assert.Equal(t, float32(1), cloned.Float32s()[0], "clone detaches from the source bytes")
}
