package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRNG(t *testing.T) {
	t.Run("deterministic after reset", func(t *testing.T) {
		rng := NewRNG(42)
		a := make([]float32, 16)
		rng.FillUniform(a)

		rng.Reset()
		b := make([]float32, 16)
		rng.FillUniform(b)

		assert.Equal(t, a, b)
	})

	t.Run("tensor shape", func(t *testing.T) {
		rng := NewRNG(1)
		tt := rng.FloatTensor(3, 4)
		assert.Equal(t, []int{3, 4}, tt.Shape())
		assert.Equal(t, 12, tt.Numel())
	})
}

func TestIndexDataset(t *testing.T) {
	ds := IndexDataset(5)
	require.Equal(t, 5, ds.Len())

	s, err := ds.Get(context.Background(), 3)
	require.NoError(t, err)

	v, err := s.Scalar()
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}

func TestFailingDataset(t *testing.T) {
	ds := &FailingDataset{Inner: IndexDataset(5), FailAt: 2}

	_, err := ds.Get(context.Background(), 2)
	require.Error(t, err)

	_, err = ds.Get(context.Background(), 1)
	require.NoError(t, err)
}

func TestSlowDataset(t *testing.T) {
	ds := &SlowDataset{
		Inner: IndexDataset(3),
		Delay: func(int) time.Duration { return time.Millisecond },
	}

	s, err := ds.Get(context.Background(), 0)
	require.NoError(t, err)

	v, err := s.Scalar()
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ds.Get(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
}
