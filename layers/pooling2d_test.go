package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muchq/tensornet/prng"
	"github.com/muchq/tensornet/tensor"
)

func poolingLayer(t *testing.T, kind PoolingKind, poolW, poolH uint32, prevShape tensor.Shape) *Layer {
	t.Helper()
	desc := ApplyDefault(Desc{
		Kind:         Pooling2D,
		TrainingMode: true,
		Pooling:      kind,
		PoolSize:     tensor.Shape{Width: poolW, Height: poolH},
	})
	l := Create(&desc, prevShape, prng.NewSeeded(1))
	require.NotNil(t, l)
	return l
}

func TestMaxPoolingForward(t *testing.T) {
	l := poolingLayer(t, PoolingMax, 2, 2, tensor.Shape{Width: 4, Height: 4, Depth: 1})
	assert.Equal(t, tensor.Shape{Width: 2, Height: 2, Depth: 1}, l.Shape())

	in := tensor.NewAlloc(nil, tensor.Shape{Width: 4, Height: 4, Depth: 1}, 16)
	copy(in.Data, []float32{
		1, 2, 0, 0,
		3, 4, 0, 5,
		0, 0, 9, 8,
		6, 0, 7, 0,
	})

	l.Feedforward(in, nil)
	assert.Equal(t, tensor.Shape{Width: 2, Height: 2, Depth: 1}, in.Shape)
	assert.Equal(t, []float32{4, 5, 6, 9}, in.Data[:4])
}

func TestMaxPoolingBackwardRoutesToWinner(t *testing.T) {
	l := poolingLayer(t, PoolingMax, 2, 2, tensor.Shape{Width: 2, Height: 2, Depth: 1})
	cache := newCache()

	in := tensor.NewAlloc(nil, tensor.Shape{Width: 2, Height: 2, Depth: 1}, 4)
	copy(in.Data, []float32{
		1, 2,
		3, 0,
	})

	l.Feedforward(in, cache)
	assert.Equal(t, []float32{3}, in.Data[:1])

	// The whole gradient lands on the winning input cell.
	in.Data[0] = 10
	l.Backprop(in, cache)
	assert.Equal(t, tensor.Shape{Width: 2, Height: 2, Depth: 1}, in.Shape)
	assert.Equal(t, []float32{0, 0, 10, 0}, in.Data[:4])
	assert.Equal(t, 0, cache.Len())
}

func TestAvgPooling(t *testing.T) {
	l := poolingLayer(t, PoolingAvg, 2, 2, tensor.Shape{Width: 2, Height: 2, Depth: 1})
	cache := newCache()

	in := tensor.NewAlloc(nil, tensor.Shape{Width: 2, Height: 2, Depth: 1}, 4)
	copy(in.Data, []float32{1, 2, 3, 4})

	l.Feedforward(in, cache)
	assert.Equal(t, []float32{2.5}, in.Data[:1])

	in.Data[0] = 8
	l.Backprop(in, cache)
	assert.Equal(t, []float32{2, 2, 2, 2}, in.Data[:4])
	assert.Equal(t, 0, cache.Len())
}

func TestPoolingPerPlane(t *testing.T) {
	l := poolingLayer(t, PoolingMax, 2, 2, tensor.Shape{Width: 2, Height: 2, Depth: 2})

	in := tensor.NewAlloc(nil, tensor.Shape{Width: 2, Height: 2, Depth: 2}, 8)
	copy(in.Data, []float32{
		1, 2, 3, 4,
		8, 7, 6, 5,
	})

	l.Feedforward(in, nil)
	assert.Equal(t, tensor.Shape{Width: 1, Height: 1, Depth: 2}, in.Shape)
	assert.Equal(t, []float32{4, 8}, in.Data[:2])
}
