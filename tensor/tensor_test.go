package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeNormalization(t *testing.T) {
	tt := New(nil, Shape{Width: 3})
	require.NotNil(t, tt)
	assert.Equal(t, Shape{Width: 3, Height: 1, Depth: 1}, tt.Shape)
	assert.Equal(t, 3, tt.Shape.Size())
}

func TestFill(t *testing.T) {
	tt := New(nil, Shape{Width: 4, Height: 3, Depth: 2})
	tt.Fill(2.5)
	for _, v := range tt.Data {
		assert.Equal(t, float32(2.5), v)
	}
}

func TestNewAllocTooSmall(t *testing.T) {
	assert.Nil(t, NewAlloc(nil, Shape{Width: 4, Height: 4, Depth: 1}, 8))
}

func TestCopyInto(t *testing.T) {
	src := FromData(nil, Shape{Width: 2, Height: 2, Depth: 1}, []float32{1, 2, 3, 4})
	dst := NewAlloc(nil, Shape{Width: 1, Height: 1, Depth: 1}, 16)

	require.True(t, CopyInto(dst, src))
	assert.Equal(t, src.Shape, dst.Shape)
	assert.Equal(t, []float32{1, 2, 3, 4}, dst.Data[:4])

	small := New(nil, Shape{Width: 2, Height: 1, Depth: 1})
	assert.False(t, CopyInto(small, src))
}

func TestIsZero(t *testing.T) {
	tt := New(nil, Shape{Width: 4, Height: 4, Depth: 1})
	assert.True(t, tt.IsZero())

	tt.Data[7] = 0.001
	assert.False(t, tt.IsZero())
}

func TestArgmaxFirstMatch(t *testing.T) {
	tt := FromData(nil, Shape{Width: 3, Height: 2, Depth: 1}, []float32{1, 5, 2, 5, 0, 3})
	assert.Equal(t, Index{X: 1, Y: 0, Z: 0}, tt.Argmax())
}

func TestArgmaxAcrossDepth(t *testing.T) {
	tt := New(nil, Shape{Width: 2, Height: 2, Depth: 2})
	tt.Data[6] = 9 // (0, 1, 1)
	assert.Equal(t, Index{X: 0, Y: 1, Z: 1}, tt.Argmax())
}

func TestView2DAliases(t *testing.T) {
	tt := New(nil, Shape{Width: 2, Height: 2, Depth: 3})
	for i := range tt.Data {
		tt.Data[i] = float32(i)
	}

	view := View2D(tt, 1)
	assert.Equal(t, Shape{Width: 2, Height: 2, Depth: 1}, view.Shape)
	assert.Equal(t, []float32{4, 5, 6, 7}, view.Data[:4])

	// Writes through the view land in the parent.
	view.Data[0] = 100
	assert.Equal(t, float32(100), tt.Data[4])
}
