package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDot(t *testing.T) {
	a := tensorOf(t, Shape{Width: 3, Height: 2}, []float32{
		1, 2, 3,
		4, 5, 6,
	})
	b := tensorOf(t, Shape{Width: 2, Height: 3}, []float32{
		7, 8,
		9, 10,
		11, 12,
	})

	out := Dot(nil, false, false, a, b)
	require.NotNil(t, out)
	assert.Equal(t, Shape{Width: 2, Height: 2, Depth: 1}, out.Shape)
	assert.Equal(t, []float32{
		58, 64,
		139, 154,
	}, out.Data)
}

func TestDotTransposed(t *testing.T) {
	a := tensorOf(t, Shape{Width: 2, Height: 3}, []float32{
		1, 4,
		2, 5,
		3, 6,
	})
	b := tensorOf(t, Shape{Width: 2, Height: 3}, []float32{
		7, 8,
		9, 10,
		11, 12,
	})

	// transpose(a) restores the untransposed product above.
	out := Dot(nil, true, false, a, b)
	require.NotNil(t, out)
	assert.Equal(t, Shape{Width: 2, Height: 2, Depth: 1}, out.Shape)
	assert.Equal(t, []float32{
		58, 64,
		139, 154,
	}, out.Data)

	// Transposing both operands recovers the same product.
	out = Dot(nil, true, true, a, Transpose(nil, b))
	require.NotNil(t, out)
	assert.Equal(t, Shape{Width: 2, Height: 2, Depth: 1}, out.Shape)
	assert.Equal(t, []float32{
		58, 64,
		139, 154,
	}, out.Data)
}

func TestDotAliasedOutput(t *testing.T) {
	a := NewAlloc(nil, Shape{Width: 3, Height: 1, Depth: 1}, 16)
	copy(a.Data, []float32{1, 2, 3})
	w := tensorOf(t, Shape{Width: 2, Height: 3}, []float32{
		1, 0,
		0, 1,
		1, 1,
	})

	require.True(t, DotIP(a, false, false, a, w))
	assert.Equal(t, Shape{Width: 2, Height: 1, Depth: 1}, a.Shape)
	assert.Equal(t, []float32{4, 5}, a.Data[:2])
}

func TestDotShapeMismatch(t *testing.T) {
	a := New(nil, Shape{Width: 3, Height: 2})
	b := New(nil, Shape{Width: 2, Height: 2})
	out := New(nil, Shape{Width: 2, Height: 2})

	assert.False(t, DotIP(out, false, false, a, b))
	assert.Nil(t, Dot(nil, false, false, a, b))
}

func TestDotRejectsDepth(t *testing.T) {
	a := New(nil, Shape{Width: 2, Height: 2, Depth: 2})
	b := New(nil, Shape{Width: 2, Height: 2})
	out := New(nil, Shape{Width: 2, Height: 2})

	assert.False(t, DotIP(out, false, false, a, b))
}
