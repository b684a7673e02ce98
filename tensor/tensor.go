// Package tensor implements the 3D dense float32 container and the kernel
// library built on it.
//
// A tensor is width x height x depth, row-major within a plane with planes
// stacked along depth: data[x + y*W + z*W*H]. Working tensors may be created
// with a capacity larger than their current shape so they can be reshaped
// between layers without reallocating.
package tensor

import (
	"github.com/muchq/tensornet/arena"
	"github.com/muchq/tensornet/errs"
)

// Shape is the extent of a tensor. A zero dimension is normalized to 1 at
// construction.
type Shape struct {
	Width  uint32
	Height uint32
	Depth  uint32
}

func (s Shape) normalize() Shape {
	if s.Width == 0 {
		s.Width = 1
	}
	if s.Height == 0 {
		s.Height = 1
	}
	if s.Depth == 0 {
		s.Depth = 1
	}
	return s
}

// Size is the element count of the shape.
func (s Shape) Size() int {
	return int(s.Width) * int(s.Height) * int(s.Depth)
}

// Eq reports whether two shapes match exactly.
func (s Shape) Eq(o Shape) bool {
	return s == o
}

// Index addresses a single element.
type Index struct {
	X, Y, Z uint32
}

// Tensor is shape plus backing store. Alloc records the store's capacity in
// elements; the shape may be anything that fits.
type Tensor struct {
	Shape Shape
	Data  []float32
	Alloc int
}

// New creates a zeroed tensor sized exactly to shape. A nil arena allocates
// from the heap; otherwise the store is carved from the arena.
func New(a *arena.Arena, shape Shape) *Tensor {
	shape = shape.normalize()
	return NewAlloc(a, shape, shape.Size())
}

// NewAlloc creates a zeroed tensor with capacity alloc, which must hold the
// shape. Reusable working buffers are created this way.
func NewAlloc(a *arena.Arena, shape Shape, alloc int) *Tensor {
	shape = shape.normalize()
	if alloc < shape.Size() {
		errs.Report(errs.InvalidInput, "cannot create tensor: alloc is too small")
		return nil
	}
	var data []float32
	if a != nil {
		data = a.Push(alloc)
	} else {
		data = make([]float32, alloc)
	}
	return &Tensor{Shape: shape, Data: data, Alloc: alloc}
}

// FromData creates a tensor wrapping a copy of data, which must hold the
// shape.
func FromData(a *arena.Arena, shape Shape, data []float32) *Tensor {
	out := New(a, shape)
	if out == nil {
		return nil
	}
	if len(data) < out.Shape.Size() {
		errs.Report(errs.InvalidInput, "cannot create tensor: data is smaller than shape")
		return nil
	}
	copy(out.Data, data[:out.Shape.Size()])
	return out
}

// Copy clones t. With keepAlloc the clone keeps t's full capacity instead of
// shrinking to the current shape.
func Copy(a *arena.Arena, t *Tensor, keepAlloc bool) *Tensor {
	if t == nil {
		errs.Report(errs.InvalidInput, "cannot copy nil tensor")
		return nil
	}
	alloc := t.Shape.Size()
	if keepAlloc {
		alloc = t.Alloc
	}
	out := NewAlloc(a, t.Shape, alloc)
	copy(out.Data, t.Data[:t.Shape.Size()])
	return out
}

// CopyInto copies t into out, adopting t's shape. Fails when out's capacity
// cannot hold it.
func CopyInto(out, t *Tensor) bool {
	if out == nil || t == nil {
		errs.Report(errs.InvalidInput, "cannot copy tensor: out and/or src is nil")
		return false
	}
	size := t.Shape.Size()
	if out.Alloc < size {
		errs.Report(errs.AllocSize, "cannot copy tensor: not enough space in out")
		return false
	}
	out.Shape = t.Shape
	if &out.Data[0] != &t.Data[0] {
		copy(out.Data[:size], t.Data[:size])
	}
	return true
}

// Fill sets every element to v.
func (t *Tensor) Fill(v float32) {
	if t == nil {
		errs.Report(errs.InvalidInput, "cannot fill nil tensor")
		return
	}
	data := t.Data[:t.Shape.Size()]
	for i := range data {
		data[i] = v
	}
}

// IsZero reports whether every element is exactly zero.
func (t *Tensor) IsZero() bool {
	if t == nil {
		errs.Report(errs.InvalidInput, "cannot test nil tensor for zero")
		return false
	}
	for _, v := range t.Data[:t.Shape.Size()] {
		if v != 0 {
			return false
		}
	}
	return true
}

// Argmax returns the index of the maximum element; ties go to the earliest
// element in x, y, z order.
func (t *Tensor) Argmax() Index {
	if t == nil {
		errs.Report(errs.InvalidInput, "cannot take argmax of nil tensor")
		return Index{}
	}
	w, h := int(t.Shape.Width), int(t.Shape.Height)
	max := t.Data[0]
	best := Index{}
	for z := uint32(0); z < t.Shape.Depth; z++ {
		for y := uint32(0); y < t.Shape.Height; y++ {
			for x := uint32(0); x < t.Shape.Width; x++ {
				v := t.Data[int(x)+int(y)*w+int(z)*w*h]
				if v > max {
					max = v
					best = Index{X: x, Y: y, Z: z}
				}
			}
		}
	}
	return best
}

// View2D aliases plane z of t as a (W, H, 1) tensor without copying. The
// view shares storage with t and is invalidated with it.
func View2D(t *Tensor, z uint32) Tensor {
	if t == nil {
		errs.Report(errs.InvalidInput, "cannot create 2d view of nil tensor")
		return Tensor{}
	}
	if z >= t.Shape.Depth {
		errs.Reportf(errs.InvalidInput, "2d view plane %d out of range for depth %d", z, t.Shape.Depth)
		return Tensor{}
	}
	planeSize := int(t.Shape.Width) * int(t.Shape.Height)
	start := int(z) * planeSize
	return Tensor{
		Shape: Shape{Width: t.Shape.Width, Height: t.Shape.Height, Depth: 1},
		Data:  t.Data[start : start+planeSize : start+planeSize],
		Alloc: planeSize,
	}
}
