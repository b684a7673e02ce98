package tensor

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/muchq/tensornet/arena"
	"github.com/muchq/tensornet/errs"
)

// DotIP computes the matrix product out = op(a) * op(b), where op is an
// optional transpose. Both operands must be 2D (depth 1) and conformable
// after transposition; the output shape is (op(b).width, op(a).height, 1).
// If out aliases an operand the input is copied first. All four transpose
// variants lower to a single Sgemm call.
func DotIP(out *Tensor, transposeA, transposeB bool, a, b *Tensor) bool {
	if out == nil || a == nil || b == nil {
		errs.Report(errs.InvalidInput, "cannot dot nil tensor(s)")
		return false
	}
	if a.Shape.Depth != 1 || b.Shape.Depth != 1 {
		errs.Report(errs.BadShape, "cannot dot tensor in 3 dimensions")
		return false
	}

	aShape, bShape := a.Shape, b.Shape
	if transposeA {
		aShape.Width, aShape.Height = aShape.Height, aShape.Width
	}
	if transposeB {
		bShape.Width, bShape.Height = bShape.Height, bShape.Width
	}
	if aShape.Width != bShape.Height {
		errs.Report(errs.BadShape, "cannot dot tensors: shapes do not align")
		return false
	}

	outShape := Shape{Width: bShape.Width, Height: aShape.Height, Depth: 1}
	if out.Alloc < outShape.Size() {
		errs.Report(errs.AllocSize, "cannot dot tensors: not enough space in out")
		return false
	}

	realA, realB := a, b
	if sameData(out, a) {
		realA = Copy(nil, a, false)
	}
	if sameData(out, b) {
		realB = Copy(nil, b, false)
	}

	out.Shape = outShape

	tA, tB := blas.NoTrans, blas.NoTrans
	if transposeA {
		tA = blas.Trans
	}
	if transposeB {
		tB = blas.Trans
	}

	ga := blas32.General{
		Rows:   int(realA.Shape.Height),
		Cols:   int(realA.Shape.Width),
		Stride: int(realA.Shape.Width),
		Data:   realA.Data[:realA.Shape.Size()],
	}
	gb := blas32.General{
		Rows:   int(realB.Shape.Height),
		Cols:   int(realB.Shape.Width),
		Stride: int(realB.Shape.Width),
		Data:   realB.Data[:realB.Shape.Size()],
	}
	gc := blas32.General{
		Rows:   int(outShape.Height),
		Cols:   int(outShape.Width),
		Stride: int(outShape.Width),
		Data:   out.Data[:outShape.Size()],
	}

	blas32.Gemm(tA, tB, 1, ga, gb, 0, gc)

	return true
}

// Dot returns op(a) * op(b) as a fresh tensor.
func Dot(ar *arena.Arena, transposeA, transposeB bool, a, b *Tensor) *Tensor {
	if a == nil || b == nil {
		errs.Report(errs.InvalidInput, "cannot dot nil tensor(s)")
		return nil
	}
	shape := Shape{Width: b.Shape.Width, Height: a.Shape.Height, Depth: 1}
	if transposeA {
		shape.Height = a.Shape.Width
	}
	if transposeB {
		shape.Width = b.Shape.Height
	}
	out := New(ar, shape)
	if !DotIP(out, transposeA, transposeB, a, b) {
		return nil
	}
	return out
}

func sameData(a, b *Tensor) bool {
	return len(a.Data) > 0 && len(b.Data) > 0 && &a.Data[0] == &b.Data[0]
}
