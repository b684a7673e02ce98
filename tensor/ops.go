package tensor

import (
	"math"

	"github.com/muchq/tensornet/arena"
	"github.com/muchq/tensornet/errs"
)

// The element-wise kernels share one checking scheme: shapes must match,
// and the destination's capacity must hold the result. The in-place
// variants return false on a failed precondition; the allocating variants
// return nil.

func checkBinary(op string, out, a, b *Tensor) bool {
	if out == nil || a == nil || b == nil {
		errs.Reportf(errs.InvalidInput, "cannot %s nil tensor(s)", op)
		return false
	}
	if !a.Shape.Eq(b.Shape) {
		errs.Reportf(errs.BadShape, "cannot %s tensors: shapes do not align", op)
		return false
	}
	if out.Alloc < a.Shape.Size() {
		errs.Reportf(errs.AllocSize, "cannot %s tensors: not enough space in out", op)
		return false
	}
	return true
}

func checkUnary(op string, out, t *Tensor) bool {
	if out == nil || t == nil {
		errs.Reportf(errs.InvalidInput, "cannot %s nil tensor(s)", op)
		return false
	}
	if out.Alloc < t.Shape.Size() {
		errs.Reportf(errs.AllocSize, "cannot %s tensor: not enough space in out", op)
		return false
	}
	return true
}

// AddIP computes out = a + b element-wise.
func AddIP(out, a, b *Tensor) bool {
	if !checkBinary("add", out, a, b) {
		return false
	}
	out.Shape = a.Shape
	size := a.Shape.Size()
	for i := 0; i < size; i++ {
		out.Data[i] = a.Data[i] + b.Data[i]
	}
	return true
}

// SubIP computes out = a - b element-wise.
func SubIP(out, a, b *Tensor) bool {
	if !checkBinary("subtract", out, a, b) {
		return false
	}
	out.Shape = a.Shape
	size := a.Shape.Size()
	for i := 0; i < size; i++ {
		out.Data[i] = a.Data[i] - b.Data[i]
	}
	return true
}

// MulIP computes the Hadamard product out = a * b.
func MulIP(out, a, b *Tensor) bool {
	if !checkBinary("multiply", out, a, b) {
		return false
	}
	out.Shape = a.Shape
	size := a.Shape.Size()
	for i := 0; i < size; i++ {
		out.Data[i] = a.Data[i] * b.Data[i]
	}
	return true
}

// DivIP computes the element-wise quotient out = a / b.
func DivIP(out, a, b *Tensor) bool {
	if !checkBinary("divide", out, a, b) {
		return false
	}
	out.Shape = a.Shape
	size := a.Shape.Size()
	for i := 0; i < size; i++ {
		out.Data[i] = a.Data[i] / b.Data[i]
	}
	return true
}

// AddScalarIP computes out = t + x element-wise.
func AddScalarIP(out, t *Tensor, x float32) bool {
	if !checkUnary("add scalar to", out, t) {
		return false
	}
	out.Shape = t.Shape
	size := t.Shape.Size()
	for i := 0; i < size; i++ {
		out.Data[i] = t.Data[i] + x
	}
	return true
}

// ScaleIP computes out = t * s element-wise.
func ScaleIP(out, t *Tensor, s float32) bool {
	if !checkUnary("scale", out, t) {
		return false
	}
	out.Shape = t.Shape
	size := t.Shape.Size()
	for i := 0; i < size; i++ {
		out.Data[i] = t.Data[i] * s
	}
	return true
}

// SqrtIP computes out = sqrt(t) element-wise.
func SqrtIP(out, t *Tensor) bool {
	if !checkUnary("sqrt", out, t) {
		return false
	}
	out.Shape = t.Shape
	size := t.Shape.Size()
	for i := 0; i < size; i++ {
		out.Data[i] = float32(math.Sqrt(float64(t.Data[i])))
	}
	return true
}

// Add returns a + b as a fresh tensor.
func Add(a *arena.Arena, x, y *Tensor) *Tensor {
	return allocBinary(a, x, y, AddIP)
}

// Sub returns x - y as a fresh tensor.
func Sub(a *arena.Arena, x, y *Tensor) *Tensor {
	return allocBinary(a, x, y, SubIP)
}

// Mul returns the Hadamard product as a fresh tensor.
func Mul(a *arena.Arena, x, y *Tensor) *Tensor {
	return allocBinary(a, x, y, MulIP)
}

// Div returns the element-wise quotient as a fresh tensor.
func Div(a *arena.Arena, x, y *Tensor) *Tensor {
	return allocBinary(a, x, y, DivIP)
}

// AddScalar returns t + x as a fresh tensor.
func AddScalar(a *arena.Arena, t *Tensor, x float32) *Tensor {
	if t == nil {
		errs.Report(errs.InvalidInput, "cannot add scalar to nil tensor")
		return nil
	}
	out := New(a, t.Shape)
	if !AddScalarIP(out, t, x) {
		return nil
	}
	return out
}

// Scale returns t * s as a fresh tensor.
func Scale(a *arena.Arena, t *Tensor, s float32) *Tensor {
	if t == nil {
		errs.Report(errs.InvalidInput, "cannot scale nil tensor")
		return nil
	}
	out := New(a, t.Shape)
	if !ScaleIP(out, t, s) {
		return nil
	}
	return out
}

// Sqrt returns sqrt(t) as a fresh tensor.
func Sqrt(a *arena.Arena, t *Tensor) *Tensor {
	if t == nil {
		errs.Report(errs.InvalidInput, "cannot sqrt nil tensor")
		return nil
	}
	out := New(a, t.Shape)
	if !SqrtIP(out, t) {
		return nil
	}
	return out
}

func allocBinary(a *arena.Arena, x, y *Tensor, op func(out, a, b *Tensor) bool) *Tensor {
	if x == nil || y == nil {
		errs.Report(errs.InvalidInput, "cannot operate on nil tensor(s)")
		return nil
	}
	out := New(a, x.Shape)
	if !op(out, x, y) {
		return nil
	}
	return out
}

// TransposeIP swaps the width and height of a depth-1 tensor in place. A
// 1D tensor only has its shape swapped; otherwise the data moves through a
// temporary copy.
func TransposeIP(t *Tensor) bool {
	if t == nil {
		errs.Report(errs.InvalidInput, "cannot transpose nil tensor")
		return false
	}
	if t.Shape.Depth != 1 {
		errs.Report(errs.BadShape, "cannot transpose tensor with depth")
		return false
	}
	t.Shape.Width, t.Shape.Height = t.Shape.Height, t.Shape.Width
	if t.Shape.Width == 1 || t.Shape.Height == 1 {
		return true
	}
	orig := make([]float32, t.Shape.Size())
	copy(orig, t.Data[:t.Shape.Size()])
	w, h := int(t.Shape.Width), int(t.Shape.Height)
	// orig is still laid out with the pre-swap shape (h wide, w tall).
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			t.Data[x+y*w] = orig[y+x*h]
		}
	}
	return true
}

// Transpose returns the 2D transpose of t as a fresh tensor.
func Transpose(a *arena.Arena, t *Tensor) *Tensor {
	if t == nil {
		errs.Report(errs.InvalidInput, "cannot transpose nil tensor")
		return nil
	}
	if t.Shape.Depth != 1 {
		errs.Report(errs.BadShape, "cannot transpose tensor with depth")
		return nil
	}
	out := New(a, Shape{Width: t.Shape.Height, Height: t.Shape.Width, Depth: 1})
	w, h := int(out.Shape.Width), int(out.Shape.Height)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Data[x+y*w] = t.Data[y+x*h]
		}
	}
	return out
}
