package tensor

import (
	"github.com/muchq/tensornet/arena"
	"github.com/muchq/tensornet/errs"
)

// ConvShape is the output extent of sliding a kernel over in with the given
// strides and no padding.
func ConvShape(in, kernel Shape, strideX, strideY uint32) Shape {
	if strideX == 0 || strideY == 0 {
		errs.Report(errs.InvalidInput, "cannot compute conv shape with stride of zero")
		return Shape{Depth: 1}
	}
	return Shape{
		Width:  (in.Width-kernel.Width)/strideX + 1,
		Height: (in.Height-kernel.Height)/strideY + 1,
		Depth:  1,
	}
}

func im2colShape(in Shape, kernelSize, stride, padding uint32) Shape {
	xKernels := (in.Width+padding*2-kernelSize)/stride + 1
	yKernels := (in.Height+padding*2-kernelSize)/stride + 1
	return Shape{
		Width:  xKernels * yKernels,
		Height: in.Depth * kernelSize * kernelSize,
		Depth:  1,
	}
}

// Im2ColIP lays every kernel window of input out as a column of out, so a
// convolution becomes one matrix multiply. Out-of-bounds reads under
// padding become zero. The output shape is
// (xKernels*yKernels, depth*K*K, 1).
func Im2ColIP(out, input *Tensor, kernelSize, stride, padding uint32) bool {
	if out == nil || input == nil {
		errs.Report(errs.InvalidInput, "cannot im2col nil tensor(s)")
		return false
	}
	if stride == 0 {
		errs.Report(errs.InvalidInput, "cannot im2col with stride of zero")
		return false
	}
	if sameData(out, input) {
		errs.Report(errs.InvalidInput, "cannot im2col when out and input overlap")
		return false
	}

	shape := im2colShape(input.Shape, kernelSize, stride, padding)
	if out.Alloc < shape.Size() {
		errs.Report(errs.AllocSize, "cannot im2col: not enough space in out")
		return false
	}
	out.Shape = shape

	xKernels := int((input.Shape.Width+padding*2-kernelSize)/stride + 1)
	yKernels := int((input.Shape.Height+padding*2-kernelSize)/stride + 1)
	inW, inH := int(input.Shape.Width), int(input.Shape.Height)
	k := int(kernelSize)
	outW := int(out.Shape.Width)

	// Interior positions can be negative under padding, so all coordinate
	// math is signed with a bounds check against the unpadded source.
	for z := 0; z < int(input.Shape.Depth); z++ {
		for ki := 0; ki < k*k; ki++ {
			xOff := ki % k
			yOff := ki / k
			for y := 0; y < yKernels; y++ {
				for x := 0; x < xKernels; x++ {
					inX := xOff + x*int(stride) - int(padding)
					inY := yOff + y*int(stride) - int(padding)

					outIdx := (z*k*k+ki)*outW + y*xKernels + x
					if inX < 0 || inY < 0 || inX >= inW || inY >= inH {
						out.Data[outIdx] = 0
					} else {
						out.Data[outIdx] = input.Data[(z*inH+inY)*inW+inX]
					}
				}
			}
		}
	}
	return true
}

// Im2Col is the allocating variant of Im2ColIP.
func Im2Col(a *arena.Arena, input *Tensor, kernelSize, stride, padding uint32) *Tensor {
	if input == nil {
		errs.Report(errs.InvalidInput, "cannot im2col nil tensor")
		return nil
	}
	if stride == 0 {
		errs.Report(errs.InvalidInput, "cannot im2col with stride of zero")
		return nil
	}
	out := New(a, im2colShape(input.Shape, kernelSize, stride, padding))
	if !Im2ColIP(out, input, kernelSize, stride, padding) {
		return nil
	}
	return out
}

// Col2ImIP inverts the im2col layout into outShape. Contributions from
// overlapping kernel windows are summed, which is exactly what the
// convolution gradient needs.
func Col2ImIP(out, input *Tensor, outShape Shape, kernelSize, stride, padding uint32) bool {
	if out == nil || input == nil {
		errs.Report(errs.InvalidInput, "cannot col2im nil tensor(s)")
		return false
	}
	if stride == 0 {
		errs.Report(errs.InvalidInput, "cannot col2im with stride of zero")
		return false
	}
	if sameData(out, input) {
		errs.Report(errs.InvalidInput, "cannot col2im when out and input overlap")
		return false
	}

	outShape = outShape.normalize()
	if out.Alloc < outShape.Size() {
		errs.Report(errs.AllocSize, "cannot col2im: not enough space in out")
		return false
	}
	out.Shape = outShape
	out.Fill(0)

	xKernels := int((outShape.Width+padding*2-kernelSize)/stride + 1)
	yKernels := int((outShape.Height+padding*2-kernelSize)/stride + 1)
	outW, outH := int(outShape.Width), int(outShape.Height)
	k := int(kernelSize)
	inW := int(input.Shape.Width)

	for z := 0; z < int(outShape.Depth); z++ {
		for ki := 0; ki < k*k; ki++ {
			xOff := ki % k
			yOff := ki / k
			for y := 0; y < yKernels; y++ {
				for x := 0; x < xKernels; x++ {
					outX := xOff + x*int(stride) - int(padding)
					outY := yOff + y*int(stride) - int(padding)
					if outX < 0 || outY < 0 || outX >= outW || outY >= outH {
						continue
					}
					inIdx := (z*k*k+ki)*inW + y*xKernels + x
					out.Data[(z*outH+outY)*outW+outX] += input.Data[inIdx]
				}
			}
		}
	}
	return true
}

// Col2Im is the allocating variant of Col2ImIP.
func Col2Im(a *arena.Arena, input *Tensor, outShape Shape, kernelSize, stride, padding uint32) *Tensor {
	if input == nil {
		errs.Report(errs.InvalidInput, "cannot col2im nil tensor")
		return nil
	}
	out := New(a, outShape)
	if !Col2ImIP(out, input, outShape, kernelSize, stride, padding) {
		return nil
	}
	return out
}
