// Package img warps tensor images for training-data augmentation.
//
// An image is just a tensor; every function works on all depth planes.
// Transformations happen about the image's center, and out-of-bounds reads
// are treated as zero.
package img

import (
	"math"

	"github.com/muchq/tensornet/arena"
	"github.com/muchq/tensornet/errs"
	"github.com/muchq/tensornet/tensor"
)

// SampleKind selects how source positions are read.
type SampleKind int

const (
	// SampleNearest reads the nearest (floored) pixel.
	SampleNearest SampleKind = iota
	// SampleBilinear interpolates the four surrounding pixels.
	SampleBilinear
)

// Mat3 is a row-major 3x3 affine matrix.
type Mat3 struct {
	M [9]float32
}

// Translation builds a translation matrix.
func Translation(xOff, yOff float32) Mat3 {
	return Mat3{M: [9]float32{
		1, 0, xOff,
		0, 1, yOff,
		0, 0, 1,
	}}
}

// Scaling builds a scale matrix.
func Scaling(xScale, yScale float32) Mat3 {
	return Mat3{M: [9]float32{
		xScale, 0, 0,
		0, yScale, 0,
		0, 0, 1,
	}}
}

// Rotation builds a rotation matrix for theta radians.
func Rotation(theta float32) Mat3 {
	sin := float32(math.Sin(float64(theta)))
	cos := float32(math.Cos(float64(theta)))
	return Mat3{M: [9]float32{
		cos, -sin, 0,
		sin, cos, 0,
		0, 0, 1,
	}}
}

// Shearing builds a shear matrix.
func Shearing(xShear, yShear float32) Mat3 {
	return Mat3{M: [9]float32{
		1, xShear, 0,
		yShear, 1, 0,
		0, 0, 1,
	}}
}

// Compose builds the combined scale-rotate-translate matrix the training
// loop samples its augmentations from.
func Compose(xOff, yOff, xScale, yScale, angle float32) Mat3 {
	sin := float32(math.Sin(float64(angle)))
	cos := float32(math.Cos(float64(angle)))
	return Mat3{M: [9]float32{
		xScale * cos, yScale * -sin, xOff,
		xScale * sin, yScale * cos, yOff,
		0, 0, 1,
	}}
}

func samplePixel(data []float32, width, height, x, y, z int) float32 {
	if x < 0 || x >= width || y < 0 || y >= height {
		return 0
	}
	return data[(z*height+y)*width+x]
}

func sample(data []float32, width, height int, posX, posY float32, z int, kind SampleKind) float32 {
	x := int(math.Floor(float64(posX)))
	y := int(math.Floor(float64(posY)))

	switch kind {
	case SampleNearest:
		return samplePixel(data, width, height, x, y, z)
	case SampleBilinear:
		p0 := samplePixel(data, width, height, x, y, z)
		p1 := samplePixel(data, width, height, x+1, y, z)
		p2 := samplePixel(data, width, height, x, y+1, z)
		p3 := samplePixel(data, width, height, x+1, y+1, z)

		tx := posX - float32(x)
		ty := posY - float32(y)

		top := p0 + (p1-p0)*tx
		bot := p2 + (p3-p2)*tx
		return top + (bot-top)*ty
	}
	return 0
}

// TransformIP warps input by mat into out, which may alias input. Each
// output pixel inverse-maps to a source position, so the image itself moves
// by the forward matrix. Fails when the matrix is near singular.
func TransformIP(out, input *tensor.Tensor, kind SampleKind, mat *Mat3) bool {
	if out == nil || input == nil {
		errs.Report(errs.InvalidInput, "cannot transform image: out and/or input is nil")
		return false
	}
	if mat == nil {
		errs.Report(errs.InvalidInput, "cannot transform image: mat is nil")
		return false
	}

	size := input.Shape.Size()
	if out.Alloc < size {
		errs.Report(errs.AllocSize, "cannot transform image: not enough space in out")
		return false
	}

	m := mat.M
	det := m[0]*(m[4]*m[8]-m[5]*m[7]) -
		m[1]*(m[3]*m[8]-m[5]*m[6]) +
		m[2]*(m[3]*m[7]-m[4]*m[6])

	if float32(math.Abs(float64(det))) < 1e-6 {
		errs.Report(errs.Math, "cannot transform image: matrix determinant is near zero")
		return false
	}

	invDet := 1 / det
	inv := [9]float32{
		(m[4]*m[8] - m[5]*m[7]) * invDet,
		(m[2]*m[7] - m[1]*m[8]) * invDet,
		(m[1]*m[5] - m[2]*m[4]) * invDet,
		(m[5]*m[6] - m[3]*m[8]) * invDet,
		(m[0]*m[8] - m[2]*m[6]) * invDet,
		(m[2]*m[3] - m[0]*m[5]) * invDet,
		(m[3]*m[7] - m[4]*m[6]) * invDet,
		(m[1]*m[6] - m[0]*m[7]) * invDet,
		(m[0]*m[4] - m[1]*m[3]) * invDet,
	}

	out.Shape = input.Shape

	width := int(input.Shape.Width)
	height := int(input.Shape.Height)

	imgData := input.Data[:size]
	if &out.Data[0] == &input.Data[0] {
		imgData = make([]float32, size)
		copy(imgData, input.Data[:size])
	}

	offX := float32(width) / 2
	offY := float32(height) / 2

	for z := 0; z < int(input.Shape.Depth); z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				posX := float32(x) - offX
				posY := float32(y) - offY

				srcX := posX*inv[0] + posY*inv[1] + inv[2] + offX
				srcY := posX*inv[3] + posY*inv[4] + inv[5] + offY

				out.Data[(z*height+y)*width+x] = sample(imgData, width, height, srcX, srcY, z, kind)
			}
		}
	}

	return true
}

// Transform returns the warped image as a fresh tensor.
func Transform(a *arena.Arena, input *tensor.Tensor, kind SampleKind, mat *Mat3) *tensor.Tensor {
	if input == nil {
		errs.Report(errs.InvalidInput, "cannot transform nil image")
		return nil
	}
	out := tensor.New(a, input.Shape)
	if !TransformIP(out, input, kind, mat) {
		return nil
	}
	return out
}

// TranslateIP shifts the image by (xOff, yOff).
func TranslateIP(out, input *tensor.Tensor, kind SampleKind, xOff, yOff float32) bool {
	mat := Translation(xOff, yOff)
	return TransformIP(out, input, kind, &mat)
}

// ScaleIP scales the image about its center.
func ScaleIP(out, input *tensor.Tensor, kind SampleKind, xScale, yScale float32) bool {
	mat := Scaling(xScale, yScale)
	return TransformIP(out, input, kind, &mat)
}

// RotateIP rotates the image by theta radians about its center.
func RotateIP(out, input *tensor.Tensor, kind SampleKind, theta float32) bool {
	mat := Rotation(theta)
	return TransformIP(out, input, kind, &mat)
}

// ShearIP shears the image about its center.
func ShearIP(out, input *tensor.Tensor, kind SampleKind, xShear, yShear float32) bool {
	mat := Shearing(xShear, yShear)
	return TransformIP(out, input, kind, &mat)
}
