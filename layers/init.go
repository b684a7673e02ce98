package layers

import (
	"math"

	"github.com/muchq/tensornet/prng"
	"github.com/muchq/tensornet/tensor"
)

// InitKind selects a parameter initialization policy.
type InitKind int

const (
	InitNull InitKind = iota
	InitZeros
	InitOnes
	InitXavierUniform
	InitXavierNormal
	InitHeUniform
	InitHeNormal
)

// ParamInit fills param according to the policy. inSize and outSize are the
// fan-in and fan-out of the parameter's layer.
func ParamInit(param *tensor.Tensor, kind InitKind, inSize, outSize int, rng *prng.Source) {
	data := param.Data[:param.Shape.Size()]

	switch kind {
	case InitZeros:
		param.Fill(0)
	case InitOnes:
		param.Fill(1)
	case InitXavierUniform:
		scale := float32(math.Sqrt(6 / float64(inSize+outSize)))
		for i := range data {
			data[i] = (rng.Float32()*2 - 1) * scale
		}
	case InitXavierNormal:
		scale := float32(math.Sqrt(2 / float64(inSize+outSize)))
		for i := range data {
			data[i] = boxMuller(rng) * scale
		}
	case InitHeUniform:
		scale := float32(math.Sqrt(6 / float64(inSize)))
		for i := range data {
			data[i] = (rng.Float32()*2 - 1) * scale
		}
	case InitHeNormal:
		scale := float32(math.Sqrt(2 / float64(inSize)))
		for i := range data {
			data[i] = boxMuller(rng) * scale
		}
	}
}

// boxMuller draws one standard normal variate from two uniforms.
func boxMuller(rng *prng.Source) float32 {
	u1 := float64(rng.Float32())
	u2 := float64(rng.Float32())
	for u1 == 0 {
		u1 = float64(rng.Float32())
	}
	return float32(math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2))
}
