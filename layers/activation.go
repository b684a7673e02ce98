package layers

import (
	"math"

	"github.com/muchq/tensornet/errs"
	"github.com/muchq/tensornet/prng"
	"github.com/muchq/tensornet/tensor"
)

const leakySlope = 0.01

// Each activation names its function, its gradient, and which tensor it
// needs cached: relu variants gradient on the sign of the pre-activation,
// sigmoid/tanh/softmax have analytic gradients in terms of the output.
type activation struct {
	fn       func(t *tensor.Tensor)
	grad     func(prevIn, prevOut, delta *tensor.Tensor, cache *Cache)
	cacheIn  bool
	cacheOut bool
}

var activations = map[ActivationKind]activation{
	ActivationNull:      {fn: nullFn, grad: nullGrad},
	ActivationLinear:    {fn: nullFn, grad: nullGrad},
	ActivationSigmoid:   {fn: sigmoidFn, grad: sigmoidGrad, cacheOut: true},
	ActivationTanh:      {fn: tanhFn, grad: tanhGrad, cacheOut: true},
	ActivationReLU:      {fn: reluFn, grad: reluGrad, cacheIn: true},
	ActivationLeakyReLU: {fn: leakyReluFn, grad: leakyReluGrad, cacheIn: true},
	ActivationSoftmax:   {fn: softmaxFn, grad: softmaxGrad, cacheOut: true},
}

type activationBackend struct {
	noop
	kind ActivationKind
}

func createActivation(l *Layer, desc *Desc, prevShape tensor.Shape, _ *prng.Source) backend {
	kind := desc.Activation
	if kind < ActivationNull || kind >= activationCount {
		errs.Report(errs.InvalidEnum, "invalid activation kind")
		kind = ActivationNull
	}
	l.shape = prevShape
	return &activationBackend{kind: kind}
}

func (a *activationBackend) feedforward(l *Layer, inOut *tensor.Tensor, cache *Cache) {
	act := activations[a.kind]
	useCache := cache != nil && l.trainingMode

	if useCache && act.cacheIn {
		cache.Push(tensor.Copy(cache.Arena, inOut, false))
	}

	act.fn(inOut)

	if useCache && act.cacheOut {
		cache.Push(tensor.Copy(cache.Arena, inOut, false))
	}
}

func (a *activationBackend) backprop(_ *Layer, delta *tensor.Tensor, cache *Cache) {
	act := activations[a.kind]

	var prevIn, prevOut *tensor.Tensor
	if act.cacheOut {
		prevOut = cache.Pop()
	}
	if act.cacheIn {
		prevIn = cache.Pop()
	}

	act.grad(prevIn, prevOut, delta, cache)
}

func nullFn(*tensor.Tensor) {}

func nullGrad(_, _, _ *tensor.Tensor, _ *Cache) {}

func sigmoidFn(t *tensor.Tensor) {
	data := t.Data[:t.Shape.Size()]
	for i, v := range data {
		data[i] = float32(1 / (1 + math.Exp(-float64(v))))
	}
}

func sigmoidGrad(_, prevOut, delta *tensor.Tensor, _ *Cache) {
	data := prevOut.Data[:prevOut.Shape.Size()]
	for i, v := range data {
		data[i] = v * (1 - v)
	}
	tensor.MulIP(delta, delta, prevOut)
}

func tanhFn(t *tensor.Tensor) {
	data := t.Data[:t.Shape.Size()]
	for i, v := range data {
		data[i] = float32(math.Tanh(float64(v)))
	}
}

func tanhGrad(_, prevOut, delta *tensor.Tensor, _ *Cache) {
	data := prevOut.Data[:prevOut.Shape.Size()]
	for i, v := range data {
		data[i] = 1 - v*v
	}
	tensor.MulIP(delta, delta, prevOut)
}

func reluFn(t *tensor.Tensor) {
	data := t.Data[:t.Shape.Size()]
	for i, v := range data {
		if v < 0 {
			data[i] = 0
		}
	}
}

func reluGrad(prevIn, _, delta *tensor.Tensor, _ *Cache) {
	data := prevIn.Data[:prevIn.Shape.Size()]
	for i, v := range data {
		if v > 0 {
			data[i] = 1
		} else {
			data[i] = 0
		}
	}
	tensor.MulIP(delta, delta, prevIn)
}

func leakyReluFn(t *tensor.Tensor) {
	data := t.Data[:t.Shape.Size()]
	for i, v := range data {
		if v < 0 {
			data[i] = v * leakySlope
		}
	}
}

func leakyReluGrad(prevIn, _, delta *tensor.Tensor, _ *Cache) {
	data := prevIn.Data[:prevIn.Shape.Size()]
	for i, v := range data {
		if v > 0 {
			data[i] = 1
		} else {
			data[i] = leakySlope
		}
	}
	tensor.MulIP(delta, delta, prevIn)
}

// softmaxFn subtracts the max before exponentiating so large inputs cannot
// overflow.
func softmaxFn(t *tensor.Tensor) {
	data := t.Data[:t.Shape.Size()]

	max := data[0]
	for _, v := range data {
		if v > max {
			max = v
		}
	}

	expSum := float32(0)
	for i, v := range data {
		data[i] = float32(math.Exp(float64(v - max)))
		expSum += data[i]
	}

	inv := 1 / expSum
	for i := range data {
		data[i] *= inv
	}
}

// softmaxGrad builds the full Jacobian J[i][j] = a_i * (d_ij - a_j) and
// left-multiplies delta through it.
func softmaxGrad(_, prevOut, delta *tensor.Tensor, cache *Cache) {
	tmp, tmpArena := cache.tempArena()
	defer releaseTemp(tmp)

	out := prevOut.Data[:prevOut.Shape.Size()]
	w := int(prevOut.Shape.Width)

	jacobian := tensor.New(tmpArena, tensor.Shape{Width: uint32(w), Height: uint32(w), Depth: 1})
	for y := 0; y < w; y++ {
		for x := 0; x < w; x++ {
			if x == y {
				jacobian.Data[x+y*w] = out[x] * (1 - out[y])
			} else {
				jacobian.Data[x+y*w] = out[x] * -out[y]
			}
		}
	}

	tensor.DotIP(delta, false, false, delta, jacobian)
}
