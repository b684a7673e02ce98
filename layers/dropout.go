package layers

import (
	"github.com/muchq/tensornet/prng"
	"github.com/muchq/tensornet/tensor"
)

// dropoutBackend implements inverted dropout: kept activations are scaled
// by 1/keepRate during training so inference is a plain identity.
type dropoutBackend struct {
	noop
	keepRate float32
}

func createDropout(l *Layer, desc *Desc, prevShape tensor.Shape, _ *prng.Source) backend {
	l.shape = prevShape
	return &dropoutBackend{keepRate: desc.KeepRate}
}

func (d *dropoutBackend) feedforward(l *Layer, inOut *tensor.Tensor, cache *Cache) {
	if !l.trainingMode || cache == nil {
		return
	}

	mask := tensor.New(cache.Arena, inOut.Shape)
	maskData := mask.Data[:mask.Shape.Size()]
	for i := range maskData {
		if cache.Rand.Float32() > d.keepRate {
			maskData[i] = 0
		} else {
			maskData[i] = 1
		}
	}

	tensor.MulIP(inOut, inOut, mask)
	tensor.ScaleIP(inOut, inOut, 1/d.keepRate)

	cache.Push(mask)
}

func (d *dropoutBackend) backprop(_ *Layer, delta *tensor.Tensor, cache *Cache) {
	mask := cache.Pop()

	tensor.MulIP(delta, delta, mask)
	tensor.ScaleIP(delta, delta, 1/d.keepRate)
}
