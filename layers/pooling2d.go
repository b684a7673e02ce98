package layers

import (
	"github.com/muchq/tensornet/errs"
	"github.com/muchq/tensornet/prng"
	"github.com/muchq/tensornet/tensor"
)

// pooling2dBackend reduces non-overlapping windows on each depth plane.
// The stride equals the window, so input cells beyond the last full window
// are dropped. Max pooling caches the winning input index of every window
// so backprop routes the gradient only there; average pooling spreads it
// uniformly.
type pooling2dBackend struct {
	noop
	inputShape tensor.Shape
	poolSize   tensor.Shape
	kind       PoolingKind
}

func createPooling2D(l *Layer, desc *Desc, prevShape tensor.Shape, _ *prng.Source) backend {
	pool := tensor.Shape{Width: desc.PoolSize.Width, Height: desc.PoolSize.Height, Depth: 1}
	if pool.Width == 0 || pool.Height == 0 {
		errs.Report(errs.InvalidInput, "cannot create pooling layer with zero pool size")
		return nil
	}
	if desc.Pooling != PoolingMax && desc.Pooling != PoolingAvg {
		errs.Report(errs.InvalidEnum, "invalid pooling kind")
		return nil
	}

	l.shape = tensor.Shape{
		Width:  prevShape.Width / pool.Width,
		Height: prevShape.Height / pool.Height,
		Depth:  prevShape.Depth,
	}

	return &pooling2dBackend{
		inputShape: prevShape,
		poolSize:   pool,
		kind:       desc.Pooling,
	}
}

func (p *pooling2dBackend) feedforward(l *Layer, inOut *tensor.Tensor, cache *Cache) {
	tmp, tmpArena := cache.tempArena()
	defer releaseTemp(tmp)

	useCache := cache != nil && l.trainingMode

	out := tensor.New(tmpArena, l.shape)
	var indices *tensor.Tensor
	if useCache && p.kind == PoolingMax {
		// Plane-local flat input index of each window winner.
		indices = tensor.New(cache.Arena, l.shape)
	}

	inW, inH := int(p.inputShape.Width), int(p.inputShape.Height)
	outW, outH := int(l.shape.Width), int(l.shape.Height)
	pw, ph := int(p.poolSize.Width), int(p.poolSize.Height)

	for z := 0; z < int(l.shape.Depth); z++ {
		inPlane := inOut.Data[z*inW*inH : (z+1)*inW*inH]
		outPlane := out.Data[z*outW*outH : (z+1)*outW*outH]

		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				switch p.kind {
				case PoolingMax:
					maxVal := inPlane[oy*ph*inW+ox*pw]
					maxIdx := oy*ph*inW + ox*pw
					for wy := 0; wy < ph; wy++ {
						for wx := 0; wx < pw; wx++ {
							idx := (oy*ph+wy)*inW + ox*pw + wx
							if inPlane[idx] > maxVal {
								maxVal = inPlane[idx]
								maxIdx = idx
							}
						}
					}
					outPlane[oy*outW+ox] = maxVal
					if indices != nil {
						indices.Data[z*outW*outH+oy*outW+ox] = float32(maxIdx)
					}
				case PoolingAvg:
					sum := float32(0)
					for wy := 0; wy < ph; wy++ {
						for wx := 0; wx < pw; wx++ {
							sum += inPlane[(oy*ph+wy)*inW+ox*pw+wx]
						}
					}
					outPlane[oy*outW+ox] = sum / float32(pw*ph)
				}
			}
		}
	}

	tensor.CopyInto(inOut, out)

	if indices != nil {
		cache.Push(indices)
	}
}

func (p *pooling2dBackend) backprop(l *Layer, delta *tensor.Tensor, cache *Cache) {
	tmp, tmpArena := cache.tempArena()
	defer releaseTemp(tmp)

	var indices *tensor.Tensor
	if p.kind == PoolingMax {
		indices = cache.Pop()
	}

	inDelta := tensor.New(tmpArena, p.inputShape)

	inW, inH := int(p.inputShape.Width), int(p.inputShape.Height)
	outW, outH := int(l.shape.Width), int(l.shape.Height)
	pw, ph := int(p.poolSize.Width), int(p.poolSize.Height)
	windowInv := 1 / float32(pw*ph)

	for z := 0; z < int(l.shape.Depth); z++ {
		inPlane := inDelta.Data[z*inW*inH : (z+1)*inW*inH]
		outPlane := delta.Data[z*outW*outH : (z+1)*outW*outH]

		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				d := outPlane[oy*outW+ox]
				switch p.kind {
				case PoolingMax:
					winner := int(indices.Data[z*outW*outH+oy*outW+ox])
					inPlane[winner] += d
				case PoolingAvg:
					for wy := 0; wy < ph; wy++ {
						for wx := 0; wx < pw; wx++ {
							inPlane[(oy*ph+wy)*inW+ox*pw+wx] += d * windowInv
						}
					}
				}
			}
		}
	}

	tensor.CopyInto(delta, inDelta)
}
