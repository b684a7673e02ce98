package layers

import (
	"github.com/muchq/tensornet/prng"
	"github.com/muchq/tensornet/tensor"
)

// The input, reshape, and flatten layers only move shapes around; element
// counts are preserved and no data is touched.

type inputBackend struct {
	noop
}

func createInput(l *Layer, desc *Desc, _ tensor.Shape, _ *prng.Source) backend {
	l.shape = desc.Shape
	return inputBackend{}
}

func (inputBackend) feedforward(l *Layer, inOut *tensor.Tensor, _ *Cache) {
	inOut.Shape = l.shape
}

type reshapeBackend struct {
	noop
	prevShape tensor.Shape
}

func createReshape(l *Layer, desc *Desc, prevShape tensor.Shape, _ *prng.Source) backend {
	l.shape = desc.Shape
	return &reshapeBackend{prevShape: prevShape}
}

func (r *reshapeBackend) feedforward(l *Layer, inOut *tensor.Tensor, _ *Cache) {
	inOut.Shape = l.shape
}

func (r *reshapeBackend) backprop(_ *Layer, delta *tensor.Tensor, _ *Cache) {
	delta.Shape = r.prevShape
}

type flattenBackend struct {
	noop
	prevShape tensor.Shape
}

func createFlatten(l *Layer, _ *Desc, prevShape tensor.Shape, _ *prng.Source) backend {
	l.shape = tensor.Shape{Width: uint32(prevShape.Size()), Height: 1, Depth: 1}
	return &flattenBackend{prevShape: prevShape}
}

func (f *flattenBackend) feedforward(l *Layer, inOut *tensor.Tensor, _ *Cache) {
	inOut.Shape = l.shape
}

func (f *flattenBackend) backprop(_ *Layer, delta *tensor.Tensor, _ *Cache) {
	delta.Shape = f.prevShape
}
