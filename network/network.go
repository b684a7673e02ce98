// Package network ties the layer chain together: construction with shape
// checks, feedforward, the multithreaded training loop, accuracy
// evaluation, and the layout/model persistence formats.
package network

import (
	"fmt"
	"strings"

	"github.com/muchq/tensornet/arena"
	"github.com/muchq/tensornet/errs"
	"github.com/muchq/tensornet/layers"
	"github.com/muchq/tensornet/prng"
	"github.com/muchq/tensornet/tensor"
)

// Network is an ordered list of layers plus the descriptors they were
// built from. MaxLayerSize is the largest output element count across
// layers and sizes every working buffer once.
type Network struct {
	trainingMode bool
	layers       []*layers.Layer
	descs        []layers.Desc
	maxLayerSize int
}

// New creates a network from layer descriptors. Defaults are applied to
// every descriptor; the first layer must be an input layer, and the whole
// chain is validated with a mock forward pass, followed by a mock backward
// pass in training mode. Returns nil on any failure.
func New(descs []layers.Desc, trainingMode bool) *Network {
	if len(descs) == 0 {
		errs.Report(errs.InvalidInput, "cannot create network with no layer descs")
		return nil
	}

	nn := &Network{trainingMode: trainingMode}
	rng := prng.New()

	if !nn.build(descs, trainingMode, rng) {
		return nil
	}
	return nn
}

func (nn *Network) build(descs []layers.Desc, trainingMode bool, rng *prng.Source) bool {
	nn.descs = make([]layers.Desc, len(descs))
	nn.layers = make([]*layers.Layer, len(descs))

	prevShape := tensor.Shape{}
	for i := range descs {
		nn.descs[i] = layers.ApplyDefault(descs[i])
		nn.descs[i].TrainingMode = trainingMode

		nn.layers[i] = layers.Create(&nn.descs[i], prevShape, rng)
		if nn.layers[i] == nil {
			errs.Report(errs.Create, "cannot create network: failed to create layer")
			return false
		}
		prevShape = nn.layers[i].Shape()
	}

	if nn.layers[0].Kind() != layers.Input {
		errs.Report(errs.InvalidInput, "first layer of network must be input")
		return false
	}

	nn.maxLayerSize = 0
	for _, l := range nn.layers {
		if size := l.Shape().Size(); size > nn.maxLayerSize {
			nn.maxLayerSize = size
		}
	}

	if !nn.shapeChecks() {
		errs.Report(errs.InvalidInput, "cannot create network: layer shapes do not align")
		return false
	}
	return true
}

// shapeChecks performs a mock feedforward (and backprop in training mode)
// so misaligned layers fail at construction instead of mid-epoch.
func (nn *Network) shapeChecks() bool {
	inOut := tensor.NewAlloc(nil, nn.layers[0].Shape(), nn.maxLayerSize)
	cache := &layers.Cache{
		Scratch: arena.NewScratch(),
		Rand:    prng.NewSeeded(1),
	}

	for _, l := range nn.layers {
		l.Feedforward(inOut, cache)
		if !inOut.Shape.Eq(l.Shape()) {
			return false
		}
	}

	if nn.trainingMode {
		delta := inOut
		for i := len(nn.layers) - 1; i >= 0; i-- {
			nn.layers[i].Backprop(delta, cache)
			if i != 0 && !delta.Shape.Eq(nn.layers[i-1].Shape()) {
				return false
			}
		}
		// A full forward/backward must leave the cache balanced.
		if cache.Len() != 0 {
			return false
		}
	}

	return true
}

// NumLayers returns the layer count.
func (nn *Network) NumLayers() int {
	return len(nn.layers)
}

// InputShape returns the input layer's shape.
func (nn *Network) InputShape() tensor.Shape {
	return nn.layers[0].Shape()
}

// OutputShape returns the last layer's shape.
func (nn *Network) OutputShape() tensor.Shape {
	return nn.layers[len(nn.layers)-1].Shape()
}

// TrainingMode reports whether the network was built for training.
func (nn *Network) TrainingMode() bool {
	return nn.trainingMode
}

// Feedforward runs input through the layer chain into out. The input may
// be any shape whose element count matches the input layer.
func (nn *Network) Feedforward(out, input *tensor.Tensor) bool {
	if nn == nil {
		errs.Report(errs.InvalidInput, "cannot feedforward nil network")
		return false
	}
	if out == nil || input == nil {
		errs.Report(errs.InvalidInput, "cannot feedforward with nil input and/or output")
		return false
	}

	if input.Shape.Size() != nn.layers[0].Shape().Size() {
		errs.Report(errs.InvalidInput, "input must be as big as the network input layer")
		return false
	}

	inOut := tensor.NewAlloc(nil, tensor.Shape{Width: 1, Height: 1, Depth: 1}, nn.maxLayerSize)
	tensor.CopyInto(inOut, input)

	for _, l := range nn.layers {
		l.Feedforward(inOut, nil)
	}

	return tensor.CopyInto(out, inOut)
}

// Summary renders the layer table, e.g.
//
//	--------------------------
//	    network (5 layers)
//
//	 type        shape
//	 ----        -----
//	 input       (784, 1, 1)
//	 dense       (64, 1, 1)
//	 ...
//
//	--------------------------
func (nn *Network) Summary() string {
	header := fmt.Sprintf("network (%d layers)", len(nn.layers))

	types := []string{"type", "----"}
	shapes := []string{"shape", "-----"}
	for _, l := range nn.layers {
		types = append(types, l.Kind().Name())
		s := l.Shape()
		shapes = append(shapes, fmt.Sprintf("(%d, %d, %d)", s.Width, s.Height, s.Depth))
	}

	maxType, maxShape := 0, 0
	for i := range types {
		if len(types[i]) > maxType {
			maxType = len(types[i])
		}
		if len(shapes[i]) > maxShape {
			maxShape = len(shapes[i])
		}
	}

	rowWidth := 1 + maxType + 2 + maxShape + 1
	if rowWidth < len(header)+2 {
		rowWidth = len(header) + 2
	}
	if (rowWidth-len(header))%2 != 0 {
		rowWidth++
	}

	var sb strings.Builder
	border := strings.Repeat("-", rowWidth)

	sb.WriteString(border + "\n")
	pad := (rowWidth - len(header)) / 2
	sb.WriteString(strings.Repeat(" ", pad) + header + "\n\n")

	for i := range types {
		sb.WriteString(" " + types[i] + strings.Repeat(" ", maxType-len(types[i])+2))
		sb.WriteString(shapes[i] + "\n")
	}

	sb.WriteString("\n" + border + "\n")
	return sb.String()
}
