// Package layers implements the layer library: descriptors, creation,
// feedforward, backprop, parameter-change application, and persistence for
// every supported layer kind.
//
// Dispatch is a per-kind function table keyed by the descriptor's kind tag;
// absent entries are no-ops. Layer state is opaque behind the Layer type.
package layers

import (
	"github.com/muchq/tensornet/arena"
	"github.com/muchq/tensornet/errs"
	"github.com/muchq/tensornet/optim"
	"github.com/muchq/tensornet/prng"
	"github.com/muchq/tensornet/tensor"
)

// Kind tags a layer descriptor.
type Kind int

const (
	Null Kind = iota
	// Input must be the first layer of a network.
	Input
	// Reshape changes the input shape and restores it on the gradient.
	Reshape
	// Dense is a fully connected layer.
	Dense
	// Activation applies an element-wise (or softmax) nonlinearity.
	Activation
	// Dropout randomly zeroes activations during training.
	Dropout
	// Flatten reshapes the input to 1D.
	Flatten
	// Pooling2D reduces non-overlapping windows on every depth plane.
	Pooling2D
	// Conv2D is a 2D convolution over all input planes.
	Conv2D
	// Norm is layer normalization.
	Norm

	kindCount
)

// Name returns the identifier used in layout files.
func (k Kind) Name() string {
	switch k {
	case Null:
		return "null"
	case Input:
		return "input"
	case Reshape:
		return "reshape"
	case Dense:
		return "dense"
	case Activation:
		return "activation"
	case Dropout:
		return "dropout"
	case Flatten:
		return "flatten"
	case Pooling2D:
		return "pooling_2d"
	case Conv2D:
		return "conv_2d"
	case Norm:
		return "norm"
	default:
		return "unknown"
	}
}

// KindFromName maps a layout-file identifier back to a kind; unknown names
// map to Null.
func KindFromName(name string) Kind {
	switch name {
	case "null":
		return Null
	case "input":
		return Input
	case "reshape":
		return Reshape
	case "dense":
		return Dense
	case "activation":
		return Activation
	case "dropout":
		return Dropout
	case "flatten":
		return Flatten
	case "pooling_2d":
		return Pooling2D
	case "conv_2d":
		return Conv2D
	case "norm":
		return Norm
	default:
		return Null
	}
}

// ActivationKind selects the nonlinearity of an activation layer.
type ActivationKind int

const (
	ActivationNull ActivationKind = iota
	ActivationLinear
	ActivationSigmoid
	ActivationTanh
	ActivationReLU
	ActivationLeakyReLU
	ActivationSoftmax

	activationCount
)

// PoolingKind selects the reduction of a pooling layer.
type PoolingKind int

const (
	PoolingNull PoolingKind = iota
	PoolingMax
	PoolingAvg
)

// Desc fully describes a layer: the kind tag, the training flag, and the
// kind-specific settings. Unset fields are filled by ApplyDefault before
// use.
type Desc struct {
	Kind         Kind
	TrainingMode bool

	// Input, Reshape
	Shape tensor.Shape

	// Dense
	Size       uint32
	WeightInit InitKind
	BiasInit   InitKind

	// Activation
	Activation ActivationKind

	// Dropout
	KeepRate float32

	// Pooling2D; the depth of PoolSize is ignored.
	PoolSize tensor.Shape
	Pooling  PoolingKind

	// Conv2D
	NumFilters  uint32
	KernelSize  uint32
	Padding     bool
	Stride      uint32
	KernelsInit InitKind
	BiasesInit  InitKind

	// Norm
	Epsilon float32
}

// Default returns the default descriptor for a kind.
func Default(kind Kind) Desc {
	out := Desc{Kind: kind}
	switch kind {
	case Dense:
		out.WeightInit = InitXavierUniform
		out.BiasInit = InitZeros
	case Conv2D:
		out.Stride = 1
		out.KernelsInit = InitHeNormal
		out.BiasesInit = InitZeros
	case Pooling2D:
		out.Pooling = PoolingMax
	case Activation:
		out.Activation = ActivationReLU
	}
	return out
}

// ApplyDefault fills unset fields of desc with the per-kind defaults.
func ApplyDefault(desc Desc) Desc {
	def := Default(desc.Kind)
	switch desc.Kind {
	case Dense:
		if desc.WeightInit == InitNull {
			desc.WeightInit = def.WeightInit
		}
		if desc.BiasInit == InitNull {
			desc.BiasInit = def.BiasInit
		}
	case Conv2D:
		if desc.Stride == 0 {
			desc.Stride = def.Stride
		}
		if desc.KernelsInit == InitNull {
			desc.KernelsInit = def.KernelsInit
		}
		if desc.BiasesInit == InitNull {
			desc.BiasesInit = def.BiasesInit
		}
	case Pooling2D:
		if desc.Pooling == PoolingNull {
			desc.Pooling = def.Pooling
		}
	case Activation:
		if desc.Activation == ActivationNull {
			desc.Activation = def.Activation
		}
	}
	return desc
}

// Cache is the per-sample stack of tensors pushed during feedforward and
// popped in reverse during backprop. It lives on a worker's scratch arena
// and also carries the worker's random source, which dropout and
// augmentation draw from.
type Cache struct {
	Arena   *arena.Arena
	Scratch *arena.Scratch
	Rand    *prng.Source

	stack []*tensor.Tensor
}

// Push puts a tensor on the cache.
func (c *Cache) Push(t *tensor.Tensor) {
	c.stack = append(c.stack, t)
}

// Pop removes and returns the most recently pushed tensor, or nil when the
// cache is empty.
func (c *Cache) Pop() *tensor.Tensor {
	if len(c.stack) == 0 {
		return nil
	}
	t := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return t
}

// Len reports the number of cached tensors.
func (c *Cache) Len() int {
	return len(c.stack)
}

// tempArena returns a temp on a scratch arena that does not conflict with
// the cache's own arena, falling back to the heap when the worker has no
// scratch pair.
func (c *Cache) tempArena() (arena.Temp, *arena.Arena) {
	if c == nil || c.Scratch == nil {
		return arena.Temp{}, nil
	}
	tmp := c.Scratch.Get(c.Arena)
	return tmp, tmp.Arena
}

func releaseTemp(tmp arena.Temp) {
	if tmp.Arena != nil {
		tmp.End()
	}
}

// backend is the per-kind function table. Entries that do not apply to a
// kind are inherited no-ops.
type backend interface {
	feedforward(l *Layer, inOut *tensor.Tensor, cache *Cache)
	backprop(l *Layer, delta *tensor.Tensor, cache *Cache)
	applyChanges(l *Layer, optimizer *optim.Optimizer)
	save(l *Layer, list *tensor.List, index uint32)
	load(l *Layer, list *tensor.List, index uint32)
}

// noop provides the absent-entry behavior.
type noop struct{}

func (noop) feedforward(*Layer, *tensor.Tensor, *Cache) {}
func (noop) backprop(*Layer, *tensor.Tensor, *Cache)    {}
func (noop) applyChanges(*Layer, *optim.Optimizer)      {}
func (noop) save(*Layer, *tensor.List, uint32)          {}
func (noop) load(*Layer, *tensor.List, uint32)          {}

type createFunc func(l *Layer, desc *Desc, prevShape tensor.Shape, rng *prng.Source) backend

var createFuncs = map[Kind]createFunc{
	Input:      createInput,
	Reshape:    createReshape,
	Dense:      createDense,
	Activation: createActivation,
	Dropout:    createDropout,
	Flatten:    createFlatten,
	Pooling2D:  createPooling2D,
	Conv2D:     createConv2D,
	Norm:       createNorm,
}

// Layer is opaque per-kind state: owned parameter tensors, optional change
// accumulators in training mode, and the fixed output shape.
type Layer struct {
	kind         Kind
	trainingMode bool
	shape        tensor.Shape
	backend      backend
}

// Create builds a layer from its descriptor and the previous layer's
// shape. The descriptor should already have defaults applied. Returns nil
// on an invalid descriptor.
func Create(desc *Desc, prevShape tensor.Shape, rng *prng.Source) *Layer {
	if desc == nil {
		errs.Report(errs.InvalidInput, "cannot create layer from nil desc")
		return nil
	}
	if desc.Kind < Null || desc.Kind >= kindCount {
		errs.Report(errs.InvalidEnum, "invalid layer kind")
		return nil
	}

	l := &Layer{
		kind:         desc.Kind,
		trainingMode: desc.TrainingMode,
		backend:      noop{},
	}
	if create, ok := createFuncs[desc.Kind]; ok {
		b := create(l, desc, prevShape, rng)
		if b == nil {
			return nil
		}
		l.backend = b
	}
	return l
}

// Kind returns the layer's kind tag.
func (l *Layer) Kind() Kind {
	return l.kind
}

// Shape returns the layer's output shape, fixed at creation.
func (l *Layer) Shape() tensor.Shape {
	return l.shape
}

// TrainingMode reports whether the layer was created for training.
func (l *Layer) TrainingMode() bool {
	return l.trainingMode
}

// Feedforward runs the layer on inOut in place. The cache may be nil
// outside of training.
func (l *Layer) Feedforward(inOut *tensor.Tensor, cache *Cache) {
	l.backend.feedforward(l, inOut, cache)
}

// Backprop updates delta in place and accumulates any parameter changes.
// The layer must be in training mode and the cache must be the one filled
// by the matching Feedforward.
func (l *Layer) Backprop(delta *tensor.Tensor, cache *Cache) {
	l.backend.backprop(l, delta, cache)
}

// ApplyChanges applies accumulated parameter changes with the optimizer,
// clearing the accumulators.
func (l *Layer) ApplyChanges(optimizer *optim.Optimizer) {
	l.backend.applyChanges(l, optimizer)
}

// Save pushes the layer's trainable parameters onto the list. The index
// keeps parameter names unique across the network.
func (l *Layer) Save(list *tensor.List, index uint32) {
	l.backend.save(l, list, index)
}

// Load copies trainable parameters from the list into the layer.
func (l *Layer) Load(list *tensor.List, index uint32) {
	l.backend.load(l, list, index)
}
