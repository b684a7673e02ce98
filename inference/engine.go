// Package inference wraps a loaded network behind a read-only prediction
// engine with a bounded memo of recent results.
//
// Agents that query the same states repeatedly, like tabular
// reinforcement-learning loops, hit the memo instead of re-running the
// layer chain.
package inference

import (
	"encoding/binary"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/muchq/tensornet/errs"
	"github.com/muchq/tensornet/network"
	"github.com/muchq/tensornet/tensor"
)

// Engine runs feedforward passes against a fixed network. Safe for
// concurrent use as long as the network is not being trained.
type Engine struct {
	nn    *network.Network
	cache *lru.Cache[string, []float32]
}

// NewEngine wraps a network. cacheSize bounds the prediction memo; zero
// disables it.
func NewEngine(nn *network.Network, cacheSize int) *Engine {
	if nn == nil {
		errs.Report(errs.InvalidInput, "cannot create inference engine for nil network")
		return nil
	}

	e := &Engine{nn: nn}
	if cacheSize > 0 {
		cache, err := lru.New[string, []float32](cacheSize)
		if err != nil {
			errs.Reportf(errs.Create, "cannot create prediction cache: %v", err)
			return nil
		}
		e.cache = cache
	}
	return e
}

// LoadEngine loads a model file in inference mode and wraps it.
func LoadEngine(path string, cacheSize int) *Engine {
	nn := network.Load(path, false)
	if nn == nil {
		return nil
	}
	return NewEngine(nn, cacheSize)
}

func inputKey(input *tensor.Tensor) string {
	size := input.Shape.Size()
	buf := make([]byte, 0, 4*size)
	for _, v := range input.Data[:size] {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return string(buf)
}

// Predict runs input through the network into out, consulting the memo
// first.
func (e *Engine) Predict(out, input *tensor.Tensor) bool {
	if input == nil || out == nil {
		errs.Report(errs.InvalidInput, "cannot predict with nil input and/or output")
		return false
	}

	var key string
	if e.cache != nil {
		key = inputKey(input)
		if data, ok := e.cache.Get(key); ok {
			if out.Alloc < e.nn.OutputShape().Size() {
				errs.Report(errs.AllocSize, "cannot predict: not enough space in out")
				return false
			}
			out.Shape = e.nn.OutputShape()
			copy(out.Data, data)
			return true
		}
	}

	if !e.nn.Feedforward(out, input) {
		return false
	}

	if e.cache != nil {
		data := make([]float32, out.Shape.Size())
		copy(data, out.Data[:out.Shape.Size()])
		e.cache.Add(key, data)
	}
	return true
}

// PredictClass returns the argmax of the prediction, the usual decision
// rule for classifiers and greedy agents.
func (e *Engine) PredictClass(input *tensor.Tensor) (tensor.Index, bool) {
	out := tensor.New(nil, e.nn.OutputShape())
	if !e.Predict(out, input) {
		return tensor.Index{}, false
	}
	return out.Argmax(), true
}
