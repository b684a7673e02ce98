package network

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/muchq/tensornet/cost"
	"github.com/muchq/tensornet/errs"
	"github.com/muchq/tensornet/img"
	"github.com/muchq/tensornet/layers"
	"github.com/muchq/tensornet/optim"
	"github.com/muchq/tensornet/tensor"
)

// Transforms are the augmentation ranges sampled per training sample. The
// composed matrix is translation, scale, and rotation about the image
// center.
type Transforms struct {
	MinTranslation float32
	MaxTranslation float32

	MinScale float32
	MaxScale float32

	MinAngle float32
	MaxAngle float32
}

// EpochInfo is handed to the epoch callback.
type EpochInfo struct {
	Epoch        uint32
	RunID        uuid.UUID
	TestAccuracy float32
}

// TrainDesc describes one training run. Training and test datasets store
// one sample per depth plane; each plane's element count must match the
// input and output layers respectively.
type TrainDesc struct {
	Epochs     uint32
	BatchSize  uint32
	NumWorkers int

	Cost  cost.Kind
	Optim optim.Optimizer

	RandomTransforms bool
	Transforms       Transforms

	EpochCallback func(info *EpochInfo)

	// SaveInterval > 0 writes a checkpoint to <SavePath><epoch>.tsn every
	// SaveInterval epochs, where <epoch> is the 1-based epoch number
	// zero-padded to four digits (e.g. ckpt_0001.tsn).
	SaveInterval uint32
	SavePath     string

	TrainInputs  *tensor.Tensor
	TrainOutputs *tensor.Tensor

	AccuracyTest bool
	TestInputs   *tensor.Tensor
	TestOutputs  *tensor.Tensor

	// Quiet suppresses the progress display.
	Quiet bool
}

func planeSize(t *tensor.Tensor) int {
	return int(t.Shape.Width) * int(t.Shape.Height)
}

func (desc *TrainDesc) sizeChecks(nn *Network) bool {
	inSize := nn.InputShape().Size()
	outSize := nn.OutputShape().Size()

	if planeSize(desc.TrainInputs) != inSize {
		errs.Report(errs.InvalidInput, "training inputs must be the same size as the network input layer")
		return false
	}
	if planeSize(desc.TrainOutputs) != outSize {
		errs.Report(errs.InvalidInput, "training outputs must be the same size as the network output layer")
		return false
	}
	if desc.TrainInputs.Shape.Depth != desc.TrainOutputs.Shape.Depth {
		errs.Report(errs.InvalidInput, "training inputs and outputs must have the same number of samples")
		return false
	}

	if desc.AccuracyTest {
		if desc.TestInputs == nil || desc.TestOutputs == nil {
			errs.Report(errs.InvalidInput, "accuracy test requires test inputs and outputs")
			return false
		}
		if planeSize(desc.TestInputs) != inSize {
			errs.Report(errs.InvalidInput, "testing inputs must be the same size as the network input layer")
			return false
		}
		if planeSize(desc.TestOutputs) != outSize {
			errs.Report(errs.InvalidInput, "testing outputs must be the same size as the network output layer")
			return false
		}
		if desc.TestInputs.Shape.Depth != desc.TestOutputs.Shape.Depth {
			errs.Report(errs.InvalidInput, "testing inputs and outputs must have the same number of samples")
			return false
		}
	}

	return true
}

// backpropSample is the per-sample worker task: copy the sample into a
// working buffer, optionally warp it, run the layer chain forward, apply
// the cost gradient, and run backward, summing parameter changes into the
// layers' accumulators.
func (nn *Network) backpropSample(w *Worker, desc *TrainDesc, inputView, outputView tensor.Tensor) {
	tmp := w.Scratch.Get()
	defer tmp.End()

	cache := &layers.Cache{
		Arena:   tmp.Arena,
		Scratch: w.Scratch,
		Rand:    w.Rand,
	}

	inOut := tensor.NewAlloc(tmp.Arena, tensor.Shape{Width: 1, Height: 1, Depth: 1}, nn.maxLayerSize)
	tensor.CopyInto(inOut, &inputView)

	// Safe because of the checks at network creation.
	inOut.Shape = nn.InputShape()

	if desc.RandomTransforms {
		t := &desc.Transforms

		xOff := t.MinTranslation + w.Rand.Float32()*(t.MaxTranslation-t.MinTranslation)
		yOff := t.MinTranslation + w.Rand.Float32()*(t.MaxTranslation-t.MinTranslation)

		xScale := t.MinScale + w.Rand.Float32()*(t.MaxScale-t.MinScale)
		yScale := t.MinScale + w.Rand.Float32()*(t.MaxScale-t.MinScale)

		angle := t.MinAngle + w.Rand.Float32()*(t.MaxAngle-t.MinAngle)

		mat := img.Compose(xOff, yOff, xScale, yScale, angle)
		img.TransformIP(inOut, inOut, img.SampleBilinear, &mat)
	}

	output := tensor.Copy(tmp.Arena, &outputView, false)

	for _, l := range nn.layers {
		l.Feedforward(inOut, cache)
	}

	delta := inOut
	cost.Grad(desc.Cost, delta, output)

	for i := len(nn.layers) - 1; i >= 0; i-- {
		nn.layers[i].Backprop(delta, cache)
	}
}

// testSample runs one inference and bumps the shared counter when the
// prediction's argmax matches the target's.
func (nn *Network) testSample(w *Worker, inputView tensor.Tensor, outputArgmax tensor.Index, numCorrect *uint32, mu *sync.Mutex) {
	tmp := w.Scratch.Get()
	defer tmp.End()

	inOut := tensor.NewAlloc(tmp.Arena, tensor.Shape{Width: 1, Height: 1, Depth: 1}, nn.maxLayerSize)
	tensor.CopyInto(inOut, &inputView)
	inOut.Shape = nn.InputShape()

	for _, l := range nn.layers {
		l.Feedforward(inOut, nil)
	}

	if inOut.Argmax() == outputArgmax {
		mu.Lock()
		*numCorrect++
		mu.Unlock()
	}
}

// Train runs the full training loop described by desc. The network must
// be in training mode. On a mid-epoch failure the network is left in a
// well-defined but partially updated state.
func (nn *Network) Train(desc *TrainDesc) {
	if nn == nil {
		errs.Report(errs.InvalidInput, "cannot train nil network")
		return
	}
	if !nn.trainingMode {
		errs.Report(errs.InvalidInput, "cannot train network that is not in training mode")
		return
	}
	if desc.BatchSize == 0 || desc.Epochs == 0 {
		errs.Report(errs.InvalidInput, "cannot train with zero epochs or batch size")
		return
	}
	if !desc.sizeChecks(nn) {
		return
	}

	optimizer := desc.Optim
	optimizer.BatchSize = desc.BatchSize

	runID := uuid.New()

	pool := NewPool(desc.NumWorkers, int(desc.BatchSize)+1)
	defer pool.Stop()

	numSamples := desc.TrainInputs.Shape.Depth
	numBatches := (numSamples + desc.BatchSize - 1) / desc.BatchSize
	lastBatchSize := numSamples - desc.BatchSize*(numBatches-1)

	var numCorrectMu sync.Mutex

	for epoch := uint32(0); epoch < desc.Epochs; epoch++ {
		var bar *progressbar.ProgressBar
		if !desc.Quiet {
			bar = progressbar.Default(int64(numBatches), fmt.Sprintf("epoch %d/%d", epoch+1, desc.Epochs))
		}

		for batch := uint32(0); batch < numBatches; batch++ {
			batchSize := desc.BatchSize
			if batch == numBatches-1 {
				batchSize = lastBatchSize
			}

			for i := uint32(0); i < batchSize; i++ {
				index := batch*desc.BatchSize + i

				inputView := tensor.View2D(desc.TrainInputs, index)
				outputView := tensor.View2D(desc.TrainOutputs, index)

				pool.Submit(func(w *Worker) {
					nn.backpropSample(w, desc, inputView, outputView)
				})
			}

			pool.Wait()

			for _, l := range nn.layers {
				l.ApplyChanges(&optimizer)
			}

			metricBatches.Inc()
			metricSamples.Add(float64(batchSize))
			if bar != nil {
				bar.Add(1)
			}
		}

		if bar != nil {
			bar.Finish()
		}

		if desc.SaveInterval != 0 && (epoch+1)%desc.SaveInterval == 0 {
			nn.Save(fmt.Sprintf("%s%04d.tsn", desc.SavePath, epoch+1))
		}

		accuracy := float32(0)
		if desc.AccuracyTest {
			accuracy = nn.runAccuracyTest(desc, pool, &numCorrectMu)
			metricTestAccuracy.Set(float64(accuracy))
			if !desc.Quiet {
				fmt.Printf("test accuracy: %f\n", accuracy)
			}
		}

		metricEpochs.Inc()

		if desc.EpochCallback != nil {
			desc.EpochCallback(&EpochInfo{
				Epoch:        epoch,
				RunID:        runID,
				TestAccuracy: accuracy,
			})
		}
	}
}

// runAccuracyTest evaluates argmax equality over the test set, in batches
// so the pool's queue stays bounded.
func (nn *Network) runAccuracyTest(desc *TrainDesc, pool *Pool, mu *sync.Mutex) float32 {
	numCorrect := uint32(0)

	numSamples := desc.TestInputs.Shape.Depth
	numBatches := (numSamples + desc.BatchSize - 1) / desc.BatchSize
	lastBatchSize := numSamples - desc.BatchSize*(numBatches-1)

	for batch := uint32(0); batch < numBatches; batch++ {
		batchSize := desc.BatchSize
		if batch == numBatches-1 {
			batchSize = lastBatchSize
		}

		for i := uint32(0); i < batchSize; i++ {
			index := batch*desc.BatchSize + i

			inputView := tensor.View2D(desc.TestInputs, index)
			outputView := tensor.View2D(desc.TestOutputs, index)
			outputArgmax := outputView.Argmax()

			pool.Submit(func(w *Worker) {
				nn.testSample(w, inputView, outputArgmax, &numCorrect, mu)
			})
		}

		pool.Wait()
	}

	return float32(numCorrect) / float32(numSamples)
}
