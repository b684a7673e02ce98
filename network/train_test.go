package network

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muchq/tensornet/cost"
	"github.com/muchq/tensornet/layers"
	"github.com/muchq/tensornet/optim"
	"github.com/muchq/tensornet/tensor"
)

func sgd(lr float32) optim.Optimizer {
	return optim.Optimizer{
		LearningRate: lr,
		Kind:         optim.SGD,
		SGD:          optim.SGDParams{Momentum: 0},
	}
}

// sampleLoss runs one inference and evaluates the cost against the target.
func sampleLoss(t *testing.T, nn *Network, kind cost.Kind, input, target *tensor.Tensor) float32 {
	t.Helper()
	out := tensor.New(nil, nn.OutputShape())
	require.True(t, nn.Feedforward(out, input))
	return cost.Value(kind, out, target)
}

func TestTrainDecreasesLoss(t *testing.T) {
	nn := New(mnistDescs(true), true)
	require.NotNil(t, nn)

	// One sample: a blob of activations labeled as class 3.
	inputs := tensor.New(nil, tensor.Shape{Width: 784, Height: 1, Depth: 1})
	for i := range inputs.Data {
		inputs.Data[i] = float32(i%17) / 17
	}
	targets := tensor.New(nil, tensor.Shape{Width: 10, Height: 1, Depth: 1})
	targets.Data[3] = 1

	inputView := tensor.View2D(inputs, 0)
	targetView := tensor.View2D(targets, 0)
	before := sampleLoss(t, nn, cost.CategoricalCrossEntropy, &inputView, &targetView)

	nn.Train(&TrainDesc{
		Epochs:       1,
		BatchSize:    1,
		NumWorkers:   1,
		Cost:         cost.CategoricalCrossEntropy,
		Optim:        sgd(0.01),
		TrainInputs:  inputs,
		TrainOutputs: targets,
		Quiet:        true,
	})

	after := sampleLoss(t, nn, cost.CategoricalCrossEntropy, &inputView, &targetView)
	assert.Less(t, after, before)
}

func TestTrainMultipleWorkers(t *testing.T) {
	nn := New([]layers.Desc{
		{Kind: layers.Input, Shape: tensor.Shape{Width: 4, Height: 1, Depth: 1}},
		{Kind: layers.Dense, Size: 8},
		{Kind: layers.Activation, Activation: layers.ActivationTanh},
		{Kind: layers.Dense, Size: 2},
		{Kind: layers.Activation, Activation: layers.ActivationSoftmax},
	}, true)
	require.NotNil(t, nn)

	const numSamples = 32
	inputs := tensor.New(nil, tensor.Shape{Width: 4, Height: 1, Depth: numSamples})
	targets := tensor.New(nil, tensor.Shape{Width: 2, Height: 1, Depth: numSamples})
	for i := 0; i < numSamples; i++ {
		for j := 0; j < 4; j++ {
			inputs.Data[i*4+j] = float32((i+j)%5) / 5
		}
		targets.Data[i*2+i%2] = 1
	}

	epochs := 0
	nn.Train(&TrainDesc{
		Epochs:     3,
		BatchSize:  8,
		NumWorkers: 4,
		Cost:       cost.CategoricalCrossEntropy,
		Optim:      sgd(0.05),
		EpochCallback: func(info *EpochInfo) {
			epochs++
		},
		TrainInputs:  inputs,
		TrainOutputs: targets,
		AccuracyTest: true,
		TestInputs:   inputs,
		TestOutputs:  targets,
		Quiet:        true,
	})

	assert.Equal(t, 3, epochs)
}

func TestTrainRejectsInferenceNetwork(t *testing.T) {
	nn := New(mnistDescs(false), false)
	require.NotNil(t, nn)

	nn.Train(&TrainDesc{Epochs: 1, BatchSize: 1})
}

func TestTrainSizeMismatch(t *testing.T) {
	nn := New(mnistDescs(true), true)
	require.NotNil(t, nn)

	inputs := tensor.New(nil, tensor.Shape{Width: 10, Height: 1, Depth: 1})
	targets := tensor.New(nil, tensor.Shape{Width: 10, Height: 1, Depth: 1})

	// Wrong input plane size: training refuses to start.
	nn.Train(&TrainDesc{
		Epochs:       1,
		BatchSize:    1,
		Cost:         cost.CategoricalCrossEntropy,
		Optim:        sgd(0.1),
		TrainInputs:  inputs,
		TrainOutputs: targets,
		Quiet:        true,
	})
}

func TestTrainWithAugmentation(t *testing.T) {
	nn := New([]layers.Desc{
		{Kind: layers.Input, Shape: tensor.Shape{Width: 8, Height: 8, Depth: 1}},
		{Kind: layers.Flatten},
		{Kind: layers.Dense, Size: 2},
		{Kind: layers.Activation, Activation: layers.ActivationSoftmax},
	}, true)
	require.NotNil(t, nn)

	inputs := tensor.New(nil, tensor.Shape{Width: 64, Height: 1, Depth: 4})
	for i := range inputs.Data {
		inputs.Data[i] = float32(i%3) / 3
	}
	targets := tensor.New(nil, tensor.Shape{Width: 2, Height: 1, Depth: 4})
	for i := 0; i < 4; i++ {
		targets.Data[i*2+i%2] = 1
	}

	nn.Train(&TrainDesc{
		Epochs:           2,
		BatchSize:        2,
		NumWorkers:       2,
		Cost:             cost.MeanSquaredError,
		Optim:            sgd(0.01),
		RandomTransforms: true,
		Transforms: Transforms{
			MinTranslation: -1, MaxTranslation: 1,
			MinScale: 0.9, MaxScale: 1.1,
			MinAngle: -0.1, MaxAngle: 0.1,
		},
		TrainInputs:  inputs,
		TrainOutputs: targets,
		Quiet:        true,
	})
}

func TestCheckpointSaving(t *testing.T) {
	nn := New([]layers.Desc{
		{Kind: layers.Input, Shape: tensor.Shape{Width: 4, Height: 1, Depth: 1}},
		{Kind: layers.Dense, Size: 2},
	}, true)
	require.NotNil(t, nn)

	inputs := tensor.New(nil, tensor.Shape{Width: 4, Height: 1, Depth: 2})
	targets := tensor.New(nil, tensor.Shape{Width: 2, Height: 1, Depth: 2})

	savePath := filepath.Join(t.TempDir(), "ckpt_")
	nn.Train(&TrainDesc{
		Epochs:       2,
		BatchSize:    2,
		Cost:         cost.MeanSquaredError,
		Optim:        sgd(0.1),
		SaveInterval: 1,
		SavePath:     savePath,
		TrainInputs:  inputs,
		TrainOutputs: targets,
		Quiet:        true,
	})

	for _, name := range []string{"ckpt_0001.tsn", "ckpt_0002.tsn"} {
		_, err := os.Stat(filepath.Join(filepath.Dir(savePath), name))
		assert.NoError(t, err)
	}
}
