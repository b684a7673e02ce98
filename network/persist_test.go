package network

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muchq/tensornet/cost"
	"github.com/muchq/tensornet/layers"
	"github.com/muchq/tensornet/tensor"
)

func trainedDenseNet(t *testing.T) *Network {
	t.Helper()
	nn := New([]layers.Desc{
		{Kind: layers.Input, Shape: tensor.Shape{Width: 4, Height: 1, Depth: 1}},
		{Kind: layers.Dense, Size: 6},
		{Kind: layers.Activation, Activation: layers.ActivationSigmoid},
		{Kind: layers.Dense, Size: 3},
		{Kind: layers.Activation, Activation: layers.ActivationSoftmax},
	}, true)
	require.NotNil(t, nn)

	inputs := tensor.New(nil, tensor.Shape{Width: 4, Height: 1, Depth: 6})
	targets := tensor.New(nil, tensor.Shape{Width: 3, Height: 1, Depth: 6})
	for i := 0; i < 6; i++ {
		for j := 0; j < 4; j++ {
			inputs.Data[i*4+j] = float32((i*j)%7) / 7
		}
		targets.Data[i*3+i%3] = 1
	}

	nn.Train(&TrainDesc{
		Epochs:       1,
		BatchSize:    2,
		NumWorkers:   2,
		Cost:         cost.CategoricalCrossEntropy,
		Optim:        sgd(0.1),
		TrainInputs:  inputs,
		TrainOutputs: targets,
		Quiet:        true,
	})

	return nn
}

func TestSaveLoadParameterEquivalence(t *testing.T) {
	nn := trainedDenseNet(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "model.tsn")
	require.True(t, nn.Save(path))

	loaded := Load(path, false)
	require.NotNil(t, loaded)
	assert.Equal(t, nn.NumLayers(), loaded.NumLayers())

	// Re-saving the loaded network must reproduce the file byte for byte;
	// parameters round-trip bit-identically.
	path2 := filepath.Join(dir, "model2.tsn")
	require.True(t, loaded.Save(path2))

	orig, err := os.ReadFile(path)
	require.NoError(t, err)
	reread, err := os.ReadFile(path2)
	require.NoError(t, err)
	assert.Equal(t, orig, reread)

	// Inference outputs are identical too.
	input := tensor.FromData(nil, tensor.Shape{Width: 4}, []float32{0.1, 0.2, 0.3, 0.4})
	out1 := tensor.New(nil, nn.OutputShape())
	out2 := tensor.New(nil, loaded.OutputShape())
	require.True(t, nn.Feedforward(out1, input))
	require.True(t, loaded.Feedforward(out2, input))
	assert.Equal(t, out1.Data, out2.Data)
}

func TestSaveLoadLayout(t *testing.T) {
	nn := New(mnistDescs(false), false)
	require.NotNil(t, nn)

	path := filepath.Join(t.TempDir(), "layout.tsl")
	require.True(t, nn.SaveLayout(path))

	loaded := LoadLayout(path, false)
	require.NotNil(t, loaded)
	assert.Equal(t, nn.NumLayers(), loaded.NumLayers())
	assert.Equal(t, nn.InputShape(), loaded.InputShape())
	assert.Equal(t, nn.OutputShape(), loaded.OutputShape())
}

func TestLoadExisting(t *testing.T) {
	nn := trainedDenseNet(t)

	path := filepath.Join(t.TempDir(), "model.tsn")
	require.True(t, nn.Save(path))

	// Build the same topology fresh, then pull the trained parameters in.
	fresh := New([]layers.Desc{
		{Kind: layers.Input, Shape: tensor.Shape{Width: 4, Height: 1, Depth: 1}},
		{Kind: layers.Dense, Size: 6},
		{Kind: layers.Activation, Activation: layers.ActivationSigmoid},
		{Kind: layers.Dense, Size: 3},
		{Kind: layers.Activation, Activation: layers.ActivationSoftmax},
	}, false)
	require.NotNil(t, fresh)
	require.True(t, fresh.LoadExisting(path))

	input := tensor.FromData(nil, tensor.Shape{Width: 4}, []float32{1, 0, 1, 0})
	out1 := tensor.New(nil, nn.OutputShape())
	out2 := tensor.New(nil, fresh.OutputShape())
	require.True(t, nn.Feedforward(out1, input))
	require.True(t, fresh.Feedforward(out2, input))
	assert.Equal(t, out1.Data, out2.Data)
}

func TestLoadRejectsBadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tsn")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a model"), 0o644))
	assert.Nil(t, Load(path, false))
}

func TestLoadMissingFile(t *testing.T) {
	assert.Nil(t, Load(filepath.Join(t.TempDir(), "absent.tsn"), false))
	assert.Nil(t, LoadLayout(filepath.Join(t.TempDir(), "absent.tsl"), false))
}
