package network

import (
	"bytes"
	"os"
	"strings"

	"github.com/muchq/tensornet/errs"
	"github.com/muchq/tensornet/layers"
	"github.com/muchq/tensornet/prng"
	"github.com/muchq/tensornet/tensor"
)

// Model format (*.tsn): the "network" header, the whitespace-stripped
// layout text, then the tensor-list encoding of every layer's parameters
// in layer order. Layout format (*.tsl): one descriptor per line.

const tsnHeaderSize = 10

var tsnHeader = func() [tsnHeaderSize]byte {
	var h [tsnHeaderSize]byte
	copy(h[:], "network")
	return h
}()

func stripSpace(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
		default:
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

// splitLayout cuts a stripped layout string into per-layer descriptor
// strings. A colon opens a new descriptor, so everything up to the last
// semicolon before it belongs to the previous one; this keeps layers
// without fields working.
func splitLayout(file string) []string {
	var out []string

	descStart := 0
	lastSemi := 0
	firstColon := true
	for i := 0; i < len(file); i++ {
		switch file[i] {
		case ';':
			lastSemi = i
		case ':':
			if firstColon {
				firstColon = false
				continue
			}
			out = append(out, file[descStart:lastSemi+1])
			descStart = lastSemi + 1
			lastSemi = i
		}
	}
	out = append(out, file[descStart:])
	return out
}

// loadLayoutImpl populates nn from a stripped layout string.
func (nn *Network) loadLayoutImpl(file string, trainingMode bool) bool {
	descStrs := splitLayout(file)

	descs := make([]layers.Desc, len(descStrs))
	for i, s := range descStrs {
		if !layers.DescLoad(&descs[i], s) {
			return false
		}
	}

	return nn.build(descs, trainingMode, prng.New())
}

// LoadLayout creates a network from a layout (*.tsl) file.
func LoadLayout(path string, trainingMode bool) *Network {
	raw, err := os.ReadFile(path)
	if err != nil {
		errs.Reportf(errs.IO, "cannot load network layout: %v", err)
		return nil
	}

	nn := &Network{trainingMode: trainingMode}
	if !nn.loadLayoutImpl(stripSpace(string(raw)), trainingMode) {
		return nil
	}
	return nn
}

// Load creates a network from a model (*.tsn) file, restoring both
// topology and parameters.
func Load(path string, trainingMode bool) *Network {
	file, err := os.ReadFile(path)
	if err != nil {
		errs.Reportf(errs.IO, "cannot load network: %v", err)
		return nil
	}

	if len(file) < tsnHeaderSize || !bytes.Equal(file[:tsnHeaderSize], tsnHeader[:]) {
		errs.Report(errs.Parse, "cannot load network: not a tsn file")
		return nil
	}
	file = file[tsnHeaderSize:]

	tstIndex := bytes.Index(file, tensor.TSTHeader())
	if tstIndex < 0 {
		errs.Report(errs.Parse, "cannot load network: invalid tsn file")
		return nil
	}

	nn := &Network{trainingMode: trainingMode}
	if !nn.loadLayoutImpl(string(file[:tstIndex]), trainingMode) {
		return nil
	}

	params, ok := tensor.Decode(nil, file[tstIndex:])
	if !ok {
		return nil
	}
	for i, l := range nn.layers {
		l.Load(&params, uint32(i))
	}

	return nn
}

// LoadExisting populates parameters from a model file into an already
// constructed network whose topology must match.
func (nn *Network) LoadExisting(path string) bool {
	file, err := os.ReadFile(path)
	if err != nil {
		errs.Reportf(errs.IO, "cannot load network params: %v", err)
		return false
	}

	tstIndex := bytes.Index(file, tensor.TSTHeader())
	if tstIndex < 0 {
		errs.Report(errs.Parse, "cannot load network params: no tensor section")
		return false
	}

	params, ok := tensor.Decode(nil, file[tstIndex:])
	if !ok {
		return false
	}
	for i, l := range nn.layers {
		l.Load(&params, uint32(i))
	}
	return true
}

// SaveLayout writes the network's descriptors to a layout (*.tsl) file.
func (nn *Network) SaveLayout(path string) bool {
	var sb strings.Builder
	for i := range nn.descs {
		sb.WriteString(layers.DescSave(&nn.descs[i]))
		sb.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		errs.Reportf(errs.IO, "cannot save network layout: %v", err)
		return false
	}
	return true
}

// Save writes the full model (*.tsn): header, stripped layout, and every
// layer's parameters.
func (nn *Network) Save(path string) bool {
	if nn == nil {
		errs.Report(errs.InvalidInput, "cannot save nil network")
		return false
	}

	var layout strings.Builder
	for i := range nn.descs {
		layout.WriteString(layers.DescSave(&nn.descs[i]))
	}

	var params tensor.List
	for i, l := range nn.layers {
		l.Save(&params, uint32(i))
	}

	var buf bytes.Buffer
	buf.Write(tsnHeader[:])
	buf.WriteString(stripSpace(layout.String()))
	buf.Write(params.Encode())

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		errs.Reportf(errs.IO, "cannot save network: %v", err)
		return false
	}
	return true
}
