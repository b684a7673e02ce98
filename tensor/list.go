package tensor

import (
	"encoding/binary"
	"math"
	"os"

	"github.com/muchq/tensornet/arena"
	"github.com/muchq/tensornet/errs"
)

// List is an ordered sequence of named tensors. Names are not required to
// be unique; Get returns the first match. The list is the carrier for
// persisted layer parameters.
type List struct {
	nodes []ListNode
}

// ListNode is one (name, tensor) entry.
type ListNode struct {
	Name   string
	Tensor *Tensor
}

// Push appends a named tensor.
func (l *List) Push(t *Tensor, name string) {
	if t == nil {
		errs.Report(errs.InvalidInput, "cannot push nil tensor to list")
		return
	}
	l.nodes = append(l.nodes, ListNode{Name: name, Tensor: t})
}

// Get returns the first tensor with the given name, or nil.
func (l *List) Get(name string) *Tensor {
	for i := range l.nodes {
		if l.nodes[i].Name == name {
			return l.nodes[i].Tensor
		}
	}
	return nil
}

// Len returns the number of entries.
func (l *List) Len() int {
	return len(l.nodes)
}

// Nodes exposes the entries in insertion order.
func (l *List) Nodes() []ListNode {
	return l.nodes
}

// Binary format (*.tst), little-endian on every host:
//
//	header    "tensors" padded with NUL to 10 bytes
//	count     u32
//	per item:
//	  name_size   u64
//	  name_bytes  name_size bytes
//	  width       u32
//	  height      u32
//	  depth       u32
//	  data        width*height*depth f32 values

const headerSize = 10

var tstHeader = func() [headerSize]byte {
	var h [headerSize]byte
	copy(h[:], "tensors")
	return h
}()

// TSTHeader returns the magic that opens the tensor section of a file.
func TSTHeader() []byte {
	return tstHeader[:]
}

// Encode serializes the list.
func (l *List) Encode() []byte {
	size := headerSize + 4
	for i := range l.nodes {
		size += 8 + len(l.nodes[i].Name)
		size += 4 * 3
		size += 4 * l.nodes[i].Tensor.Shape.Size()
	}

	buf := make([]byte, 0, size)
	buf = append(buf, tstHeader[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(l.nodes)))

	for i := range l.nodes {
		node := &l.nodes[i]
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(node.Name)))
		buf = append(buf, node.Name...)

		s := node.Tensor.Shape
		buf = binary.LittleEndian.AppendUint32(buf, s.Width)
		buf = binary.LittleEndian.AppendUint32(buf, s.Height)
		buf = binary.LittleEndian.AppendUint32(buf, s.Depth)

		for _, v := range node.Tensor.Data[:s.Size()] {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
	}
	return buf
}

// decoder reads declared fields in order; reads past the end of the stream
// yield zeros and mark the stream truncated, matching the engine's lenient
// load behavior.
type decoder struct {
	buf       []byte
	pos       int
	truncated bool
}

func (d *decoder) bytes(n int) []byte {
	if d.pos+n > len(d.buf) {
		d.truncated = true
		return make([]byte, n)
	}
	out := d.buf[d.pos : d.pos+n]
	d.pos += n
	return out
}

func (d *decoder) u32() uint32 {
	return binary.LittleEndian.Uint32(d.bytes(4))
}

func (d *decoder) u64() uint64 {
	return binary.LittleEndian.Uint64(d.bytes(8))
}

// Decode parses a tensor list from buf. A truncated stream decodes with
// zero-filled remainder and reports a parse error.
func Decode(a *arena.Arena, buf []byte) (List, bool) {
	var out List
	if len(buf) < headerSize || string(buf[:headerSize]) != string(tstHeader[:]) {
		errs.Report(errs.Parse, "cannot read tensor list: tensor header not found")
		return out, false
	}

	d := decoder{buf: buf, pos: headerSize}
	count := d.u32()

	for i := uint32(0); i < count; i++ {
		nameSize := d.u64()
		if nameSize > uint64(len(buf)) {
			// A corrupt length would otherwise ask for an absurd allocation.
			errs.Report(errs.Parse, "cannot read tensor list: name size exceeds stream")
			return out, false
		}
		name := string(d.bytes(int(nameSize)))

		shape := Shape{Width: d.u32(), Height: d.u32(), Depth: d.u32()}
		t := New(a, shape)
		if t == nil {
			return out, false
		}
		for j := 0; j < shape.Size(); j++ {
			t.Data[j] = math.Float32frombits(d.u32())
		}
		out.Push(t, name)
	}

	if d.truncated {
		errs.Report(errs.Parse, "could not load all tensors: stream is truncated")
		return out, false
	}
	return out, true
}

// Save writes the list to a .tst file.
func (l *List) Save(path string) bool {
	if err := os.WriteFile(path, l.Encode(), 0o644); err != nil {
		errs.Reportf(errs.IO, "cannot write tensor file: %v", err)
		return false
	}
	return true
}

// LoadList reads a .tst file.
func LoadList(a *arena.Arena, path string) (List, bool) {
	buf, err := os.ReadFile(path)
	if err != nil {
		errs.Reportf(errs.IO, "cannot load tensors: %v", err)
		return List{}, false
	}
	return Decode(a, buf)
}
