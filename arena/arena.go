// Package arena provides bump-pointer float32 regions with scoped
// checkpoints, plus per-worker scratch pairs.
//
// Everything transient inside feedforward, backprop, and serialization is
// carved out of a scratch arena and released in one move when the sample
// finishes, so the hot path never touches the allocator.
package arena

import (
	"github.com/muchq/tensornet/errs"
)

// Arena is a growable bump allocator for float32 slabs. It is not safe for
// concurrent use; each worker owns its arenas.
type Arena struct {
	blocks    []block
	blockSize int
	pos       int // element offset across all blocks
}

type block struct {
	data []float32
}

const defaultBlockSize = 1 << 16

// New creates an arena whose blocks hold blockSize float32 elements each.
// A blockSize of 0 selects the default.
func New(blockSize int) *Arena {
	if blockSize < 0 {
		errs.Report(errs.InvalidInput, "cannot create arena with negative block size")
		return nil
	}
	if blockSize == 0 {
		blockSize = defaultBlockSize
	}
	return &Arena{blockSize: blockSize}
}

// Push returns a zeroed slab of n elements. Pushes are O(1) amortized; a
// slab larger than the block size gets a dedicated block.
func (a *Arena) Push(n int) []float32 {
	if n < 0 {
		errs.Report(errs.AllocSize, "cannot push negative size onto arena")
		return nil
	}
	bi, off := a.locate(a.pos)
	if bi >= len(a.blocks) || off+n > len(a.blocks[bi].data) {
		// Start a fresh block; the tail of the current one is wasted but
		// reclaimed on reset.
		size := a.blockSize
		if n > size {
			size = n
		}
		a.blocks = append(a.blocks, block{data: make([]float32, size)})
		a.pos = a.startOf(len(a.blocks) - 1)
		bi, off = len(a.blocks)-1, 0
	}
	out := a.blocks[bi].data[off : off+n : off+n]
	for i := range out {
		out[i] = 0
	}
	a.pos += n
	return out
}

// Pos returns the current bump position. Positions are only meaningful when
// passed back to PopTo on the same arena.
func (a *Arena) Pos() int {
	return a.pos
}

// PopTo lowers the bump pointer to a position previously obtained from Pos,
// releasing every push made since. Raising the pointer is a programming
// error and is ignored.
func (a *Arena) PopTo(pos int) {
	if pos > a.pos || pos < 0 {
		errs.Report(errs.InvalidInput, "arena pop target is not below current position")
		return
	}
	a.pos = pos
}

// Reset releases every push.
func (a *Arena) Reset() {
	a.pos = 0
}

func (a *Arena) startOf(blockIndex int) int {
	start := 0
	for i := 0; i < blockIndex; i++ {
		start += len(a.blocks[i].data)
	}
	return start
}

func (a *Arena) locate(pos int) (blockIndex, offset int) {
	for i := range a.blocks {
		if pos < len(a.blocks[i].data) {
			return i, pos
		}
		pos -= len(a.blocks[i].data)
	}
	return len(a.blocks), 0
}

// Temp is a scoped checkpoint on an arena.
type Temp struct {
	Arena *Arena
	pos   int
}

// TempBegin records the current position of the arena.
func TempBegin(a *Arena) Temp {
	return Temp{Arena: a, pos: a.pos}
}

// End restores the arena to the recorded position.
func (t Temp) End() {
	t.Arena.PopTo(t.pos)
}
