// Package prng provides the per-worker random source used for parameter
// initialization, dropout masks, and augmentation sampling.
//
// Each worker owns one Source, so training with deterministic per-worker
// seeds is possible while the default path seeds from OS entropy.
package prng

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand"

	"github.com/muchq/tensornet/errs"
)

// Source is a seedable generator. Not safe for concurrent use; create one
// per worker.
type Source struct {
	rng *rand.Rand
}

// New creates a Source seeded from 16 bytes of OS entropy.
func New() *Source {
	var buf [16]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		errs.Reportf(errs.OS, "failed to read entropy: %v", err)
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:8]) ^ binary.LittleEndian.Uint64(buf[8:]))
	return NewSeeded(seed)
}

// NewSeeded creates a deterministic Source.
func NewSeeded(seed int64) *Source {
	return &Source{rng: rand.New(rand.NewSource(seed))}
}

// Uint32 returns a uniform 32-bit value.
func (s *Source) Uint32() uint32 {
	return s.rng.Uint32()
}

// Float32 returns a uniform value in [0, 1).
func (s *Source) Float32() float32 {
	return s.rng.Float32()
}
