package arena

import "github.com/muchq/tensornet/errs"

// Scratch is a pair of transient arenas owned by one worker. Callers acquire
// a checkpointed arena with Get, excluding any arena they are already
// allocating from, so nested uses never alias each other.
type Scratch struct {
	arenas [2]*Arena
}

// NewScratch builds a worker's scratch pair.
func NewScratch() *Scratch {
	return &Scratch{arenas: [2]*Arena{New(0), New(0)}}
}

// Get returns a checkpoint on a scratch arena that is not in the exclusion
// list. Release the returned Temp with End; acquisitions and releases must
// stay balanced within one worker.
func (s *Scratch) Get(exclude ...*Arena) Temp {
	for _, a := range s.arenas {
		conflict := false
		for _, e := range exclude {
			if a == e {
				conflict = true
				break
			}
		}
		if !conflict {
			return TempBegin(a)
		}
	}
	errs.Report(errs.Threading, "no scratch arena available: all candidates excluded")
	return TempBegin(s.arenas[0])
}
