// Package scratch provides a reusable arena of temporary buffers for the
// forward and backward passes.
//
// Layers borrow buffers for the duration of one call and give them back
// before returning. The arena is owned by the caller driving the network and
// is only lent to layers. A nil *Scratch is valid and simply allocates.
package scratch

import (
	"github.com/born-ml/seqnet/internal/networkio"
)

// Scratch is a stack of spare buffers. It is not safe for concurrent use.
type Scratch struct {
	ios    []*networkio.NetworkIO
	floats [][]float64
}

// New creates an empty arena.
func New() *Scratch {
	return &Scratch{}
}

// IO borrows a buffer resized to the time extent of like with depth features.
// The contents are zeroed.
func (s *Scratch) IO(like *networkio.NetworkIO, depth int) *networkio.NetworkIO {
	var io *networkio.NetworkIO
	if s != nil && len(s.ios) > 0 {
		io = s.ios[len(s.ios)-1]
		s.ios = s.ios[:len(s.ios)-1]
	} else {
		io = &networkio.NetworkIO{}
	}
	io.Resize(like, depth)
	return io
}

// ReturnIO gives a borrowed buffer back to the arena.
func (s *Scratch) ReturnIO(io *networkio.NetworkIO) {
	if s == nil || io == nil {
		return
	}
	s.ios = append(s.ios, io)
}

// Floats borrows a zeroed vector of length n.
func (s *Scratch) Floats(n int) []float64 {
	if s != nil && len(s.floats) > 0 {
		v := s.floats[len(s.floats)-1]
		s.floats = s.floats[:len(s.floats)-1]
		if cap(v) >= n {
			v = v[:n]
			clear(v)
			return v
		}
	}
	return make([]float64, n)
}

// ReturnFloats gives a borrowed vector back to the arena.
func (s *Scratch) ReturnFloats(v []float64) {
	if s == nil || v == nil {
		return
	}
	s.floats = append(s.floats, v)
}

// Len returns the number of idle buffers and vectors held by the arena.
func (s *Scratch) Len() (ios, floats int) {
	if s == nil {
		return 0, 0
	}
	return len(s.ios), len(s.floats)
}
