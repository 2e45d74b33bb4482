package network

import (
	"log/slog"

	"github.com/born-ml/seqnet/internal/networkio"
	"github.com/born-ml/seqnet/internal/scratch"
)

// Series is a pipeline: each child's output is the next child's input.
//
// The composite takes the first child's input width and produces the last
// child's output width.
type Series struct {
	Plumbing
}

// NewSeries creates an empty Series.
func NewSeries(name string) *Series {
	return &Series{Plumbing: newPlumbing(TypeSeries, name)}
}

// SetupNeedsBackprop chains the requirement through the pipeline: each child
// is told whether anything before it needs deltas. Returns the answer of the
// last child. A frozen Series needs none and leaves its children alone.
func (s *Series) SetupNeedsBackprop(needsBackprop bool) bool {
	if !s.IsTraining() {
		s.needsBackprop = false
		return false
	}
	s.needsBackprop = needsBackprop
	for _, n := range s.stack {
		needsBackprop = n.SetupNeedsBackprop(needsBackprop)
	}
	return needsBackprop
}

// XScaleFactor returns the product of the children's factors. Parallel
// reports its first child's factor instead.
func (s *Series) XScaleFactor() int {
	factor := 1
	for _, n := range s.stack {
		factor *= n.XScaleFactor()
	}
	return factor
}

// Forward runs the children in order, passing each output to the next child
// through two revolving scratch buffers. Only the first child sees
// inputTranspose.
func (s *Series) Forward(debug bool, input *networkio.NetworkIO, inputTranspose *networkio.TransposedArray,
	sc *scratch.Scratch, output *networkio.NetworkIO) {
	switch len(s.stack) {
	case 0:
		output.CopyAll(input)
		return
	case 1:
		s.stack[0].Forward(debug, input, inputTranspose, sc, output)
		return
	}

	buffers := [2]*networkio.NetworkIO{sc.IO(input, 0), sc.IO(input, 0)}
	defer sc.ReturnIO(buffers[1])
	defer sc.ReturnIO(buffers[0])

	in := input
	last := len(s.stack) - 1
	for i, n := range s.stack {
		out := output
		if i < last {
			out = buffers[i%2]
		}
		transpose := inputTranspose
		if i > 0 {
			transpose = nil
		}
		n.Forward(debug, in, transpose, sc, out)
		in = out
	}

	if debug {
		slog.Debug("series forward", "layer", s.name, "children", len(s.stack), "features", s.no)
	}
}

// Backward runs the children in reverse order. It stops and returns false as
// soon as a child is not training or produces no valid deltas.
func (s *Series) Backward(debug bool, fwdDeltas *networkio.NetworkIO, sc *scratch.Scratch,
	backDeltas *networkio.NetworkIO) bool {
	if !s.IsTraining() {
		return false
	}
	switch len(s.stack) {
	case 0:
		backDeltas.CopyAll(fwdDeltas)
		return s.needsBackprop
	case 1:
		n := s.stack[0]
		return n.IsTraining() && n.Backward(debug, fwdDeltas, sc, backDeltas) && s.needsBackprop
	}

	buffers := [2]*networkio.NetworkIO{sc.IO(fwdDeltas, 0), sc.IO(fwdDeltas, 0)}
	defer sc.ReturnIO(buffers[1])
	defer sc.ReturnIO(buffers[0])

	deltas := fwdDeltas
	for i := len(s.stack) - 1; i >= 0; i-- {
		n := s.stack[i]
		out := backDeltas
		if i > 0 {
			out = buffers[i%2]
		}
		if !n.IsTraining() || !n.Backward(debug, deltas, sc, out) {
			return false
		}
		deltas = out
	}

	if debug {
		slog.Debug("series backward", "layer", s.name, "children", len(s.stack), "features", s.ni)
	}
	return s.needsBackprop
}
