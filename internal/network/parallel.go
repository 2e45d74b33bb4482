package network

import (
	"log/slog"

	"github.com/born-ml/seqnet/internal/networkio"
	"github.com/born-ml/seqnet/internal/scratch"
)

// Parallel runs every child on the same input and concatenates their outputs
// feature-wise, in stack order.
type Parallel struct {
	Plumbing
}

// NewParallel creates an empty Parallel.
func NewParallel(name string) *Parallel {
	return &Parallel{Plumbing: newPlumbing(TypeParallel, name)}
}

// Forward packs the outputs of all children into output.
func (p *Parallel) Forward(debug bool, input *networkio.NetworkIO, _ *networkio.TransposedArray,
	sc *scratch.Scratch, output *networkio.NetworkIO) {
	output.Resize(input, p.no)
	result := sc.IO(input, 0)
	defer sc.ReturnIO(result)

	offset := 0
	for _, n := range p.stack {
		n.Forward(debug, input, nil, sc, result)
		offset = output.CopyPacking(result, offset)
	}

	if debug {
		slog.Debug("parallel forward", "layer", p.name, "children", len(p.stack), "features", p.no)
	}
}

// Backward splits fwdDeltas among the children and averages their
// back-deltas. Returns false when not training or when no input deltas are
// needed.
func (p *Parallel) Backward(debug bool, fwdDeltas *networkio.NetworkIO, sc *scratch.Scratch,
	backDeltas *networkio.NetworkIO) bool {
	if !p.IsTraining() {
		return false
	}
	inDeltas := sc.IO(fwdDeltas, 0)
	outDeltas := sc.IO(fwdDeltas, 0)
	defer sc.ReturnIO(outDeltas)
	defer sc.ReturnIO(inDeltas)

	offset := 0
	haveDeltas := false
	for _, n := range p.stack {
		numFeatures := n.NumOutputs()
		inDeltas.CopyUnpacking(fwdDeltas, offset, numFeatures)
		offset += numFeatures
		if !n.Backward(debug, inDeltas, sc, backDeltas) {
			continue
		}
		if haveDeltas {
			outDeltas.AddAllToFloat(backDeltas)
		} else {
			outDeltas.CopyAll(backDeltas)
			haveDeltas = true
		}
	}
	if !p.needsBackprop || !haveDeltas {
		return false
	}
	backDeltas.CopyAll(outDeltas)
	backDeltas.ScaleFloatBy(1.0 / float64(len(p.stack)))

	if debug {
		slog.Debug("parallel backward", "layer", p.name, "children", len(p.stack), "features", p.ni)
	}
	return true
}
