package network

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/seqnet/internal/random"
	"github.com/born-ml/seqnet/internal/serialization"
)

// Plumbing is the state and behavior shared by composite layers.
//
// A Plumbing owns an ordered stack of children. The order is part of the
// contract: it is the pipeline order of a Series, the feature order of a
// Parallel output, the serialization order, and the index used by layer ids.
// Plumbing is only used through Series and Parallel.
type Plumbing struct {
	layer
	stack         []Network
	learningRates []float32
}

func newPlumbing(typ Type, name string) Plumbing {
	return Plumbing{layer: newLayer(typ, name, 0, 0)}
}

func (p *Plumbing) plumbing() *Plumbing { return p }

// plumber is satisfied by every composite.
type plumber interface {
	Network
	plumbing() *Plumbing
}

// AddToStack appends n and takes ownership of it.
//
// The first child sets the composite's widths. After that, a Series child
// must take the current output width as its input, and a Parallel child
// must take the shared input width. Violations panic.
func (p *Plumbing) AddToStack(n Network) {
	switch {
	case len(p.stack) == 0:
		p.ni = n.NumInputs()
		p.no = n.NumOutputs()
	case p.typ == TypeSeries:
		if n.NumInputs() != p.no {
			panic(fmt.Sprintf("series: %q takes %d inputs, but %q produces %d",
				n.Name(), n.NumInputs(), p.name, p.no))
		}
		p.no = n.NumOutputs()
	default:
		if n.NumInputs() != p.ni {
			panic(fmt.Sprintf("parallel: %q takes %d inputs, but %q shares %d",
				n.Name(), n.NumInputs(), p.name, p.ni))
		}
		p.no += n.NumOutputs()
	}
	p.stack = append(p.stack, n)
}

// Len returns the number of children.
func (p *Plumbing) Len() int { return len(p.stack) }

// Layers returns the children in stack order. The slice must not be modified.
func (p *Plumbing) Layers() []Network { return p.stack }

// LearningRates returns the per-child learning rates, if any.
func (p *Plumbing) LearningRates() []float32 { return p.learningRates }

// Spec returns the children's specs wrapped in the composite's brackets:
// [...] for a Series and (...) for a Parallel.
func (p *Plumbing) Spec() string {
	open, closing := "(", ")"
	if p.typ == TypeSeries {
		open, closing = "[", "]"
	}
	specs := make([]string, len(p.stack))
	for i, n := range p.stack {
		specs[i] = n.Spec()
	}
	return open + strings.Join(specs, " ") + closing
}

// SetEnableTraining applies state to the composite and every child.
func (p *Plumbing) SetEnableTraining(state TrainingState) {
	p.layer.SetEnableTraining(state)
	for _, n := range p.stack {
		n.SetEnableTraining(state)
	}
}

// SetNetworkFlags applies flags to the composite and every child.
func (p *Plumbing) SetNetworkFlags(flags Flags) {
	p.layer.SetNetworkFlags(flags)
	for _, n := range p.stack {
		n.SetNetworkFlags(flags)
	}
}

// SetRandomizer lends r to every child.
func (p *Plumbing) SetRandomizer(r *random.Rand) {
	for _, n := range p.stack {
		n.SetRandomizer(r)
	}
}

// ConvertToInt converts every child to integer weights.
func (p *Plumbing) ConvertToInt() {
	for _, n := range p.stack {
		n.ConvertToInt()
	}
}

// InitWeights initializes every child and returns the total weight count.
func (p *Plumbing) InitWeights(scale float64, r *random.Rand) int {
	p.numWeights = 0
	for _, n := range p.stack {
		p.numWeights += n.InitWeights(scale, r)
	}
	return p.numWeights
}

// SetupNeedsBackprop records needsBackprop on a trainable composite and
// reports whether it or any child needs backprop. A frozen composite needs
// none and leaves its children alone.
func (p *Plumbing) SetupNeedsBackprop(needsBackprop bool) bool {
	if !p.IsTraining() {
		p.needsBackprop = false
		return false
	}
	p.needsBackprop = needsBackprop
	result := needsBackprop
	for _, n := range p.stack {
		if n.SetupNeedsBackprop(needsBackprop) {
			result = true
		}
	}
	return result
}

// XScaleFactor returns the first child's factor. Children are expected to agree.
func (p *Plumbing) XScaleFactor() int {
	if len(p.stack) == 0 {
		return 1
	}
	return p.stack[0].XScaleFactor()
}

// CacheXScaleFactor passes factor to every child.
func (p *Plumbing) CacheXScaleFactor(factor int) {
	for _, n := range p.stack {
		n.CacheXScaleFactor(factor)
	}
}

// DebugWeights logs the weights of every child.
func (p *Plumbing) DebugWeights() {
	for _, n := range p.stack {
		n.DebugWeights()
	}
}

// EnumerateLayers appends the id of every leaf below p to layers, depth
// first. An id is the colon-separated path of child indices from p, prefixed
// by prefix when it is not empty, e.g. "0:2:1".
func (p *Plumbing) EnumerateLayers(prefix string, layers []string) []string {
	for i, n := range p.stack {
		id := strconv.Itoa(i)
		if prefix != "" {
			id = prefix + ":" + id
		}
		if child, ok := n.(plumber); ok {
			layers = child.plumbing().EnumerateLayers(id, layers)
		} else {
			layers = append(layers, id)
		}
	}
	return layers
}

// resolve splits the leading child index off id. It returns the child and,
// when the child is a composite, the remainder of the id after the ':'.
func (p *Plumbing) resolve(id string) (index int, child Network, rest string, ok bool) {
	head, tail, hasTail := strings.Cut(id, ":")
	index, err := strconv.Atoi(head)
	if err != nil || head == "" || head[0] < '0' || head[0] > '9' {
		return 0, nil, "", false
	}
	if index >= len(p.stack) {
		return 0, nil, "", false
	}
	child = p.stack[index]
	if _, composite := child.(plumber); composite && !hasTail {
		return 0, nil, "", false
	}
	return index, child, tail, true
}

// GetLayer returns the layer named by id, as produced by EnumerateLayers,
// or nil if id does not name a layer.
func (p *Plumbing) GetLayer(id string) Network {
	_, child, rest, ok := p.resolve(id)
	if !ok {
		return nil
	}
	if composite, isComposite := child.(plumber); isComposite {
		return composite.plumbing().GetLayer(rest)
	}
	return child
}

// LayerLearningRatePtr returns a pointer to the learning rate of the layer
// named by id, or nil if id does not name a layer or no rate has been
// recorded for it yet. The pointer is invalidated when the owning composite
// records a new rate.
func (p *Plumbing) LayerLearningRatePtr(id string) *float32 {
	index, child, rest, ok := p.resolve(id)
	if !ok {
		return nil
	}
	if composite, isComposite := child.(plumber); isComposite {
		return composite.plumbing().LayerLearningRatePtr(rest)
	}
	if index >= len(p.learningRates) {
		return nil
	}
	return &p.learningRates[index]
}

// ScaleLayerLearningRate multiplies the learning rate of the layer named by
// id by factor. Returns false if no rate is recorded for it.
func (p *Plumbing) ScaleLayerLearningRate(id string, factor float32) bool {
	lr := p.LayerLearningRatePtr(id)
	if lr == nil {
		return false
	}
	*lr *= factor
	return true
}

// Update applies the accumulated gradients of every trainable child.
//
// With FlagLayerSpecificLR, child i uses its own recorded rate; a child
// without one records the rate in effect and uses it.
func (p *Plumbing) Update(learningRate, momentum float32, numSamples int) {
	for i, n := range p.stack {
		if p.TestFlag(FlagLayerSpecificLR) {
			if i < len(p.learningRates) {
				learningRate = p.learningRates[i]
			} else {
				p.learningRates = append(p.learningRates, learningRate)
			}
		}
		if n.IsTraining() {
			n.Update(learningRate, momentum, numSamples)
		}
	}
}

// CountAlternators compares every child with its counterpart in other,
// which must be a composite of the same type and size.
func (p *Plumbing) CountAlternators(other Network, counts *Alternators) {
	o, ok := other.(plumber)
	if !ok || other.Type() != p.typ {
		panic(fmt.Sprintf("%s: cannot compare %q with %s", strings.ToLower(p.typ.String()), p.name, other.Type()))
	}
	op := o.plumbing()
	if len(op.stack) != len(p.stack) {
		panic(fmt.Sprintf("%s: %q has %d children, other has %d",
			strings.ToLower(p.typ.String()), p.name, len(p.stack), len(op.stack)))
	}
	for i, n := range p.stack {
		n.CountAlternators(op.stack[i], counts)
	}
}

// Serialize writes the header, the child count, every child, and the
// learning rates when FlagLayerSpecificLR is set.
func (p *Plumbing) Serialize(w *serialization.Writer) error {
	if err := p.serializeHeader(w); err != nil {
		return err
	}
	if err := w.Int32(int32(len(p.stack))); err != nil { //nolint:gosec // G115: stack sizes are small
		return err
	}
	for i, n := range p.stack {
		if err := n.Serialize(w); err != nil {
			return errors.Wrapf(err, "failed to write layer %d of %q", i, p.name)
		}
	}
	if p.TestFlag(FlagLayerSpecificLR) {
		return w.Float32s(p.learningRates)
	}
	return nil
}

// DeSerialize replaces the children with those read from r. The widths are
// rebuilt by AddToStack as children arrive.
func (p *Plumbing) DeSerialize(r *serialization.Reader, swap bool) error {
	p.stack = nil
	p.no = 0
	size, err := r.Int32(swap)
	if err != nil {
		return errors.Wrap(err, "failed to read layer count")
	}
	if size < 0 {
		return errors.Wrapf(ErrShapeMismatch, "negative layer count %d", size)
	}
	for i := int32(0); i < size; i++ {
		n, err := CreateFromReader(r, swap)
		if err != nil {
			return errors.Wrapf(err, "failed to read layer %d of %q", i, p.name)
		}
		if err := p.addDeserialized(n); err != nil {
			return err
		}
	}
	if p.TestFlag(FlagLayerSpecificLR) {
		if p.learningRates, err = r.Float32s(swap); err != nil {
			return errors.Wrap(err, "failed to read learning rates")
		}
	}
	return nil
}

// addDeserialized is AddToStack for children read from a stream, where a
// width mismatch means a corrupt file rather than a programming error.
func (p *Plumbing) addDeserialized(n Network) error {
	if len(p.stack) > 0 {
		want := p.ni
		if p.typ == TypeSeries {
			want = p.no
		}
		if n.NumInputs() != want {
			return errors.Wrapf(ErrShapeMismatch, "%q takes %d inputs, expected %d", n.Name(), n.NumInputs(), want)
		}
	}
	p.AddToStack(n)
	return nil
}
