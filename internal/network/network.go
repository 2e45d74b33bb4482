package network

import (
	"fmt"

	"github.com/born-ml/seqnet/internal/networkio"
	"github.com/born-ml/seqnet/internal/random"
	"github.com/born-ml/seqnet/internal/scratch"
	"github.com/born-ml/seqnet/internal/serialization"
)

// Type identifies the kind of a layer. Its persisted form is the name
// returned by String.
type Type int8

// Layer kinds.
const (
	TypeNone Type = iota
	TypeConvolve
	TypeParallel
	TypeSeries
	TypeLogistic
	TypeTanh
	TypeRelu
	TypeLinear
	numTypes
)

var typeNames = [numTypes]string{
	"Invalid",
	"Convolve",
	"Parallel",
	"Series",
	"Logistic",
	"Tanh",
	"Relu",
	"Linear",
}

// String returns the persisted name of the type.
func (t Type) String() string {
	if t < 0 || t >= numTypes {
		return fmt.Sprintf("Type(%d)", int8(t))
	}
	return typeNames[t]
}

// ParseType returns the type with the given persisted name.
func ParseType(name string) (Type, bool) {
	for t := TypeNone + 1; t < numTypes; t++ {
		if typeNames[t] == name {
			return t, true
		}
	}
	return TypeNone, false
}

// IsPlumbing reports whether layers of this type own child layers.
func (t Type) IsPlumbing() bool {
	return t == TypeParallel || t == TypeSeries
}

// TrainingState controls whether a layer learns.
type TrainingState int8

// Training states.
const (
	TrainingDisabled    TrainingState = iota // Weights are frozen
	TrainingEnabled                          // Weights are updated
	TrainingTempDisable                      // Frozen until TrainingReEnable
	TrainingReEnable                         // Only valid as an argument: re-enables temp-disabled layers
)

// Flags is a bitset of per-layer options.
type Flags int32

// Network flags.
const (
	// FlagLayerSpecificLR gives each child of a composite its own learning rate.
	FlagLayerSpecificLR Flags = 64
)

// Alternators accumulates how many weight updates of two networks kept or
// flipped sign between them.
type Alternators struct {
	Same    float64
	Changed float64
}

// Network is the capability set shared by every layer.
//
// The set of implementations is closed: Convolve, Series, Parallel and
// FullyConnected.
type Network interface {
	Type() Type
	Name() string
	NumInputs() int
	NumOutputs() int
	// Spec returns a compact textual description of the layer and its children.
	Spec() string

	IsTraining() bool
	TrainingState() TrainingState
	SetEnableTraining(state TrainingState)
	NetworkFlags() Flags
	SetNetworkFlags(flags Flags)
	NeedsBackprop() bool
	// SetupNeedsBackprop records whether the layer must produce back-deltas
	// and reports whether it, or anything below it, needs backprop.
	SetupNeedsBackprop(needsBackprop bool) bool

	NumWeights() int
	// InitWeights randomizes the weights within [-scale, scale], keeps r as
	// the layer's randomizer and returns the number of weights.
	InitWeights(scale float64, r *random.Rand) int
	SetRandomizer(r *random.Rand)
	ConvertToInt()
	XScaleFactor() int
	CacheXScaleFactor(factor int)
	DebugWeights()

	// Forward computes output from input. inputTranspose, if not nil, is the
	// transpose of input, and may be kept for the following Backward.
	Forward(debug bool, input *networkio.NetworkIO, inputTranspose *networkio.TransposedArray,
		s *scratch.Scratch, output *networkio.NetworkIO)
	// Backward propagates fwdDeltas into backDeltas and accumulates weight
	// gradients. Returns false if backDeltas is not valid.
	Backward(debug bool, fwdDeltas *networkio.NetworkIO, s *scratch.Scratch, backDeltas *networkio.NetworkIO) bool
	Update(learningRate, momentum float32, numSamples int)
	CountAlternators(other Network, counts *Alternators)

	// Serialize writes the layer header followed by the layer's own fields.
	Serialize(w *serialization.Writer) error
	// DeSerialize reads the layer's own fields; the header has already been
	// consumed by CreateFromReader.
	DeSerialize(r *serialization.Reader, swap bool) error

	base() *layer
}

// layer holds the state common to every Network.
type layer struct {
	typ           Type
	name          string
	training      TrainingState
	needsBackprop bool
	flags         Flags
	ni            int
	no            int
	numWeights    int
	randomizer    *random.Rand
}

func newLayer(typ Type, name string, ni, no int) layer {
	return layer{
		typ:           typ,
		name:          name,
		training:      TrainingEnabled,
		needsBackprop: true,
		ni:            ni,
		no:            no,
	}
}

func (l *layer) base() *layer { return l }

// Type returns the layer kind.
func (l *layer) Type() Type { return l.typ }

// Name returns the layer name.
func (l *layer) Name() string { return l.name }

// NumInputs returns the number of input features per time-step.
func (l *layer) NumInputs() int { return l.ni }

// NumOutputs returns the number of output features per time-step.
func (l *layer) NumOutputs() int { return l.no }

// IsTraining reports whether the layer currently learns.
func (l *layer) IsTraining() bool { return l.training == TrainingEnabled }

// TrainingState returns the current training state.
func (l *layer) TrainingState() TrainingState { return l.training }

// SetEnableTraining changes the training state. TrainingReEnable only
// affects temporarily disabled layers, and TrainingTempDisable only
// affects enabled ones.
func (l *layer) SetEnableTraining(state TrainingState) {
	switch state {
	case TrainingReEnable:
		if l.training == TrainingTempDisable {
			l.training = TrainingEnabled
		}
	case TrainingTempDisable:
		if l.training == TrainingEnabled {
			l.training = state
		}
	default:
		l.training = state
	}
}

// NetworkFlags returns the layer's flags.
func (l *layer) NetworkFlags() Flags { return l.flags }

// SetNetworkFlags replaces the layer's flags.
func (l *layer) SetNetworkFlags(flags Flags) { l.flags = flags }

// TestFlag reports whether flag is set.
func (l *layer) TestFlag(flag Flags) bool { return l.flags&flag != 0 }

// NeedsBackprop reports whether the layer must produce back-deltas.
func (l *layer) NeedsBackprop() bool { return l.needsBackprop }

// SetupNeedsBackprop records needsBackprop. A layer with weights always
// needs the deltas of its outputs.
func (l *layer) SetupNeedsBackprop(needsBackprop bool) bool {
	l.needsBackprop = needsBackprop
	return needsBackprop || l.numWeights > 0
}

// NumWeights returns the number of trainable weights.
func (l *layer) NumWeights() int { return l.numWeights }

// InitWeights keeps r and returns 0; weightless layers have nothing else to do.
func (l *layer) InitWeights(_ float64, r *random.Rand) int {
	l.randomizer = r
	return 0
}

// SetRandomizer replaces the randomizer lent to the layer.
func (l *layer) SetRandomizer(r *random.Rand) { l.randomizer = r }

// ConvertToInt is a no-op for weightless layers.
func (l *layer) ConvertToInt() {}

// XScaleFactor returns how many input time-steps make one output time-step.
func (l *layer) XScaleFactor() int { return 1 }

// CacheXScaleFactor is a no-op for layers that do not track it.
func (l *layer) CacheXScaleFactor(int) {}

// DebugWeights is a no-op for weightless layers.
func (l *layer) DebugWeights() {}

// Update is a no-op for weightless layers.
func (l *layer) Update(float32, float32, int) {}

// CountAlternators is a no-op for weightless layers.
func (l *layer) CountAlternators(Network, *Alternators) {}

// serializeHeader writes the fields shared by every layer.
func (l *layer) serializeHeader(w *serialization.Writer) error {
	if err := w.Int8(int8(TypeNone)); err != nil {
		return err
	}
	if err := w.String(l.typ.String()); err != nil {
		return err
	}
	if err := w.Int8(int8(l.training)); err != nil {
		return err
	}
	needsBackprop := int8(0)
	if l.needsBackprop {
		needsBackprop = 1
	}
	if err := w.Int8(needsBackprop); err != nil {
		return err
	}
	if err := w.Int32(int32(l.flags)); err != nil {
		return err
	}
	for _, v := range []int{l.ni, l.no, l.numWeights} {
		if err := w.Int32(int32(v)); err != nil { //nolint:gosec // G115: layer sizes fit in int32
			return err
		}
	}
	return w.String(l.name)
}
