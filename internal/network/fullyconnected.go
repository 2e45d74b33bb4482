package network

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/seqnet/internal/networkio"
	"github.com/born-ml/seqnet/internal/random"
	"github.com/born-ml/seqnet/internal/scratch"
	"github.com/born-ml/seqnet/internal/serialization"
)

// FullyConnected maps every time-step through y = act(W·[x; 1]).
//
// The activation is selected by the layer type: TypeLogistic, TypeTanh,
// TypeRelu or TypeLinear.
type FullyConnected struct {
	layer
	weights WeightMatrix

	// Forward state kept for Backward.
	acts           networkio.NetworkIO
	sourceT        networkio.TransposedArray
	externalSource *networkio.TransposedArray
}

// NewFullyConnected creates a layer of no outputs over ni inputs. The weights
// are allocated by InitWeights.
func NewFullyConnected(name string, ni, no int, typ Type) *FullyConnected {
	if ni <= 0 || no <= 0 {
		panic(fmt.Sprintf("fullyconnected: invalid sizes ni=%d no=%d", ni, no))
	}
	return newFullyConnectedShell(name, ni, no, typ)
}

func newFullyConnectedShell(name string, ni, no int, typ Type) *FullyConnected {
	switch typ {
	case TypeLogistic, TypeTanh, TypeRelu, TypeLinear:
	default:
		panic(fmt.Sprintf("fullyconnected: %s is not a fully connected type", typ))
	}
	return &FullyConnected{layer: newLayer(typ, name, ni, no)}
}

// Weights returns the layer's weight matrix.
func (f *FullyConnected) Weights() *WeightMatrix { return &f.weights }

// Spec returns "F<kind><outputs>", e.g. "Ft64".
func (f *FullyConnected) Spec() string {
	kind := map[Type]string{TypeLogistic: "s", TypeTanh: "t", TypeRelu: "r", TypeLinear: "l"}[f.typ]
	return fmt.Sprintf("F%s%d", kind, f.no)
}

// SetEnableTraining changes the training state and prepares the gradient
// buffers when training starts. Quantized layers stay disabled.
func (f *FullyConnected) SetEnableTraining(state TrainingState) {
	if f.weights.IsInt() {
		f.training = TrainingDisabled
		return
	}
	switch {
	case state == TrainingReEnable:
		if f.training == TrainingDisabled {
			f.weights.InitBackward()
		}
		f.training = TrainingEnabled
	case state == TrainingEnabled && f.training != TrainingEnabled:
		f.weights.InitBackward()
		f.training = state
	default:
		f.training = state
	}
}

// InitWeights randomizes the weights in [-scale, scale].
func (f *FullyConnected) InitWeights(scale float64, r *random.Rand) int {
	f.randomizer = r
	f.numWeights = f.weights.InitWeightsFloat(f.no, f.ni+1, scale, r)
	return f.numWeights
}

// ConvertToInt quantizes the weights. The layer can no longer be trained.
func (f *FullyConnected) ConvertToInt() {
	f.weights.ConvertToInt()
	f.training = TrainingDisabled
}

// DebugWeights logs summary statistics of the weights.
func (f *FullyConnected) DebugWeights() {
	n := f.weights.NumWeights()
	if n == 0 {
		slog.Info("weights", "layer", f.name, "count", 0)
		return
	}
	values := make([]float64, 0, n)
	for i := 0; i < f.no; i++ {
		for j := 0; j <= f.ni; j++ {
			values = append(values, f.weights.At(i, j))
		}
	}
	mean, std := stat.MeanStdDev(values, nil)
	slog.Info("weights", "layer", f.name, "count", n, "mean", mean, "stddev", std, "int", f.weights.IsInt())
}

// Forward computes the activations of every time-step.
func (f *FullyConnected) Forward(debug bool, input *networkio.NetworkIO, inputTranspose *networkio.TransposedArray,
	_ *scratch.Scratch, output *networkio.NetworkIO) {
	if f.weights.NumWeights() == 0 {
		panic(fmt.Sprintf("fullyconnected: %q used before InitWeights", f.name))
	}
	if input.NumFeatures() != f.ni {
		panic(fmt.Sprintf("fullyconnected: %q takes %d inputs, got %d", f.name, f.ni, input.NumFeatures()))
	}
	output.Resize(input, f.no)
	for t := 0; t < input.Width(); t++ {
		out := output.F(t)
		f.weights.MatrixDotVector(input.F(t), out)
		f.activate(out)
	}
	f.acts.CopyAll(output)
	f.externalSource = inputTranspose
	if inputTranspose == nil {
		f.sourceT.Transpose(input)
	}

	if debug {
		slog.Debug("fullyconnected forward", "layer", f.name, "steps", output.Width(), "features", f.no)
	}
}

// Backward converts output deltas into errors at the pre-activation,
// accumulates the weight gradient when training, and produces input deltas
// when they are needed.
func (f *FullyConnected) Backward(debug bool, fwdDeltas *networkio.NetworkIO, sc *scratch.Scratch,
	backDeltas *networkio.NetworkIO) bool {
	if f.acts.Width() != fwdDeltas.Width() {
		panic(fmt.Sprintf("fullyconnected: %q backward over %d steps after forward over %d",
			f.name, fwdDeltas.Width(), f.acts.Width()))
	}
	errs := sc.Floats(f.no)
	defer sc.ReturnFloats(errs)
	in := sc.Floats(f.ni)
	defer sc.ReturnFloats(in)

	source := f.externalSource
	if source == nil {
		source = &f.sourceT
	}
	training := f.IsTraining() && !f.weights.IsInt()
	if f.needsBackprop {
		backDeltas.Resize(fwdDeltas, f.ni)
	}
	for t := 0; t < fwdDeltas.Width(); t++ {
		deltas, acts := fwdDeltas.F(t), f.acts.F(t)
		for i := range errs {
			errs[i] = deltas[i] * f.derivative(acts[i])
		}
		if f.needsBackprop {
			f.weights.VectorDotMatrix(errs, backDeltas.F(t))
		}
		if training {
			for i := range in {
				in[i] = source.At(i, t)
			}
			f.weights.SumOuter(errs, in)
		}
	}

	if debug {
		slog.Debug("fullyconnected backward", "layer", f.name, "steps", fwdDeltas.Width(), "backprop", f.needsBackprop)
	}
	return f.needsBackprop
}

// Update applies the accumulated gradient.
func (f *FullyConnected) Update(learningRate, momentum float32, _ int) {
	f.weights.Update(float64(learningRate), float64(momentum))
}

// CountAlternators compares the pending updates with those of other, which
// must be a FullyConnected of the same type and shape.
func (f *FullyConnected) CountAlternators(other Network, counts *Alternators) {
	o, ok := other.(*FullyConnected)
	if !ok || o.typ != f.typ {
		panic(fmt.Sprintf("fullyconnected: cannot compare %q with %s", f.name, other.Type()))
	}
	f.weights.CountAlternators(&o.weights, counts)
}

// Serialize writes the header and the weight matrix.
func (f *FullyConnected) Serialize(w *serialization.Writer) error {
	if err := f.serializeHeader(w); err != nil {
		return err
	}
	return f.weights.Serialize(w, f.IsTraining())
}

// DeSerialize reads the weight matrix and checks it against the header sizes.
func (f *FullyConnected) DeSerialize(r *serialization.Reader, swap bool) error {
	if err := f.weights.DeSerialize(r, swap); err != nil {
		return err
	}
	if f.weights.rows != f.no || f.weights.cols != f.ni+1 {
		return errors.Wrapf(ErrShapeMismatch, "weights %dx%d for %d inputs and %d outputs",
			f.weights.rows, f.weights.cols, f.ni, f.no)
	}
	f.numWeights = f.weights.NumWeights()
	return nil
}

func (f *FullyConnected) activate(v []float64) {
	switch f.typ {
	case TypeLogistic:
		for i, x := range v {
			v[i] = 1 / (1 + math.Exp(-x))
		}
	case TypeTanh:
		for i, x := range v {
			v[i] = math.Tanh(x)
		}
	case TypeRelu:
		for i, x := range v {
			v[i] = math.Max(0, x)
		}
	}
}

// derivative returns the slope of the activation at the point whose output is y.
func (f *FullyConnected) derivative(y float64) float64 {
	switch f.typ {
	case TypeLogistic:
		return y * (1 - y)
	case TypeTanh:
		return 1 - y*y
	case TypeRelu:
		if y > 0 {
			return 1
		}
		return 0
	default:
		return 1
	}
}
