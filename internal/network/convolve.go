package network

import (
	"fmt"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/born-ml/seqnet/internal/networkio"
	"github.com/born-ml/seqnet/internal/scratch"
	"github.com/born-ml/seqnet/internal/serialization"
)

// Convolve deepens every time-step by stacking the input vectors of a
// (2·halfX+1) × (2·halfY+1) neighborhood around it.
//
// The output of a time-step is laid out x-major, y-minor: for each x offset
// from -halfX to halfX, the ni-wide inputs at y offsets -halfY to halfY.
// Neighbors outside the image are filled with random values. Convolve has no
// weights; a following layer learns from the stacked features.
type Convolve struct {
	layer
	halfX int
	halfY int
}

// NewConvolve creates a Convolve over ni input features.
func NewConvolve(name string, ni, halfX, halfY int) *Convolve {
	if ni < 0 || halfX < 0 || halfY < 0 {
		panic(fmt.Sprintf("convolve: invalid ni=%d halfX=%d halfY=%d", ni, halfX, halfY))
	}
	return &Convolve{
		layer: newLayer(TypeConvolve, name, ni, ni*(2*halfX+1)*(2*halfY+1)),
		halfX: halfX,
		halfY: halfY,
	}
}

// HalfX returns the half-width of the window.
func (c *Convolve) HalfX() int { return c.halfX }

// HalfY returns the half-height of the window.
func (c *Convolve) HalfY() int { return c.halfY }

// Spec returns "C<width>,<height>".
func (c *Convolve) Spec() string {
	return fmt.Sprintf("C%d,%d", 2*c.halfX+1, 2*c.halfY+1)
}

// Forward stacks the neighborhood of every time-step of input into output.
func (c *Convolve) Forward(debug bool, input *networkio.NetworkIO, _ *networkio.TransposedArray,
	_ *scratch.Scratch, output *networkio.NetworkIO) {
	output.Resize(input, c.no)
	yScale := 2*c.halfY + 1

	dest := networkio.NewIndex(output.StrideMap())
	for ok := dest.IsValid(); ok; ok = dest.Increment() {
		t := dest.T()
		outX := 0
		for x := -c.halfX; x <= c.halfX; x, outX = x+1, outX+yScale*c.ni {
			xIndex := dest
			if !xIndex.AddOffset(x, networkio.DimWidth) {
				c.randomize(output, t, outX, yScale*c.ni)
				continue
			}
			outY := outX
			for y := -c.halfY; y <= c.halfY; y, outY = y+1, outY+c.ni {
				yIndex := xIndex
				if !yIndex.AddOffset(y, networkio.DimHeight) {
					c.randomize(output, t, outY, c.ni)
					continue
				}
				output.CopyTimeStepGeneral(t, outY, c.ni, input, yIndex.T(), 0)
			}
		}
	}

	if debug {
		slog.Debug("convolve forward", "layer", c.name, "steps", output.Width(), "features", c.no)
	}
}

func (c *Convolve) randomize(output *networkio.NetworkIO, t, offset, num int) {
	if c.randomizer == nil {
		panic(fmt.Sprintf("convolve: %q has no randomizer for out-of-bounds neighbors", c.name))
	}
	output.Randomize(t, offset, num, c.randomizer)
}

// Backward sums the deltas of every stacked copy of an input time-step back
// onto that time-step. Always returns true.
func (c *Convolve) Backward(debug bool, fwdDeltas *networkio.NetworkIO, s *scratch.Scratch,
	backDeltas *networkio.NetworkIO) bool {
	backDeltas.Resize(fwdDeltas, c.ni)
	deltaSum := s.IO(fwdDeltas, c.ni)
	defer s.ReturnIO(deltaSum)
	yScale := 2*c.halfY + 1

	src := networkio.NewIndex(fwdDeltas.StrideMap())
	for ok := src.IsValid(); ok; ok = src.Increment() {
		t := src.T()
		outX := 0
		for x := -c.halfX; x <= c.halfX; x, outX = x+1, outX+yScale*c.ni {
			xIndex := src
			if !xIndex.AddOffset(x, networkio.DimWidth) {
				continue
			}
			outY := outX
			for y := -c.halfY; y <= c.halfY; y, outY = y+1, outY+c.ni {
				yIndex := xIndex
				if yIndex.AddOffset(y, networkio.DimHeight) {
					fwdDeltas.AddTimeStepPart(t, outY, c.ni, deltaSum.F(yIndex.T()))
				}
			}
		}
	}
	backDeltas.CopyAll(deltaSum)

	if debug {
		slog.Debug("convolve backward", "layer", c.name, "steps", backDeltas.Width(), "features", c.ni)
	}
	return true
}

// Serialize writes the header and the half extents.
func (c *Convolve) Serialize(w *serialization.Writer) error {
	if err := c.serializeHeader(w); err != nil {
		return err
	}
	if err := w.Int32(int32(c.halfX)); err != nil { //nolint:gosec // G115: window sizes are small
		return err
	}
	return w.Int32(int32(c.halfY)) //nolint:gosec // G115: window sizes are small
}

// DeSerialize reads the half extents and recomputes the output width.
func (c *Convolve) DeSerialize(r *serialization.Reader, swap bool) error {
	halfX, err := r.Int32(swap)
	if err != nil {
		return errors.Wrap(err, "failed to read half x")
	}
	halfY, err := r.Int32(swap)
	if err != nil {
		return errors.Wrap(err, "failed to read half y")
	}
	if halfX < 0 || halfY < 0 {
		return errors.Wrapf(ErrShapeMismatch, "negative half extents %d,%d", halfX, halfY)
	}
	c.halfX = int(halfX)
	c.halfY = int(halfY)
	c.no = c.ni * (2*c.halfX + 1) * (2*c.halfY + 1)
	return nil
}
