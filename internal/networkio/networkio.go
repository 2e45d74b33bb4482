// Package networkio provides the activation and delta buffers exchanged
// between network layers.
//
// A NetworkIO holds one feature vector per time-step. Time-steps are
// addressed through a StrideMap, which lets a 1-D buffer carry a batch of
// 2-D fields.
package networkio

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/seqnet/internal/random"
)

// NetworkIO is a float buffer of Width() time-steps by NumFeatures() features.
type NetworkIO struct {
	strideMap   StrideMap
	numFeatures int
	data        []float64
}

// New creates a zeroed buffer over m with depth features per time-step.
func New(m StrideMap, depth int) *NetworkIO {
	n := &NetworkIO{}
	n.ResizeToMap(m, depth)
	return n
}

// FromRows creates a single 1-D sequence with one time-step per row.
//
// Panics if rows have differing lengths.
func FromRows(rows [][]float64) *NetworkIO {
	depth := 0
	if len(rows) > 0 {
		depth = len(rows[0])
	}
	n := New(NewSequenceStrideMap(len(rows)), depth)
	for t, row := range rows {
		if len(row) != depth {
			panic(fmt.Sprintf("networkio: row %d has %d features, want %d", t, len(row), depth))
		}
		copy(n.F(t), row)
	}
	return n
}

// ResizeToMap reshapes the buffer to m with depth features and zeroes it.
func (n *NetworkIO) ResizeToMap(m StrideMap, depth int) {
	if depth < 0 {
		panic(fmt.Sprintf("networkio: invalid depth %d", depth))
	}
	size := m.Width() * depth
	if cap(n.data) >= size {
		n.data = n.data[:size]
		clear(n.data)
	} else {
		n.data = make([]float64, size)
	}
	n.strideMap = m
	n.numFeatures = depth
}

// Resize reshapes the buffer to the time extent of src with depth features.
func (n *NetworkIO) Resize(src *NetworkIO, depth int) {
	n.ResizeToMap(src.strideMap, depth)
}

// Width returns the number of time-steps.
func (n *NetworkIO) Width() int {
	return n.strideMap.Width()
}

// NumFeatures returns the depth of each time-step.
func (n *NetworkIO) NumFeatures() int {
	return n.numFeatures
}

// StrideMap returns the layout of the time-steps.
func (n *NetworkIO) StrideMap() StrideMap {
	return n.strideMap
}

// F returns the features of time-step t. The slice aliases the buffer.
func (n *NetworkIO) F(t int) []float64 {
	start := t * n.numFeatures
	end := start + n.numFeatures
	return n.data[start:end:end]
}

// Zero clears every value.
func (n *NetworkIO) Zero() {
	clear(n.data)
}

// Randomize fills num features of time-step t, starting at offset, with
// values in [-1, 1] drawn from r.
func (n *NetworkIO) Randomize(t, offset, num int, r *random.Rand) {
	dst := n.F(t)[offset : offset+num]
	for i := range dst {
		dst[i] = r.SignedRand(1.0)
	}
}

// CopyTimeStepGeneral copies num features of src time-step srcT, starting at
// srcOffset, into time-step destT of n at destOffset.
func (n *NetworkIO) CopyTimeStepGeneral(destT, destOffset, num int, src *NetworkIO, srcT, srcOffset int) {
	copy(n.F(destT)[destOffset:destOffset+num], src.F(srcT)[srcOffset:srcOffset+num])
}

// AddTimeStepPart adds num features of time-step t, starting at offset, to dst.
func (n *NetworkIO) AddTimeStepPart(t, offset, num int, dst []float64) {
	floats.Add(dst[:num], n.F(t)[offset:offset+num])
}

// CopyAll makes n an exact copy of src.
func (n *NetworkIO) CopyAll(src *NetworkIO) {
	n.Resize(src, src.numFeatures)
	copy(n.data, src.data)
}

// CopyPacking copies all features of src into n starting at feature
// featureOffset, and returns the offset just past the copied features.
//
// Panics if src and n differ in time extent.
func (n *NetworkIO) CopyPacking(src *NetworkIO, featureOffset int) int {
	n.checkWidth("CopyPacking", src)
	num := src.numFeatures
	for t := 0; t < n.Width(); t++ {
		copy(n.F(t)[featureOffset:featureOffset+num], src.F(t))
	}
	return featureOffset + num
}

// CopyUnpacking resizes n to numFeatures and fills it with the features of src
// starting at featureOffset.
func (n *NetworkIO) CopyUnpacking(src *NetworkIO, featureOffset, numFeatures int) {
	n.Resize(src, numFeatures)
	for t := 0; t < n.Width(); t++ {
		copy(n.F(t), src.F(t)[featureOffset:featureOffset+numFeatures])
	}
}

// AddAllToFloat adds every value of src to n.
//
// Panics if the buffers differ in shape.
func (n *NetworkIO) AddAllToFloat(src *NetworkIO) {
	n.checkWidth("AddAllToFloat", src)
	if n.numFeatures != src.numFeatures {
		panic(fmt.Sprintf("networkio: AddAllToFloat depth mismatch %d vs %d", n.numFeatures, src.numFeatures))
	}
	floats.Add(n.data, src.data)
}

// ScaleFloatBy multiplies every value by factor.
func (n *NetworkIO) ScaleFloatBy(factor float64) {
	floats.Scale(factor, n.data)
}

// Rows returns a copy of the buffer, one slice per time-step.
func (n *NetworkIO) Rows() [][]float64 {
	rows := make([][]float64, n.Width())
	for t := range rows {
		rows[t] = append([]float64(nil), n.F(t)...)
	}
	return rows
}

func (n *NetworkIO) checkWidth(op string, src *NetworkIO) {
	if n.Width() != src.Width() {
		panic(fmt.Sprintf("networkio: %s width mismatch %d vs %d", op, n.Width(), src.Width()))
	}
}
