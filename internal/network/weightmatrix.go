package network

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/seqnet/internal/random"
	"github.com/born-ml/seqnet/internal/serialization"
)

// Mode bits of a serialized WeightMatrix.
const (
	weightModeInt     int8 = 1 << 0
	weightModeUpdates int8 = 1 << 1
)

// WeightMatrix is the weight store of a fully connected layer: one row per
// output, one column per input plus a final bias column.
//
// In float mode it also carries the accumulated gradient dw and the momentum
// term updates. ConvertToInt replaces the float weights by int8 rows with one
// scale per row; an int matrix can no longer be trained.
type WeightMatrix struct {
	wf      *mat.Dense
	dw      *mat.Dense
	updates *mat.Dense

	intMode bool
	rows    int
	cols    int
	wi      []int8
	scales  []float64
}

// InitWeightsFloat allocates a rows × cols matrix with weights uniform in
// [-scale, scale], resets the gradients and returns the number of weights.
func (m *WeightMatrix) InitWeightsFloat(rows, cols int, scale float64, r *random.Rand) int {
	m.rows, m.cols = rows, cols
	m.intMode = false
	m.wi, m.scales = nil, nil
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = r.SignedRand(scale)
	}
	m.wf = mat.NewDense(rows, cols, data)
	m.InitBackward()
	return rows * cols
}

// InitBackward zeroes the gradient and momentum terms.
func (m *WeightMatrix) InitBackward() {
	if m.intMode || m.wf == nil {
		return
	}
	m.dw = mat.NewDense(m.rows, m.cols, nil)
	m.updates = mat.NewDense(m.rows, m.cols, nil)
}

// IsInt reports whether the matrix holds quantized weights.
func (m *WeightMatrix) IsInt() bool { return m.intMode }

// NumWeights returns rows × cols.
func (m *WeightMatrix) NumWeights() int { return m.rows * m.cols }

// At returns the effective weight at (i, j).
func (m *WeightMatrix) At(i, j int) float64 {
	if m.intMode {
		return float64(m.wi[i*m.cols+j]) * m.scales[i]
	}
	return m.wf.At(i, j)
}

// MatrixDotVector computes out = W·[in; 1].
func (m *WeightMatrix) MatrixDotVector(in, out []float64) {
	ni := m.cols - 1
	if m.intMode {
		for i := 0; i < m.rows; i++ {
			row := m.wi[i*m.cols : (i+1)*m.cols]
			total := float64(row[ni])
			for j, x := range in[:ni] {
				total += float64(row[j]) * x
			}
			out[i] = total * m.scales[i]
		}
		return
	}
	y := mat.NewVecDense(m.rows, out[:m.rows])
	y.MulVec(m.wf.Slice(0, m.rows, 0, ni), mat.NewVecDense(ni, in[:ni]))
	for i := 0; i < m.rows; i++ {
		out[i] += m.wf.At(i, ni)
	}
}

// VectorDotMatrix computes out = Wᵀ·errs over the input columns only.
func (m *WeightMatrix) VectorDotMatrix(errs, out []float64) {
	ni := m.cols - 1
	if m.intMode {
		clear(out[:ni])
		for i, e := range errs[:m.rows] {
			row := m.wi[i*m.cols : (i+1)*m.cols]
			for j := 0; j < ni; j++ {
				out[j] += float64(row[j]) * m.scales[i] * e
			}
		}
		return
	}
	y := mat.NewVecDense(ni, out[:ni])
	y.MulVec(m.wf.Slice(0, m.rows, 0, ni).T(), mat.NewVecDense(m.rows, errs[:m.rows]))
}

// SumOuter accumulates dw += errs ⊗ [in; 1].
func (m *WeightMatrix) SumOuter(errs, in []float64) {
	if m.dw == nil {
		panic("weightmatrix: gradient accumulation without InitBackward")
	}
	ni := m.cols - 1
	inputs := m.dw.Slice(0, m.rows, 0, ni).(*mat.Dense)
	inputs.RankOne(inputs, 1, mat.NewVecDense(m.rows, errs[:m.rows]), mat.NewVecDense(ni, in[:ni]))
	for i, e := range errs[:m.rows] {
		m.dw.Set(i, ni, m.dw.At(i, ni)+e)
	}
}

// Update applies the accumulated gradient with momentum and clears it.
func (m *WeightMatrix) Update(learningRate, momentum float64) {
	if m.intMode {
		panic("weightmatrix: cannot update int weights")
	}
	if m.dw == nil {
		return
	}
	m.dw.Scale(learningRate, m.dw)
	m.updates.Add(m.updates, m.dw)
	m.wf.Add(m.wf, m.updates)
	m.updates.Scale(momentum, m.updates)
	m.dw.Zero()
}

// CountAlternators counts, over every weight whose pending update is non-zero
// in either matrix, whether the two updates share a sign.
func (m *WeightMatrix) CountAlternators(other *WeightMatrix, counts *Alternators) {
	if m.rows != other.rows || m.cols != other.cols {
		panic(fmt.Sprintf("weightmatrix: cannot compare %dx%d with %dx%d", m.rows, m.cols, other.rows, other.cols))
	}
	if m.updates == nil || other.updates == nil {
		return
	}
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			a, b := m.updates.At(i, j), other.updates.At(i, j)
			if a == 0 && b == 0 {
				continue
			}
			if (a > 0) == (b > 0) {
				counts.Same++
			} else {
				counts.Changed++
			}
		}
	}
}

// ConvertToInt quantizes every row to int8 with scale max|w|/127 and drops
// the training state.
func (m *WeightMatrix) ConvertToInt() {
	if m.intMode || m.wf == nil {
		return
	}
	m.wi = make([]int8, m.rows*m.cols)
	m.scales = make([]float64, m.rows)
	for i := 0; i < m.rows; i++ {
		row := m.wf.RawRowView(i)
		maxAbs := 0.0
		for _, w := range row {
			maxAbs = math.Max(maxAbs, math.Abs(w))
		}
		scale := maxAbs / math.MaxInt8
		if scale == 0 {
			scale = 1
		}
		m.scales[i] = scale
		for j, w := range row {
			m.wi[i*m.cols+j] = int8(math.Round(w / scale))
		}
	}
	m.intMode = true
	m.wf, m.dw, m.updates = nil, nil, nil
}

// Serialize writes the mode, the shape and the weights. The momentum term is
// included when training is true.
func (m *WeightMatrix) Serialize(w *serialization.Writer, training bool) error {
	mode := int8(0)
	switch {
	case m.intMode:
		mode |= weightModeInt
	case training && m.updates != nil:
		mode |= weightModeUpdates
	}
	if err := w.Int8(mode); err != nil {
		return err
	}
	if err := w.Int32(int32(m.rows)); err != nil { //nolint:gosec // G115: layer sizes fit in int32
		return err
	}
	if err := w.Int32(int32(m.cols)); err != nil { //nolint:gosec // G115: layer sizes fit in int32
		return err
	}
	if m.intMode {
		if err := w.Int8s(m.wi); err != nil {
			return err
		}
		return w.Float64s(m.scales)
	}
	if err := w.Float64s(m.wf.RawMatrix().Data); err != nil {
		return err
	}
	if mode&weightModeUpdates != 0 {
		return w.Float64s(m.updates.RawMatrix().Data)
	}
	return nil
}

// DeSerialize reads a matrix written by Serialize.
func (m *WeightMatrix) DeSerialize(r *serialization.Reader, swap bool) error {
	mode, err := r.Int8()
	if err != nil {
		return errors.Wrap(err, "failed to read weight mode")
	}
	rows, err := r.Int32(swap)
	if err != nil {
		return errors.Wrap(err, "failed to read weight rows")
	}
	cols, err := r.Int32(swap)
	if err != nil {
		return errors.Wrap(err, "failed to read weight cols")
	}
	if rows <= 0 || cols <= 0 {
		return errors.Wrapf(ErrShapeMismatch, "weight matrix %dx%d", rows, cols)
	}
	m.rows, m.cols = int(rows), int(cols)
	size := m.rows * m.cols

	if mode&weightModeInt != 0 {
		if m.wi, err = r.Int8s(swap); err != nil {
			return errors.Wrap(err, "failed to read int weights")
		}
		if m.scales, err = r.Float64s(swap); err != nil {
			return errors.Wrap(err, "failed to read weight scales")
		}
		if len(m.wi) != size || len(m.scales) != m.rows {
			return errors.Wrapf(ErrShapeMismatch, "int weights %d/%d for %dx%d", len(m.wi), len(m.scales), rows, cols)
		}
		m.intMode = true
		m.wf, m.dw, m.updates = nil, nil, nil
		return nil
	}

	data, err := r.Float64s(swap)
	if err != nil {
		return errors.Wrap(err, "failed to read weights")
	}
	if len(data) != size {
		return errors.Wrapf(ErrShapeMismatch, "%d weights for %dx%d", len(data), rows, cols)
	}
	m.intMode = false
	m.wi, m.scales = nil, nil
	m.wf = mat.NewDense(m.rows, m.cols, data)
	m.InitBackward()
	if mode&weightModeUpdates != 0 {
		updates, err := r.Float64s(swap)
		if err != nil {
			return errors.Wrap(err, "failed to read weight updates")
		}
		if len(updates) != size {
			return errors.Wrapf(ErrShapeMismatch, "%d updates for %dx%d", len(updates), rows, cols)
		}
		m.updates = mat.NewDense(m.rows, m.cols, updates)
	}
	return nil
}
