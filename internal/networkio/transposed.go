package networkio

// TransposedArray is a feature-major copy of a NetworkIO: row i holds
// feature i across every time-step.
type TransposedArray struct {
	rows int
	cols int
	data []float64
}

// Transpose replaces the contents with the transpose of src.
func (a *TransposedArray) Transpose(src *NetworkIO) {
	a.rows = src.NumFeatures()
	a.cols = src.Width()
	size := a.rows * a.cols
	if cap(a.data) >= size {
		a.data = a.data[:size]
	} else {
		a.data = make([]float64, size)
	}
	for t := 0; t < a.cols; t++ {
		for i, v := range src.F(t) {
			a.data[i*a.cols+t] = v
		}
	}
}

// Dim1 returns the number of features.
func (a *TransposedArray) Dim1() int {
	return a.rows
}

// Dim2 returns the number of time-steps.
func (a *TransposedArray) Dim2() int {
	return a.cols
}

// Row returns feature i over all time-steps. The slice aliases the array.
func (a *TransposedArray) Row(i int) []float64 {
	start := i * a.cols
	return a.data[start : start+a.cols : start+a.cols]
}

// At returns feature i at time-step t.
func (a *TransposedArray) At(i, t int) float64 {
	return a.data[i*a.cols+t]
}
