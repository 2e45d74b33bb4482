package networkio

import "fmt"

// Dim names an axis of the conceptual field flattened into time-steps.
type Dim int

// Axes of a StrideMap, outermost first.
const (
	DimBatch Dim = iota
	DimHeight
	DimWidth
	NumDims
)

// String returns the axis name.
func (d Dim) String() string {
	switch d {
	case DimBatch:
		return "batch"
	case DimHeight:
		return "height"
	case DimWidth:
		return "width"
	default:
		return fmt.Sprintf("Dim(%d)", int(d))
	}
}

// Size is the extent of one batch item.
type Size struct {
	Height int
	Width  int
}

// StrideMap translates linear time-steps into (batch, height, width)
// coordinates and back.
//
// Time-steps are laid out row-major: width varies fastest, then height, then
// batch. Batch items may be smaller than the padded maximum; positions in the
// padding are not valid and are skipped by Index.Increment.
type StrideMap struct {
	shape      [NumDims]int
	increments [NumDims]int
	heights    []int
	widths     []int
}

// NewStrideMap creates a map for batch items that all share one height and width.
func NewStrideMap(batch, height, width int) StrideMap {
	if batch < 0 || height < 0 || width < 0 {
		panic(fmt.Sprintf("stridemap: invalid shape batch=%d height=%d width=%d", batch, height, width))
	}
	m := StrideMap{
		shape:   [NumDims]int{batch, height, width},
		heights: make([]int, batch),
		widths:  make([]int, batch),
	}
	for b := 0; b < batch; b++ {
		m.heights[b] = height
		m.widths[b] = width
	}
	m.computeIncrements()
	return m
}

// NewSequenceStrideMap creates the map of a single 1-D sequence of length width.
func NewSequenceStrideMap(width int) StrideMap {
	return NewStrideMap(1, 1, width)
}

// NewVariableStrideMap creates a map for batch items of differing sizes.
// The padded shape is the maximum height and width over all items.
func NewVariableStrideMap(sizes []Size) StrideMap {
	m := StrideMap{
		heights: make([]int, len(sizes)),
		widths:  make([]int, len(sizes)),
	}
	m.shape[DimBatch] = len(sizes)
	for b, s := range sizes {
		if s.Height <= 0 || s.Width <= 0 {
			panic(fmt.Sprintf("stridemap: invalid size %dx%d for batch item %d", s.Height, s.Width, b))
		}
		m.heights[b] = s.Height
		m.widths[b] = s.Width
		m.shape[DimHeight] = max(m.shape[DimHeight], s.Height)
		m.shape[DimWidth] = max(m.shape[DimWidth], s.Width)
	}
	m.computeIncrements()
	return m
}

func (m *StrideMap) computeIncrements() {
	m.increments[NumDims-1] = 1
	for d := NumDims - 2; d >= 0; d-- {
		m.increments[d] = m.increments[d+1] * m.shape[d+1]
	}
}

// Width returns the total number of time-steps, padding included.
func (m StrideMap) Width() int {
	return m.shape[DimBatch] * m.increments[DimBatch]
}

// Size returns the padded extent of dim.
func (m StrideMap) Size(dim Dim) int {
	return m.shape[dim]
}

// Equal reports whether both maps describe the same layout.
func (m StrideMap) Equal(other StrideMap) bool {
	if m.shape != other.shape || len(m.heights) != len(other.heights) {
		return false
	}
	for b := range m.heights {
		if m.heights[b] != other.heights[b] || m.widths[b] != other.widths[b] {
			return false
		}
	}
	return true
}

// Index is a position in a StrideMap.
//
// Index is a value type: copy it to explore neighbors without moving the
// original.
type Index struct {
	m       StrideMap
	indices [NumDims]int
	t       int
}

// NewIndex returns the index of the first time-step of m.
func NewIndex(m StrideMap) Index {
	return Index{m: m}
}

// T returns the linear time-step of the index.
func (i Index) T() int {
	return i.t
}

// Index returns the coordinate along dim.
func (i Index) Index(dim Dim) int {
	return i.indices[dim]
}

// IsValid reports whether the index lies inside its batch item.
func (i Index) IsValid() bool {
	for _, v := range i.indices {
		if v < 0 {
			return false
		}
	}
	b := i.indices[DimBatch]
	if b >= i.m.shape[DimBatch] {
		return false
	}
	return i.indices[DimHeight] < i.m.heights[b] && i.indices[DimWidth] < i.m.widths[b]
}

// AddOffset moves the index by offset along dim and reports whether the
// result is still valid.
func (i *Index) AddOffset(offset int, dim Dim) bool {
	i.indices[dim] += offset
	i.t += offset * i.m.increments[dim]
	return i.IsValid()
}

// Increment advances to the next valid time-step in time order.
// Returns false, leaving the index at the start, when there is none.
func (i *Index) Increment() bool {
	for d := NumDims - 1; d >= 0; d-- {
		if i.indices[d] < i.maxIndex(d) {
			i.t += i.m.increments[d]
			i.indices[d]++
			return true
		}
		i.t -= i.m.increments[d] * i.indices[d]
		i.indices[d] = 0
	}
	return false
}

func (i Index) maxIndex(dim Dim) int {
	limit := i.m.shape[dim] - 1
	if dim == DimBatch {
		return limit
	}
	b := i.indices[DimBatch]
	if b >= len(i.m.heights) {
		return limit
	}
	switch dim {
	case DimHeight:
		return min(limit, i.m.heights[b]-1)
	default:
		return min(limit, i.m.widths[b]-1)
	}
}
