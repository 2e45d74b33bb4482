package networkio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect walks every valid index of m and returns (t, b, h, w) tuples.
func collect(m StrideMap) [][4]int {
	var out [][4]int
	idx := NewIndex(m)
	for ok := idx.IsValid(); ok; ok = idx.Increment() {
		out = append(out, [4]int{idx.T(), idx.Index(DimBatch), idx.Index(DimHeight), idx.Index(DimWidth)})
	}
	return out
}

func TestStrideMap_UniformIteration(t *testing.T) {
	m := NewStrideMap(2, 2, 3)
	assert.Equal(t, 12, m.Width())

	got := collect(m)
	require.Len(t, got, 12)
	for i, pos := range got {
		assert.Equal(t, i, pos[0], "time-steps are visited in order")
	}
	assert.Equal(t, [4]int{4, 0, 1, 1}, got[4])
	assert.Equal(t, [4]int{11, 1, 1, 2}, got[11])
}

func TestStrideMap_VariableSkipsPadding(t *testing.T) {
	m := NewVariableStrideMap([]Size{{Height: 1, Width: 3}, {Height: 2, Width: 2}})
	assert.Equal(t, 2, m.Size(DimHeight))
	assert.Equal(t, 3, m.Size(DimWidth))
	assert.Equal(t, 12, m.Width())

	var ts []int
	for _, pos := range collect(m) {
		ts = append(ts, pos[0])
	}
	// Batch 0 uses only its first row; batch 1 only its first two columns.
	assert.Equal(t, []int{0, 1, 2, 6, 7, 9, 10}, ts)
}

func TestStrideMap_EmptyHasNoValidIndex(t *testing.T) {
	m := NewSequenceStrideMap(0)
	assert.Empty(t, collect(m))
}

func TestIndex_AddOffset(t *testing.T) {
	m := NewStrideMap(1, 3, 4)
	idx := NewIndex(m)
	require.True(t, idx.AddOffset(2, DimWidth))
	require.True(t, idx.AddOffset(1, DimHeight))
	assert.Equal(t, 6, idx.T())

	left := idx
	assert.False(t, left.AddOffset(-3, DimWidth))
	right := idx
	assert.False(t, right.AddOffset(2, DimWidth))
	up := idx
	assert.True(t, up.AddOffset(-1, DimHeight))
	assert.Equal(t, 2, up.T())
	down := idx
	assert.False(t, down.AddOffset(2, DimHeight))

	// The original is untouched by moves of its copies.
	assert.Equal(t, 6, idx.T())
}

func TestStrideMap_Equal(t *testing.T) {
	assert.True(t, NewStrideMap(1, 2, 3).Equal(NewStrideMap(1, 2, 3)))
	assert.False(t, NewStrideMap(1, 2, 3).Equal(NewStrideMap(1, 3, 2)))
	assert.False(t, NewStrideMap(2, 2, 2).Equal(NewVariableStrideMap([]Size{{2, 2}, {1, 2}})))
}

func TestDim_String(t *testing.T) {
	assert.Equal(t, "width", DimWidth.String())
	assert.Equal(t, "Dim(7)", Dim(7).String())
}
