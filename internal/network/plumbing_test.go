package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seqnet/internal/networkio"
	"github.com/born-ml/seqnet/internal/random"
)

// buildTree assembles
//
//	root: Series[in: C1,1  heads: Parallel(b: C1,1  tail: Series[c: C1,1])  out: Ft3]
//
// with ids "0", "1:0", "1:1:0" and "2".
func buildTree() *Series {
	tail := NewSeries("tail")
	tail.AddToStack(NewConvolve("c", 2, 0, 0))
	heads := NewParallel("heads")
	heads.AddToStack(NewConvolve("b", 2, 0, 0))
	heads.AddToStack(tail)

	root := NewSeries("root")
	root.AddToStack(NewConvolve("in", 2, 0, 0))
	root.AddToStack(heads)
	root.AddToStack(NewFullyConnected("out", 4, 3, TypeTanh))
	return root
}

func TestSeries_AddToStack(t *testing.T) {
	s := NewSeries("s")
	assert.Equal(t, TypeSeries, s.Type())
	assert.Zero(t, s.NumInputs())

	s.AddToStack(NewConvolve("c", 2, 1, 0))
	assert.Equal(t, 2, s.NumInputs())
	assert.Equal(t, 6, s.NumOutputs())

	s.AddToStack(NewFullyConnected("f", 6, 3, TypeTanh))
	assert.Equal(t, 2, s.NumInputs())
	assert.Equal(t, 3, s.NumOutputs())
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, "[C3,1 Ft3]", s.Spec())

	assert.Panics(t, func() { s.AddToStack(NewConvolve("x", 4, 0, 0)) })
	assert.Equal(t, 2, s.Len())
}

func TestParallel_AddToStack(t *testing.T) {
	p := NewParallel("p")
	p.AddToStack(NewConvolve("a", 2, 1, 0))
	p.AddToStack(NewConvolve("b", 2, 0, 0))
	assert.Equal(t, TypeParallel, p.Type())
	assert.Equal(t, 2, p.NumInputs())
	assert.Equal(t, 8, p.NumOutputs())
	assert.Equal(t, "(C3,1 C1,1)", p.Spec())

	assert.Panics(t, func() { p.AddToStack(NewConvolve("x", 3, 0, 0)) })
	assert.Equal(t, 8, p.NumOutputs())
}

func TestSeries_ForwardMatchesComposition(t *testing.T) {
	rows := [][]float64{{1, 2}, {3, 4}, {5, 6}, {7, 8}}
	s := NewSeries("s")
	s.AddToStack(NewConvolve("pre", 2, 0, 0))
	s.AddToStack(NewConvolve("conv", 2, 1, 0))
	s.AddToStack(NewConvolve("post", 6, 0, 0))
	s.InitWeights(0.1, random.New(5))

	single := NewConvolve("conv", 2, 1, 0)
	single.SetRandomizer(random.New(5))

	assert.Equal(t, forward(single, networkio.FromRows(rows)).Rows(), forward(s, networkio.FromRows(rows)).Rows())
	assert.Equal(t, 1, s.XScaleFactor())
}

func TestSeries_EmptyAndSingle(t *testing.T) {
	rows := [][]float64{{1, 2}, {3, 4}}
	empty := NewSeries("empty")
	assert.Equal(t, rows, forward(empty, networkio.FromRows(rows)).Rows())

	one := NewSeries("one")
	one.AddToStack(NewConvolve("c", 2, 0, 0))
	assert.Equal(t, rows, forward(one, networkio.FromRows(rows)).Rows())
	back, ok := backward(one, networkio.FromRows(rows))
	require.True(t, ok)
	assert.Equal(t, rows, back.Rows())
}

func TestSeries_Backward(t *testing.T) {
	s := NewSeries("s")
	s.AddToStack(NewConvolve("conv", 2, 1, 0))
	s.AddToStack(NewConvolve("post", 6, 0, 0))

	back, ok := backward(s, networkio.FromRows(constantRows(3, 6, 1)))
	require.True(t, ok)
	assert.Equal(t, [][]float64{{2, 2}, {3, 3}, {2, 2}}, back.Rows())

	s.Layers()[1].SetEnableTraining(TrainingDisabled)
	_, ok = backward(s, networkio.FromRows(constantRows(3, 6, 1)))
	assert.False(t, ok)

	s.SetEnableTraining(TrainingDisabled)
	_, ok = backward(s, networkio.FromRows(constantRows(3, 6, 1)))
	assert.False(t, ok)
}

func TestParallel_ForwardPacksOutputs(t *testing.T) {
	p := NewParallel("p")
	p.AddToStack(NewConvolve("a", 2, 1, 0))
	p.AddToStack(NewConvolve("b", 2, 0, 0))
	p.InitWeights(0, random.New(1))

	rows := [][]float64{{1, 2}, {3, 4}, {5, 6}}
	output := forward(p, networkio.FromRows(rows))
	require.Equal(t, 8, output.NumFeatures())
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 3, 4}, output.F(1))
	for step, row := range rows {
		assert.Equal(t, row, output.F(step)[6:])
	}
}

func TestParallel_BackwardAveragesChildren(t *testing.T) {
	p := NewParallel("p")
	p.AddToStack(NewConvolve("a", 2, 0, 0))
	p.AddToStack(NewConvolve("b", 2, 0, 0))

	back, ok := backward(p, networkio.FromRows([][]float64{{1, 2, 3, 4}, {0, 2, 4, 6}}))
	require.True(t, ok)
	assert.Equal(t, [][]float64{{2, 3}, {2, 4}}, back.Rows())

	p.SetupNeedsBackprop(false)
	_, ok = backward(p, networkio.FromRows([][]float64{{1, 2, 3, 4}}))
	assert.False(t, ok)

	p.SetEnableTraining(TrainingDisabled)
	_, ok = backward(p, networkio.FromRows([][]float64{{1, 2, 3, 4}}))
	assert.False(t, ok)
}

func TestPlumbing_EnumerateAndGetLayer(t *testing.T) {
	root := buildTree()
	ids := root.EnumerateLayers("", nil)
	assert.Equal(t, []string{"0", "1:0", "1:1:0", "2"}, ids)

	names := make([]string, len(ids))
	for i, id := range ids {
		layer := root.GetLayer(id)
		require.NotNil(t, layer, id)
		names[i] = layer.Name()
	}
	assert.Equal(t, []string{"in", "b", "c", "out"}, names)

	assert.Equal(t, []string{"x:0", "x:1:0"}, root.Layers()[1].(*Parallel).EnumerateLayers("x", nil))
	assert.Same(t, root.Layers()[2], root.GetLayer("2"))
}

func TestPlumbing_GetLayerMalformed(t *testing.T) {
	root := buildTree()
	for _, id := range []string{"", "3", "-1", "+1", "x", "1", "1:", "1:2", "1:1", "1:1:x", " 0", ":0"} {
		assert.Nil(t, root.GetLayer(id), "id %q", id)
		assert.Nil(t, root.LayerLearningRatePtr(id), "id %q", id)
	}
	// A leaf ends the path; anything after it is ignored.
	assert.Equal(t, "in", root.GetLayer("0:7").Name())
}

func TestPlumbing_InitWeightsAndPropagation(t *testing.T) {
	root := buildTree()
	r := random.New(1)
	assert.Equal(t, 3*5, root.InitWeights(0.5, r))
	assert.Equal(t, 15, root.NumWeights())
	assert.Zero(t, root.Layers()[1].NumWeights())

	root.SetNetworkFlags(FlagLayerSpecificLR)
	for _, id := range root.EnumerateLayers("", nil) {
		assert.Equal(t, FlagLayerSpecificLR, root.GetLayer(id).NetworkFlags(), id)
	}
	assert.True(t, root.TestFlag(FlagLayerSpecificLR))

	root.SetEnableTraining(TrainingTempDisable)
	for _, id := range root.EnumerateLayers("", nil) {
		assert.Equal(t, TrainingTempDisable, root.GetLayer(id).TrainingState(), id)
	}
	root.SetEnableTraining(TrainingReEnable)
	for _, id := range root.EnumerateLayers("", nil) {
		assert.True(t, root.GetLayer(id).IsTraining(), id)
	}
}

func TestPlumbing_SetupNeedsBackprop(t *testing.T) {
	t.Run("weightless parallel", func(t *testing.T) {
		p := NewParallel("p")
		p.AddToStack(NewConvolve("a", 1, 0, 0))
		p.AddToStack(NewConvolve("b", 1, 0, 0))
		assert.False(t, p.SetupNeedsBackprop(false))
		assert.False(t, p.NeedsBackprop())
		assert.False(t, p.Layers()[0].NeedsBackprop())
		assert.True(t, p.SetupNeedsBackprop(true))
	})

	t.Run("parallel with weights", func(t *testing.T) {
		p := NewParallel("p")
		p.AddToStack(NewConvolve("a", 2, 0, 0))
		p.AddToStack(NewFullyConnected("f", 2, 2, TypeRelu))
		p.InitWeights(0.1, random.New(1))
		assert.True(t, p.SetupNeedsBackprop(false))
		assert.False(t, p.NeedsBackprop())
	})

	t.Run("frozen composite", func(t *testing.T) {
		p := NewParallel("p")
		p.AddToStack(NewFullyConnected("f", 2, 2, TypeRelu))
		p.InitWeights(0.1, random.New(1))
		p.layer.SetEnableTraining(TrainingDisabled)
		assert.False(t, p.SetupNeedsBackprop(true))
		assert.False(t, p.NeedsBackprop())
		assert.True(t, p.Layers()[0].NeedsBackprop(), "children of a frozen composite are left alone")
	})

	t.Run("frozen series", func(t *testing.T) {
		s := NewSeries("s")
		s.AddToStack(NewFullyConnected("f", 2, 2, TypeRelu))
		s.InitWeights(0.1, random.New(1))
		s.layer.SetEnableTraining(TrainingDisabled)
		assert.False(t, s.SetupNeedsBackprop(true))
		assert.False(t, s.NeedsBackprop())
		assert.True(t, s.Layers()[0].NeedsBackprop(), "children of a frozen composite are left alone")
	})

	t.Run("series chains", func(t *testing.T) {
		s := NewSeries("s")
		s.AddToStack(NewConvolve("first", 2, 0, 0))
		s.AddToStack(NewFullyConnected("f", 2, 2, TypeTanh))
		s.AddToStack(NewConvolve("last", 2, 0, 0))
		s.InitWeights(0.1, random.New(1))

		assert.True(t, s.SetupNeedsBackprop(false))
		assert.False(t, s.NeedsBackprop())
		assert.False(t, s.Layers()[0].NeedsBackprop())
		assert.False(t, s.Layers()[1].NeedsBackprop())
		assert.True(t, s.Layers()[2].NeedsBackprop())
	})
}

func TestPlumbing_UpdateWithLayerSpecificRates(t *testing.T) {
	p := NewParallel("p")
	p.AddToStack(NewConvolve("a", 1, 0, 0))
	p.AddToStack(NewConvolve("b", 1, 0, 0))
	p.AddToStack(NewConvolve("c", 1, 0, 0))
	p.SetNetworkFlags(FlagLayerSpecificLR)

	assert.Nil(t, p.LayerLearningRatePtr("1"))
	p.learningRates = []float32{0.1}
	p.Update(0.5, 0.9, 1)
	assert.Equal(t, []float32{0.1, 0.1, 0.1}, p.LearningRates(), "a missing rate inherits the rate in effect")

	lr := p.LayerLearningRatePtr("2")
	require.NotNil(t, lr)
	*lr = 0.25
	assert.True(t, p.ScaleLayerLearningRate("2", 2))
	assert.InDelta(t, 0.5, p.LearningRates()[2], 1e-7)
	assert.False(t, p.ScaleLayerLearningRate("9", 2))

	plain := NewParallel("plain")
	plain.AddToStack(NewConvolve("a", 1, 0, 0))
	plain.Update(0.5, 0.9, 1)
	assert.Empty(t, plain.LearningRates())
}

func TestPlumbing_UpdateUsesChildRate(t *testing.T) {
	newNet := func() (*Series, *FullyConnected) {
		fc := NewFullyConnected("f", 1, 1, TypeLinear)
		s := NewSeries("s")
		s.AddToStack(fc)
		s.SetNetworkFlags(FlagLayerSpecificLR)
		s.InitWeights(0.5, random.New(1))
		return s, fc
	}
	step := func(s *Series) {
		forward(s, networkio.FromRows([][]float64{{1}}))
		backward(s, networkio.FromRows([][]float64{{1}}))
		s.Update(1, 0, 1)
	}

	s, fc := newNet()
	s.learningRates = []float32{0}
	before := fc.Weights().At(0, 0)
	step(s)
	assert.Equal(t, before, fc.Weights().At(0, 0), "a zero layer rate freezes the layer")

	s, fc = newNet()
	before = fc.Weights().At(0, 0)
	step(s)
	assert.InDelta(t, before+1, fc.Weights().At(0, 0), 1e-12)
	assert.Equal(t, []float32{1}, s.LearningRates())

	s, fc = newNet()
	before = fc.Weights().At(0, 0)
	fc.SetEnableTraining(TrainingDisabled)
	step(s)
	assert.Equal(t, before, fc.Weights().At(0, 0), "frozen children are not updated")
}

func TestPlumbing_CountAlternators(t *testing.T) {
	var counts Alternators
	assert.Panics(t, func() { buildTree().CountAlternators(NewParallel("p"), &counts) })

	short := NewSeries("root")
	short.AddToStack(NewConvolve("in", 2, 0, 0))
	assert.Panics(t, func() { buildTree().CountAlternators(short, &counts) })

	a, b := buildTree(), buildTree()
	a.InitWeights(0.1, random.New(1))
	b.InitWeights(0.1, random.New(1))
	assert.NotPanics(t, func() { a.CountAlternators(b, &counts) })
	assert.Equal(t, Alternators{}, counts)
}
