package ocas

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func randomSegment(rng *rand.Rand, n, dim int) *segment {
	w0 := make([]float64, dim)
	w1 := make([]float64, dim)
	for i := range dim {
		w0[i] = rng.NormFloat64()
		w1[i] = rng.NormFloat64()
	}
	seg := &segment{
		sqNorm0: floats.Dot(w0, w0),
		dot01:   floats.Dot(w0, w1),
		sqNorm1: floats.Dot(w1, w1),
		m0:      make([]float64, n),
		m1:      make([]float64, n),
		cost:    make([]float64, n),
	}
	for i := range n {
		seg.m0[i] = 2 * rng.NormFloat64()
		seg.m1[i] = 2 * rng.NormFloat64()
		seg.cost[i] = 0.1 + rng.Float64()
	}
	return seg
}

func TestMinimizeMatchesGrid(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for trial := range 50 {
		seg := randomSegment(rng, 1+rng.IntN(40), 1+rng.IntN(5))
		tStar := seg.minimize()
		require.GreaterOrEqual(t, tStar, 0.0)
		require.LessOrEqual(t, tStar, 1.0)

		best := seg.objective(tStar)
		const steps = 4000
		for k := 0; k <= steps; k++ {
			tk := float64(k) / steps
			require.LessOrEqual(t, best, seg.objective(tk)+1e-9, "trial %d: F(%v)=%v < F(%v)=%v", trial, tk, seg.objective(tk), tStar, best)
		}
	}
}

func TestMinimizeEdgeCases(t *testing.T) {
	// 候选点与当前点重合，且没有活跃的铰链项：导数恒为 0
	seg := &segment{sqNorm0: 1, dot01: 1, sqNorm1: 1, m0: []float64{2}, m1: []float64{2}, cost: []float64{1}}
	assert.Equal(t, 0.0, seg.minimize())

	// 正则项不变，铰链项线性下降直到 t=1
	seg = &segment{sqNorm0: 1, dot01: 1, sqNorm1: 1, m0: []float64{-1}, m1: []float64{0}, cost: []float64{1}}
	assert.Equal(t, 1.0, seg.minimize())

	// 只有正则项：最小点在 t = ‖w₀‖² / ‖w₀ − w₁‖²
	seg = &segment{sqNorm0: 1, dot01: 0, sqNorm1: 1, m0: []float64{5}, m1: []float64{5}, cost: []float64{1}}
	assert.InDelta(t, 0.5, seg.minimize(), 1e-15)

	// 铰链断点恰好落在最小点上
	seg = &segment{sqNorm0: 0, dot01: 0, sqNorm1: 1, m0: []float64{0}, m1: []float64{4}, cost: []float64{1}}
	assert.InDelta(t, 0.25, seg.minimize(), 1e-15)
}

func TestSortBreakpointsTieBreak(t *testing.T) {
	bps := []breakpoint{
		{t: 0.5, idx: 3},
		{t: 0.2, idx: 9},
		{t: 0.5, idx: 1},
		{t: 0.2, idx: 4},
	}
	sortBreakpoints(bps)
	got := make([]int, len(bps))
	for i, bp := range bps {
		got[i] = bp.idx
	}
	assert.Equal(t, []int{4, 9, 1, 3}, got)
}

func TestSteppers(t *testing.T) {
	seg := &segment{sqNorm0: 1, dot01: 0, sqNorm1: 1, m0: []float64{5}, m1: []float64{5}, cost: []float64{1}}

	tBest, tCut := newStepper(MethodOCAS, 0.1).step(seg, seg.objective(0))
	assert.InDelta(t, 0.5, tBest, 1e-15)
	assert.InDelta(t, 0.55, tCut, 1e-15)

	// F(1) = F(0)，BMRM 不移动最优点，但割平面仍取在模型解处
	tBest, tCut = newStepper(MethodBMRM, 0.1).step(seg, seg.objective(0))
	assert.Equal(t, 0.0, tBest)
	assert.Equal(t, 1.0, tCut)

	tBest, _ = newStepper(MethodBMRM, 0).step(seg, seg.objective(0)+1)
	assert.Equal(t, 1.0, tBest)
}
