package qp

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/wyfcoding/ocas/xerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func objective(h mat.Symmetric, b, alpha []float64) float64 {
	x := mat.NewVecDense(len(alpha), append([]float64(nil), alpha...))
	var q float64
	for i, a := range alpha {
		q -= b[i] * a
	}
	return 0.5*mat.Inner(x, h, x) + q
}

func TestSolveSimplexActiveConstraint(t *testing.T) {
	h := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	b := []float64{1, 1}
	alpha := make([]float64, 2)

	res, err := SolveSimplex(h, b, alpha, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, ExitConverged, res.Exit)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, alpha, 1e-9)
	assert.InDelta(t, -0.75, res.Objective, 1e-9)
	assert.InDelta(t, 0, res.Slack, 1e-12)
}

func TestSolveSimplexInteriorAndZero(t *testing.T) {
	alpha := []float64{0}
	res, err := SolveSimplex(mat.NewSymDense(1, []float64{4}), []float64{1}, alpha, DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 0.25, alpha[0], 1e-9)
	assert.InDelta(t, -0.125, res.Objective, 1e-9)
	assert.InDelta(t, 0.75, res.Slack, 1e-9)

	alpha = []float64{0.5}
	res, err = SolveSimplex(mat.NewSymDense(1, []float64{1}), []float64{-1}, alpha, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0.0, alpha[0])
	assert.InDelta(t, 0, res.Objective, 1e-12)
}

func TestSolveSimplexWarmStartProjection(t *testing.T) {
	h := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	alpha := []float64{0.9, 0.9}
	_, err := SolveSimplex(h, []float64{1, 1}, alpha, DefaultOptions())
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, alpha, 1e-9)
}

func TestSolveSimplexMaxIter(t *testing.T) {
	h := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	alpha := make([]float64, 2)
	res, err := SolveSimplex(h, []float64{1, 1}, alpha, Options{MaxIter: 1, TolAbs: 1e-14, TolRel: 1e-9})
	require.NoError(t, err)
	assert.Equal(t, ExitMaxIter, res.Exit)
	assert.LessOrEqual(t, alpha[0]+alpha[1], 1.0)
}

func TestSolveSimplexErrors(t *testing.T) {
	h := mat.NewSymDense(2, []float64{-1, 0, 0, 1})
	_, err := SolveSimplex(h, []float64{1, 1}, make([]float64, 2), DefaultOptions())
	require.ErrorIs(t, err, xerrors.ErrNumericalFailure)

	h = mat.NewSymDense(1, []float64{math.NaN()})
	_, err = SolveSimplex(h, []float64{1}, make([]float64, 1), DefaultOptions())
	require.ErrorIs(t, err, xerrors.ErrNumericalFailure)

	_, err = SolveSimplex(mat.NewSymDense(2, nil), []float64{1}, make([]float64, 2), DefaultOptions())
	require.ErrorIs(t, err, xerrors.ErrDimMismatch)
}

// 随机 Gram 矩阵上，解不劣于可行域内的任何随机点。
func TestSolveSimplexRandomGram(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	const n, dim = 6, 4

	vecs := mat.NewDense(n, dim, nil)
	for i := range n {
		for j := range dim {
			vecs.Set(i, j, rng.NormFloat64())
		}
	}
	h := mat.NewSymDense(n, nil)
	h.SymOuterK(1, vecs)
	b := make([]float64, n)
	for i := range b {
		b[i] = 2 * rng.Float64()
	}

	alpha := make([]float64, n)
	res, err := SolveSimplex(h, b, alpha, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, ExitConverged, res.Exit)

	var sum float64
	for _, a := range alpha {
		require.GreaterOrEqual(t, a, 0.0)
		sum += a
	}
	require.LessOrEqual(t, sum, 1+1e-12)
	assert.InDelta(t, objective(h, b, alpha), res.Objective, 1e-9)

	for range 2000 {
		p := make([]float64, n)
		var s float64
		for i := range p {
			p[i] = rng.ExpFloat64()
			s += p[i]
		}
		scale := rng.Float64() / s
		for i := range p {
			p[i] *= scale
		}
		require.GreaterOrEqual(t, objective(h, b, p), res.Objective-1e-8)
	}
}

// assertOptimal 检查收敛标志、间隙，以及解不劣于可行域的每个顶点（含原点）。
func assertOptimal(t *testing.T, h mat.Symmetric, b, alpha []float64, res Result) {
	t.Helper()
	opts := DefaultOptions()
	require.Equal(t, ExitConverged, res.Exit, "gap %v after %d iterations", res.Gap, res.Iterations)
	assert.LessOrEqual(t, res.Gap, opts.TolAbs+opts.TolRel*math.Abs(res.Objective))

	var sum float64
	for _, a := range alpha {
		require.GreaterOrEqual(t, a, 0.0)
		sum += a
	}
	require.LessOrEqual(t, sum, 1+1e-12)
	assert.InDelta(t, objective(h, b, alpha), res.Objective, 1e-9*math.Max(1, math.Abs(res.Objective)))

	assert.LessOrEqual(t, res.Objective, 0.0)
	for i := range b {
		e := make([]float64, len(b))
		e[i] = 1
		assert.LessOrEqual(t, res.Objective, objective(h, b, e)+1e-9)
	}
}

// 对角线从 1 量级跨到 1e9 量级的 Gram 矩阵。
func TestSolveSimplexIllConditioned(t *testing.T) {
	for seed := uint64(1); seed <= 8; seed++ {
		rng := rand.New(rand.NewPCG(seed, 3))
		const n, dim = 6, 8

		vecs := mat.NewDense(n, dim, nil)
		for i := range n {
			scale := math.Pow(10, 4.5*float64(i)/float64(n-1))
			for j := range dim {
				vecs.Set(i, j, scale*(2*rng.Float64()-1))
			}
		}
		h := mat.NewSymDense(n, nil)
		h.SymOuterK(1, vecs)
		b := make([]float64, n)
		for i := range b {
			b[i] = 0.5 + float64(n)*rng.Float64()
		}
		require.Less(t, h.At(0, 0), 10.0)
		require.Greater(t, h.At(n-1, n-1), 1e8)

		alpha := make([]float64, n)
		res, err := SolveSimplex(h, b, alpha, DefaultOptions())
		require.NoError(t, err)
		assertOptimal(t, h, b, alpha, res)
	}
}

// 列数多于维数（奇异）且各维尺度相差 1e4，对应割平面缓冲区的典型形态。
func TestSolveSimplexRankDeficientScaled(t *testing.T) {
	for seed := uint64(1); seed <= 8; seed++ {
		rng := rand.New(rand.NewPCG(seed, 5))
		const n, dim = 12, 4

		vecs := mat.NewDense(n, dim, nil)
		for j := range dim {
			scale := math.Pow(10, 4*float64(j)/float64(dim-1)-2)
			for i := range n {
				vecs.Set(i, j, scale*(2*rng.Float64()-1))
			}
		}
		h := mat.NewSymDense(n, nil)
		h.SymOuterK(1, vecs)
		b := make([]float64, n)
		for i := range b {
			b[i] = 1 + 3*rng.Float64()
		}

		alpha := make([]float64, n)
		res, err := SolveSimplex(h, b, alpha, DefaultOptions())
		require.NoError(t, err)
		assertOptimal(t, h, b, alpha, res)
	}
}

func TestPolishKeepsFeasibility(t *testing.T) {
	h := mat.NewSymDense(3, []float64{
		1, 0, 0,
		0, 1e6, 0,
		0, 0, 1e-3,
	})
	b := []float64{1, 1, 1e-4}
	alpha := []float64{0.3, 0.1, 0.2}
	before := quadratic(h, b, alpha)

	slack, ok := polish(h, b, alpha, 0.4)
	require.True(t, ok)
	assert.LessOrEqual(t, quadratic(h, b, alpha), before)
	var sum float64
	for _, a := range alpha {
		assert.GreaterOrEqual(t, a, 0.0)
		sum += a
	}
	assert.InDelta(t, 1, sum+slack, 1e-12)

	res, err := SolveSimplex(h, b, alpha, DefaultOptions())
	require.NoError(t, err)
	assertOptimal(t, h, b, alpha, res)
}
