package ocas

import (
	"math/rand/v2"
	"testing"

	amath "github.com/wyfcoding/ocas/algorithm/math"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newCut(dense []float64, bias float64, iter int) *Cut {
	return &Cut{Vec: amath.SparseFromDense(dense), Bias: bias, Offset: 1, Size: 1, Iter: iter}
}

func requireGram(t *testing.T, s *CutStore) {
	t.Helper()
	for i := range s.Len() {
		for j := range s.Len() {
			want := s.Cut(i).Vec.DotSparse(s.Cut(j).Vec)
			if s.useBias {
				want += s.Cut(i).Bias * s.Cut(j).Bias
			}
			require.InDelta(t, want, s.At(i, j), 1e-12, "H[%d][%d]", i, j)
			require.Equal(t, s.At(i, j), s.At(j, i))
		}
	}
}

func TestCutStoreGramGrows(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	s := NewCutStore(40, true)
	for k := range 25 {
		d := make([]float64, 6)
		for i := range d {
			if rng.Float64() < 0.5 {
				d[i] = rng.NormFloat64()
			}
		}
		_, evicted := s.Add(newCut(d, rng.NormFloat64(), k+1), d)
		require.False(t, evicted)
	}
	assert.Equal(t, 25, s.Len())
	r, c := s.Dims()
	assert.Equal(t, 25, r)
	assert.Equal(t, 25, c)
	requireGram(t, s)

	var sym mat.Symmetric = s
	assert.Equal(t, 25, sym.SymmetricDim())
	assert.Panics(t, func() { s.At(25, 0) })
}

func TestCutStoreEvictsSmallestAlpha(t *testing.T) {
	s := NewCutStore(3, false)
	for k := range 3 {
		d := []float64{float64(k + 1), 1}
		s.Add(newCut(d, 0, k+1), d)
	}
	copy(s.Alpha(), []float64{0.3, 0, 0.7})

	d := []float64{0, 2}
	ev, evicted := s.Add(newCut(d, 0, 4), d)
	require.True(t, evicted)
	assert.Equal(t, 2, ev.Cut.Iter)
	assert.False(t, ev.Forced)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []float64{0.3, 0.7, 0}, s.Alpha())
	assert.Equal(t, 1, s.Cut(0).Iter)
	assert.Equal(t, 3, s.Cut(1).Iter)
	assert.Equal(t, 4, s.Cut(2).Iter)
	requireGram(t, s)

	// 对偶系数全部为正时被逐出的割平面仍在使用中
	copy(s.Alpha(), []float64{0.2, 0.5, 0.3})
	ev, evicted = s.Add(newCut(d, 0, 5), d)
	require.True(t, evicted)
	assert.True(t, ev.Forced)
	assert.Equal(t, 0.2, ev.Alpha)
	assert.Equal(t, 1, ev.Cut.Iter)
	requireGram(t, s)

	total, forced := s.Evictions()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, forced)
}

func TestCutStoreTieEvictsOldest(t *testing.T) {
	s := NewCutStore(2, false)
	for k := range 2 {
		d := []float64{1, float64(k)}
		s.Add(newCut(d, 0, k+1), d)
	}
	d := []float64{3, 3}
	ev, evicted := s.Add(newCut(d, 0, 3), d)
	require.True(t, evicted)
	assert.Equal(t, 1, ev.Cut.Iter)
	assert.LessOrEqual(t, s.Len(), s.Cap())
}

func TestCutStoreCapacityOne(t *testing.T) {
	s := NewCutStore(1, true)
	for k := range 5 {
		d := []float64{float64(k), 1}
		s.Add(newCut(d, 1, k+1), d)
		require.Equal(t, 1, s.Len())
		requireGram(t, s)
	}
	assert.Equal(t, 5, s.Cut(0).Iter)
}

func TestCutStoreCompose(t *testing.T) {
	s := NewCutStore(4, true)
	a := []float64{1, 0, 2}
	b := []float64{0, 3, 0}
	s.Add(newCut(a, 1, 1), a)
	s.Add(newCut(b, -2, 2), b)
	copy(s.Alpha(), []float64{0.5, 0.25})

	w := []float64{9, 9, 9}
	bias := s.Compose(w)
	assert.Equal(t, []float64{0.5, 0.75, 1}, w)
	assert.Equal(t, 0.0, bias)
	assert.Equal(t, 3, s.NNZ())
	assert.Equal(t, []float64{1, 1}, s.Offsets())
}
