package math

import (
	"testing"

	"github.com/wyfcoding/ocas/xerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSparseVectorValidation(t *testing.T) {
	_, err := NewSparseVector([]int{0, 2}, []float64{1})
	require.ErrorIs(t, err, xerrors.ErrDimMismatch)

	_, err = NewSparseVector([]int{2, 2}, []float64{1, 1})
	require.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = NewSparseVector([]int{-1}, []float64{1})
	require.ErrorIs(t, err, xerrors.ErrInvalidInput)

	v, err := NewSparseVector([]int{1, 4}, []float64{2, -3})
	require.NoError(t, err)
	assert.Equal(t, 2, v.NNZ())
	assert.Equal(t, 4, v.MaxIndex())
}

func TestSparseVectorOps(t *testing.T) {
	v, err := NewSparseVector([]int{0, 3}, []float64{2, -1})
	require.NoError(t, err)
	dense := []float64{1, 5, 5, 4}

	assert.Equal(t, -2.0, v.Dot(dense))
	assert.Equal(t, 5.0, v.SquaredNorm())
	back := make([]float64, 4)
	v.AddTo(1, back)
	assert.Equal(t, []float64{2, 0, 0, -1}, back)

	v.AddTo(2, dense)
	assert.Equal(t, []float64{5, 5, 5, 2}, dense)

	o := SparseFromDense([]float64{0, 7, 0, 3})
	assert.Equal(t, 2, o.NNZ())
	idx, val := o.At(1)
	assert.Equal(t, 3, idx)
	assert.Equal(t, 3.0, val)
	assert.Equal(t, -3.0, v.DotSparse(o))

	empty := SparseFromDense(make([]float64, 3))
	assert.Equal(t, 0, empty.NNZ())
	assert.Equal(t, -1, empty.MaxIndex())
}

func TestInterpolate(t *testing.T) {
	dst := []float64{1, 2}
	Interpolate(dst, []float64{3, 6}, 0.5)
	assert.InDeltaSlice(t, []float64{2, 4}, dst, 1e-15)

	Interpolate(dst, []float64{9, 9}, 0)
	assert.Equal(t, []float64{2, 4}, dst)

	Interpolate(dst, []float64{9, 9}, 1)
	assert.Equal(t, []float64{9, 9}, dst)

	a, b := []float64{1, 0}, []float64{0, 2}
	want := 0.25*1 + 0.25*4
	assert.InDelta(t, want, InterpolatedSqNorm(SqNorm(a), 0, SqNorm(b), 0.5), 1e-15)
}
