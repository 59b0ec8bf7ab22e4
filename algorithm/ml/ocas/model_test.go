package ocas

import (
	"testing"

	"github.com/wyfcoding/ocas/algorithm/ml/features"
	"github.com/wyfcoding/ocas/xerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelScoring(t *testing.T) {
	m := &Model{W: []float64{1, -2}, Bias: 0.5, UseBias: true}

	s, err := m.ScoreDense([]float64{3, 1})
	require.NoError(t, err)
	assert.Equal(t, 1.5, s)

	label, err := m.Predict([]float64{0, 1})
	require.NoError(t, err)
	assert.Equal(t, -1.0, label)

	label, err = m.Predict([]float64{0, 0.25})
	require.NoError(t, err)
	assert.Equal(t, 1.0, label)

	_, err = m.ScoreDense([]float64{1})
	require.ErrorIs(t, err, xerrors.ErrDimMismatch)

	m.UseBias = false
	s, err = m.ScoreDense([]float64{3, 1})
	require.NoError(t, err)
	assert.Equal(t, 1.0, s)
}

func TestModelApply(t *testing.T) {
	f, err := features.NewDenseFeatures([][]float64{{1, 0}, {0, 1}, {1, 1}, {2, -1}, {-1, -1}})
	require.NoError(t, err)
	m := &Model{W: []float64{2, 1}, Bias: -1, UseBias: true}

	out, err := m.Apply(f, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 2, 2, -4}, out)

	margins, err := m.Margins(f, features.LabelSlice{1, -1, 1, -1, -1}, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 2, -2, 4}, margins)

	wide := &Model{W: []float64{1, 2, 3}}
	_, err = wide.Apply(f, 1)
	require.ErrorIs(t, err, xerrors.ErrDimMismatch)
}
