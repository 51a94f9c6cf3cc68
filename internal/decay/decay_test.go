package decay

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/cyclus/fuelsim/internal/nuclide"
)

func TestMatrixExpSolveNoDecayIsIdentity(t *testing.T) {
	a := mat.NewDense(2, 2, nil) // all-zero: stable nuclides
	x0 := mat.NewVecDense(2, []float64{3, 4})
	out, err := MatrixExpSolve(a, x0, 100, DefaultTolerance)
	require.NoError(t, err)
	require.InDelta(t, 3, out.AtVec(0), 1e-9)
	require.InDelta(t, 4, out.AtVec(1), 1e-9)
}

func TestMatrixExpSolveSingleDecayMatchesExponential(t *testing.T) {
	lambda := 0.1
	a := mat.NewDense(1, 1, []float64{-lambda})
	x0 := mat.NewVecDense(1, []float64{1000})
	out, err := MatrixExpSolve(a, x0, 5, 1e-6)
	require.NoError(t, err)
	want := 1000 * math.Exp(-lambda*5)
	require.InDelta(t, want, out.AtVec(0), want*1e-3)
}

func TestStableNuclideIsUnchangedByDecay(t *testing.T) {
	mt := nuclide.DefaultTable()
	u238, err := nuclide.FromElemMass("U", 238)
	require.NoError(t, err)
	s := NewSolver()
	out, err := s.Decay(map[nuclide.ID]float64{u238: 1.0}, 3600, mt)
	require.NoError(t, err)
	require.InDelta(t, 1.0, out[u238], 1e-9)
}

func TestMassConservedAcrossDecayChain(t *testing.T) {
	mt := nuclide.DefaultTable()
	pu241, err := nuclide.FromElemMass("Pu", 241)
	require.NoError(t, err)
	s := NewSolver()

	in := map[nuclide.ID]float64{pu241: 1.0}
	out, err := s.Decay(in, 20*365.25*86400, mt) // ~20 years, comparable to the 14.33y half-life
	require.NoError(t, err)

	var totalIn, totalOut float64
	for id, f := range in {
		amu, _ := mt.AtomicMass(id)
		totalIn += f * amu
	}
	for id, f := range out {
		amu, _ := mt.AtomicMass(id)
		totalOut += f * amu
	}
	// The series is truncated at the solver's relative tolerance, so mass is
	// conserved to within that tolerance.
	require.InEpsilon(t, totalIn, totalOut, DefaultTolerance)

	am241, _ := nuclide.FromElemMass("Am", 241)
	require.Greater(t, out[am241], 0.0)
	require.Less(t, out[pu241], in[pu241])
}

func TestDecaySumOverMultipleIntervalsEqualsOneBigInterval(t *testing.T) {
	mt := nuclide.DefaultTable()
	pu241, err := nuclide.FromElemMass("Pu", 241)
	require.NoError(t, err)
	s := NewSolver()

	step := 5 * 365.25 * 86400.0
	comp := map[nuclide.ID]float64{pu241: 1.0}
	var err2 error
	for i := 0; i < 3; i++ {
		comp, err2 = s.Decay(comp, step, mt)
		require.NoError(t, err2)
	}

	direct, err := s.Decay(map[nuclide.ID]float64{pu241: 1.0}, 3*step, mt)
	require.NoError(t, err)

	require.InDelta(t, direct[pu241], comp[pu241], 1e-4)
}
