// Package decay implements the Bateman-equation matrix-exponential solver
// (spec.md §4.1, C3) used to evolve an isotopic composition forward in
// time: dN/dt = A*N, where A's diagonal holds -λ for each tracked parent and
// its off-diagonals hold branching_ratio*λ into each daughter.
//
// The algorithm is the uniformized Taylor series from the source project's
// UniformTaylor::MatrixExpSolver: let α = max|diag(A)|, B = A + αI (so B is
// non-negative), then
//
//	exp(tA)v = e^(-αt) * Σ_{k=0..K} (tB)^k v / k!
//
// with K chosen so the tail drops below a relative tolerance. The matrix
// algebra is delegated to gonum's mat package.
package decay

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cyclus/fuelsim/internal/engineerr"
	"github.com/cyclus/fuelsim/internal/nuclide"
)

// DefaultTolerance is the relative tolerance on the truncated Taylor series
// used when the caller does not specify one.
const DefaultTolerance = 1e-3

// batchScale is the nominal atom-count batch the source fractions are
// scaled into before solving, to avoid floating-point underflow on trace
// quantities (spec.md §4.1).
const batchScale = 1e24

// Solver is a composition.Decayer backed by the uniformized Taylor series.
type Solver struct {
	// Tolerance is the relative accuracy target for the truncated series.
	// Zero means DefaultTolerance.
	Tolerance float64
}

// NewSolver returns a Solver with the default tolerance.
func NewSolver() *Solver { return &Solver{Tolerance: DefaultTolerance} }

// Decay evolves massFrac forward by dt seconds and returns the resulting
// mass-fraction map (unnormalized; the caller renormalizes via
// composition.CreateFromMass). Nuclides absent from mt.DecayChildren are
// treated as stable (λ=0) per spec.md §4.1.
func (s *Solver) Decay(massFrac map[nuclide.ID]float64, dt float64, mt nuclide.MassTable) (map[nuclide.ID]float64, error) {
	if dt <= 0 {
		return massFrac, nil
	}
	tol := s.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	// Convert mass fractions to atom counts (nominal batch) and build the
	// parent/daughter index.
	index := map[nuclide.ID]int{}
	var ids []nuclide.ID
	for id := range massFrac {
		if _, ok := index[id]; !ok {
			index[id] = len(ids)
			ids = append(ids, id)
		}
	}
	lambda := make([]float64, len(ids))
	atoms := make([]float64, len(ids))
	for i, id := range ids {
		amu, err := mt.AtomicMass(id)
		if err != nil {
			return nil, err
		}
		if amu <= 0 {
			return nil, engineerr.Value("decay: non-positive atomic mass for %s", id)
		}
		atoms[i] = massFrac[id] * batchScale / amu

		half, err := mt.HalfLife(id)
		if err != nil {
			return nil, err
		}
		if math.IsInf(half, 1) || half <= 0 {
			lambda[i] = 0
			continue
		}
		lambda[i] = math.Ln2 / half
	}

	// Discover daughters, extending the index with any nuclide reachable by
	// decay that was not already present in the source composition.
	type branch struct{ from, to int; frac float64 }
	var branches []branch
	frontier := append([]nuclide.ID{}, ids...)
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		parentIdx := index[id]
		if lambda[parentIdx] == 0 {
			continue
		}
		children, err := mt.DecayChildren(id)
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			lambda[parentIdx] = 0
			continue
		}
		for _, ch := range children {
			ci, ok := index[ch.Child]
			if !ok {
				ci = len(ids)
				index[ch.Child] = ci
				ids = append(ids, ch.Child)
				atoms = append(atoms, 0)
				half, err := mt.HalfLife(ch.Child)
				if err != nil {
					return nil, err
				}
				childLambda := 0.0
				if !math.IsInf(half, 1) && half > 0 {
					childLambda = math.Ln2 / half
				}
				lambda = append(lambda, childLambda)
				frontier = append(frontier, ch.Child)
			}
			branches = append(branches, branch{from: parentIdx, to: ci, frac: ch.BranchFrac})
		}
	}

	n := len(ids)
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		a.Set(i, i, -lambda[i])
	}
	for _, b := range branches {
		a.Set(b.to, b.from, a.At(b.to, b.from)+b.frac*lambda[b.from])
	}

	x0 := mat.NewVecDense(n, atoms)
	result, err := MatrixExpSolve(a, x0, dt, tol)
	if err != nil {
		return nil, err
	}

	out := make(map[nuclide.ID]float64, n)
	for i, id := range ids {
		atomCount := result.AtVec(i)
		if atomCount <= 0 {
			continue
		}
		amu, err := mt.AtomicMass(id)
		if err != nil {
			return nil, err
		}
		out[id] = atomCount * amu / batchScale
	}
	if len(out) == 0 {
		return nil, engineerr.Value("decay: result composition is empty")
	}
	return out, nil
}

// MatrixExpSolve computes exp(t*A)*x0 via the uniformized Taylor series,
// exposed standalone so decay.Solver's matrix-building logic can be tested
// against the algorithm directly.
func MatrixExpSolve(a *mat.Dense, x0 *mat.VecDense, t, tol float64) (*mat.VecDense, error) {
	n, _ := a.Dims()
	alpha := maxAbsDiag(a)
	if alpha == 0 {
		// No decay at all: identity evolution.
		out := mat.NewVecDense(n, nil)
		out.CopyVec(x0)
		return out, nil
	}

	alphaT := alpha * t
	if alphaT > 700 {
		return nil, engineerr.Value("decay: alpha*t=%.3g exceeds solver numeric range", alphaT)
	}

	b := mat.NewDense(n, n, nil)
	b.Add(a, eye(n, alpha))

	k := maxTerms(alphaT, tol)

	// Term-by-term accumulation of Σ (tB)^k x0 / k!: each term is the
	// previous one multiplied by tB/k.
	term := mat.NewVecDense(n, nil)
	term.CopyVec(x0)
	sum := mat.NewVecDense(n, nil)
	sum.CopyVec(x0)
	for i := 1; i <= k; i++ {
		next := mat.NewVecDense(n, nil)
		next.MulVec(b, term)
		next.ScaleVec(t/float64(i), next)
		sum.AddVec(sum, next)
		term = next
	}
	sum.ScaleVec(math.Exp(-alphaT), sum)
	return sum, nil
}

func maxAbsDiag(a *mat.Dense) float64 {
	n, _ := a.Dims()
	var max float64
	for i := 0; i < n; i++ {
		if v := math.Abs(a.At(i, i)); v > max {
			max = v
		}
	}
	return max
}

func eye(n int, scale float64) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, scale)
	}
	return m
}

// maxTerms computes the number of Taylor terms needed for the truncated
// tail to fall below tol, via the Poisson-tail bound used by the source
// solver's MaxNumTerms.
func maxTerms(alphaT, tol float64) int {
	if alphaT <= 0 {
		return 1
	}
	// Walk k up from 0 over the implied Poisson(alphaT) weights until k is
	// past the mean alphaT and the term magnitude (relative to its running
	// sum) drops below tol.
	term := math.Exp(-alphaT)
	sum := term
	k := 0
	for k < 10000 {
		k++
		term *= alphaT / float64(k)
		sum += term
		if term/sum < tol && float64(k) > alphaT {
			break
		}
	}
	return k
}
