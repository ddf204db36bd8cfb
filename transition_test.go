package spinbath

import (
	"fmt"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fumin/spinbath/mat"
	"github.com/fumin/spinbath/spin"
)

func TestTransitionCounts(t *testing.T) {
	t.Parallel()
	cfg := ytterbium()
	cfg.Neighbors = cfg.Neighbors[1:]
	s := MustNew(cfg)
	require.NoError(t, s.SetField(Field{Magnitude: 0.02, Theta: 0.5}))

	optical, err := s.Transitions(Optical, false)
	require.NoError(t, err)
	require.Len(t, optical, 8*8)
	for _, tr := range optical {
		require.Nil(t, tr.Strength)
	}

	for _, kind := range []TransitionType{SpinGround, SpinExcited} {
		spins, err := s.Transitions(kind, true)
		require.NoError(t, err)
		require.Len(t, spins, 8*7/2)
		for _, tr := range spins {
			require.Less(t, tr.From, tr.To)
			require.GreaterOrEqual(t, tr.Energy, 0.0)
			require.Equal(t, [3]float64{1, 1, 1}, *tr.Strength)
		}
	}

	_, err = s.Transitions("microwave", false)
	require.ErrorIs(t, err, ErrInvalidTransitionType)
	_, err = s.SpinTransitions(Manifold(5))
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestOpticalStrength(t *testing.T) {
	t.Parallel()
	s := MustNew(Config{
		ElectronSpin: 0.5,
		G:            [2]*r3.Mat{Ground: isotropic(2), Excited: isotropic(2)},
	})
	require.NoError(t, s.UpdateZeeman(1, 0, 0))

	transitions := s.OpticalTransitions(true)
	require.Len(t, transitions, 4)
	for _, tr := range transitions {
		// Level 0 is spin down and level 1 spin up in both manifolds.
		expected := []float64{0, 0, 1}
		if tr.From != tr.To {
			expected = []float64{1, 1, 0}
		}
		require.InDeltaSlice(t, expected, tr.Strength[:], 1e-9, "%s", tr)

		e, err := s.Energies(Excited)
		require.NoError(t, err)
		g, err := s.Energies(Ground)
		require.NoError(t, err)
		require.InDelta(t, e[tr.To]-g[tr.From], tr.Energy, 1e-12)
	}
}

func TestBranchingRatio(t *testing.T) {
	t.Parallel()
	require.Equal(t, 1.0, BranchingRatio(1))
	require.Equal(t, 0.0, BranchingRatio(0))
	require.Equal(t, 0.0, BranchingRatio(math.Inf(1)))
	for _, r := range []float64{1e-9, 0.01, 0.5, 0.999, 1.001, 2, 17, 1e9} {
		t.Run(fmt.Sprintf("%g", r), func(t *testing.T) {
			t.Parallel()
			rho := BranchingRatio(r)
			require.GreaterOrEqual(t, rho, 0.0)
			require.Less(t, rho, 1.0)
			// Swapping the two ground levels leaves the ratio unchanged.
			require.InDelta(t, rho, BranchingRatio(1/r), 1e-12)
		})
	}
}

func TestBranchingContrast(t *testing.T) {
	t.Parallel()
	cfg := ytterbium()
	cfg.Neighbors = nil
	s := MustNew(cfg)
	require.NoError(t, s.SetField(Field{Magnitude: 0.01, Theta: 1.1, Phi: 0.3}))

	c, err := s.BranchingContrast(nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, c.Rho, 0.0)
	require.LessOrEqual(t, c.Rho, 1.0)
	require.InDelta(t, c.Upper/c.Lower, c.R, 1e-12)
	require.Len(t, c.GroundLower, 4)

	ground, err := s.Spectrum(Ground)
	require.NoError(t, err)
	require.Equal(t, ground.Vectors[1], c.GroundUpper)

	// Swapping the ground levels inverts R.
	swapped, err := s.BranchingContrast(&[3]int{1, 0, 0})
	require.NoError(t, err)
	require.InDelta(t, 1, c.R*swapped.R, 1e-9)
	require.InDelta(t, c.Rho, swapped.Rho, 1e-9)

	for _, levels := range [][3]int{{0, 4, 0}, {-1, 0, 0}, {0, 1, 4}} {
		_, err := s.BranchingContrast(&levels)
		require.ErrorIs(t, err, ErrInvalidLevel, "%v", levels)
	}
}

func TestBranchingContrastSpinFlip(t *testing.T) {
	t.Parallel()
	s := MustNew(Config{
		ElectronSpin: 0.5,
		G:            [2]*r3.Mat{Ground: isotropic(2), Excited: isotropic(2)},
	})
	require.NoError(t, s.UpdateZeeman(1, 0, 0))

	// 2Sx only connects opposite spins, so the lower ground level is dark.
	c, err := s.BranchingContrast(nil)
	require.NoError(t, err)
	require.InDelta(t, 1, c.Upper, 1e-9)
	require.InDelta(t, 0, c.Lower, 1e-9)
	require.InDelta(t, 0, c.Rho, 1e-9)
}

func TestBranchingContrastNeighbor(t *testing.T) {
	t.Parallel()
	cfg := ytterbium()
	cfg.Neighbors = cfg.Neighbors[:1]
	s := MustNew(cfg)
	require.NoError(t, s.SetField(Field{Magnitude: 0.1, Theta: 0.3}))
	require.Equal(t, 32, s.Space().Dim())

	c, err := s.BranchingContrast(nil)
	require.NoError(t, err)
	require.Len(t, c.GroundLower, 32)

	// 2Sx ⊗ 1_I ⊗ 1_V
	sx := spin.MustOperators(0.5).X.Clone()
	sx.Scale(2)
	sx.Kron(mat.COOIdentity(2))
	sx.Kron(mat.COOIdentity(8))
	upper := cmplx.Abs(sx.Quad(c.GroundUpper, c.ExcitedLower))
	lower := cmplx.Abs(sx.Quad(c.GroundLower, c.ExcitedLower))
	require.InDelta(t, upper*upper, c.Upper, 1e-12)
	require.InDelta(t, lower*lower, c.Lower, 1e-12)
	require.GreaterOrEqual(t, c.Rho, 0.0)
	require.LessOrEqual(t, c.Rho, 1.0)

	// With a single neighbor the operator is the x polarization of the optical dipole.
	require.InDelta(t, s.OpticalStrength(c.GroundUpper, c.ExcitedLower)[0], c.Upper, 1e-12)
}

func TestBranchingContrastNeighbors(t *testing.T) {
	t.Parallel()
	s := MustNew(ytterbium())
	require.Len(t, s.Sites(), 2)
	_, err := s.BranchingContrast(nil)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSuperhyperfineLevels(t *testing.T) {
	t.Parallel()
	cfg := ytterbium()
	cfg.Neighbors = cfg.Neighbors[1:]
	s := MustNew(cfg)
	require.NoError(t, s.SetField(Field{Magnitude: 0.3, Theta: 0.2}))

	for _, m := range Manifolds {
		t.Run(m.String(), func(t *testing.T) {
			t.Parallel()
			l, err := s.SuperhyperfineLevels(m)
			require.NoError(t, err)
			e, err := s.Energies(m)
			require.NoError(t, err)

			require.InDelta(t, -l.LowerNear0, l.UpperNear0, 1e-6)
			require.InDelta(t, l.UpperNear0-l.LowerNear0, l.GapNear0, 1e-6)
			require.InDelta(t, (e[1]-e[0])*1e6, l.GapNear0, 1e-6)
			require.GreaterOrEqual(t, l.GapNear0, 0.0)

			n := len(e)
			require.InDelta(t, -l.LowerNearTop, l.UpperNearTop, 1e-6)
			require.InDelta(t, (e[n-1]-e[n-2])*1e6, l.GapNearTop, 1e-6)
			require.Equal(t, l.GapNearTop, l.Values()[5])
		})
	}

	_, err := s.SuperhyperfineLevels(Manifold(3))
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestSuperhyperfineLevelsTooFew(t *testing.T) {
	t.Parallel()
	s := MustNew(Config{})
	_, err := s.SuperhyperfineLevels(Ground)
	require.ErrorIs(t, err, ErrInvalidLevel)
}
