package spinbath

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
)

// Transition is a transition between two eigenstates.
// For spin transitions From and To index the same manifold, for optical
// transitions From indexes the ground and To the excited manifold.
type Transition struct {
	// Energy in GHz.
	Energy float64
	// Strength is the squared dipole matrix element along x, y and z, nil if not computed.
	Strength *[3]float64
	From     int
	To       int
}

func (t Transition) String() string {
	if t.Strength == nil {
		return fmt.Sprintf("%d->%d %.9f", t.From, t.To, t.Energy)
	}
	return fmt.Sprintf("%d->%d %.9f %v", t.From, t.To, t.Energy, *t.Strength)
}

// TransitionType selects a family of transitions.
type TransitionType string

const (
	Optical     TransitionType = "optical"
	SpinGround  TransitionType = "spin_gs"
	SpinExcited TransitionType = "spin_es"
)

// Transitions returns the transitions of kind.
// computeStrengths only applies to optical transitions.
func (s *System) Transitions(kind TransitionType, computeStrengths bool) ([]Transition, error) {
	switch kind {
	case Optical:
		return s.OpticalTransitions(computeStrengths), nil
	case SpinGround:
		return s.SpinTransitions(Ground)
	case SpinExcited:
		return s.SpinTransitions(Excited)
	default:
		return nil, errors.Wrapf(ErrInvalidTransitionType, "%q", kind)
	}
}

// SpinTransitions returns every transition i<j within m.
// The dipole strengths of these transitions are not computed, each carries
// the placeholder strength (1, 1, 1).
func (s *System) SpinTransitions(m Manifold) ([]Transition, error) {
	if !m.valid() {
		return nil, errors.Wrapf(ErrInvalidState, "%s", m)
	}
	e := s.spectra[m].Energies
	transitions := make([]Transition, 0, len(e)*(len(e)-1)/2)
	for i := range e {
		for j := i + 1; j < len(e); j++ {
			transitions = append(transitions, Transition{
				Energy:   e[j] - e[i],
				Strength: &[3]float64{1, 1, 1},
				From:     i,
				To:       j,
			})
		}
	}
	return transitions, nil
}

// OpticalTransitions returns every transition from a ground to an excited state.
func (s *System) OpticalTransitions(computeStrengths bool) []Transition {
	ground, excited := s.spectra[Ground], s.spectra[Excited]
	transitions := make([]Transition, 0, ground.Len()*excited.Len())
	for g, eg := range ground.Energies {
		for e, ee := range excited.Energies {
			t := Transition{Energy: ee - eg, From: g, To: e}
			if computeStrengths {
				strength := s.OpticalStrength(ground.Vectors[g], excited.Vectors[e])
				t.Strength = &strength
			}
			transitions = append(transitions, t)
		}
	}
	return transitions
}

// OpticalStrength returns |⟨excited|2S_p|ground⟩|² for p = x, y, z.
func (s *System) OpticalStrength(ground, excited []complex128) [3]float64 {
	var strength [3]float64
	for p, op := range s.dipole {
		strength[p] = abs2(op.Quad(excited, ground))
	}
	return strength
}

// Contrast is the branching contrast of a Λ system formed by two ground
// states and one excited state.
type Contrast struct {
	// Upper is |⟨groundUpper|2Sx|excitedLower⟩|².
	Upper float64
	// Lower is |⟨groundLower|2Sx|excitedLower⟩|².
	Lower float64
	// R is Upper/Lower.
	R float64
	// Rho is the branching ratio 4R/(1+R)².
	Rho float64

	GroundLower  []complex128
	GroundUpper  []complex128
	ExcitedLower []complex128
}

// BranchingRatio returns 4r/(1+r)², which lies in [0, 1] for r >= 0 and is 1 at r = 1.
func BranchingRatio(r float64) float64 {
	if math.IsInf(r, 1) {
		return 0
	}
	return 4 * r / ((1 + r) * (1 + r))
}

// BranchingContrast computes the contrast of the ground levels
// levels[0], levels[1] through the excited level levels[2].
// A nil levels selects the two lowest ground states and the lowest excited state.
//
// The 2Sx operator acts on the electron and ion nucleus, and on the neighbor
// when there is exactly one. Two or more neighbors are not supported.
func (s *System) BranchingContrast(levels *[3]int) (Contrast, error) {
	lv := [3]int{0, 1, 0}
	if levels != nil {
		lv = *levels
	}
	ground, excited := s.spectra[Ground], s.spectra[Excited]
	for i, l := range lv {
		n := ground.Len()
		if i == 2 {
			n = excited.Len()
		}
		if l < 0 || l >= n {
			return Contrast{}, errors.Wrapf(ErrInvalidLevel, "level %d of %v, %d states", i, lv, n)
		}
	}

	n := nucleusIndex + 1
	if len(s.sites) == 1 {
		n = neighborIndex(0) + 1
	}
	scope := s.space.Scoped(n)
	if scope.Dim() != s.space.Dim() {
		return Contrast{}, errors.Wrapf(ErrDimensionMismatch, "2Sx on %d states, eigenvectors of %d, %d neighbors", scope.Dim(), s.space.Dim(), len(s.sites))
	}
	sx := s.electron.X.Clone()
	sx.Scale(2)
	op := scope.Embed(sx, electronIndex)

	c := Contrast{
		GroundLower:  append([]complex128(nil), ground.Vectors[lv[0]]...),
		GroundUpper:  append([]complex128(nil), ground.Vectors[lv[1]]...),
		ExcitedLower: append([]complex128(nil), excited.Vectors[lv[2]]...),
	}
	c.Upper = abs2(op.Quad(c.GroundUpper, c.ExcitedLower))
	c.Lower = abs2(op.Quad(c.GroundLower, c.ExcitedLower))
	c.R = c.Upper / c.Lower
	c.Rho = BranchingRatio(c.R)
	return c, nil
}

// SuperhyperfineLevels are the splittings, in kHz, of the lowest and of the
// highest pair of levels of a manifold. Each level is relative to the mean of its pair.
type SuperhyperfineLevels struct {
	LowerNear0   float64
	UpperNear0   float64
	GapNear0     float64
	LowerNearTop float64
	UpperNearTop float64
	GapNearTop   float64
}

func (l SuperhyperfineLevels) Values() [6]float64 {
	return [6]float64{l.LowerNear0, l.UpperNear0, l.GapNear0, l.LowerNearTop, l.UpperNearTop, l.GapNearTop}
}

// SuperhyperfineLevels returns the splittings of the two lowest and two highest levels of m.
func (s *System) SuperhyperfineLevels(m Manifold) (SuperhyperfineLevels, error) {
	if !m.valid() {
		return SuperhyperfineLevels{}, errors.Wrapf(ErrInvalidState, "%s", m)
	}
	l, err := Splittings(s.spectra[m].Energies)
	if err != nil {
		return SuperhyperfineLevels{}, errors.Wrapf(err, "%s", m)
	}
	return l, nil
}

// Splittings returns the superhyperfine levels of the ascending energies e.
func Splittings(e []float64) (SuperhyperfineLevels, error) {
	if len(e) < 2 {
		return SuperhyperfineLevels{}, errors.Wrapf(ErrInvalidLevel, "%d levels", len(e))
	}

	const toKHz = 1e6
	lo, hi := e[:2], e[len(e)-2:]
	loMean, hiMean := (lo[0]+lo[1])/2, (hi[0]+hi[1])/2
	l := SuperhyperfineLevels{
		LowerNear0:   (lo[0] - loMean) * toKHz,
		UpperNear0:   (lo[1] - loMean) * toKHz,
		GapNear0:     (lo[1] - lo[0]) * toKHz,
		LowerNearTop: (hi[0] - hiMean) * toKHz,
		UpperNearTop: (hi[1] - hiMean) * toKHz,
		GapNearTop:   (hi[1] - hi[0]) * toKHz,
	}
	return l, nil
}

func abs2(c complex128) float64 {
	a := cmplx.Abs(c)
	return a * a
}
