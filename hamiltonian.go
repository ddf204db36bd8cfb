package spinbath

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fumin/spinbath/mat"
	"github.com/fumin/spinbath/spin"
)

// HyperfineForm selects how the hyperfine tensor couples spins.
type HyperfineForm int

const (
	// HyperfineDefault is ElectronElectron for the ground manifold and
	// ElectronNuclear for the excited manifold.
	HyperfineDefault HyperfineForm = iota
	// ElectronNuclear is Σ_i (A·S)_i ⊗ I_i.
	ElectronNuclear
	// ElectronElectron is Σ_i S_i (A·S)_i, acting on the electron only.
	ElectronElectron
)

func (f HyperfineForm) String() string {
	switch f {
	case HyperfineDefault:
		return "default"
	case ElectronNuclear:
		return "electron_nuclear"
	case ElectronElectron:
		return "electron_electron"
	default:
		return fmt.Sprintf("HyperfineForm(%d)", int(f))
	}
}

func ParseHyperfineForm(name string) (HyperfineForm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return HyperfineDefault, nil
	case "electron_nuclear", "s_a_i":
		return ElectronNuclear, nil
	case "electron_electron", "s_a_s":
		return ElectronElectron, nil
	default:
		return -1, errors.Errorf("unknown hyperfine form %q", name)
	}
}

func (f HyperfineForm) resolve(m Manifold) HyperfineForm {
	if f != HyperfineDefault {
		return f
	}
	if m == Ground {
		return ElectronElectron
	}
	return ElectronNuclear
}

type Neighbor struct {
	// Displacement from the ion in angstroms.
	Displacement [3]float64
	Spin         spin.Spin
	G            float64
	Species      string
}

// Config describes the ion and its environment.
// The tensors are indexed by Manifold, a nil tensor is zero.
type Config struct {
	ElectronSpin spin.Spin
	NuclearSpin  spin.Spin
	// G are the electronic g tensors.
	G [2]*r3.Mat
	// A are the hyperfine tensors in GHz.
	A [2]*r3.Mat
	// NuclearG is the g factor of the ion nucleus.
	NuclearG  float64
	Hyperfine [2]HyperfineForm
	Neighbors []Neighbor
}

// System holds the Hamiltonians of the ground and excited manifolds.
type System struct {
	cfg      Config
	electron spin.Triple
	nucleus  spin.Triple
	sites    []*Site
	space    Space

	// baseline is the field independent part of each Hamiltonian.
	baseline [2]*mat.COO
	// dipole is 2S fully embedded.
	dipole [3]*mat.COO

	field       Field
	hamiltonian [2]*mat.COO
	spectra     [2]Spectrum
}

// New builds the system and diagonalizes it at zero field.
func New(cfg Config) (*System, error) {
	s := &System{cfg: cfg}
	var err error
	s.electron, err = spin.Operators(cfg.ElectronSpin)
	if err != nil {
		return nil, errors.Wrap(err, "electron")
	}
	s.nucleus, err = spin.Operators(cfg.NuclearSpin)
	if err != nil {
		return nil, errors.Wrap(err, "nucleus")
	}

	subsystems := []Subsystem{{Label: "electron", Dim: s.electron.Dim()}, {Label: "nucleus", Dim: s.nucleus.Dim()}}
	for k, n := range cfg.Neighbors {
		site, err := NewSite(n.Displacement, n.Spin, n.G, n.Species)
		if err != nil {
			return nil, errors.Wrapf(err, "neighbor %d", k)
		}
		s.sites = append(s.sites, site)
		subsystems = append(subsystems, Subsystem{Label: fmt.Sprintf("%s%d", site.Species, k), Dim: site.Dim})
	}
	s.space = NewSpace(subsystems...)

	for _, m := range Manifolds {
		h := s.hyperfine(m)
		h.Add(1, s.superhyperfine(m))
		s.baseline[m] = h
	}
	for i := range 3 {
		op := s.electron.At(i).Clone()
		op.Scale(2)
		s.dipole[i] = s.space.Embed(op, electronIndex)
	}

	if err := s.Reset(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return s, nil
}

// MustNew is like New but panics on error.
func MustNew(cfg Config) *System {
	s, err := New(cfg)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return s
}

// Reset removes the field, leaving each Hamiltonian equal to its baseline.
func (s *System) Reset() error {
	return s.SetField(Field{})
}

// UpdateZeeman sets a field of magnitude in T along the direction given by
// the polar angle theta and azimuthal angle phi.
func (s *System) UpdateZeeman(magnitude, theta, phi float64) error {
	return s.SetField(Field{Magnitude: magnitude, Theta: theta, Phi: phi})
}

// SetField rebuilds both Hamiltonians for f and diagonalizes them.
// On error the system is left unchanged.
func (s *System) SetField(f Field) error {
	zeeman := s.Zeeman(f)
	var hamiltonian [2]*mat.COO
	var spectra [2]Spectrum
	for _, m := range Manifolds {
		h := s.baseline[m].Clone()
		h.Add(1, zeeman[m])

		sp, err := Diagonalize(h)
		if err != nil {
			return errors.Wrapf(err, "%s", m)
		}
		hamiltonian[m], spectra[m] = h, sp
	}

	s.field = f
	s.hamiltonian = hamiltonian
	s.spectra = spectra
	return nil
}

// At sets the field and returns s.
func (s *System) At(f Field) (*System, error) {
	if err := s.SetField(f); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return s, nil
}

// Zeeman returns the field dependent part of each Hamiltonian:
// β_el B·g·S - β_N g_I B·I - Σ_k β_N g_k B·H_k.
func (s *System) Zeeman(f Field) [2]*mat.COO {
	b := f.Vec()
	d := s.space.Dim()

	nuclear := s.space.Embed(s.nucleus.Combine(vec3(r3.Scale(BetaNuclear*s.cfg.NuclearG, b))), nucleusIndex)
	host := mat.COOZeros(d, d)
	for k, site := range s.sites {
		op := site.Contract(b)
		op.Scale(complex(BetaNuclear*site.G, 0))
		host.Add(1, s.space.Embed(op, neighborIndex(k)))
	}

	var terms [2]*mat.COO
	for _, m := range Manifolds {
		// B·g·S = (gᵀB)·S
		gb := tensor(s.cfg.G[m]).MulVecTrans(b)
		h := s.space.Embed(s.electron.Combine(vec3(r3.Scale(BetaElectron, gb))), electronIndex)
		h.Add(-1, nuclear)
		h.Add(-1, host)
		terms[m] = h
	}
	return terms
}

func (s *System) hyperfine(m Manifold) *mat.COO {
	a := tensor(s.cfg.A[m])
	var as [3]*mat.COO
	for i := range 3 {
		as[i] = s.electron.Combine(vec3(a.VecRow(i)))
	}

	d := s.space.Dim()
	h := mat.COOZeros(d, d)
	switch s.cfg.Hyperfine[m].resolve(m) {
	case ElectronElectron:
		local := mat.COOZeros(s.electron.Dim(), s.electron.Dim())
		for i := range 3 {
			p := s.electron.At(i).Clone()
			p.MatMul(as[i])
			local.Add(1, p)
		}
		h.Add(1, s.space.Embed(local, electronIndex))
	default:
		for i := range 3 {
			h.Add(1, s.space.EmbedPair(as[i], electronIndex, s.nucleus.At(i), nucleusIndex))
		}
	}
	return h
}

// superhyperfine returns the dipolar coupling of the electron to every neighbor,
//
//	μ0/4π Σ_k [μ_ion·μ_k/R³ - 3(μ_ion·R)(μ_k·R)/R⁵]
//
// with μ_ion = -μ_B g S and μ_k = μ_N g_k H_k.
func (s *System) superhyperfine(m Manifold) *mat.COO {
	g := tensor(s.cfg.G[m])
	var ion [3]*mat.COO
	for i := range 3 {
		ion[i] = s.electron.Combine(vec3(r3.Scale(-BohrMagneton, g.VecRow(i))))
	}

	d := s.space.Dim()
	h := mat.COOZeros(d, d)
	for k, site := range s.sites {
		idx := neighborIndex(k)
		r3inv := 1 / (site.R * site.R * site.R)
		r5inv := r3inv / (site.R * site.R)
		mu := complex(NuclearMagneton*site.G, 0)

		for i := range 3 {
			nb := site.Ops.At(i).Clone()
			nb.Scale(mu)
			h.Add(complex(r3inv, 0), s.space.EmbedPair(ion[i], electronIndex, nb, idx))
		}

		ionR := s.electron.Combine(vec3(r3.Scale(-BohrMagneton, g.MulVecTrans(site.Displacement))))
		nbR := site.Contract(site.Displacement)
		nbR.Scale(mu)
		h.Add(complex(-3*r5inv, 0), s.space.EmbedPair(ionR, electronIndex, nbR, idx))
	}
	h.Scale(complex(mu0Over4Pi/(Planck*gigahertz), 0))
	return h
}

func (s *System) Config() Config { return s.cfg }

func (s *System) Field() Field { return s.field }

func (s *System) Space() Space { return s.space }

func (s *System) Sites() []*Site {
	return append([]*Site(nil), s.sites...)
}

// Baseline returns a copy of the field independent Hamiltonian of m.
func (s *System) Baseline(m Manifold) (*mat.COO, error) {
	if !m.valid() {
		return nil, errors.Wrapf(ErrInvalidState, "%s", m)
	}
	return s.baseline[m].Clone(), nil
}

// Hamiltonian returns a copy of the current Hamiltonian of m.
func (s *System) Hamiltonian(m Manifold) (*mat.COO, error) {
	if !m.valid() {
		return nil, errors.Wrapf(ErrInvalidState, "%s", m)
	}
	return s.hamiltonian[m].Clone(), nil
}
