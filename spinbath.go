// Package spinbath computes the energy levels of a paramagnetic ion coupled
// to its own nucleus and to a bath of neighboring nuclear spins in a static
// magnetic field.
//
// The composite space is ordered electron ⊗ ion nucleus ⊗ neighbor_0 ⊗ ... and
// every Hamiltonian term is built by embedding local spin operators into it.
// Energies are in GHz.
//
// References:
//   - Car et al., Selective optical addressing of nuclear spins through superhyperfine interaction in rare-earth doped solids, PRL 120, 197401 (2018)
//   - Kindem et al., Characterization of 171Yb3+:YVO4 for photonic quantum technologies, PRB 98, 024404 (2018)
package spinbath

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// BohrMagneton is in J/T.
	BohrMagneton = 9.2740100e-24
	// NuclearMagneton is in J/T.
	NuclearMagneton = 5.0507837e-27
	// Planck is in J s.
	Planck = 6.62607004e-34

	// BetaElectron is the Bohr magneton in GHz/T.
	BetaElectron = BohrMagneton / (Planck * gigahertz)
	// BetaNuclear is the nuclear magneton in GHz/T.
	BetaNuclear = NuclearMagneton / (Planck * gigahertz)

	// mu0Over4Pi is the magnetic constant divided by 4π, in T m/A.
	mu0Over4Pi = 1e-7
	gigahertz  = 1e9
	angstrom   = 1e-10
)

var (
	// ErrInvalidState is returned when a query names a manifold other than ground or excited.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidTransitionType is returned for an unsupported transition selector.
	ErrInvalidTransitionType = errors.New("invalid transition type")
	ErrInvalidLevel          = errors.New("invalid level")
	ErrDimensionMismatch     = errors.New("dimension mismatch")
	ErrInvalidSite           = errors.New("invalid neighbor site")
)

// Manifold is an electronic configuration of the ion.
type Manifold int

const (
	Ground Manifold = iota
	Excited
)

var Manifolds = [...]Manifold{Ground, Excited}

func (m Manifold) String() string {
	switch m {
	case Ground:
		return "ground"
	case Excited:
		return "excited"
	default:
		return fmt.Sprintf("Manifold(%d)", int(m))
	}
}

func (m Manifold) valid() bool {
	return m == Ground || m == Excited
}

// ParseManifold accepts "ground", "gs", "excited" and "es".
func ParseManifold(name string) (Manifold, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ground", "gs":
		return Ground, nil
	case "excited", "es":
		return Excited, nil
	default:
		return -1, errors.Wrapf(ErrInvalidState, "%q", name)
	}
}

// Field is a magnetic field in spherical coordinates.
// Magnitude is in T, Theta is the polar angle and Phi the azimuthal angle, both in radians.
type Field struct {
	Magnitude float64
	Theta     float64
	Phi       float64
}

// Vec returns the field in cartesian coordinates.
func (f Field) Vec() r3.Vec {
	return r3.Vec{
		X: f.Magnitude * math.Sin(f.Theta) * math.Cos(f.Phi),
		Y: f.Magnitude * math.Sin(f.Theta) * math.Sin(f.Phi),
		Z: f.Magnitude * math.Cos(f.Theta),
	}
}

func vec3(v r3.Vec) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// tensor returns m, or the zero tensor if m is nil.
func tensor(m *r3.Mat) *r3.Mat {
	if m == nil {
		return r3.NewMat(nil)
	}
	return m
}
