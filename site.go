package spinbath

import (
	"fmt"

	"github.com/pkg/errors"
	gmat "gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fumin/spinbath/mat"
	"github.com/fumin/spinbath/spin"
)

// Site is a host nucleus near the ion.
type Site struct {
	// Displacement from the ion in meters.
	Displacement r3.Vec
	// R is the norm of Displacement.
	R       float64
	Spin    spin.Spin
	G       float64
	Species string
	Ops     spin.Triple
	Dim     int
}

// NewSite returns a neighbor whose displacement from the ion is given in angstroms.
func NewSite(displacement [3]float64, s spin.Spin, g float64, species string) (*Site, error) {
	ops, err := spin.Operators(s)
	if err != nil {
		return nil, errors.Wrap(err, species)
	}
	d := r3.Scale(angstrom, r3.Vec{X: displacement[0], Y: displacement[1], Z: displacement[2]})
	r := r3.Norm(d)
	if r == 0 {
		return nil, errors.Wrapf(ErrInvalidSite, "%s at the ion position", species)
	}

	site := &Site{
		Displacement: d,
		R:            r,
		Spin:         s,
		G:            g,
		Species:      species,
		Ops:          ops,
		Dim:          ops.Dim(),
	}
	return site, nil
}

func (s *Site) String() string {
	return fmt.Sprintf("%s(%v) at %.3e m", s.Species, s.Spin, s.R)
}

// Stacked returns the 3×Dim² matrix whose rows are Hx, Hy and Hz flattened
// in row major order.
func (s *Site) Stacked() *gmat.CDense {
	n := s.Dim * s.Dim
	stacked := gmat.NewCDense(3, n, nil)
	for i := range 3 {
		dense := s.Ops.At(i).Dense()
		for row := range s.Dim {
			for col := range s.Dim {
				stacked.Set(i, row*s.Dim+col, dense[row][col])
			}
		}
	}
	return stacked
}

// Contract returns v·H = vx Hx + vy Hy + vz Hz.
func (s *Site) Contract(v r3.Vec) *mat.COO {
	stacked := s.Stacked()
	n := s.Dim * s.Dim
	coef := vec3(v)
	op := make([][]complex128, s.Dim)
	for row := range op {
		op[row] = make([]complex128, s.Dim)
	}
	for k := range n {
		var x complex128
		for i := range 3 {
			x += complex(coef[i], 0) * stacked.At(i, k)
		}
		op[k/s.Dim][k%s.Dim] = x
	}
	return mat.M(op)
}
