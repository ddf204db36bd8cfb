// Package spin generates irreducible angular momentum operators.
//
// References:
//   - https://easyspin.org/documentation/spinoperators.html
package spin

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/fumin/spinbath/mat"
)

var ErrInvalidSpin = errors.New("spin must be a non-negative multiple of 1/2")

// Spin is a spin quantum number in {0, 1/2, 1, 3/2, ...}.
type Spin float64

func (s Spin) Valid() bool {
	twice := 2 * float64(s)
	return twice >= 0 && twice == math.Trunc(twice) && !math.IsInf(twice, 0)
}

// Multiplicity is the dimension 2s+1 of the spin's operator space.
func (s Spin) Multiplicity() int {
	return int(math.Round(2*float64(s))) + 1
}

func (s Spin) String() string {
	twice := int(math.Round(2 * float64(s)))
	if twice%2 == 0 {
		return fmt.Sprintf("%d", twice/2)
	}
	return fmt.Sprintf("%d/2", twice)
}

// Triple holds the x, y and z operators of a spin.
type Triple struct {
	X, Y, Z *mat.COO
}

// At returns the i-th component, 0 for x, 1 for y and 2 for z.
func (t Triple) At(i int) *mat.COO {
	switch i {
	case 0:
		return t.X
	case 1:
		return t.Y
	case 2:
		return t.Z
	default:
		panic(fmt.Sprintf("%d", i))
	}
}

// Combine returns the linear combination c[0]*X + c[1]*Y + c[2]*Z.
func (t Triple) Combine(c [3]float64) *mat.COO {
	m := mat.COOZeros(t.X.Rows(), t.X.Cols())
	for i, ci := range c {
		if ci == 0 {
			continue
		}
		m.Add(complex(ci, 0), t.At(i))
	}
	return m
}

// Dim returns the dimension of the operators.
func (t Triple) Dim() int { return t.X.Rows() }

// Operators returns Sx, Sy and Sz for spin s, in the basis of magnetic
// quantum numbers m = s, s-1, ..., -s.
// For s = 0 all three operators are the 1x1 zero matrix.
func Operators(s Spin) (Triple, error) {
	if !s.Valid() {
		return Triple{}, errors.Wrapf(ErrInvalidSpin, "%v", float64(s))
	}
	if s == 0 {
		return Triple{X: mat.COOZeros(1, 1), Y: mat.COOZeros(1, 1), Z: mat.COOZeros(1, 1)}, nil
	}

	dim := s.Multiplicity()
	sv := float64(s)
	x := make([][]complex128, dim)
	y := make([][]complex128, dim)
	z := make([][]complex128, dim)
	for row := range dim {
		x[row] = make([]complex128, dim)
		y[row] = make([]complex128, dim)
		z[row] = make([]complex128, dim)
	}

	for row := range dim {
		m := sv - float64(row)
		z[row][row] = complex(m, 0)
		if row == dim-1 {
			continue
		}

		// Coupling between m and m-1.
		v := math.Sqrt(sv*(sv+1)-m*(m-1)) / 2
		x[row][row+1] = complex(v, 0)
		x[row+1][row] = complex(v, 0)
		y[row][row+1] = complex(0, -v)
		y[row+1][row] = complex(0, v)
	}

	return Triple{X: mat.M(x), Y: mat.M(y), Z: mat.M(z)}, nil
}

// MustOperators is like Operators but panics on an invalid spin.
func MustOperators(s Spin) Triple {
	t, err := Operators(s)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return t
}
