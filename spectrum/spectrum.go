// Package spectrum synthesizes absorption spectra from transitions by
// broadening each transition into a Lorentzian line.
package spectrum

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/spinbath"
)

var ErrInvalidGrid = errors.New("invalid grid")

// Grid returns lo, lo+step, ... up to but excluding hi.
func Grid(lo, hi, step float64) ([]float64, error) {
	if !(step > 0) || !(hi > lo) || math.IsInf(hi-lo, 0) {
		return nil, errors.Wrapf(ErrInvalidGrid, "[%g, %g) step %g", lo, hi, step)
	}
	n := int(math.Ceil((hi - lo) / step))
	if lo+float64(n-1)*step >= hi {
		n--
	}
	if n == 1 {
		return []float64{lo}, nil
	}
	return floats.Span(make([]float64, n), lo, lo+float64(n-1)*step), nil
}

// Lorentzian is a line of unit height at center with full width at half maximum fwhm.
func Lorentzian(e, center, fwhm float64) float64 {
	hw2 := (fwhm / 2) * (fwhm / 2)
	d := e - center
	return hw2 / (d*d + hw2)
}

// Lineshape returns, for each polarization axis, the sum over transitions of
// their strength along that axis times a Lorentzian at their energy.
// Transitions without a strength count with unit strength on every axis.
func Lineshape(transitions []spinbath.Transition, grid []float64, fwhm float64) [3][]float64 {
	var ls [3][]float64
	for axis := range ls {
		ls[axis] = make([]float64, len(grid))
	}
	for _, t := range transitions {
		strength := [3]float64{1, 1, 1}
		if t.Strength != nil {
			strength = *t.Strength
		}
		for i, e := range grid {
			l := Lorentzian(e, t.Energy, fwhm)
			for axis, s := range strength {
				ls[axis][i] += s * l
			}
		}
	}
	return ls
}

// Map returns, for each polarization axis, the len(grid)×len(columns) matrix
// whose j-th column is the lineshape of columns[j].
// Typically column j holds the transitions at the j-th field of a sweep.
// The matrices are nil if grid or columns is empty.
func Map(columns [][]spinbath.Transition, grid []float64, fwhm float64) [3]*mat.Dense {
	var maps [3]*mat.Dense
	if len(grid) == 0 || len(columns) == 0 {
		return maps
	}
	for axis := range maps {
		maps[axis] = mat.NewDense(len(grid), len(columns), nil)
	}
	for j, transitions := range columns {
		ls := Lineshape(transitions, grid, fwhm)
		for axis, col := range ls {
			maps[axis].SetCol(j, col)
		}
	}
	return maps
}
