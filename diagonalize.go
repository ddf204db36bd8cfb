package spinbath

import (
	"math/cmplx"

	"github.com/pkg/errors"
	gmat "gonum.org/v1/gonum/mat"

	"github.com/fumin/spinbath/mat"
)

// hermitianTol is the largest deviation from Hermiticity accepted by Diagonalize.
const hermitianTol = 1e-9

// Spectrum is the eigendecomposition of a Hamiltonian.
// Energies are ascending and Vectors[i] is the eigenvector of Energies[i].
type Spectrum struct {
	Energies []float64
	Vectors  [][]complex128
}

// Diagonalize returns the eigenvalues and eigenvectors of the Hermitian matrix h.
// Unlike other numerical irregularities, a deviation from Hermiticity above
// 1e-9 is reported as mat.ErrNotHermitian, since only the Hermitian part of h
// would be diagonalized.
func Diagonalize(h *mat.COO) (Spectrum, error) {
	if dev := h.HermitianDeviation(); dev > hermitianTol {
		return Spectrum{}, errors.Wrapf(mat.ErrNotHermitian, "%g", dev)
	}
	vvs, err := h.Eigen()
	if err != nil {
		return Spectrum{}, errors.Wrap(err, "")
	}

	sp := Spectrum{Energies: make([]float64, len(vvs)), Vectors: make([][]complex128, len(vvs))}
	for i, vv := range vvs {
		sp.Energies[i] = vv.Val
		sp.Vectors[i] = vv.Vec
	}
	return sp, nil
}

func (sp Spectrum) Len() int { return len(sp.Energies) }

// Basis returns the matrix whose columns are the eigenvectors.
func (sp Spectrum) Basis() *gmat.CDense {
	n := sp.Len()
	b := gmat.NewCDense(n, n, nil)
	for j, v := range sp.Vectors {
		for i, x := range v {
			b.Set(i, j, x)
		}
	}
	return b
}

// Residuals returns max_k |(h v_i - E_i v_i)_k| for every level i.
func (sp Spectrum) Residuals(h *mat.COO) []float64 {
	res := make([]float64, sp.Len())
	var hv []complex128
	for i, v := range sp.Vectors {
		hv = h.MulVec(hv, v)
		for k := range hv {
			res[i] = max(res[i], cmplx.Abs(hv[k]-complex(sp.Energies[i], 0)*v[k]))
		}
	}
	return res
}

func (sp Spectrum) clone() Spectrum {
	c := Spectrum{Energies: append([]float64(nil), sp.Energies...), Vectors: make([][]complex128, len(sp.Vectors))}
	for i, v := range sp.Vectors {
		c.Vectors[i] = append([]complex128(nil), v...)
	}
	return c
}

// Spectrum returns the current eigendecomposition of m.
func (s *System) Spectrum(m Manifold) (Spectrum, error) {
	if !m.valid() {
		return Spectrum{}, errors.Wrapf(ErrInvalidState, "%s", m)
	}
	return s.spectra[m].clone(), nil
}

// Energies returns the current energy levels of m in GHz.
func (s *System) Energies(m Manifold) ([]float64, error) {
	if !m.valid() {
		return nil, errors.Wrapf(ErrInvalidState, "%s", m)
	}
	return append([]float64(nil), s.spectra[m].Energies...), nil
}
