package mat

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// degeneracyTol is the relative gap under which two eigenvalues of the real
// embedding are treated as one degenerate cluster.
const degeneracyTol = 1e-10

var (
	ErrNotSquare     = errors.New("matrix is not square")
	ErrFactorization = errors.New("eigen factorization failed")
	ErrNotHermitian  = errors.New("matrix is not hermitian")
)

type ValVec struct {
	Val float64
	Vec []complex128
}

// Eigen returns the eigenvalues and eigenvectors of the Hermitian matrix m
// sorted by ascending eigenvalue.
//
// Only the Hermitian part (m+m†)/2 is diagonalized. Gonum has no complex
// Hermitian solver, so m = A+iB is embedded into the real symmetric matrix
//
//	[A -B]
//	[B  A]
//
// whose spectrum is that of m with every eigenvalue doubled. An eigenvector
// (x, y) of the embedding maps to the eigenvector x+iy of m, and within each
// doubled cluster an orthonormal complex basis is picked by Gram-Schmidt.
//
// The phase of each eigenvector is fixed by making its largest component
// real and positive. The order of vectors inside a degenerate eigenspace is
// unspecified.
func (m *COO) Eigen() ([]ValVec, error) {
	if m.rows != m.cols {
		return nil, errors.Wrapf(ErrNotSquare, "%dx%d", m.rows, m.cols)
	}
	n := m.rows

	re := mat.NewDense(n, n, nil)
	im := mat.NewDense(n, n, nil)
	for _, v := range m.Data {
		i, j := v.row, v.col
		re.Set(i, j, re.At(i, j)+real(v.v)/2)
		im.Set(i, j, im.At(i, j)+imag(v.v)/2)
		re.Set(j, i, re.At(j, i)+real(v.v)/2)
		im.Set(j, i, im.At(j, i)-imag(v.v)/2)
	}
	embedded := mat.NewSymDense(2*n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			embedded.SetSym(i, j, re.At(i, j))
			embedded.SetSym(n+i, n+j, re.At(i, j))
		}
		for j := 0; j < n; j++ {
			embedded.SetSym(i, n+j, -im.At(i, j))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(embedded, true); !ok {
		return nil, errors.Wrapf(ErrFactorization, "%dx%d", n, n)
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	var scale float64 = 1
	for _, v := range vals {
		scale = max(scale, math.Abs(v))
	}
	tol := degeneracyTol * scale

	vvs := make([]ValVec, 0, n)
	for lo := 0; lo < len(vals); {
		hi := lo + 1
		// Clusters always hold an even number of values since each
		// eigenvalue of m appears twice.
		for hi < len(vals) && (vals[hi]-vals[hi-1] <= tol || (hi-lo)%2 == 1) {
			hi++
		}
		vvs = append(vvs, clusterBasis(vals[lo:hi], &vecs, lo, n)...)
		lo = hi
	}
	if len(vvs) != n {
		return nil, errors.Errorf("%d eigenvectors for a %dx%d matrix", len(vvs), n, n)
	}

	return vvs, nil
}

// clusterBasis picks len(vals)/2 orthonormal complex eigenvectors from the
// columns [offset, offset+len(vals)) of the real embedding's eigenvectors.
func clusterBasis(vals []float64, vecs *mat.Dense, offset, n int) []ValVec {
	candidates := make([][]complex128, len(vals))
	for j := range candidates {
		c := make([]complex128, n)
		for k := range c {
			c[k] = complex(vecs.At(k, offset+j), vecs.At(n+k, offset+j))
		}
		candidates[j] = c
	}

	picked := make([]ValVec, 0, len(vals)/2)
	residual := make([]complex128, n)
	for t := 0; t < len(vals)/2; t++ {
		var best []complex128
		var bestNorm float64 = -1
		for _, c := range candidates {
			copy(residual, c)
			for _, q := range picked {
				project(residual, q.Vec)
			}
			if nrm := norm(residual); nrm > bestNorm {
				bestNorm = nrm
				best = append(best[:0], residual...)
			}
		}

		for k := range best {
			best[k] /= complex(bestNorm, 0)
		}
		fixPhase(best)
		val := (vals[2*t] + vals[2*t+1]) / 2
		picked = append(picked, ValVec{Val: val, Vec: best})
	}
	return picked
}

// project removes the component along the unit vector q from v.
func project(v, q []complex128) {
	var c complex128
	for k := range v {
		c += cmplx.Conj(q[k]) * v[k]
	}
	for k := range v {
		v[k] -= c * q[k]
	}
}

func norm(v []complex128) float64 {
	var s float64
	for _, x := range v {
		s += real(x)*real(x) + imag(x)*imag(x)
	}
	return math.Sqrt(s)
}

func fixPhase(v []complex128) {
	var big complex128
	for _, x := range v {
		if cmplx.Abs(x) > cmplx.Abs(big) {
			big = x
		}
	}
	if big == 0 {
		return
	}
	phase := cmplx.Conj(big) / complex(cmplx.Abs(big), 0)
	for k := range v {
		v[k] *= phase
	}
}
