package ldu

import (
	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// CSR is a row compressed copy of an LDU matrix, used for diagnostics and
// for cross checking LDU kernels against a general sparse implementation.
type CSR struct {
	M    *sparse.CSR
	name string
}

// ToCSR assembles the full matrix: row own column nbr holds Upper, row nbr
// column own holds Lower.
func (m *Matrix) ToCSR(addr *Addressing, name string) (R CSR) {
	var (
		n     = len(m.Diag)
		dok   = sparse.NewDOK(n, n)
		lower = m.LowerOrUpper()
	)
	for c, d := range m.Diag {
		dok.Set(c, c, d)
	}
	for f, own := range addr.LowerAddr {
		nbr := addr.UpperAddr[f]
		dok.Set(own, nbr, dok.At(own, nbr)+m.Upper[f])
		dok.Set(nbr, own, dok.At(nbr, own)+lower[f])
	}
	R = CSR{
		M:    dok.ToCSR(),
		name: name,
	}
	return
}

func (m CSR) Dims() (r, c int)    { return m.M.Dims() }
func (m CSR) At(i, j int) float64 { return m.M.At(i, j) }
func (m CSR) NNZ() int            { return m.M.NNZ() }
func (m CSR) Name() string        { return m.name }

func (m CSR) MulVec(x []float64) (y []float64) {
	var (
		nr, _ = m.Dims()
		dst   = mat.NewVecDense(nr, nil)
	)
	m.M.MulVecTo(dst.RawVector().Data, false, x)
	y = dst.RawVector().Data
	return
}

func (m CSR) ToDense() *mat.Dense { return m.M.ToDense() }

// IsSymmetric reports whether the assembled matrix equals its transpose
// within tol.
func (m CSR) IsSymmetric(tol float64) bool {
	var (
		D = m.ToDense()
	)
	return mat.EqualApprox(D, D.T(), tol)
}
