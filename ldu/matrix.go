package ldu

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Matrix holds the coefficient values of one level. It owns no topology; the
// face ordering is implied by the Addressing it was assembled against.
// A nil Lower means the operator is symmetric (Lower == Upper).
type Matrix struct {
	Diag  []float64
	Upper []float64
	Lower []float64
}

// NewMatrix allocates a zeroed matrix sized exactly to the given counts.
func NewMatrix(nCells, nFaces int, asymmetric bool) (m *Matrix) {
	m = &Matrix{
		Diag:  make([]float64, nCells),
		Upper: make([]float64, nFaces),
	}
	if asymmetric {
		m.Lower = make([]float64, nFaces)
	}
	return
}

func (m *Matrix) NCells() int     { return len(m.Diag) }
func (m *Matrix) NFaces() int     { return len(m.Upper) }
func (m *Matrix) HasLower() bool  { return m.Lower != nil }
func (m *Matrix) Symmetric() bool { return m.Lower == nil }

// LowerOrUpper returns the lower coefficients, which for a symmetric matrix
// are the upper ones.
func (m *Matrix) LowerOrUpper() []float64 {
	if m.Lower != nil {
		return m.Lower
	}
	return m.Upper
}

func (m *Matrix) Clone() (R *Matrix) {
	R = &Matrix{
		Diag:  append([]float64(nil), m.Diag...),
		Upper: append([]float64(nil), m.Upper...),
	}
	if m.Lower != nil {
		R.Lower = append([]float64(nil), m.Lower...)
	}
	return
}

// CoefficientSum is the total coefficient mass of the operator, the sum of
// every entry of the full matrix. Restriction by summation preserves it.
func (m *Matrix) CoefficientSum() float64 {
	return floats.Sum(m.Diag) + floats.Sum(m.Upper) + floats.Sum(m.LowerOrUpper())
}

// CheckSize reports whether the matrix is consistent with addr.
func (m *Matrix) CheckSize(addr *Addressing) error {
	if len(m.Diag) != addr.NCells {
		return errors.Errorf("diagonal has %d entries, addressing has %d cells",
			len(m.Diag), addr.NCells)
	}
	if len(m.Upper) != addr.NFaces() {
		return errors.Errorf("upper has %d entries, addressing has %d faces",
			len(m.Upper), addr.NFaces())
	}
	if m.Lower != nil && len(m.Lower) != addr.NFaces() {
		return errors.Errorf("lower has %d entries, addressing has %d faces",
			len(m.Lower), addr.NFaces())
	}
	return nil
}

// Amul computes A*psi over the internal coefficients. Interface
// contributions are added separately by the coupled interface fields.
func (m *Matrix) Amul(addr *Addressing, psi []float64) (Apsi []float64) {
	var (
		lower = m.LowerOrUpper()
	)
	Apsi = make([]float64, len(m.Diag))
	for c, d := range m.Diag {
		Apsi[c] = d * psi[c]
	}
	for f, own := range addr.LowerAddr {
		nbr := addr.UpperAddr[f]
		Apsi[own] += m.Upper[f] * psi[nbr]
		Apsi[nbr] += lower[f] * psi[own]
	}
	return
}
