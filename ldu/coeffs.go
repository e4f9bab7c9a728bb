package ldu

import "gonum.org/v1/gonum/floats"

// CoeffSet holds the coupling coefficients of one interface at one level,
// one entry per patch face.
type CoeffSet struct {
	Boundary []float64
	Internal []float64
}

func NewCoeffSet(nFaces int) *CoeffSet {
	return &CoeffSet{
		Boundary: make([]float64, nFaces),
		Internal: make([]float64, nFaces),
	}
}

func (cs *CoeffSet) Size() int { return len(cs.Boundary) }

// CoeffSets is indexed by interface; a nil entry is an absent interface.
type CoeffSets []*CoeffSet

func NewCoeffSets(nInterfaces int) CoeffSets {
	return make(CoeffSets, nInterfaces)
}

func (cs CoeffSets) Set(i int) bool { return i >= 0 && i < len(cs) && cs[i] != nil }

// Present lists the indices of the interfaces that are set.
func (cs CoeffSets) Present() (present []int) {
	for i := range cs {
		if cs[i] != nil {
			present = append(present, i)
		}
	}
	return
}

// BoundarySum totals the boundary coefficients of every present interface.
func (cs CoeffSets) BoundarySum() (total float64) {
	for _, c := range cs {
		if c != nil {
			total += floats.Sum(c.Boundary)
		}
	}
	return
}

// InternalSum totals the internal coefficients of every present interface.
func (cs CoeffSets) InternalSum() (total float64) {
	for _, c := range cs {
		if c != nil {
			total += floats.Sum(c.Internal)
		}
	}
	return
}
