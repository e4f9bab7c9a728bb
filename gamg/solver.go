// Package gamg builds the coarse levels of a geometric agglomerated algebraic
// multigrid hierarchy. Every coarse matrix and interface coefficient set is
// obtained by summing fine values through the restriction addressing held by
// an agglomeration.
package gamg

import (
	"fmt"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/notargets/gogamg/agglomeration"
	"github.com/notargets/gogamg/comm"
	"github.com/notargets/gogamg/interfaces"
	"github.com/notargets/gogamg/ldu"
	"github.com/notargets/gogamg/utils"
)

// Level is everything the solver owns for one mesh level. Level 0 is the
// fine level handed to NewSolver. A level whose rank is not a member of the
// level communicator has a nil Matrix.
type Level struct {
	Matrix     *ldu.Matrix
	Interfaces []interfaces.Field // nil entry = absent interface
	Coeffs     ldu.CoeffSets
}

func (l *Level) Active() bool { return l.Matrix != nil }

type Solver struct {
	Agglomeration *agglomeration.Agglomeration
	Verbose       bool
	proc          *comm.Proc
	levels        []*Level
}

// NewSolver takes ownership of the fine level. fineInterfaces and fineCoeffs
// are indexed by interface; an interface is present when both entries are set.
func NewSolver(p *comm.Proc, agg *agglomeration.Agglomeration, fine *ldu.Matrix,
	fineInterfaces []interfaces.Field, fineCoeffs ldu.CoeffSets) (s *Solver, err error) {
	if err = fine.CheckSize(agg.MeshLevel(0)); err != nil {
		return nil, errors.Wrap(err, "fine level matrix")
	}
	if len(fineInterfaces) != len(fineCoeffs) {
		return nil, errors.Errorf("%d fine interfaces but %d coefficient sets",
			len(fineInterfaces), len(fineCoeffs))
	}
	for inti, f := range fineInterfaces {
		if (f == nil) != (fineCoeffs[inti] == nil) {
			return nil, errors.Errorf("fine interface %d is only partially present", inti)
		}
		if f != nil && fineCoeffs[inti].Size() != f.Interface().Size() {
			return nil, errors.Errorf("fine interface %d has %d faces but %d coefficients",
				inti, f.Interface().Size(), fineCoeffs[inti].Size())
		}
	}
	s = &Solver{
		Agglomeration: agg,
		proc:          p,
		levels: []*Level{{
			Matrix:     fine,
			Interfaces: fineInterfaces,
			Coeffs:     fineCoeffs,
		}},
	}
	return
}

func (s *Solver) Proc() *comm.Proc { return s.proc }

// NLevels is the number of mesh levels built so far, the fine level included.
func (s *Solver) NLevels() int { return len(s.levels) }

func (s *Solver) Level(i int) *Level { return s.levels[i] }

func (s *Solver) MatrixLevel(i int) *ldu.Matrix { return s.levels[i].Matrix }

func (s *Solver) InterfaceLevel(i int) []interfaces.Field { return s.levels[i].Interfaces }

func (s *Solver) CoeffsLevel(i int) ldu.CoeffSets { return s.levels[i].Coeffs }

// Agglomerate builds every coarse level the agglomeration describes, in
// order. The first failure aborts the build; levels already built are kept.
func (s *Solver) Agglomerate() (err error) {
	for fineLevelIndex := s.NLevels() - 1; fineLevelIndex < s.Agglomeration.Size(); fineLevelIndex++ {
		if err = s.agglomerateMatrix(fineLevelIndex); err != nil {
			return
		}
		if s.Verbose && s.levels[fineLevelIndex+1].Active() {
			klog.Infof("rank %d: level %d agglomerated, %s",
				s.proc.WorldRank(), fineLevelIndex+1, utils.GetMemUsage())
		}
	}
	return
}

// Amul is A*psi on mesh level i, the coupled interface contributions
// included. Ranks sharing processor interfaces on the level must call it
// together.
func (s *Solver) Amul(i int, psi []float64) (Apsi []float64, err error) {
	var (
		l    = s.levels[i]
		addr = s.Agglomeration.MeshLevel(i)
	)
	if !l.Active() {
		return nil, errors.Errorf("rank %d holds no level %d", s.proc.WorldRank(), i)
	}
	if addr == nil {
		return nil, errors.Errorf("level %d has no addressing", i)
	}
	if len(psi) != l.Matrix.NCells() {
		return nil, errors.Errorf("psi has %d values for %d cells on level %d", len(psi), l.Matrix.NCells(), i)
	}
	Apsi = l.Matrix.Amul(addr, psi)
	for _, f := range l.Interfaces {
		if f != nil {
			f.InitInterfaceMatrixUpdate(psi, s.proc)
		}
	}
	for inti, f := range l.Interfaces {
		if f != nil {
			f.UpdateInterfaceMatrix(Apsi, psi, l.Coeffs[inti].Boundary, s.proc, l.Interfaces)
		}
	}
	return
}

// CheckLevels panics if any active level holds a NaN coefficient.
func (s *Solver) CheckLevels() {
	for i, l := range s.levels {
		if !l.Active() {
			continue
		}
		if utils.IsNan([][]float64{l.Matrix.Diag, l.Matrix.Upper, l.Matrix.Lower}) {
			panic(fmt.Errorf("level %d has a NaN coefficient", i))
		}
	}
}
