package gamg

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/notargets/gogamg/agglomeration"
	"github.com/notargets/gogamg/ldu"
	"github.com/notargets/gogamg/utils"
)

// agglomerateMatrix builds mesh level fineLevelIndex+1 from mesh level
// fineLevelIndex. Ranks outside the fine level communicator record an
// inactive coarse level and do no work.
func (s *Solver) agglomerateMatrix(fineLevelIndex int) (err error) {
	var (
		agg = s.Agglomeration
	)
	if fineLevelIndex != len(s.levels)-1 {
		return errors.Errorf("level %d cannot be agglomerated, %d levels exist",
			fineLevelIndex, len(s.levels))
	}
	if !s.proc.IsActive(agg.MeshComm(fineLevelIndex)) {
		s.levels = append(s.levels, &Level{})
		return
	}
	fineLevel := s.levels[fineLevelIndex]
	if !fineLevel.Active() {
		return errors.Errorf("rank %d is active on level %d but holds no matrix",
			s.proc.WorldRank(), fineLevelIndex)
	}
	if err = s.checkLevel(fineLevelIndex); err != nil {
		return
	}
	var (
		l       = agg.Level(fineLevelIndex)
		fine    = fineLevel.Matrix
		kernel  = agg.Kernel()
		coarse  = ldu.NewMatrix(l.NCells, l.NFaces, fine.HasLower())
		coarseL = &Level{Matrix: coarse}
	)
	kernel.RestrictField(coarse.Diag, fine.Diag, l.RestrictAddressing)

	if coarseL.Interfaces, coarseL.Coeffs, err = s.agglomerateInterfaceCoefficients(fineLevelIndex,
		l.CoarseInterfaces); err != nil {
		return errors.Wrapf(err, "agglomeration level %d", fineLevelIndex)
	}

	restrictFaces(kernel, coarse, fine, l.FaceRestrict, l.FaceFlipMap)

	s.levels = append(s.levels, coarseL)
	return
}

// checkLevel rejects addressing that does not fit the fine level data, before
// any numeric pass writes into the coarse level.
func (s *Solver) checkLevel(fineLevelIndex int) (err error) {
	var (
		agg  = s.Agglomeration
		l    = agg.Level(fineLevelIndex)
		fine = s.levels[fineLevelIndex]
	)
	if err = agg.Validate(fineLevelIndex); err != nil {
		return
	}
	defer func() {
		if err != nil {
			err = errors.Wrapf(err, "agglomeration level %d", fineLevelIndex)
		}
	}()
	if n := l.RestrictAddressing.NFine(); n != fine.Matrix.NCells() {
		return errors.Errorf("cell restriction covers %d cells, fine matrix has %d", n, fine.Matrix.NCells())
	}
	if n := l.FaceRestrict.NFine(); n != fine.Matrix.NFaces() {
		return errors.Errorf("face restriction covers %d faces, fine matrix has %d", n, fine.Matrix.NFaces())
	}
	for inti, f := range fine.Interfaces {
		if f == nil {
			continue
		}
		if inti >= len(l.PatchFaceRestrict) || l.PatchFaceRestrict[inti] == nil {
			return errors.Errorf("interface %d is present but has no patch face restriction", inti)
		}
		if n := l.PatchFaceRestrict[inti].NFine(); n != fine.Coeffs[inti].Size() {
			return errors.Errorf("interface %d patch face restriction covers %d faces, fine interface has %d",
				inti, n, fine.Coeffs[inti].Size())
		}
	}
	return
}

// restrictFaces sums the fine off diagonal coefficients into the coarse ones.
// A face whose two cells merged folds into the coarse diagonal: twice the
// upper coefficient for a symmetric matrix, upper plus lower otherwise. A
// flipped face swaps upper and lower on the coarse level.
func restrictFaces(k agglomeration.Kernel, coarse, fine *ldu.Matrix, r *agglomeration.Restriction, flip []bool) {
	switch k.Strategy {
	case agglomeration.Atomic:
		if fine.Symmetric() {
			restrictFacesSymAtomic(k, coarse, fine, r)
		} else {
			restrictFacesAsymAtomic(k, coarse, fine, r, flip)
		}
	case agglomeration.SortReduce:
		if fine.Symmetric() {
			restrictFacesSymSorted(k, coarse, fine, r)
		} else {
			restrictFacesAsymSorted(k, coarse, fine, r, flip)
		}
	default:
		panic(fmt.Errorf("unsupported agglomeration strategy %v", k.Strategy))
	}
}

func restrictFacesSymAtomic(k agglomeration.Kernel, coarse, fine *ldu.Matrix, r *agglomeration.Restriction) {
	direct := r.Direct()
	k.Partition(len(direct)).Run(func(_, fMin, fMax int) {
		for f := fMin; f < fMax; f++ {
			if t := direct[f]; t >= 0 {
				utils.AtomicAddFloat64(&coarse.Upper[t], fine.Upper[f])
			} else {
				utils.AtomicAddFloat64(&coarse.Diag[agglomeration.FaceToDiag(t)], 2*fine.Upper[f])
			}
		}
	})
}

func restrictFacesAsymAtomic(k agglomeration.Kernel, coarse, fine *ldu.Matrix, r *agglomeration.Restriction,
	flip []bool) {
	direct := r.Direct()
	k.Partition(len(direct)).Run(func(_, fMin, fMax int) {
		for f := fMin; f < fMax; f++ {
			var (
				t            = direct[f]
				upper, lower = fine.Upper[f], fine.Lower[f]
			)
			switch {
			case t < 0:
				utils.AtomicAddFloat64(&coarse.Diag[agglomeration.FaceToDiag(t)], upper+lower)
			case flip[f]:
				utils.AtomicAddFloat64(&coarse.Upper[t], lower)
				utils.AtomicAddFloat64(&coarse.Lower[t], upper)
			default:
				utils.AtomicAddFloat64(&coarse.Upper[t], upper)
				utils.AtomicAddFloat64(&coarse.Lower[t], lower)
			}
		}
	})
}

// The sorted kernels give each worker a disjoint range of segments. Targets
// are distinct across segments, so every coarse face and every folded
// diagonal entry is written by exactly one worker. Targets ascend, so the
// segments before FirstNonNegative are the diagonal folds and are reduced in
// their own pass.

func forSegments(k agglomeration.Kernel, r *agglomeration.Restriction, sBegin, sEnd int,
	body func(t int, fineFaces []int)) {
	k.Partition(sEnd - sBegin).Run(func(_, sMin, sMax int) {
		for s := sBegin + sMin; s < sBegin+sMax; s++ {
			t, lo, hi := r.Segment(s)
			if lo == hi {
				continue
			}
			body(t, r.SortAddr[lo:hi])
		}
	})
}

func sumFaces(coeffs []float64, fineFaces []int) (sum float64) {
	for _, f := range fineFaces {
		sum += coeffs[f]
	}
	return
}

func restrictFacesSymSorted(k agglomeration.Kernel, coarse, fine *ldu.Matrix, r *agglomeration.Restriction) {
	split := r.FirstNonNegative()
	forSegments(k, r, 0, split, func(t int, fineFaces []int) {
		coarse.Diag[agglomeration.FaceToDiag(t)] += 2 * sumFaces(fine.Upper, fineFaces)
	})
	forSegments(k, r, split, r.NTargets(), func(t int, fineFaces []int) {
		coarse.Upper[t] += sumFaces(fine.Upper, fineFaces)
	})
}

func restrictFacesAsymSorted(k agglomeration.Kernel, coarse, fine *ldu.Matrix, r *agglomeration.Restriction,
	flip []bool) {
	split := r.FirstNonNegative()
	forSegments(k, r, 0, split, func(t int, fineFaces []int) {
		coarse.Diag[agglomeration.FaceToDiag(t)] += sumFaces(fine.Upper, fineFaces) + sumFaces(fine.Lower, fineFaces)
	})
	forSegments(k, r, split, r.NTargets(), func(t int, fineFaces []int) {
		var upper, lower float64
		for _, f := range fineFaces {
			if flip[f] {
				upper += fine.Lower[f]
				lower += fine.Upper[f]
			} else {
				upper += fine.Upper[f]
				lower += fine.Lower[f]
			}
		}
		coarse.Upper[t] += upper
		coarse.Lower[t] += lower
	})
}
