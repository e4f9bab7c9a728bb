package agglomeration

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/notargets/gogamg/comm"
	"github.com/notargets/gogamg/interfaces"
	"github.com/notargets/gogamg/ldu"
)

// LevelAddressing is everything the agglomeration decision produced for one
// coarsening step, from level l (fine) to level l+1 (coarse).
type LevelAddressing struct {
	// Coarse sizes. These may exceed what the restrictions touch, e.g. for
	// dummy levels during processor agglomeration.
	NCells, NFaces int

	RestrictAddressing *Restriction // fine cell -> coarse cell
	FaceRestrict       *Restriction // fine face -> coarse face, or DiagTarget(cell)
	FaceFlipMap        []bool       // fine face orientation reversed on the coarse level

	PatchFaceRestrict []*Restriction // per interface, nil if the interface is absent
	NPatchFaces       []int

	// Optional coarse topology. CoarseAddressing is nil for dummy levels.
	CoarseAddressing *ldu.Addressing
	CoarseInterfaces []*interfaces.Interface

	// Communicator holding the coarse level.
	Comm int
}

// Agglomeration is the ordered hierarchy of coarsening steps. Level 0 is the
// fine mesh, Level(i) coarsens mesh level i into mesh level i+1.
type Agglomeration struct {
	Strategy  Strategy
	ProcLimit int
	FineComm  int

	fine   *ldu.Addressing
	levels []*LevelAddressing
}

func New(fine *ldu.Addressing, strategy Strategy) *Agglomeration {
	return &Agglomeration{
		Strategy: strategy,
		FineComm: comm.WorldComm,
		fine:     fine,
	}
}

func (a *Agglomeration) Kernel() Kernel {
	return Kernel{Strategy: a.Strategy, ProcLimit: a.ProcLimit}
}

// Size is the number of coarsening steps.
func (a *Agglomeration) Size() int { return len(a.levels) }

func (a *Agglomeration) Level(fineLevelIndex int) *LevelAddressing {
	return a.levels[fineLevelIndex]
}

// MeshLevel returns the addressing of mesh level i, nil if unknown.
func (a *Agglomeration) MeshLevel(i int) *ldu.Addressing {
	if i == 0 {
		return a.fine
	}
	return a.levels[i-1].CoarseAddressing
}

// MeshComm returns the communicator of mesh level i.
func (a *Agglomeration) MeshComm(i int) int {
	if i == 0 {
		return a.FineComm
	}
	return a.levels[i-1].Comm
}

func (a *Agglomeration) NCells(fineLevelIndex int) int { return a.levels[fineLevelIndex].NCells }
func (a *Agglomeration) NFaces(fineLevelIndex int) int { return a.levels[fineLevelIndex].NFaces }
func (a *Agglomeration) FaceFlipMap(fineLevelIndex int) []bool {
	return a.levels[fineLevelIndex].FaceFlipMap
}
func (a *Agglomeration) NPatchFaces(fineLevelIndex int) []int {
	return a.levels[fineLevelIndex].NPatchFaces
}

// AddLevel appends a coarsening step after validating it.
func (a *Agglomeration) AddLevel(l *LevelAddressing) (err error) {
	a.levels = append(a.levels, l)
	if err = a.Validate(len(a.levels) - 1); err != nil {
		a.levels = a.levels[:len(a.levels)-1]
	}
	return
}

// Validate checks the restriction addressing of one coarsening step. Any
// failure is fatal to the solve, so the error carries the level and, for
// patch addressing, the interface index.
func (a *Agglomeration) Validate(fineLevelIndex int) (err error) {
	var (
		l    = a.levels[fineLevelIndex]
		fine = a.MeshLevel(fineLevelIndex)
	)
	defer func() {
		if err != nil {
			err = errors.Wrapf(err, "agglomeration level %d", fineLevelIndex)
		}
	}()
	if l.RestrictAddressing == nil || l.FaceRestrict == nil {
		return errors.New("missing cell or face restriction addressing")
	}
	if err = l.RestrictAddressing.Validate(l.NCells, 0); err != nil {
		return errors.Wrap(err, "cell restriction")
	}
	if err = l.FaceRestrict.Validate(l.NFaces, l.NCells); err != nil {
		return errors.Wrap(err, "face restriction")
	}
	if len(l.FaceFlipMap) != l.FaceRestrict.NFine() {
		return errors.Errorf("face flip map has %d entries for %d fine faces",
			len(l.FaceFlipMap), l.FaceRestrict.NFine())
	}
	if len(l.NPatchFaces) != len(l.PatchFaceRestrict) {
		return errors.Errorf("%d patch face counts for %d patch restrictions",
			len(l.NPatchFaces), len(l.PatchFaceRestrict))
	}
	for inti, pr := range l.PatchFaceRestrict {
		if pr == nil {
			continue
		}
		if err = pr.Validate(l.NPatchFaces[inti], 0); err != nil {
			return errors.Wrapf(err, "interface %d patch face restriction", inti)
		}
	}
	if fine != nil {
		if l.RestrictAddressing.NFine() != fine.NCells {
			return errors.Errorf("cell restriction covers %d cells, fine level has %d",
				l.RestrictAddressing.NFine(), fine.NCells)
		}
		if l.FaceRestrict.NFine() != fine.NFaces() {
			return errors.Errorf("face restriction covers %d faces, fine level has %d",
				l.FaceRestrict.NFine(), fine.NFaces())
		}
		if l.CoarseAddressing != nil {
			if err = CheckConsistency(fine, l); err != nil {
				return err
			}
		}
	}
	return nil
}

// CheckConsistency verifies that every fine face maps to the coarse entity
// its two cells agglomerate into: a diagonal fold when both cells merge into
// the same coarse cell, otherwise the coarse face joining the two coarse
// cells, with the flip flag matching the coarse orientation.
func CheckConsistency(fine *ldu.Addressing, l *LevelAddressing) error {
	var (
		restrict = l.RestrictAddressing.Direct()
		target   = l.FaceRestrict.Direct()
		coarse   = l.CoarseAddressing
	)
	for f, own := range fine.LowerAddr {
		cOwn, cNbr := restrict[own], restrict[fine.UpperAddr[f]]
		t := target[f]
		if t < 0 {
			if cOwn != cNbr || FaceToDiag(t) != cOwn {
				return errors.Errorf("face %d folds into coarse cell %d but couples coarse cells (%d, %d)",
					f, FaceToDiag(t), cOwn, cNbr)
			}
			continue
		}
		if t >= coarse.NFaces() {
			return errors.Errorf("face %d maps to coarse face %d, coarse level has %d faces",
				f, t, coarse.NFaces())
		}
		lo, hi, flip := cOwn, cNbr, false
		if lo > hi {
			lo, hi, flip = hi, lo, true
		}
		if coarse.LowerAddr[t] != lo || coarse.UpperAddr[t] != hi {
			return errors.Errorf("face %d maps to coarse face %d (%d, %d) but couples coarse cells (%d, %d)",
				f, t, coarse.LowerAddr[t], coarse.UpperAddr[t], cOwn, cNbr)
		}
		if l.FaceFlipMap[f] != flip {
			return errors.Errorf("face %d flip flag %v disagrees with coarse orientation", f, l.FaceFlipMap[f])
		}
	}
	return nil
}

// AgglomerateLduAddressing derives the coarse addressing, the face
// restriction and the face flip map implied by a cell restriction. Coarse
// faces are numbered in upper triangular order (by owner, then neighbour).
func AgglomerateLduAddressing(fine *ldu.Addressing, restrict []int, nCoarseCells int) (l *LevelAddressing, err error) {
	if len(restrict) != fine.NCells {
		return nil, errors.Errorf("cell restriction has %d entries for %d fine cells",
			len(restrict), fine.NCells)
	}
	var (
		nFineFaces = fine.NFaces()
		faceTarget = make([]int, nFineFaces)
		flip       = make([]bool, nFineFaces)
		pairIndex  = make(map[[2]int]int)
		pairs      [][2]int
	)
	for c, cc := range restrict {
		if cc < 0 || cc >= nCoarseCells {
			return nil, errors.Errorf("cell %d restricts to %d, outside [0, %d)", c, cc, nCoarseCells)
		}
	}
	for f, own := range fine.LowerAddr {
		cOwn, cNbr := restrict[own], restrict[fine.UpperAddr[f]]
		if cOwn == cNbr {
			faceTarget[f] = DiagTarget(cOwn)
			continue
		}
		key := [2]int{cOwn, cNbr}
		if cOwn > cNbr {
			key = [2]int{cNbr, cOwn}
			flip[f] = true
		}
		if _, ok := pairIndex[key]; !ok {
			pairIndex[key] = len(pairs)
			pairs = append(pairs, key)
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	coarse := &ldu.Addressing{
		NCells:    nCoarseCells,
		LowerAddr: make([]int, len(pairs)),
		UpperAddr: make([]int, len(pairs)),
	}
	for i, p := range pairs {
		pairIndex[p] = i
		coarse.LowerAddr[i], coarse.UpperAddr[i] = p[0], p[1]
	}
	for f, own := range fine.LowerAddr {
		cOwn, cNbr := restrict[own], restrict[fine.UpperAddr[f]]
		if cOwn == cNbr {
			continue
		}
		if cOwn > cNbr {
			cOwn, cNbr = cNbr, cOwn
		}
		faceTarget[f] = pairIndex[[2]int{cOwn, cNbr}]
	}
	l = &LevelAddressing{
		NCells:             nCoarseCells,
		NFaces:             len(pairs),
		RestrictAddressing: NewRestriction(restrict),
		FaceRestrict:       NewRestriction(faceTarget),
		FaceFlipMap:        flip,
		CoarseAddressing:   coarse,
	}
	return
}

// AgglomeratePatch merges the faces of one patch. Fine patch faces whose cells
// restrict to the same coarse cell, and whose neighbour keys agree, become
// one coarse patch face. nbrKeys identifies the coarse entity on the other
// side (e.g. the neighbour processor's coarse cell); nil merges purely by
// coarse cell. Coarse faces are numbered by first appearance.
func AgglomeratePatch(faceCells, restrict, nbrKeys []int) (coarseFaceCells, coarseNbrKeys []int, r *Restriction) {
	var (
		index  = make(map[[2]int]int)
		direct = make([]int, len(faceCells))
	)
	for i, fc := range faceCells {
		key := [2]int{restrict[fc], 0}
		if nbrKeys != nil {
			key[1] = nbrKeys[i]
		}
		cf, ok := index[key]
		if !ok {
			cf = len(coarseFaceCells)
			index[key] = cf
			coarseFaceCells = append(coarseFaceCells, key[0])
			if nbrKeys != nil {
				coarseNbrKeys = append(coarseNbrKeys, key[1])
			}
		}
		direct[i] = cf
	}
	r = NewRestriction(direct)
	return
}

// AddInterface registers a coarse interface and its patch restriction on a
// level built by AgglomerateLduAddressing. A nil coarse interface records
// the interface as absent.
func (l *LevelAddressing) AddInterface(coarse *interfaces.Interface, patchRestrict *Restriction) {
	l.CoarseInterfaces = append(l.CoarseInterfaces, coarse)
	if coarse == nil {
		l.PatchFaceRestrict = append(l.PatchFaceRestrict, nil)
		l.NPatchFaces = append(l.NPatchFaces, 0)
		return
	}
	l.PatchFaceRestrict = append(l.PatchFaceRestrict, patchRestrict)
	l.NPatchFaces = append(l.NPatchFaces, coarse.Size())
}
