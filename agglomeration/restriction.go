// Package agglomeration holds the restriction addressing that maps the
// cells, faces and patch faces of one multigrid level onto the next coarser
// one, and the restriction kernels that sum fine values into coarse ones.
package agglomeration

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// DiagTarget encodes "fold into the diagonal of coarse cell c" as a face
// target. Negative face targets are always diagonal folds.
func DiagTarget(c int) int { return -1 - c }

// FaceToDiag is the inverse of DiagTarget.
func FaceToDiag(target int) int { return -1 - target }

// Restriction is a many-to-one mapping from fine indices to targets, stored
// with fine indices grouped by target:
//
//	SortAddr[TargetStartAddr[i]:TargetStartAddr[i+1]] are the fine indices
//	mapping to TargetAddr[i]
//
// TargetAddr is strictly increasing, so segments never share a target and a
// worker that owns a range of segments owns the matching coarse entries.
type Restriction struct {
	SortAddr        []int
	TargetAddr      []int
	TargetStartAddr []int

	directOnce sync.Once
	direct     []int
}

// NewRestriction groups a direct target-per-fine-index mapping into segments.
// The grouping is stable, so fine indices inside a segment stay ascending.
func NewRestriction(direct []int) (r *Restriction) {
	var (
		nFine = len(direct)
	)
	r = &Restriction{
		SortAddr: make([]int, nFine),
	}
	for i := range r.SortAddr {
		r.SortAddr[i] = i
	}
	sort.SliceStable(r.SortAddr, func(i, j int) bool {
		return direct[r.SortAddr[i]] < direct[r.SortAddr[j]]
	})
	for i, fine := range r.SortAddr {
		if i == 0 || direct[fine] != direct[r.SortAddr[i-1]] {
			r.TargetAddr = append(r.TargetAddr, direct[fine])
			r.TargetStartAddr = append(r.TargetStartAddr, i)
		}
	}
	r.TargetStartAddr = append(r.TargetStartAddr, nFine)
	r.direct = append([]int(nil), direct...)
	r.directOnce.Do(func() {})
	return
}

// NewSegmentedRestriction accepts an already grouped mapping and checks that
// its segments partition every fine index exactly once.
func NewSegmentedRestriction(sortAddr, targetAddr, targetStartAddr []int) (r *Restriction, err error) {
	r = &Restriction{
		SortAddr:        sortAddr,
		TargetAddr:      targetAddr,
		TargetStartAddr: targetStartAddr,
	}
	if err = r.checkPartition(); err != nil {
		return nil, err
	}
	return
}

// IdentityRestriction maps fine index i onto target i.
func IdentityRestriction(n int) *Restriction {
	direct := make([]int, n)
	for i := range direct {
		direct[i] = i
	}
	return NewRestriction(direct)
}

func (r *Restriction) checkPartition() error {
	var (
		nFine = len(r.SortAddr)
		nSeg  = len(r.TargetAddr)
		seen  = make([]bool, nFine)
	)
	if len(r.TargetStartAddr) != nSeg+1 {
		return errors.Errorf("segment start addressing has %d entries, want %d",
			len(r.TargetStartAddr), nSeg+1)
	}
	if r.TargetStartAddr[0] != 0 || r.TargetStartAddr[nSeg] != nFine {
		return errors.Errorf("segments span [%d, %d), want [0, %d)",
			r.TargetStartAddr[0], r.TargetStartAddr[nSeg], nFine)
	}
	for i := 0; i < nSeg; i++ {
		if r.TargetStartAddr[i+1] <= r.TargetStartAddr[i] {
			return errors.Errorf("segment %d (target %d) is empty or reversed", i, r.TargetAddr[i])
		}
		if i > 0 && r.TargetAddr[i] <= r.TargetAddr[i-1] {
			return errors.Errorf("targets not strictly increasing at segment %d: %d after %d",
				i, r.TargetAddr[i], r.TargetAddr[i-1])
		}
	}
	for _, fine := range r.SortAddr {
		if fine < 0 || fine >= nFine {
			return errors.Errorf("fine index %d outside [0, %d)", fine, nFine)
		}
		if seen[fine] {
			return errors.Errorf("fine index %d appears in more than one segment", fine)
		}
		seen[fine] = true
	}
	return nil
}

func (r *Restriction) NFine() int    { return len(r.SortAddr) }
func (r *Restriction) NTargets() int { return len(r.TargetAddr) }

// Segment returns the target of segment i and its range in SortAddr.
func (r *Restriction) Segment(i int) (target, lo, hi int) {
	return r.TargetAddr[i], r.TargetStartAddr[i], r.TargetStartAddr[i+1]
}

// Direct returns the target of every fine index. It is derived from the
// segments on first use and cached; callers must not modify it.
func (r *Restriction) Direct() []int {
	r.directOnce.Do(func() {
		r.direct = make([]int, len(r.SortAddr))
		for i, target := range r.TargetAddr {
			for _, fine := range r.SortAddr[r.TargetStartAddr[i]:r.TargetStartAddr[i+1]] {
				r.direct[fine] = target
			}
		}
	})
	return r.direct
}

// Validate checks every target against the coarse sizes. Non-negative
// targets must lie in [0, nCoarse). Negative targets are diagonal folds and
// are only legal when nCoarseCells > 0, in which case the folded cell must
// lie in [0, nCoarseCells).
func (r *Restriction) Validate(nCoarse, nCoarseCells int) error {
	for i, target := range r.TargetAddr {
		switch {
		case target >= nCoarse:
			return errors.Errorf("segment %d targets %d, outside coarse range [0, %d)",
				i, target, nCoarse)
		case target < 0 && nCoarseCells <= 0:
			return errors.Errorf("segment %d has diagonal target %d where no diagonal fold is allowed",
				i, target)
		case target < 0 && FaceToDiag(target) >= nCoarseCells:
			return errors.Errorf("segment %d folds into coarse cell %d, outside [0, %d)",
				i, FaceToDiag(target), nCoarseCells)
		}
	}
	return nil
}

// FirstNonNegative returns the index of the first segment with a
// non-negative target, which splits the diagonal folds from the real faces.
func (r *Restriction) FirstNonNegative() int {
	return sort.SearchInts(r.TargetAddr, 0)
}
