// Package ldu holds the face addressed sparse matrix representation used by
// every multigrid level: a diagonal per cell plus upper and lower
// coefficients per face, where each face couples an owner (lower address)
// and a neighbour (upper address) cell.
package ldu

import (
	"github.com/pkg/errors"
)

// Addressing is the face-to-cell connectivity of an LDU matrix. Face f
// couples LowerAddr[f] (owner) with UpperAddr[f] (neighbour).
type Addressing struct {
	NCells    int
	LowerAddr []int
	UpperAddr []int
}

func NewAddressing(nCells int, lowerAddr, upperAddr []int) (addr *Addressing, err error) {
	addr = &Addressing{
		NCells:    nCells,
		LowerAddr: lowerAddr,
		UpperAddr: upperAddr,
	}
	if err = addr.Validate(); err != nil {
		return nil, err
	}
	return
}

func (a *Addressing) NFaces() int { return len(a.LowerAddr) }

func (a *Addressing) Validate() error {
	if len(a.LowerAddr) != len(a.UpperAddr) {
		return errors.Errorf("lower and upper addressing differ in length: %d != %d",
			len(a.LowerAddr), len(a.UpperAddr))
	}
	for f, own := range a.LowerAddr {
		nbr := a.UpperAddr[f]
		if own < 0 || own >= a.NCells || nbr < 0 || nbr >= a.NCells {
			return errors.Errorf("face %d addresses cells (%d, %d) outside [0, %d)",
				f, own, nbr, a.NCells)
		}
		if own == nbr {
			return errors.Errorf("face %d couples cell %d with itself", f, own)
		}
	}
	return nil
}

