package gamg

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/notargets/gogamg/comm"
	"github.com/notargets/gogamg/ldu"
)

// ProcMatrix is one processor's level as collected on the master of a
// processor agglomeration group.
type ProcMatrix struct {
	Matrix     *ldu.Matrix
	Transforms []bool // per interface; false for absent interfaces
	Ranks      []int  // per interface; -1 for absent interfaces
	Coeffs     ldu.CoeffSets
}

func newProcMatrix(level *Level) (pm *ProcMatrix) {
	var (
		nInt = len(level.Interfaces)
	)
	pm = &ProcMatrix{
		Matrix:     level.Matrix.Clone(),
		Transforms: make([]bool, nInt),
		Ranks:      make([]int, nInt),
		Coeffs:     ldu.NewCoeffSets(nInt),
	}
	for inti, f := range level.Interfaces {
		if f == nil {
			pm.Ranks[inti] = -1
			continue
		}
		pm.Transforms[inti] = f.DoTransform()
		pm.Ranks[inti] = f.Rank()
		cs := level.Coeffs[inti]
		pm.Coeffs[inti] = &ldu.CoeffSet{
			Boundary: append([]float64(nil), cs.Boundary...),
			Internal: append([]float64(nil), cs.Internal...),
		}
	}
	return
}

// Present reports which interfaces the sending processor holds.
func (pm *ProcMatrix) Present() (present []bool) {
	present = make([]bool, len(pm.Ranks))
	for i := range pm.Ranks {
		present[i] = pm.Coeffs.Set(i)
	}
	return
}

// GatherMatrices collects the level held by every sub-rank of procIDs onto
// procIDs[0], within meshComm. The master gets one entry per procIDs member
// in procIDs order, its own first; every other member sends and gets nil.
// All traffic runs under a scratch tag.
func GatherMatrices(p *comm.Proc, procIDs []int, meshComm int, level *Level) (gathered []*ProcMatrix, err error) {
	var (
		me = p.MyProcNo(meshComm)
	)
	if len(procIDs) == 0 {
		return nil, errors.New("empty processor agglomeration group")
	}
	member := false
	for _, id := range procIDs {
		member = member || id == me
	}
	if me == -1 || !member {
		return nil, errors.Errorf("world rank %d is not in processor group %v of communicator %d",
			p.WorldRank(), procIDs, meshComm)
	}
	if !level.Active() {
		return nil, errors.Errorf("world rank %d has no matrix to gather", p.WorldRank())
	}
	defer p.PushMsgType(1)()

	if me != procIDs[0] {
		p.Send(meshComm, procIDs[0], newProcMatrix(level))
		return
	}
	gathered = make([]*ProcMatrix, len(procIDs))
	gathered[0] = newProcMatrix(level)
	for i, id := range procIDs[1:] {
		msg := p.Recv(meshComm, id)
		pm, ok := msg.(*ProcMatrix)
		if !ok {
			panic(fmt.Errorf("expected a processor matrix from %d, got %T", id, msg))
		}
		gathered[i+1] = pm
	}
	return
}

func (pm *ProcMatrix) String() string {
	var nPresent int
	for _, ok := range pm.Present() {
		if ok {
			nPresent++
		}
	}
	return fmt.Sprintf("%d cells, %d faces, %d of %d interfaces",
		pm.Matrix.NCells(), pm.Matrix.NFaces(), nPresent, len(pm.Ranks))
}
