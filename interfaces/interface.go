// Package interfaces holds coupled boundary interfaces: their topology on a
// given level and the fields that apply the coupling during a matrix
// product. Coarse level fields are built through a registry keyed by the
// kind of the fine level field.
package interfaces

import (
	"github.com/notargets/gogamg/types"
)

// Interface is the topology of one coupled patch on one level.
type Interface struct {
	Kind      types.InterfaceKind
	Index     int   // position in the level's interface list
	FaceCells []int // cell adjacent to each patch face

	NbrProcNo int  // processor: neighbour sub-rank on Comm
	NbrIndex  int  // cyclic: index of the partner patch on the same level
	Comm      int  // communicator of the level
	Transform bool // coupling applies a rotation
}

func (i *Interface) Size() int { return len(i.FaceCells) }

// Field applies the coupling of one interface in two phases.
// InitInterfaceMatrixUpdate posts the patch values the neighbour needs and
// never waits. UpdateInterfaceMatrix obtains the coupled neighbour values
// and subtracts coeffs times them from result at the patch face cells.
// Every field of a level is initialised before any of them is updated, so
// neighbours waiting on each other in a cycle still complete. fields is the
// level's full interface field list, for couplings whose partner lives on
// the same level.
type Field interface {
	Kind() types.InterfaceKind
	Interface() *Interface
	DoTransform() bool
	Rank() int
	InitInterfaceMatrixUpdate(psi []float64, p Communicator)
	UpdateInterfaceMatrix(result, psi, coeffs []float64, p Communicator, fields []Field)
}

// Communicator is the part of comm.Proc a coupled update needs.
type Communicator interface {
	Send(comm, to int, payload any)
	RecvFloats(comm, from int) []float64
	PushMsgType(offset int) (restore func())
}

type fieldBase struct {
	iface       *Interface
	doTransform bool
}

func (f *fieldBase) Interface() *Interface { return f.iface }
func (f *fieldBase) DoTransform() bool     { return f.doTransform }

func gatherFaceValues(psi []float64, faceCells []int) (pf []float64) {
	pf = make([]float64, len(faceCells))
	for i, c := range faceCells {
		pf[i] = psi[c]
	}
	return
}

func subtractCoupled(result, coeffs, nbrValues []float64, faceCells []int) {
	for i, c := range faceCells {
		result[c] -= coeffs[i] * nbrValues[i]
	}
}
