package interfaces

import (
	"fmt"

	"github.com/notargets/gogamg/types"
)

// ProcessorField couples cells across a processor boundary. The neighbour
// values arrive from NbrProcNo on the interface's communicator.
type ProcessorField struct {
	fieldBase
	rank int
}

func NewProcessorField(iface *Interface, doTransform bool, rank int) *ProcessorField {
	return &ProcessorField{
		fieldBase: fieldBase{iface: iface, doTransform: doTransform},
		rank:      rank,
	}
}

func (f *ProcessorField) Kind() types.InterfaceKind { return types.IK_Processor }
func (f *ProcessorField) Rank() int                 { return f.rank }

// InitInterfaceMatrixUpdate sends the patch values to the neighbour under a
// scratch tag, so they cannot match boundary traffic already in flight.
func (f *ProcessorField) InitInterfaceMatrixUpdate(psi []float64, p Communicator) {
	var (
		iface = f.iface
	)
	defer p.PushMsgType(1)()
	p.Send(iface.Comm, iface.NbrProcNo, gatherFaceValues(psi, iface.FaceCells))
}

// UpdateInterfaceMatrix receives what the neighbour sent in its
// InitInterfaceMatrixUpdate, on the same scratch tag.
func (f *ProcessorField) UpdateInterfaceMatrix(result, _, coeffs []float64, p Communicator, _ []Field) {
	var (
		iface = f.iface
	)
	defer p.PushMsgType(1)()
	nbr := p.RecvFloats(iface.Comm, iface.NbrProcNo)
	if len(nbr) != iface.Size() {
		panic(fmt.Errorf("processor interface %d received %d values for %d faces",
			iface.Index, len(nbr), iface.Size()))
	}
	subtractCoupled(result, coeffs, nbr, iface.FaceCells)
}

// CyclicField couples two patches of the same level; the neighbour values
// are the cells of the partner patch.
type CyclicField struct {
	fieldBase
}

func NewCyclicField(iface *Interface, doTransform bool) *CyclicField {
	return &CyclicField{
		fieldBase: fieldBase{iface: iface, doTransform: doTransform},
	}
}

func (f *CyclicField) Kind() types.InterfaceKind { return types.IK_Cyclic }
func (f *CyclicField) Rank() int                 { return -1 }

func (f *CyclicField) InitInterfaceMatrixUpdate(_ []float64, _ Communicator) {}

func (f *CyclicField) UpdateInterfaceMatrix(result, psi, coeffs []float64, _ Communicator, fields []Field) {
	var (
		iface = f.iface
	)
	if iface.NbrIndex < 0 || iface.NbrIndex >= len(fields) || fields[iface.NbrIndex] == nil {
		panic(fmt.Errorf("cyclic interface %d has no partner at index %d", iface.Index, iface.NbrIndex))
	}
	partner := fields[iface.NbrIndex].Interface()
	if partner.Size() != iface.Size() {
		panic(fmt.Errorf("cyclic interface %d has %d faces, partner %d has %d",
			iface.Index, iface.Size(), partner.Index, partner.Size()))
	}
	subtractCoupled(result, coeffs, gatherFaceValues(psi, partner.FaceCells), iface.FaceCells)
}
