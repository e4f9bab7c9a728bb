package mapped

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/notargets/gogamg/comm"
)

// DistributeMap moves values between the sub-ranks of Comm. SubMap[proc]
// lists the local entries sent to proc, ConstructMap[proc] the result slots
// filled with what proc sends back, in the same order. The entries for the
// calling rank itself are copied locally.
type DistributeMap struct {
	Comm          int
	ConstructSize int
	SubMap        [][]int
	ConstructMap  [][]int
}

func NewDistributeMap(meshComm, constructSize int, subMap, constructMap [][]int) (d *DistributeMap, err error) {
	d = &DistributeMap{
		Comm:          meshComm,
		ConstructSize: constructSize,
		SubMap:        subMap,
		ConstructMap:  constructMap,
	}
	if len(subMap) != len(constructMap) {
		return nil, errors.Errorf("send map covers %d ranks, construct map %d", len(subMap), len(constructMap))
	}
	for proc, slots := range constructMap {
		for _, slot := range slots {
			if slot < 0 || slot >= constructSize {
				return nil, errors.Errorf("rank %d fills slot %d, outside [0, %d)", proc, slot, constructSize)
			}
		}
	}
	return
}

// LocalMap is the map of a sample that never leaves the calling rank:
// entry i of the local values lands in slot i. me is the caller's sub-rank.
func LocalMap(meshComm, me, nProcs, n int) *DistributeMap {
	var (
		sub       = make([][]int, nProcs)
		construct = make([][]int, nProcs)
		identity  = make([]int, n)
	)
	for i := range identity {
		identity[i] = i
	}
	sub[me], construct[me] = identity, identity
	return &DistributeMap{
		Comm:          meshComm,
		ConstructSize: n,
		SubMap:        sub,
		ConstructMap:  construct,
	}
}

// Distribute sends and receives under the caller's current tag. Every rank
// of Comm must call it; each pair of ranks exchanges exactly one message,
// possibly empty.
func (d *DistributeMap) Distribute(p *comm.Proc, values []float64) (result []float64, err error) {
	var (
		me     = p.MyProcNo(d.Comm)
		nProcs = p.NProcs(d.Comm)
	)
	if me == -1 {
		return nil, errors.Errorf("world rank %d is not a member of communicator %d", p.WorldRank(), d.Comm)
	}
	if len(d.SubMap) != nProcs {
		return nil, errors.Errorf("distribute map covers %d ranks, communicator %d has %d",
			len(d.SubMap), d.Comm, nProcs)
	}
	for proc, idx := range d.SubMap {
		for _, i := range idx {
			if i < 0 || i >= len(values) {
				return nil, errors.Errorf("value %d sent to rank %d is outside the %d local values",
					i, proc, len(values))
			}
		}
	}
	for proc := 0; proc < nProcs; proc++ {
		if proc != me {
			p.Send(d.Comm, proc, gather(values, d.SubMap[proc]))
		}
	}
	result = make([]float64, d.ConstructSize)
	scatter(result, gather(values, d.SubMap[me]), d.ConstructMap[me], me)
	for proc := 0; proc < nProcs; proc++ {
		if proc != me {
			scatter(result, p.RecvFloats(d.Comm, proc), d.ConstructMap[proc], proc)
		}
	}
	return
}

func gather(values []float64, idx []int) (g []float64) {
	g = make([]float64, len(idx))
	for i, j := range idx {
		g[i] = values[j]
	}
	return
}

func scatter(result, received []float64, slots []int, from int) {
	if len(received) != len(slots) {
		panic(fmt.Errorf("received %d values from rank %d for %d slots", len(received), from, len(slots)))
	}
	for i, slot := range slots {
		result[slot] = received[i]
	}
}
