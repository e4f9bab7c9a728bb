package interfaces

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gogamg/comm"
	"github.com/notargets/gogamg/types"
)

func TestRegistry(t *testing.T) {
	var (
		fineProc   = NewProcessorField(&Interface{Kind: types.IK_Processor, Index: 2, FaceCells: []int{0, 1, 2}}, true, 3)
		coarseProc = &Interface{Kind: types.IK_Processor, Index: 2, FaceCells: []int{0}}
	)
	f, err := New(coarseProc, fineProc)
	require.NoError(t, err)
	assert.Equal(t, types.IK_Processor, f.Kind())
	assert.Same(t, coarseProc, f.Interface())
	assert.True(t, f.DoTransform())
	assert.Equal(t, 3, f.Rank())

	fineCyc := NewCyclicField(&Interface{Kind: types.IK_Cyclic, Index: 0, FaceCells: []int{4}}, false)
	f, err = New(&Interface{Kind: types.IK_Cyclic, Index: 0, FaceCells: []int{1}}, fineCyc)
	require.NoError(t, err)
	assert.Equal(t, -1, f.Rank())
	assert.IsType(t, &CyclicField{}, f)

	// Coarse topology of a different kind
	_, err = New(&Interface{Kind: types.IK_Cyclic}, fineProc)
	assert.Error(t, err)
	_, err = New(nil, fineProc)
	assert.Error(t, err)
	// Kind without a registered factory
	_, err = New(&Interface{Kind: types.IK_ProcessorCyclic}, stubField{kind: types.IK_ProcessorCyclic})
	assert.Error(t, err)
	Register(types.IK_ProcessorCyclic, func(coarse *Interface, fine Field) (Field, error) {
		return stubField{kind: types.IK_ProcessorCyclic, iface: coarse}, nil
	})
	defer func() {
		registryMu.Lock()
		delete(factories, types.IK_ProcessorCyclic)
		registryMu.Unlock()
	}()
	f, err = New(&Interface{Kind: types.IK_ProcessorCyclic, Index: 5}, stubField{kind: types.IK_ProcessorCyclic})
	require.NoError(t, err)
	assert.Equal(t, 5, f.Interface().Index)
}

type stubField struct {
	kind  types.InterfaceKind
	iface *Interface
}

func (s stubField) Kind() types.InterfaceKind { return s.kind }
func (s stubField) Interface() *Interface {
	if s.iface == nil {
		return &Interface{}
	}
	return s.iface
}
func (s stubField) DoTransform() bool { return false }
func (s stubField) Rank() int         { return -1 }

func (s stubField) InitInterfaceMatrixUpdate(_ []float64, _ Communicator) {}

func (s stubField) UpdateInterfaceMatrix(_, _, _ []float64, _ Communicator, _ []Field) {}

func TestCyclicUpdate(t *testing.T) {
	var (
		a      = NewCyclicField(&Interface{Kind: types.IK_Cyclic, Index: 0, NbrIndex: 1, FaceCells: []int{0, 1}}, false)
		b      = NewCyclicField(&Interface{Kind: types.IK_Cyclic, Index: 1, NbrIndex: 0, FaceCells: []int{3, 2}}, false)
		fields = []Field{a, b}
		psi    = []float64{1, 2, 3, 4}
		result = make([]float64, 4)
	)
	a.UpdateInterfaceMatrix(result, psi, []float64{1, 10}, nil, fields)
	b.UpdateInterfaceMatrix(result, psi, []float64{1, 1}, nil, fields)
	assert.Equal(t, []float64{-4, -30, -2, -1}, result)
	assert.Panics(t, func() { a.UpdateInterfaceMatrix(result, psi, []float64{1, 1}, nil, fields[:1]) })
}

func TestProcessorUpdate(t *testing.T) {
	var (
		w       = comm.NewWorld(2)
		results = make([][]float64, 2)
	)
	err := w.Run(func(p *comm.Proc) error {
		var (
			me    = p.MyProcNo(comm.WorldComm)
			iface = &Interface{
				Kind:      types.IK_Processor,
				FaceCells: []int{1, 0},
				NbrProcNo: 1 - me,
				Comm:      comm.WorldComm,
			}
			f      = NewProcessorField(iface, false, 1-me)
			psi    = []float64{float64(10 * (me + 1)), float64(20 * (me + 1))}
			result = make([]float64, 2)
		)
		f.InitInterfaceMatrixUpdate(psi, p)
		f.UpdateInterfaceMatrix(result, psi, []float64{0.5, 2}, p, []Field{f})
		results[me] = result
		if p.MsgType() != 1 {
			t.Errorf("rank %d left tag %d", me, p.MsgType())
		}
		return nil
	})
	require.NoError(t, err)
	// rank 0 receives [psi1[1], psi1[0]] = [40, 20]
	assert.Equal(t, []float64{-40, -20}, results[0])
	// rank 1 receives [20, 10]
	assert.Equal(t, []float64{-20, -10}, results[1])
}

// Each rank of a three rank ring couples to both other ranks, so every
// neighbour is also waiting on a neighbour.
func TestProcessorRing(t *testing.T) {
	var (
		nProcs  = 3
		w       = comm.NewWorld(nProcs)
		results = make([][]float64, nProcs)
		done    = make(chan error, 1)
	)
	go func() {
		done <- w.Run(func(p *comm.Proc) error {
			var (
				me     = p.MyProcNo(comm.WorldComm)
				fields = make([]Field, 2)
				psi    = []float64{float64(10 * (me + 1)), float64(10*(me+1) + 1)}
				result = make([]float64, 2)
			)
			// interface 0 on cell 0 faces me+1, interface 1 on cell 1 faces me-1
			for inti, nbr := range []int{(me + 1) % nProcs, (me + nProcs - 1) % nProcs} {
				fields[inti] = NewProcessorField(&Interface{
					Kind:      types.IK_Processor,
					Index:     inti,
					FaceCells: []int{inti},
					NbrProcNo: nbr,
					Comm:      comm.WorldComm,
				}, false, nbr)
			}
			for _, f := range fields {
				f.InitInterfaceMatrixUpdate(psi, p)
			}
			for _, f := range fields {
				f.UpdateInterfaceMatrix(result, psi, []float64{1}, p, fields)
			}
			results[me] = result
			return nil
		})
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("processor interfaces on a ring did not complete")
	}
	for me := range results {
		var (
			up   = (me + 1) % nProcs
			down = (me + nProcs - 1) % nProcs
		)
		// the rank above sends its cell 1, the rank below its cell 0
		assert.Equal(t, []float64{-float64(10*(up+1) + 1), -float64(10 * (down + 1))}, results[me],
			"rank %d", me)
	}
}
