package comm

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorldReductions(t *testing.T) {
	var (
		nProcs = 4
		w      = NewWorld(nProcs)
		mu     sync.Mutex
		got    = make(map[string][]float64)
	)
	record := func(key string, v float64) {
		mu.Lock()
		got[key] = append(got[key], v)
		mu.Unlock()
	}
	err := w.Run(func(p *Proc) error {
		r := float64(p.WorldRank())
		local := []float64{r, -r, 2 * r}
		record("sum", GSum(p, WorldComm, local))
		record("max", GMax(p, WorldComm, local))
		record("min", GMin(p, WorldComm, local))
		record("mag", GSumMag(p, WorldComm, local))
		record("sqr", GSumSqr(p, WorldComm, local))
		record("dot", GSumProd(p, WorldComm, local, []float64{1, 1, 1}))
		record("avg", GAverage(p, WorldComm, local))
		record("maxMagSqr", GMaxMagSqr(p, WorldComm, local))
		record("minMagSqr", GMinMagSqr(p, WorldComm, local))
		p.Barrier(WorldComm)
		return nil
	})
	require.NoError(t, err)
	// sum over ranks 0..3 of (r - r + 2r) = 2*6
	expect := map[string]float64{
		"sum":       12,
		"max":       6,
		"min":       -3,
		"mag":       4 * 6,
		"sqr":       6 * 14,
		"dot":       12,
		"avg":       1,
		"maxMagSqr": 36,
		"minMagSqr": 0,
	}
	for key, val := range expect {
		require.Len(t, got[key], nProcs, key)
		for _, v := range got[key] {
			assert.InDelta(t, val, v, 1e-12, key)
		}
	}
}

func TestSubCommunicator(t *testing.T) {
	var (
		w       = NewWorld(4)
		mu      sync.Mutex
		results = make(map[int][3]float64)
	)
	sub, err := w.AllocateCommunicator(WorldComm, []int{3, 1})
	require.NoError(t, err)
	assert.Equal(t, 1, sub)
	err = w.Run(func(p *Proc) error {
		if !p.IsActive(sub) {
			assert.Equal(t, -1, p.MyProcNo(sub))
			return nil
		}
		// Inactive ranks would have held -100 and 100; they must not count.
		v := []float64{float64(p.WorldRank())}
		r := [3]float64{GSum(p, sub, v), GMax(p, sub, v), GMin(p, sub, v)}
		mu.Lock()
		results[p.WorldRank()] = r
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[int][3]float64{
		1: {4, 3, 1},
		3: {4, 3, 1},
	}, results)
	p3 := w.Proc(3)
	assert.Equal(t, 0, p3.MyProcNo(sub))
	assert.True(t, p3.Master(sub))
	assert.Equal(t, 2, p3.NProcs(sub))

	// Non-members calling a collective is fatal
	assert.Panics(t, func() { w.Proc(0).Sum(sub, 1) })
	_, err = w.AllocateCommunicator(WorldComm, []int{0, 0})
	assert.Error(t, err)
	_, err = w.AllocateCommunicator(WorldComm, []int{4})
	assert.Error(t, err)
	_, err = w.AllocateCommunicator(7, []int{0})
	assert.Error(t, err)
	_, err = w.AllocateCommunicator(sub, nil)
	assert.Error(t, err)
	// Nested communicator: sub-rank 1 of sub is world rank 1
	nested, err := w.AllocateCommunicator(sub, []int{1})
	require.NoError(t, err)
	assert.Equal(t, 0, w.Proc(1).MyProcNo(nested))
	assert.Equal(t, 5., w.Proc(1).Sum(nested, 5))
}

func TestEmptyLocalData(t *testing.T) {
	w := NewWorld(3)
	var (
		mu   sync.Mutex
		maxs []float64
	)
	err := w.Run(func(p *Proc) error {
		var local []float64
		if p.WorldRank() == 2 {
			local = []float64{-7, -9}
		}
		m := GMax(p, WorldComm, local)
		mu.Lock()
		maxs = append(maxs, m)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{-7, -7, -7}, maxs)
	assert.Equal(t, 0., GAverage(NewWorld(1).Proc(0), WorldComm, nil))
	assert.Equal(t, math.MaxFloat64, OpMin.Identity())
}

func TestScopedTagsAndMessages(t *testing.T) {
	var (
		nProcs = 3
		w      = NewWorld(nProcs)
	)
	err := w.Run(func(p *Proc) error {
		var (
			me   = p.MyProcNo(WorldComm)
			next = (me + 1) % nProcs
			prev = (me + nProcs - 1) % nProcs
		)
		// Traffic on the base tag stays in flight while a scoped exchange runs
		p.Send(WorldComm, next, []float64{float64(me)})
		func() {
			defer p.PushMsgType(1)()
			if p.MsgType() != 2 {
				panic(fmt.Errorf("scoped tag is %d", p.MsgType()))
			}
			p.Send(WorldComm, prev, []float64{10 * float64(me)})
			if got := p.RecvFloats(WorldComm, next); got[0] != 10*float64(next) {
				panic(fmt.Errorf("rank %d scoped recv %v", me, got))
			}
		}()
		if p.MsgType() != 1 {
			return fmt.Errorf("tag not restored: %d", p.MsgType())
		}
		if got := p.RecvFloats(WorldComm, prev); got[0] != float64(prev) {
			return fmt.Errorf("rank %d recv %v", me, got)
		}
		return nil
	})
	require.NoError(t, err)

	p := w.Proc(0)
	old := p.SetMsgType(7)
	assert.Equal(t, 1, old)
	restore := p.PushMsgType(3)
	assert.Equal(t, 10, p.MsgType())
	restore()
	assert.Equal(t, 7, p.MsgType())
	assert.Panics(t, func() { p.Send(WorldComm, 9, nil) })
}

func TestRunReportsErrors(t *testing.T) {
	w := NewWorld(2)
	err := w.Run(func(p *Proc) error {
		if p.WorldRank() == 1 {
			return fmt.Errorf("boom")
		}
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rank 1")
	assert.Panics(t, func() { NewWorld(0) })
}
