package Poisson2D

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gogamg/agglomeration"
	"github.com/notargets/gogamg/comm"
	"github.com/notargets/gogamg/gamg"
	"github.com/notargets/gogamg/mapped"
)

func TestSlabs(t *testing.T) {
	c, err := NewCase(9, 7, 3, 0)
	require.NoError(t, err)
	for rank, want := range [][2]int{{0, 3}, {3, 2}, {5, 2}} {
		j0, ny := c.rows(rank)
		assert.Equal(t, want, [2]int{j0, ny}, "rank %d", rank)
	}
	assert.Equal(t, 4, c.MaxLevels())
	_, err = NewCase(4, 2, 3, 0)
	assert.Error(t, err)

	restrict, cnx, cny := pairRestrict(3, 3)
	assert.Equal(t, []int{0, 0, 1, 0, 0, 1, 2, 2, 3}, restrict)
	assert.Equal(t, [2]int{2, 2}, [2]int{cnx, cny})
}

func TestSerialSlab(t *testing.T) {
	c, err := NewCase(6, 5, 1, 0)
	require.NoError(t, err)
	p := comm.NewWorld(1).Proc(0)
	s, err := c.NewSlab(p)
	require.NoError(t, err)
	assert.Equal(t, "slab 0 of 1: 6 x 5 cells, 49 faces", s.String())
	assert.Nil(t, s.Interfaces[0])
	assert.Nil(t, s.Interfaces[1])
	assert.True(t, s.Matrix.Symmetric())

	a, err := s.Agglomeration(agglomeration.SortReduce, c.MaxLevels(), 2)
	require.NoError(t, err)
	// 6x5 -> 3x3 -> 2x2 -> 1x1
	require.Equal(t, 3, a.Size())
	assert.Equal(t, []int{9, 4, 1}, []int{a.NCells(0), a.NCells(1), a.NCells(2)})
	assert.Equal(t, []int{0, 0}, a.NPatchFaces(0))

	solver, err := gamg.NewSolver(p, a, s.Matrix, s.Interfaces, s.Coeffs)
	require.NoError(t, err)
	require.NoError(t, solver.Agglomerate())
	fineSum := s.Matrix.CoefficientSum()
	for i := 1; i < solver.NLevels(); i++ {
		assert.InDelta(t, fineSum, solver.MatrixLevel(i).CoefficientSum(), 1e-12, "level %d", i)
	}
}

// Row sums of the coupled operator close over the ranks on every level.
func TestCoupledSlabs(t *testing.T) {
	for _, convection := range []float64{0, 0.5} {
		c, err := NewCase(10, 9, 3, convection)
		require.NoError(t, err)
		var (
			w       = comm.NewWorld(3)
			nLevels = c.MaxLevels()
			stats   = make([][]gamg.LevelStats, 3)
			sums    = make([][]float64, 3)
		)
		err = w.Run(func(p *comm.Proc) (err error) {
			s, err := c.NewSlab(p)
			if err != nil {
				return
			}
			a, err := s.Agglomeration(agglomeration.Atomic, nLevels, 0)
			if err != nil {
				return
			}
			solver, err := gamg.NewSolver(p, a, s.Matrix, s.Interfaces, s.Coeffs)
			if err != nil {
				return
			}
			if err = solver.Agglomerate(); err != nil {
				return
			}
			rank := p.WorldRank()
			for i := 0; i < solver.NLevels(); i++ {
				ones := make([]float64, solver.MatrixLevel(i).NCells())
				for j := range ones {
					ones[j] = 1
				}
				var Apsi []float64
				if Apsi, err = solver.Amul(i, ones); err != nil {
					return
				}
				sums[rank] = append(sums[rank], comm.GSum(p, comm.WorldComm, Apsi))
			}
			stats[rank] = solver.Stats()
			return
		})
		require.NoError(t, err)
		st := stats[0]
		require.Len(t, st, nLevels+1)
		assert.Equal(t, 90, st[0].NCells)
		assert.Equal(t, convection > 0, st[0].Asymmetric)
		// two processor boundaries of 10 faces, seen from both sides
		assert.Equal(t, 40., st[0].BoundarySum)
		assert.Equal(t, 4, st[0].NInterfaces)
		for i := range st {
			assert.Equal(t, 3, st[i].NActive)
			assert.InDelta(t, st[0].CoeffSum, st[i].CoeffSum, 1e-9, "level %d", i)
			assert.InDelta(t, st[0].BoundarySum, st[i].BoundarySum, 1e-9, "level %d", i)
			for rank := range sums {
				assert.InDelta(t, st[i].CoeffSum-st[i].BoundarySum, sums[rank][i], 1e-9,
					"rank %d level %d", rank, i)
			}
		}
	}
}

func TestWallMap(t *testing.T) {
	for _, nProcs := range []int{1, 3} {
		c, err := NewCase(6, 7, nProcs, 0)
		require.NoError(t, err)
		var (
			w        = comm.NewWorld(nProcs)
			received = make([][][]float64, nProcs)
		)
		err = w.Run(func(p *comm.Proc) (err error) {
			s, err := c.NewSlab(p)
			if err != nil {
				return
			}
			values := make([]float64, s.Nx*s.Ny)
			for k := range values {
				values[k] = float64(s.J0*s.Nx + k)
			}
			nFaces := s.Addr.NFaces()
			src := WallSource(values, s.Nx, s.Ny, nFaces)
			for _, mode := range []mapped.SampleMode{mapped.NearestCell, mapped.NearestPatchFace, mapped.NearestFace} {
				var dm *mapped.DistributeMap
				if dm, err = c.WallMap(p, mode, s.Nx, s.Ny, nFaces); err != nil {
					return
				}
				m := &mapped.Mapper{Mode: mode, SamplePatch: TopPatch, Map: dm}
				var mv []float64
				if mv, err = m.MappedField(p, src, make([]float64, dm.ConstructSize)); err != nil {
					return
				}
				received[s.Rank] = append(received[s.Rank], mv)
			}
			return
		})
		require.NoError(t, err)
		// the top row of the grid, global row 6
		top := []float64{36, 37, 38, 39, 40, 41}
		for _, mv := range received[0] {
			assert.Equal(t, top, mv, "%d ranks", nProcs)
		}
		for rank := 1; rank < nProcs; rank++ {
			for _, mv := range received[rank] {
				assert.Empty(t, mv)
			}
		}
	}
	s := &Slab{Nx: 6, Ny: 3}
	nx, ny := s.LevelDims(2)
	assert.Equal(t, [2]int{2, 1}, [2]int{nx, ny})
}
