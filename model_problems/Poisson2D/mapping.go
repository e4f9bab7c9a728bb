package Poisson2D

import (
	"github.com/notargets/gogamg/comm"
	"github.com/notargets/gogamg/mapped"
)

const TopPatch = "top"

// LevelDims is the slab size in cells after level pairwise coarsenings.
func (s *Slab) LevelDims(level int) (nx, ny int) {
	nx, ny = s.Nx, s.Ny
	for i := 0; i < level; i++ {
		nx, ny = (nx+1)/2, (ny+1)/2
	}
	return
}

// WallSource exposes the cell values of an nx by ny slab, with its top row
// of cells as the top patch. The patch faces follow the nFaces internal
// faces in the face numbering.
func WallSource(values []float64, nx, ny, nFaces int) *mapped.Source {
	top := make([]float64, nx)
	copy(top, values[(ny-1)*nx:ny*nx])
	return &mapped.Source{
		CellValues: values,
		Patches:    []mapped.Patch{{Name: TopPatch, Start: nFaces, Values: top}},
		NFaces:     nFaces + nx,
	}
}

// WallMap carries the top wall of the last slab onto the bottom wall of the
// first, as an inflow recycled from the outflow. The sent entries index
// what mode samples from a WallSource; only rank 0 receives values.
func (c *Case) WallMap(p *comm.Proc, mode mapped.SampleMode, nx, ny, nFaces int) (*mapped.DistributeMap, error) {
	var (
		me        = p.MyProcNo(comm.WorldComm)
		last      = c.NProcs - 1
		subMap    = make([][]int, c.NProcs)
		construct = make([][]int, c.NProcs)
		size      int
	)
	if me == last {
		subMap[0] = make([]int, nx)
		for i := range subMap[0] {
			switch mode {
			case mapped.NearestCell:
				subMap[0][i] = (ny-1)*nx + i
			case mapped.NearestFace:
				subMap[0][i] = nFaces + i
			default:
				subMap[0][i] = i
			}
		}
	}
	if me == 0 {
		size = nx
		construct[last] = make([]int, nx)
		for i := range construct[last] {
			construct[last][i] = i
		}
	}
	return mapped.NewDistributeMap(comm.WorldComm, size, subMap, construct)
}
