package Poisson2D

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/notargets/gogamg/agglomeration"
	"github.com/notargets/gogamg/comm"
	"github.com/notargets/gogamg/interfaces"
	"github.com/notargets/gogamg/ldu"
	"github.com/notargets/gogamg/types"
)

/*
	Five point finite volume operator on an Nx by Ny grid of unit cells, with
	the rows of cells split into contiguous slabs, one per rank of the world.
	Neighbouring slabs are joined by processor interfaces:
		- interface 0 couples the bottom row of a slab to the rank below
		- interface 1 couples the top row of a slab to the rank above
	The first and last rank have no interface on the domain boundary.

	A positive Convection adds first order upwinding in +x, which makes the
	operator asymmetric.
*/
type Case struct {
	Nx, Ny     int
	NProcs     int
	Convection float64
}

const (
	lowerInterface = 0
	upperInterface = 1
)

// Slab is the fine level held by one rank.
type Slab struct {
	Rank       int
	NProcs     int
	J0         int // first global row
	Nx, Ny     int // local cells in x and y
	Addr       *ldu.Addressing
	Matrix     *ldu.Matrix
	Interfaces []interfaces.Field
	Coeffs     ldu.CoeffSets
}

func NewCase(nx, ny, nProcs int, convection float64) (c *Case, err error) {
	if nx < 1 || ny < nProcs || nProcs < 1 {
		return nil, errors.Errorf("cannot split a %d x %d grid into %d slabs", nx, ny, nProcs)
	}
	c = &Case{Nx: nx, Ny: ny, NProcs: nProcs, Convection: convection}
	return
}

// rows returns the first row and row count of the slab held by rank.
func (c *Case) rows(rank int) (j0, ny int) {
	var (
		base  = c.Ny / c.NProcs
		extra = c.Ny % c.NProcs
	)
	ny = base
	if rank < extra {
		ny++
	}
	j0 = rank*base + min(rank, extra)
	return
}

// MaxLevels is the number of pairwise coarsenings after which every slab is
// a single cell.
func (c *Case) MaxLevels() (n int) {
	_, ny := c.rows(0)
	for nx := c.Nx; nx > 1 || ny > 1; n++ {
		nx, ny = (nx+1)/2, (ny+1)/2
	}
	return
}

// NewSlab assembles the fine level held by p.
func (c *Case) NewSlab(p *comm.Proc) (s *Slab, err error) {
	var (
		rank = p.MyProcNo(comm.WorldComm)
	)
	if p.NProcs(comm.WorldComm) != c.NProcs {
		return nil, errors.Errorf("case has %d slabs, the world has %d ranks", c.NProcs, p.NProcs(comm.WorldComm))
	}
	j0, ny := c.rows(rank)
	s = &Slab{
		Rank:   rank,
		NProcs: c.NProcs,
		J0:     j0,
		Nx:     c.Nx,
		Ny:     ny,
	}
	if s.Addr, err = gridAddressing(s.Nx, s.Ny); err != nil {
		return nil, err
	}
	s.assemble(c.Convection)
	return
}

func gridAddressing(nx, ny int) (*ldu.Addressing, error) {
	var lower, upper []int
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			cell := i + j*nx
			if i+1 < nx {
				lower, upper = append(lower, cell), append(upper, cell+1)
			}
			if j+1 < ny {
				lower, upper = append(lower, cell), append(upper, cell+nx)
			}
		}
	}
	return ldu.NewAddressing(nx*ny, lower, upper)
}

func (s *Slab) assemble(convection float64) {
	var (
		nFaces = s.Addr.NFaces()
	)
	s.Matrix = ldu.NewMatrix(s.Addr.NCells, nFaces, convection > 0)
	// boundary cells keep the full diagonal, a Dirichlet wall
	for c := range s.Matrix.Diag {
		s.Matrix.Diag[c] = 4
	}
	for f, own := range s.Addr.LowerAddr {
		s.Matrix.Upper[f] = -1
		if s.Matrix.HasLower() {
			s.Matrix.Lower[f] = -1
			if s.Addr.UpperAddr[f] == own+1 {
				// x face: the downwind cell takes the convective flux
				s.Matrix.Lower[f] -= convection
				s.Matrix.Diag[s.Addr.UpperAddr[f]] += convection
			}
		}
	}
	s.Interfaces = make([]interfaces.Field, 2)
	s.Coeffs = ldu.NewCoeffSets(2)
	for inti, nbr := range []int{s.Rank - 1, s.Rank + 1} {
		if nbr < 0 || nbr >= s.NProcs {
			continue
		}
		faceCells := make([]int, s.Nx)
		for i := range faceCells {
			switch inti {
			case lowerInterface:
				faceCells[i] = i
			case upperInterface:
				faceCells[i] = i + (s.Ny-1)*s.Nx
			}
		}
		iface := &interfaces.Interface{
			Kind:      types.IK_Processor,
			Index:     inti,
			FaceCells: faceCells,
			NbrProcNo: nbr,
			Comm:      comm.WorldComm,
		}
		s.Interfaces[inti] = interfaces.NewProcessorField(iface, false, nbr)
		cs := ldu.NewCoeffSet(s.Nx)
		for i := range cs.Boundary {
			cs.Boundary[i] = 1
		}
		s.Coeffs[inti] = cs
	}
}

// pairRestrict merges cells two by two in x and y.
func pairRestrict(nx, ny int) (restrict []int, cnx, cny int) {
	cnx, cny = (nx+1)/2, (ny+1)/2
	restrict = make([]int, nx*ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			restrict[i+j*nx] = i/2 + (j/2)*cnx
		}
	}
	return
}

// Agglomeration coarsens the slab nLevels times by pairwise merging. A single
// cell level coarsens onto itself, so every slab builds the same number of
// levels. Processor faces merge by column pairs, which both sides of a
// processor interface see alike.
func (s *Slab) Agglomeration(strategy agglomeration.Strategy, nLevels, procLimit int) (
	a *agglomeration.Agglomeration, err error) {
	var (
		addr   = s.Addr
		nx, ny = s.Nx, s.Ny
		ifaces = make([]*interfaces.Interface, len(s.Interfaces))
	)
	for inti, f := range s.Interfaces {
		if f != nil {
			ifaces[inti] = f.Interface()
		}
	}
	a = agglomeration.New(addr, strategy)
	a.ProcLimit = procLimit
	for level := 0; level < nLevels; level++ {
		restrict, cnx, cny := pairRestrict(nx, ny)
		var l *agglomeration.LevelAddressing
		if l, err = agglomeration.AgglomerateLduAddressing(addr, restrict, cnx*cny); err != nil {
			return nil, errors.Wrapf(err, "slab %d level %d", s.Rank, level)
		}
		l.Comm = comm.WorldComm
		for inti, iface := range ifaces {
			if iface == nil {
				l.AddInterface(nil, nil)
				continue
			}
			nbrKeys := make([]int, iface.Size())
			for i := range nbrKeys {
				// the column pair seen from either side
				nbrKeys[i] = (iface.FaceCells[i] % nx) / 2
			}
			faceCells, _, pr := agglomeration.AgglomeratePatch(iface.FaceCells, restrict, nbrKeys)
			coarse := *iface
			coarse.FaceCells = faceCells
			ifaces[inti] = &coarse
			l.AddInterface(&coarse, pr)
		}
		if err = a.AddLevel(l); err != nil {
			return nil, errors.Wrapf(err, "slab %d", s.Rank)
		}
		addr, nx, ny = l.CoarseAddressing, cnx, cny
	}
	return
}

func (s *Slab) String() string {
	return fmt.Sprintf("slab %d of %d: %d x %d cells, %d faces", s.Rank, s.NProcs, s.Nx, s.Ny, s.Addr.NFaces())
}
