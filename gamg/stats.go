package gamg

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/notargets/gogamg/comm"
)

// LevelStats are the global sizes and coefficient totals of one level,
// summed over every rank that holds the level.
type LevelStats struct {
	Level       int
	NCells      int
	NFaces      int
	NInterfaces int
	NActive     int // ranks holding the level
	CoeffSum    float64
	BoundarySum float64 // interface boundary coefficients
	DiagMin     float64
	DiagMax     float64
	Asymmetric  bool
}

// Stats is collective. The ranks first agree over the world on how many
// levels every one of them has built; each level is then reduced over its own
// communicator, and a member without a matrix on the level contributes
// nothing. A rank outside a level's communicator gets an entry with only
// Level set.
func (s *Solver) Stats() (stats []LevelStats) {
	var (
		p = s.proc
	)
	nLevels := int(p.Min(comm.WorldComm, float64(s.NLevels())))
	stats = make([]LevelStats, nLevels)
	for i := range stats {
		var (
			c = s.Agglomeration.MeshComm(i)
		)
		stats[i].Level = i
		if !p.IsActive(c) {
			continue
		}
		var (
			diag, upper, lower []float64
			nInt, active, asym int
			bou                float64
		)
		if l := s.levels[i]; l.Active() {
			m := l.Matrix
			diag, upper, lower = m.Diag, m.Upper, m.LowerOrUpper()
			nInt = len(l.Coeffs.Present())
			bou = l.Coeffs.BoundarySum()
			active = 1
			if m.HasLower() {
				asym = 1
			}
		}
		stats[i] = LevelStats{
			Level:       i,
			NCells:      p.SumInt(c, len(diag)),
			NFaces:      p.SumInt(c, len(upper)),
			NInterfaces: p.SumInt(c, nInt),
			NActive:     p.SumInt(c, active),
			CoeffSum:    comm.GSum(p, c, diag) + comm.GSum(p, c, upper) + comm.GSum(p, c, lower),
			BoundarySum: p.Sum(c, bou),
			DiagMin:     comm.GMin(p, c, diag),
			DiagMax:     comm.GMax(p, c, diag),
			Asymmetric:  p.SumInt(c, asym) > 0,
		}
	}
	return
}

func PrintStats(w io.Writer, stats []LevelStats) {
	fmt.Fprintf(w, "%5s %12s %12s %6s %6s %14s %14s %12s %12s\n",
		"level", "cells", "faces", "ifaces", "procs", "coeff sum", "iface sum", "min diag", "max diag")
	for _, st := range stats {
		fmt.Fprintf(w, "%5d %12s %12s %6d %6d %14.6g %14.6g %12.4g %12.4g\n",
			st.Level, humanize.Comma(int64(st.NCells)), humanize.Comma(int64(st.NFaces)),
			st.NInterfaces, st.NActive, st.CoeffSum, st.BoundarySum, st.DiagMin, st.DiagMax)
	}
}
