package agglomeration

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/notargets/gogamg/utils"
)

// Strategy selects how fine contributions are scattered into coarse entries.
type Strategy uint8

const (
	// Atomic processes fine indices in any order across workers and adds
	// each contribution with an atomic float add.
	Atomic Strategy = iota
	// SortReduce hands each worker a disjoint range of segments, so every
	// coarse entry is reduced by exactly one worker without contention.
	SortReduce
)

var strategyNames = map[string]Strategy{
	"atomic":     Atomic,
	"sorted":     SortReduce,
	"sortreduce": SortReduce,
	"segmented":  SortReduce,
}

func NewStrategy(label string) (s Strategy, err error) {
	var ok bool
	if s, ok = strategyNames[strings.ToLower(strings.TrimSpace(label))]; !ok {
		err = errors.Errorf("unknown agglomeration strategy %q, use \"atomic\" or \"sorted\"", label)
	}
	return
}

func (s Strategy) String() string {
	switch s {
	case Atomic:
		return "atomic"
	case SortReduce:
		return "sorted"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// Kernel runs restriction passes with a given strategy. ProcLimit bounds the
// number of workers; zero means one per CPU.
type Kernel struct {
	Strategy  Strategy
	ProcLimit int
}

// Partition splits an index space of size n among the kernel's workers.
func (k Kernel) Partition(n int) *utils.PartitionMap {
	return utils.NewPartitionMap(utils.SetParallelDegree(k.ProcLimit, n), n)
}

// RestrictField overwrites coarse with the sum of the fine values mapped to
// each coarse index. Entries no fine index maps to are left at zero.
// r must hold no diagonal targets.
func (k Kernel) RestrictField(coarse, fine []float64, r *Restriction) {
	for i := range coarse {
		coarse[i] = 0
	}
	k.AccumulateField(coarse, fine, r)
}

// AccumulateField adds the restricted fine values onto coarse.
func (k Kernel) AccumulateField(coarse, fine []float64, r *Restriction) {
	switch k.Strategy {
	case Atomic:
		direct := r.Direct()
		k.Partition(len(direct)).Run(func(_, iMin, iMax int) {
			for i := iMin; i < iMax; i++ {
				if t := direct[i]; t >= 0 {
					utils.AtomicAddFloat64(&coarse[t], fine[i])
				}
			}
		})
	case SortReduce:
		k.Partition(r.NTargets()).Run(func(_, sMin, sMax int) {
			for s := sMin; s < sMax; s++ {
				t, lo, hi := r.Segment(s)
				if t < 0 {
					continue
				}
				var sum float64
				for _, i := range r.SortAddr[lo:hi] {
					sum += fine[i]
				}
				coarse[t] += sum
			}
		})
	default:
		panic(fmt.Errorf("unsupported agglomeration strategy %v", k.Strategy))
	}
}
