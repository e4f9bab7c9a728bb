package comm

import (
	"math"

	"github.com/exascience/pargo/parallel"
	"gonum.org/v1/gonum/floats"
	"k8s.io/klog/v2"
)

// Global field reductions. Each reduces the local slice first and then
// reduces across comm, so every member receives the same value.

// Local partial sums over at least this many terms are split across cores.
const parallelReduceSize = 1 << 15

func localSum(n int, term func(i int) float64) float64 {
	reduce := func(low, high int) (s float64) {
		for i := low; i < high; i++ {
			s += term(i)
		}
		return
	}
	if n < parallelReduceSize {
		return reduce(0, n)
	}
	return parallel.RangeReduceFloat64(0, n, 0, reduce,
		func(x, y float64) float64 { return x + y })
}

func GSum(p *Proc, comm int, f []float64) float64 {
	return p.Sum(comm, localSum(len(f), func(i int) float64 { return f[i] }))
}

func GSumMag(p *Proc, comm int, f []float64) float64 {
	return p.Sum(comm, localSum(len(f), func(i int) float64 { return math.Abs(f[i]) }))
}

func GSumSqr(p *Proc, comm int, f []float64) float64 {
	return p.Sum(comm, localSum(len(f), func(i int) float64 { return f[i] * f[i] }))
}

// GSumProd is the global dot product of f1 and f2.
func GSumProd(p *Proc, comm int, f1, f2 []float64) float64 {
	if len(f1) != len(f2) {
		panic("comm: GSumProd length mismatch")
	}
	if len(f1) < parallelReduceSize {
		return p.Sum(comm, floats.Dot(f1, f2))
	}
	return p.Sum(comm, localSum(len(f1), func(i int) float64 { return f1[i] * f2[i] }))
}

func GMax(p *Proc, comm int, f []float64) float64 {
	local := OpMax.Identity()
	if len(f) > 0 {
		local = floats.Max(f)
	}
	return p.Max(comm, local)
}

func GMin(p *Proc, comm int, f []float64) float64 {
	local := OpMin.Identity()
	if len(f) > 0 {
		local = floats.Min(f)
	}
	return p.Min(comm, local)
}

func GMaxMagSqr(p *Proc, comm int, f []float64) float64 {
	local := 0.
	for _, v := range f {
		local = math.Max(local, v*v)
	}
	return p.Max(comm, local)
}

func GMinMagSqr(p *Proc, comm int, f []float64) float64 {
	local := OpMin.Identity()
	for _, v := range f {
		local = math.Min(local, v*v)
	}
	return p.Min(comm, local)
}

// GAverage is the mean over every member's entries. With no entries at all
// it warns and returns zero.
func GAverage(p *Proc, comm int, f []float64) float64 {
	n := p.SumInt(comm, len(f))
	if n == 0 {
		klog.Warningf("empty field, returning zero average")
		return 0
	}
	return GSum(p, comm, f) / float64(n)
}
