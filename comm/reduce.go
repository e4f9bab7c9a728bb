package comm

import (
	"fmt"
	"math"
)

type Op uint8

const (
	OpSum Op = iota
	OpMax
	OpMin
)

func (op Op) String() string {
	switch op {
	case OpSum:
		return "sum"
	case OpMax:
		return "max"
	case OpMin:
		return "min"
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// Identity is the value a participant with no data contributes.
func (op Op) Identity() float64 {
	switch op {
	case OpMax:
		return -math.MaxFloat64
	case OpMin:
		return math.MaxFloat64
	}
	return 0
}

func (op Op) apply(a, b float64) float64 {
	switch op {
	case OpMax:
		return math.Max(a, b)
	case OpMin:
		return math.Min(a, b)
	}
	return a + b
}

// AllReduce combines value over every member of comm and returns the same
// result on all of them. Contributions are gathered on the master and
// combined in sub-rank order, then broadcast. Calling it from a rank outside
// comm, or with different operations on different ranks, is a fatal
// programming error.
func (p *Proc) AllReduce(comm int, value float64, op Op) float64 {
	var (
		c  = p.world.communicator(comm)
		me = p.MyProcNo(comm)
		n  = len(c.ranks)
	)
	if me == -1 {
		panic(fmt.Errorf("world rank %d called %s on communicator %d without being a member",
			p.rank, op, comm))
	}
	if n == 1 {
		return value
	}
	if me != 0 {
		c.gather <- contribution{from: me, op: op, value: value}
		return <-c.bcast[me]
	}
	vals := make([]float64, n)
	vals[0] = value
	for i := 1; i < n; i++ {
		ct := <-c.gather
		if ct.op != op {
			panic(fmt.Errorf("collective mismatch on communicator %d: master runs %s, sub-rank %d runs %s",
				comm, op, ct.from, ct.op))
		}
		vals[ct.from] = ct.value
	}
	result := vals[0]
	for _, v := range vals[1:] {
		result = op.apply(result, v)
	}
	for i := 1; i < n; i++ {
		c.bcast[i] <- result
	}
	return result
}

func (p *Proc) Sum(comm int, value float64) float64 { return p.AllReduce(comm, value, OpSum) }
func (p *Proc) Max(comm int, value float64) float64 { return p.AllReduce(comm, value, OpMax) }
func (p *Proc) Min(comm int, value float64) float64 { return p.AllReduce(comm, value, OpMin) }

// SumInt reduces a count. Counts are exact in float64 below 2^53.
func (p *Proc) SumInt(comm int, value int) int {
	return int(p.AllReduce(comm, float64(value), OpSum))
}

// Barrier returns once every member of comm has reached it.
func (p *Proc) Barrier(comm int) {
	p.AllReduce(comm, 0, OpSum)
}
