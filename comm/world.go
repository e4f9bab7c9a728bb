// Package comm provides the inter-process layer of the solver: a world of
// ranks that run concurrently, communicators over subsets of those ranks,
// blocking collective reductions and tagged point-to-point messages.
//
// Ranks are goroutines of one process. Every collective blocks until all
// members of the communicator have called it; there is no timeout.
package comm

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// WorldComm is the communicator holding every rank.
const WorldComm = 0

type World struct {
	nProcs int

	mu    sync.Mutex
	comms []*communicator
	mail  *MailBox
}

type communicator struct {
	id      int
	ranks   []int       // world rank of each sub-rank
	subRank map[int]int // world rank -> sub-rank
	gather  chan contribution
	bcast   []chan float64
}

type contribution struct {
	from  int
	op    Op
	value float64
}

func newCommunicator(id int, ranks []int) (c *communicator) {
	c = &communicator{
		id:      id,
		ranks:   ranks,
		subRank: make(map[int]int, len(ranks)),
		gather:  make(chan contribution, len(ranks)),
		bcast:   make([]chan float64, len(ranks)),
	}
	for sub, rank := range ranks {
		c.subRank[rank] = sub
		c.bcast[sub] = make(chan float64, 1)
	}
	return
}

func NewWorld(nProcs int) (w *World) {
	if nProcs < 1 {
		panic(fmt.Errorf("a world needs at least one rank, have %d", nProcs))
	}
	ranks := make([]int, nProcs)
	for i := range ranks {
		ranks[i] = i
	}
	w = &World{
		nProcs: nProcs,
		comms:  []*communicator{newCommunicator(WorldComm, ranks)},
		mail:   NewMailBox(),
	}
	return
}

func (w *World) NProcs() int { return w.nProcs }

// AllocateCommunicator creates a communicator over the given sub-ranks of
// parent and returns its id. It must be called once, by the driver, before
// the ranks use the new communicator.
func (w *World) AllocateCommunicator(parent int, subRanks []int) (id int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if parent < 0 || parent >= len(w.comms) {
		return -1, errors.Errorf("parent communicator %d does not exist", parent)
	}
	var (
		p     = w.comms[parent]
		ranks = make([]int, len(subRanks))
		seen  = make(map[int]bool, len(subRanks))
	)
	if len(subRanks) == 0 {
		return -1, errors.New("cannot allocate an empty communicator")
	}
	for i, sub := range subRanks {
		if sub < 0 || sub >= len(p.ranks) {
			return -1, errors.Errorf("sub-rank %d outside parent communicator %d of size %d",
				sub, parent, len(p.ranks))
		}
		if seen[sub] {
			return -1, errors.Errorf("sub-rank %d listed twice", sub)
		}
		seen[sub] = true
		ranks[i] = p.ranks[sub]
	}
	id = len(w.comms)
	w.comms = append(w.comms, newCommunicator(id, ranks))
	klog.V(1).Infof("allocated communicator %d from %d over world ranks %v", id, parent, ranks)
	return
}

func (w *World) communicator(id int) *communicator {
	w.mu.Lock()
	defer w.mu.Unlock()
	if id < 0 || id >= len(w.comms) {
		panic(fmt.Errorf("communicator %d does not exist", id))
	}
	return w.comms[id]
}

// Proc returns the handle rank uses for all communication.
func (w *World) Proc(rank int) *Proc {
	if rank < 0 || rank >= w.nProcs {
		panic(fmt.Errorf("rank %d outside world of size %d", rank, w.nProcs))
	}
	return &Proc{
		world:   w,
		rank:    rank,
		msgType: 1,
	}
}

// Run executes f on every rank concurrently and returns the first error.
func (w *World) Run(f func(p *Proc) error) error {
	var g errgroup.Group
	for rank := 0; rank < w.nProcs; rank++ {
		p := w.Proc(rank)
		g.Go(func() error {
			if err := f(p); err != nil {
				return errors.Wrapf(err, "rank %d", p.rank)
			}
			return nil
		})
	}
	return g.Wait()
}

// Proc is one rank's view of the world. A Proc is used by one goroutine.
type Proc struct {
	world   *World
	rank    int
	msgType int
}

func (p *Proc) World() *World  { return p.world }
func (p *Proc) WorldRank() int { return p.rank }

// MyProcNo is the rank's index inside comm, or -1 when the rank is not part
// of the communicator's active set.
func (p *Proc) MyProcNo(comm int) int {
	if sub, ok := p.world.communicator(comm).subRank[p.rank]; ok {
		return sub
	}
	return -1
}

func (p *Proc) IsActive(comm int) bool { return p.MyProcNo(comm) != -1 }
func (p *Proc) Master(comm int) bool   { return p.MyProcNo(comm) == 0 }
func (p *Proc) NProcs(comm int) int    { return len(p.world.communicator(comm).ranks) }

// MsgType is the tag attached to point-to-point messages.
func (p *Proc) MsgType() int { return p.msgType }

// SetMsgType changes the tag and returns the previous one.
func (p *Proc) SetMsgType(tag int) (old int) {
	old, p.msgType = p.msgType, tag
	return
}

// PushMsgType moves to a scratch tag offset above the current one. The
// returned function restores the previous tag; call it with defer so every
// return path restores it.
func (p *Proc) PushMsgType(offset int) (restore func()) {
	old := p.SetMsgType(p.msgType + offset)
	return func() { p.msgType = old }
}
