package comm

import (
	"fmt"
	"sync"
)

type mailKey struct {
	comm, from, to, tag int
}

// MailBox holds one queue per (communicator, sender, receiver, tag). Queues
// are created on first use by either side, so a receive may be posted
// before the matching send.
type MailBox struct {
	mu    sync.Mutex
	boxes map[mailKey]chan any
}

const mailDepth = 64

func NewMailBox() *MailBox {
	return &MailBox{boxes: make(map[mailKey]chan any)}
}

func (mb *MailBox) box(key mailKey) chan any {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	b, ok := mb.boxes[key]
	if !ok {
		b = make(chan any, mailDepth)
		mb.boxes[key] = b
	}
	return b
}

func (p *Proc) checkMember(comm int, peer int) (me int) {
	if me = p.MyProcNo(comm); me == -1 {
		panic(fmt.Errorf("world rank %d is not a member of communicator %d", p.rank, comm))
	}
	if n := p.NProcs(comm); peer < 0 || peer >= n {
		panic(fmt.Errorf("peer %d outside communicator %d of size %d", peer, comm, n))
	}
	return
}

// Send posts payload to sub-rank to of comm under the current tag. Payloads
// are handed over by reference; the sender must not modify them afterwards.
func (p *Proc) Send(comm, to int, payload any) {
	me := p.checkMember(comm, to)
	p.world.mail.box(mailKey{comm, me, to, p.msgType}) <- payload
}

// Recv blocks until sub-rank from of comm has sent a message under the
// current tag.
func (p *Proc) Recv(comm, from int) any {
	me := p.checkMember(comm, from)
	return <-p.world.mail.box(mailKey{comm, from, me, p.msgType})
}

// RecvFloats receives a []float64 payload.
func (p *Proc) RecvFloats(comm, from int) []float64 {
	msg := p.Recv(comm, from)
	f, ok := msg.([]float64)
	if !ok {
		panic(fmt.Errorf("expected []float64 from %d on communicator %d tag %d, got %T",
			from, comm, p.msgType, msg))
	}
	return f
}
