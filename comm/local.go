package comm

import (
	"context"
	"reflect"
	"sort"
	"sync"
)

// hub is the shared rendezvous point for one communicator's collectives.
// Every collective is implemented as: register my payload, wait until every
// member has registered, let the last arrival run a closure that computes
// every member's result in place, then everyone reads its own slot. This
// mirrors a textbook barrier and keeps Local free of any lock-ordering
// subtlety beyond a single mutex.
type hub struct {
	mu      sync.Mutex
	cond    *sync.Cond
	n       int
	slot    []interface{}
	arrived int
	gen     int

	msgMu sync.Mutex
	msgs  map[msgKey]chan []byte
}

func newHub(n int) *hub {
	h := &hub{n: n, slot: make([]interface{}, n), msgs: make(map[msgKey]chan []byte)}
	h.cond = sync.NewCond(&h.mu)
	return h
}

func (h *hub) exchange(rank int, payload interface{}, fn func(slots []interface{})) interface{} {
	h.mu.Lock()
	h.slot[rank] = payload
	h.arrived++
	myGen := h.gen
	if h.arrived == h.n {
		fn(h.slot)
		h.arrived = 0
		h.gen++
		h.cond.Broadcast()
	} else {
		for h.gen == myGen {
			h.cond.Wait()
		}
	}
	result := h.slot[rank]
	h.mu.Unlock()
	return result
}

type msgKey struct{ dest, tag int }

func (h *hub) chanFor(key msgKey) chan []byte {
	h.msgMu.Lock()
	defer h.msgMu.Unlock()
	ch, ok := h.msgs[key]
	if !ok {
		ch = make(chan []byte, 1)
		h.msgs[key] = ch
	}
	return ch
}

// Local is an in-process, goroutine-per-rank Comm. It exists so the
// transpose engine, rank-reorder, and solver can be exercised deterministically
// by tests without a real MPI runtime; spec §6 treats the MPI transport as an
// external collaborator, and this is the reference/test double standing in
// for it.
type Local struct {
	h    *hub
	rank int
}

// NewLocalWorld creates size independent ranks sharing one communicator.
func NewLocalWorld(size int) []Comm {
	h := newHub(size)
	out := make([]Comm, size)
	for r := 0; r < size; r++ {
		out[r] = &Local{h: h, rank: r}
	}
	return out
}

func (c *Local) Rank() int { return c.rank }
func (c *Local) Size() int { return c.h.n }

type blockPayload struct {
	send, recv []byte
	blockLen   int
}

func (c *Local) AllToAll(ctx context.Context, send, recv []byte, blockLen int) {
	c.h.exchange(c.rank, blockPayload{send, recv, blockLen}, func(slots []interface{}) {
		n := len(slots)
		for dst := 0; dst < n; dst++ {
			dp := slots[dst].(blockPayload)
			for src := 0; src < n; src++ {
				sp := slots[src].(blockPayload)
				copy(dp.recv[src*blockLen:(src+1)*blockLen], sp.send[dst*blockLen:(dst+1)*blockLen])
			}
		}
	})
}

type blockVPayload struct {
	send                   []byte
	sendCounts, sendDispls []int
	recv                   []byte
	recvCounts, recvDispls []int
}

func (c *Local) AllToAllV(ctx context.Context, send []byte, sendCounts, sendDispls []int, recv []byte, recvCounts, recvDispls []int) {
	c.h.exchange(c.rank, blockVPayload{send, sendCounts, sendDispls, recv, recvCounts, recvDispls}, func(slots []interface{}) {
		n := len(slots)
		for dst := 0; dst < n; dst++ {
			dp := slots[dst].(blockVPayload)
			for src := 0; src < n; src++ {
				sp := slots[src].(blockVPayload)
				cnt := sp.sendCounts[dst]
				if cnt == 0 {
					continue
				}
				srcOff := sp.sendDispls[dst]
				dstOff := dp.recvDispls[src]
				copy(dp.recv[dstOff:dstOff+cnt], sp.send[srcOff:srcOff+cnt])
			}
		}
	})
}

type localRequest struct{ done chan struct{} }

func (r *localRequest) Wait() { <-r.done }

func (c *Local) ISend(ctx context.Context, dest int, tag int, data []byte) Request {
	ch := c.h.chanFor(msgKey{dest, tag})
	done := make(chan struct{})
	go func() {
		ch <- data
		close(done)
	}()
	return &localRequest{done: done}
}

func (c *Local) IRecv(ctx context.Context, source int, tag int, data []byte) Request {
	ch := c.h.chanFor(msgKey{c.rank, tag})
	done := make(chan struct{})
	go func() {
		received := <-ch
		copy(data, received)
		close(done)
	}()
	return &localRequest{done: done}
}

func (c *Local) WaitAny(reqs []Request) int {
	cases := make([]reflect.SelectCase, len(reqs))
	for i, r := range reqs {
		lr := r.(*localRequest)
		cases[i] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(lr.done)}
	}
	chosen, _, _ := reflect.Select(cases)
	return chosen
}

func (c *Local) AllGatherInts(ctx context.Context, value int) []int {
	res := c.h.exchange(c.rank, value, func(slots []interface{}) {
		out := make([]int, len(slots))
		for i, s := range slots {
			out[i] = s.(int)
		}
		for i := range slots {
			slots[i] = out
		}
	})
	return res.([]int)
}

type splitKV struct{ color, key int }

func (c *Local) Split(ctx context.Context, color, key int) Comm {
	res := c.h.exchange(c.rank, splitKV{color, key}, func(slots []interface{}) {
		groups := map[int][]int{} // color -> world ranks, to be sorted by key
		keyOf := map[int]int{}
		for w, s := range slots {
			kv := s.(splitKV)
			groups[kv.color] = append(groups[kv.color], w)
			keyOf[w] = kv.key
		}
		hubs := map[int]*hub{}
		newRankOf := map[int]int{}
		for color, members := range groups {
			sort.Slice(members, func(i, j int) bool {
				if keyOf[members[i]] != keyOf[members[j]] {
					return keyOf[members[i]] < keyOf[members[j]]
				}
				return members[i] < members[j]
			})
			hubs[color] = newHub(len(members))
			for nr, w := range members {
				newRankOf[w] = nr
			}
			_ = members
		}
		for w, s := range slots {
			kv := s.(splitKV)
			slots[w] = &Local{h: hubs[kv.color], rank: newRankOf[w]}
		}
	})
	return res.(*Local)
}

func (c *Local) Include(ctx context.Context, ranks []int) Comm {
	res := c.h.exchange(c.rank, ranks, func(slots []interface{}) {
		members := slots[0].([]int) // MPI semantics require every caller to pass the same group
		h2 := newHub(len(members))
		memberRank := map[int]int{}
		for nr, w := range members {
			memberRank[w] = nr
		}
		for w := range slots {
			if nr, ok := memberRank[w]; ok {
				slots[w] = &Local{h: h2, rank: nr}
			} else {
				slots[w] = (*Local)(nil)
			}
		}
	})
	if l, ok := res.(*Local); ok && l != nil {
		return l
	}
	return nil
}

func (c *Local) Free() {}
