package transpose

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/notargets/gopoisson/comm"
	"github.com/notargets/gopoisson/topology"
)

// globalValue is the test fixture: a value derived purely from the global
// index, independent of which rank or layout currently holds it, so any
// correct transpose must reproduce it exactly regardless of process grid.
func globalValue(n [3]int, g [3]int) float64 {
	return float64(g[0] + g[1]*n[0] + g[2]*n[0]*n[1])
}

// fillLocal writes globalValue into every local point of rank's topology.
func fillLocal(t topology.Topology, rank int, n [3]int, buf []float64) {
	fast, mid, outer := t.AxisOrder()
	sizes := t.LocalSizes(rank)
	for a := 0; a < sizes[outer]; a++ {
		for b := 0; b < sizes[mid]; b++ {
			for c := 0; c < sizes[fast]; c++ {
				var local [3]int
				local[outer], local[mid], local[fast] = a, b, c
				var global [3]int
				global[outer] = local[outer] + t.LocalStart(outer, rank)
				global[mid] = local[mid] + t.LocalStart(mid, rank)
				global[fast] = local[fast] + t.LocalStart(fast, rank)
				buf[t.PointOffset(rank, local)] = globalValue(n, global)
			}
		}
	}
}

// checkLocal reports every point whose stored value doesn't match
// globalValue for its (rank, layout) position.
func checkLocal(t topology.Topology, rank int, n [3]int, buf []float64) []string {
	var bad []string
	fast, mid, outer := t.AxisOrder()
	sizes := t.LocalSizes(rank)
	for a := 0; a < sizes[outer]; a++ {
		for b := 0; b < sizes[mid]; b++ {
			for c := 0; c < sizes[fast]; c++ {
				var local [3]int
				local[outer], local[mid], local[fast] = a, b, c
				var global [3]int
				global[outer] = local[outer] + t.LocalStart(outer, rank)
				global[mid] = local[mid] + t.LocalStart(mid, rank)
				global[fast] = local[fast] + t.LocalStart(fast, rank)
				want := globalValue(n, global)
				got := buf[t.PointOffset(rank, local)]
				if got != want {
					bad = append(bad, fmt.Sprintf("global %v: want %v got %v", global, want, got))
				}
			}
		}
	}
	return bad
}

type errCollector struct {
	mu   sync.Mutex
	errs []string
}

func (c *errCollector) add(msgs ...string) {
	if len(msgs) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, msgs...)
}

func buildPencils(n [3]int, fastIn, fastOut int, procIn, procOut [3]int, worldSize int) ([]topology.Topology, []topology.Topology) {
	world := comm.NewLocalWorld(worldSize)
	topoIn := make([]topology.Topology, worldSize)
	topoOut := make([]topology.Topology, worldSize)
	for r := 0; r < worldSize; r++ {
		var err error
		topoIn[r], err = topology.New(fastIn, n, procIn, topology.DefaultOrder, false, 1, topology.NoAlignment, world[r])
		if err != nil {
			panic(err)
		}
		topoOut[r], err = topology.New(fastOut, n, procOut, topology.DefaultOrder, false, 1, topology.NoAlignment, world[r])
		if err != nil {
			panic(err)
		}
	}
	return topoIn, topoOut
}

func maxMemSize(t []topology.Topology) int {
	m := 0
	for r, tp := range t {
		if s := tp.MemSize(r); s > m {
			m = s
		}
	}
	return m
}

func TestForwardBackwardBlockingRoundTrip(t *testing.T) {
	n := [3]int{4, 6, 5}
	worldSize := 4
	topoIn, topoOut := buildPencils(n, 0, 1, [3]int{2, 2, 1}, [3]int{1, 4, 1}, worldSize)

	descs := make([]*Descriptor, worldSize)
	bufSize := max2(maxMemSize(topoIn), maxMemSize(topoOut))
	bufs := make([][]float64, worldSize)

	var wg sync.WaitGroup
	for r := 0; r < worldSize; r++ {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			descs[r] = New(topoIn[r], topoOut[r], [3]int{0, 0, 0})
			bufs[r] = make([]float64, bufSize)
			fillLocal(topoIn[r], r, n, bufs[r])
		}()
	}
	wg.Wait()

	errs := &errCollector{}
	wg = sync.WaitGroup{}
	for r := 0; r < worldSize; r++ {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := descs[r]
			send, recv := d.StagingScalars()
			sendStage := make([]float64, send)
			recvStage := make([]float64, recv)
			d.ForwardBlocking(context.Background(), bufs[r], 1, sendStage, recvStage)
			errs.add(checkLocal(topoOut[r], r, n, bufs[r])...)
		}()
	}
	wg.Wait()
	for _, e := range errs.errs {
		t.Errorf("forward mismatch: %s", e)
	}
	if len(errs.errs) > 0 {
		t.Fatalf("%d mismatches after forward transpose", len(errs.errs))
	}

	errs = &errCollector{}
	wg = sync.WaitGroup{}
	for r := 0; r < worldSize; r++ {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := descs[r]
			send, recv := d.StagingScalars()
			sendStage := make([]float64, send)
			recvStage := make([]float64, recv)
			d.BackwardBlocking(context.Background(), bufs[r], 1, sendStage, recvStage)
			errs.add(checkLocal(topoIn[r], r, n, bufs[r])...)
		}()
	}
	wg.Wait()
	for _, e := range errs.errs {
		t.Errorf("backward mismatch: %s", e)
	}
}

func TestForwardBackwardNonBlockingRoundTrip(t *testing.T) {
	n := [3]int{4, 6, 5}
	worldSize := 4
	topoIn, topoOut := buildPencils(n, 0, 1, [3]int{2, 2, 1}, [3]int{1, 4, 1}, worldSize)

	descs := make([]*Descriptor, worldSize)
	bufSize := max2(maxMemSize(topoIn), maxMemSize(topoOut))
	bufs := make([][]float64, worldSize)

	var wg sync.WaitGroup
	for r := 0; r < worldSize; r++ {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			descs[r] = New(topoIn[r], topoOut[r], [3]int{0, 0, 0})
			bufs[r] = make([]float64, bufSize)
			fillLocal(topoIn[r], r, n, bufs[r])
		}()
	}
	wg.Wait()

	errs := &errCollector{}
	wg = sync.WaitGroup{}
	for r := 0; r < worldSize; r++ {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := descs[r]
			send, recv := d.StagingScalars()
			sendStage := make([]float64, send)
			recvStage := make([]float64, recv)
			d.ForwardNonBlocking(context.Background(), bufs[r], 1, sendStage, recvStage)
			errs.add(checkLocal(topoOut[r], r, n, bufs[r])...)
		}()
	}
	wg.Wait()
	if len(errs.errs) > 0 {
		t.Fatalf("%d mismatches after non-blocking forward transpose: %v", len(errs.errs), errs.errs)
	}

	errs = &errCollector{}
	wg = sync.WaitGroup{}
	for r := 0; r < worldSize; r++ {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := descs[r]
			send, recv := d.StagingScalars()
			sendStage := make([]float64, send)
			recvStage := make([]float64, recv)
			d.BackwardNonBlocking(context.Background(), bufs[r], 1, sendStage, recvStage)
			errs.add(checkLocal(topoIn[r], r, n, bufs[r])...)
		}()
	}
	wg.Wait()
	if len(errs.errs) > 0 {
		t.Fatalf("%d mismatches after non-blocking backward transpose: %v", len(errs.errs), errs.errs)
	}
}

// TestConservationOfElements checks spec §8's invariant that, within a
// transpose's sub-communicator, total scalars sent equals total scalars
// received, and that the sum equals the number of grid points in the common
// overlap region times nf.
func TestConservationOfElements(t *testing.T) {
	n := [3]int{4, 6, 5}
	worldSize := 4
	topoIn, topoOut := buildPencils(n, 0, 1, [3]int{2, 2, 1}, [3]int{1, 4, 1}, worldSize)

	descs := make([]*Descriptor, worldSize)
	var wg sync.WaitGroup
	for r := 0; r < worldSize; r++ {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			descs[r] = New(topoIn[r], topoOut[r], [3]int{0, 0, 0})
		}()
	}
	wg.Wait()

	totalSend, totalRecv := 0, 0
	for _, d := range descs {
		totalSend += d.SendScalars()
		totalRecv += d.RecvScalars()
	}
	want := n[0] * n[1] * n[2]
	if totalSend != want || totalRecv != want {
		t.Fatalf("conservation violated: sent %d recv %d want %d", totalSend, totalRecv, want)
	}
}

func max2(a, b int) int {
	if a > b {
		return a
	}
	return b
}
