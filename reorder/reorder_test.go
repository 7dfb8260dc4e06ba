package reorder

import (
	"context"
	"sync"
	"testing"

	"github.com/notargets/gopoisson/comm"
)

func TestDetectNodesGroupsBySharedKey(t *testing.T) {
	world := comm.NewLocalWorld(4)
	keys := []int{7, 7, 9, 9} // ranks 0,1 on one node, 2,3 on another
	var wg sync.WaitGroup
	got := make([][]int, 4)
	n := make([]int, 4)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			got[r], n[r] = DetectNodes(context.Background(), world[r], keys[r])
		}(r)
	}
	wg.Wait()

	for r := 0; r < 4; r++ {
		if n[r] != 2 {
			t.Fatalf("rank %d: expected 2 nodes, got %d", r, n[r])
		}
	}
	if got[0][0] != got[0][1] {
		t.Fatalf("ranks sharing a key must land on the same node id: %v", got[0])
	}
	if got[0][0] == got[0][2] {
		t.Fatalf("ranks with different keys must land on different node ids: %v", got[0])
	}
}

func TestBuildGraphIsSymmetricAcrossRanks(t *testing.T) {
	world := comm.NewLocalWorld(3)
	var wg sync.WaitGroup
	graphs := make([]*Graph, 3)
	for r := 0; r < 3; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			vm := NewVolumeMatrix(3)
			// rank 0 <-> rank 1 exchange 100 bytes; rank 2 is isolated.
			if r == 0 {
				vm.Add(0, 1, 100)
			}
			if r == 1 {
				vm.Add(1, 0, 100)
			}
			graphs[r] = BuildGraph(context.Background(), world[r], vm)
		}(r)
	}
	wg.Wait()

	for r := 1; r < 3; r++ {
		if len(graphs[r].Adjncy) != len(graphs[0].Adjncy) {
			t.Fatalf("rank %d built a differently-shaped graph than rank 0", r)
		}
	}
	if len(graphs[0].Adjncy) != 2 {
		t.Fatalf("expected exactly the 0<->1 edge in both directions, got %v", graphs[0].Adjncy)
	}
}

func TestPermutationFromPartitionPreservesPerPartOrder(t *testing.T) {
	part := []int32{0, 1, 0, 1} // ranks 0,2 -> node 0; ranks 1,3 -> node 1
	order := PermutationFromPartition(part, 2)
	if order[0] != 0 || order[2] != 1 {
		t.Fatalf("expected ranks assigned to node 0 to fill the first contiguous block in original order, got %v", order)
	}
	if order[1] != 2 || order[3] != 3 {
		t.Fatalf("expected ranks assigned to node 1 to fill the second contiguous block in original order, got %v", order)
	}
}

func TestPartitionFallsBackToIdentityWithOneNode(t *testing.T) {
	g := &Graph{N: 4, Xadj: make([]int32, 5)}
	part, ok := Partition(g, 1, []float32{1})
	if ok {
		t.Fatalf("a single compute node should never report a successful partition")
	}
	for i, p := range part {
		if p != 0 {
			t.Fatalf("identity fallback should assign every rank to part 0, got part[%d]=%d", i, p)
		}
	}
}
