package reorder

import (
	"context"

	"github.com/notargets/gopoisson/comm"
)

// DetectNodes groups ranks that share a nodeKey into consecutively numbered
// node IDs, the Go-level analogue of the original's
// MPI_Comm_split_type(MPI_COMM_TYPE_SHARED) probe: since Comm has no
// shared-memory concept of its own, the caller supplies a key that is equal
// for two ranks iff they live on the same compute node (in practice a hash of
// os.Hostname(), or 0 for every rank under the in-process Local transport,
// which always shares a single address space).
func DetectNodes(ctx context.Context, c comm.Comm, nodeKey int) (nodeOf []int, nNodes int) {
	keys := c.AllGatherInts(ctx, nodeKey)
	seen := make(map[int]int)
	nodeOf = make([]int, len(keys))
	for i, k := range keys {
		id, ok := seen[k]
		if !ok {
			id = len(seen)
			seen[k] = id
		}
		nodeOf[i] = id
	}
	return nodeOf, len(seen)
}

// NodeWeights computes each node's fraction of the world size (the
// original's tpwgts), in node order 0..nNodes-1.
func NodeWeights(nodeOf []int, nNodes int) []float32 {
	counts := make([]int, nNodes)
	for _, id := range nodeOf {
		counts[id]++
	}
	w := make([]float32, nNodes)
	for i, c := range counts {
		w[i] = float32(c) / float32(len(nodeOf))
	}
	return w
}
