package reorder

import (
	"context"

	"github.com/notargets/gopoisson/comm"
)

// Result is the outcome of a reorder attempt: NewComm is nil when reordering
// left the ranks untouched (single node, or partitioner failure).
type Result struct {
	NewComm comm.Comm
	Order   []int // Order[oldRank] = newRank
	Applied bool
}

// Reorder runs the full spec §4.6 pipeline against a communication graph the
// caller has already accumulated from the last two transposes: detect
// compute nodes, partition the graph across them, and build the reordered
// communicator via group-inclusion. nodeKey identifies which compute node
// the calling rank runs on (see DetectNodes).
func Reorder(ctx context.Context, c comm.Comm, g *Graph, nodeKey int) Result {
	nodeOf, nNodes := DetectNodes(ctx, c, nodeKey)
	weights := NodeWeights(nodeOf, nNodes)

	part, ok := Partition(g, nNodes, weights)
	if !ok {
		return Result{Applied: false}
	}

	order := PermutationFromPartition(part, nNodes)
	ranks := make([]int, len(order))
	for oldRank, newRank := range order {
		ranks[newRank] = oldRank
	}

	newComm := c.Include(ctx, ranks)
	return Result{NewComm: newComm, Order: order, Applied: true}
}
