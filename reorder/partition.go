package reorder

import (
	metis "github.com/notargets/go-metis"

	"github.com/notargets/gopoisson/internal/xerrors"
)

// maxAttempts mirrors _reorder_metis's retry loop: each failed attempt
// halves the balance tolerance's excess over 1 (tightening it toward exact
// balance) and gives METIS more cuts/iterations
// to work with (spec §7: "Partitioner failure (cannot satisfy the balance
// tolerance in N attempts) -> warning, fall back to identity permutation").
const maxAttempts = 10

// Partition maps Graph's N vertices onto nNodes parts weighted by
// nodeWeights, retrying with a tightened tolerance on each failed attempt.
// part[i] is the node index rank i is assigned to. ok is false once every
// attempt failed to respect nodeWeights within tolerance; callers must then
// fall back to the identity permutation (spec §4.6, §7).
func Partition(g *Graph, nNodes int, nodeWeights []float32) (part []int32, ok bool) {
	if nNodes <= 1 {
		xerrors.Warn("reorder: only one compute node detected, nothing to partition")
		return identity(g.N), false
	}

	tol := float32(1.0001)
	ncuts, niter := int32(50), int32(50)
	target := make([]int, nNodes)
	for i, w := range nodeWeights {
		target[i] = int(w * float32(g.N))
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		opts := metis.DefaultOptions()
		opts.Seed = int32(attempt + 1)
		opts.NumCuts = ncuts
		opts.NumIter = niter

		p, _, err := metis.PartGraphRecursive(g.Xadj, g.Adjncy, nil, g.Adjw, int32(nNodes), nodeWeights, tol, opts)
		if err != nil {
			xerrors.Warn("reorder: metis partitioning attempt %d failed: %v", attempt+1, err)
			continue
		}

		counts := make([]int, nNodes)
		for _, id := range p {
			counts[id]++
		}
		balanced := true
		for i := range target {
			if counts[i] != target[i] {
				balanced = false
				break
			}
		}
		if balanced {
			return p, true
		}

		tol = (tol-1)/2 + 1
		ncuts += 10
		niter += 10
	}

	xerrors.Warn("reorder: failed to find a balanced partition in %d attempts, rank ordering unchanged", maxAttempts)
	return identity(g.N), false
}

// PermutationFromPartition turns a part assignment into the new-rank-by-
// old-rank permutation _reorder_metis builds via the cumulative rids[]
// offsets: every rank assigned to part p takes the next free slot within
// that part's contiguous block of the new ordering.
func PermutationFromPartition(part []int32, nNodes int) []int {
	offsets := make([]int, nNodes)
	counts := make([]int, nNodes)
	for _, p := range part {
		counts[p]++
	}
	for i := 1; i < nNodes; i++ {
		offsets[i] = offsets[i-1] + counts[i-1]
	}
	order := make([]int, len(part))
	next := append([]int{}, offsets...)
	for oldRank, p := range part {
		order[oldRank] = next[p]
		next[p]++
	}
	return order
}

func identity(n int) []int32 {
	id := make([]int32, n)
	for i := range id {
		id[i] = 0
	}
	return id
}
