// Package reorder implements the optional rank-reordering stage of spec
// §4.6: build a weighted communication graph from the data volumes of the
// last two transposes, partition it across compute nodes, and translate the
// partitioner's output into a new rank permutation.
package reorder

import (
	"context"

	"github.com/notargets/gopoisson/comm"
)

// Graph is a CSR (compressed sparse row) communication graph, the same
// layout METIS itself expects and the one _reorder_metis builds by hand in
// the original solver: edges leaving rank k live in
// Adjncy[Xadj[k]:Xadj[k+1]], with parallel weights in Adjw.
type Graph struct {
	Xadj   []int32
	Adjncy []int32
	Adjw   []int32
	N      int
}

// VolumeMatrix accumulates the bytes exchanged between rank and peer into a
// dense N x N matrix; callers add the send and receive volumes of every
// transpose they want counted (spec §4.6 excludes the first transpose) before
// calling BuildGraph.
type VolumeMatrix struct {
	n       int
	weights [][]int64
}

// NewVolumeMatrix allocates a zeroed N x N accumulator.
func NewVolumeMatrix(n int) *VolumeMatrix {
	w := make([][]int64, n)
	for i := range w {
		w[i] = make([]int64, n)
	}
	return &VolumeMatrix{n: n, weights: w}
}

// Add records that the local rank exchanged nBytes with peer (sourcesW[peer]
// += nBytes, destsW[peer] += nBytes in the original's naming — here both
// directions collapse into one symmetric weight, since METIS's graph is
// undirected and the original sums sourcesW+destsW per neighbour anyway).
func (v *VolumeMatrix) Add(rank, peer int, nBytes int64) {
	if rank == peer || nBytes == 0 {
		return
	}
	v.weights[rank][peer] += nBytes
}

// BuildGraph turns the local rank's row of the volume matrix into a CSR
// graph shared by every rank, by all-gathering one column at a time. Every
// rank ends up holding the identical, complete graph: unlike the original's
// MPI_Gatherv-to-rank-0-then-Bcast, nothing here is rank-0-special, since
// METIS's partition is deterministic given the same graph and options.
func BuildGraph(ctx context.Context, c comm.Comm, local *VolumeMatrix) *Graph {
	n := c.Size()
	rank := c.Rank()
	full := make([][]int32, n)
	for i := range full {
		full[i] = make([]int32, n)
	}
	for peer := 0; peer < n; peer++ {
		w := int64(0)
		if rank < len(local.weights) {
			w = local.weights[rank][peer]
		}
		col := c.AllGatherInts(ctx, clampInt32(w))
		for i := 0; i < n; i++ {
			full[i][peer] = col[i]
		}
	}

	xadj := make([]int32, n+1)
	var adjncy, adjw []int32
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j || full[i][j] == 0 {
				continue
			}
			adjncy = append(adjncy, int32(j))
			adjw = append(adjw, full[i][j])
		}
		xadj[i+1] = int32(len(adjncy))
	}
	return &Graph{Xadj: xadj, Adjncy: adjncy, Adjw: adjw, N: n}
}

func clampInt32(v int64) int {
	const max = int64(1<<31 - 1)
	if v > max {
		return int(max)
	}
	return int(v)
}
