// Package topology describes a distributed pencil decomposition of a 3-D
// Cartesian grid. A Topology never mutates in place; the two scoped changes
// the spec allows (toggling real/complex, switching communicator) return a
// new value, the way the teacher's builder.Config is copied rather than
// patched when a derived configuration is needed.
package topology

import (
	"fmt"

	"github.com/notargets/gopoisson/comm"
)

// Alignment mirrors the shape of DGKernel's builder.AlignmentType enum
// (NoAlignment/CacheLineAlign/WarpAlign/PageAlign) repurposed for a CPU
// pencil buffer rather than a GPU array allocation.
type Alignment int

const (
	NoAlignment    Alignment = 1
	CacheLineAlign Alignment = 64
	PageAlign      Alignment = 4096
)

// Order fixes how a flat rank decomposes into a rank-triplet: Order[0] is the
// axis that varies fastest as rank increases, Order[2] the slowest.
type Order [3]int

// DefaultOrder decomposes rank with axis 0 fastest, matching the common
// row-major (k, j, i) splitting used across the pack's partition code.
var DefaultOrder = Order{0, 1, 2}

const scalarBytes = 8 // float64

// Topology is an immutable description of one pencil decomposition.
type Topology struct {
	fastAxis  int
	n         [3]int
	proc      [3]int
	order     Order
	isComplex bool
	lda       int
	alignment Alignment
	comm      comm.Comm
}

// New constructs a physical (unpartitioned-in-the-fast-axis) Topology. It
// validates the invariant that the process grid product matches the
// communicator size (§7: "process-grid product ≠ communicator size" is a
// configuration error).
func New(fastAxis int, n, proc [3]int, order Order, isComplex bool, lda int, align Alignment, c comm.Comm) (Topology, error) {
	if fastAxis < 0 || fastAxis > 2 {
		return Topology{}, errf("fast axis %d out of range", fastAxis)
	}
	if lda < 1 {
		return Topology{}, errf("lda must be >= 1, got %d", lda)
	}
	prod := proc[0] * proc[1] * proc[2]
	if c != nil && prod != c.Size() {
		return Topology{}, errf("process grid %v has product %d, communicator has size %d", proc, prod, c.Size())
	}
	for d := 0; d < 3; d++ {
		if n[d] < 1 || proc[d] < 1 {
			return Topology{}, errf("invalid size/proc at direction %d: n=%d proc=%d", d, n[d], proc[d])
		}
	}
	return Topology{
		fastAxis:  fastAxis,
		n:         n,
		proc:      proc,
		order:     order,
		isComplex: isComplex,
		lda:       lda,
		alignment: align,
		comm:      c,
	}, nil
}

func errf(format string, args ...interface{}) error {
	return fmt.Errorf("topology: "+format, args...)
}

// FastAxis is the direction each process owns completely.
func (t Topology) FastAxis() int { return t.fastAxis }

// GlobalSize returns the global extent (n0,n1,n2).
func (t Topology) GlobalSize() [3]int { return t.n }

// ProcGrid returns the process grid (p0,p1,p2).
func (t Topology) ProcGrid() [3]int { return t.proc }

// Order returns the rank decomposition order.
func (t Topology) Order() Order { return t.order }

// IsComplex reports whether each point stores two interleaved scalars.
func (t Topology) IsComplex() bool { return t.isComplex }

// Lda is the component count (1 = scalar, 3 = vector).
func (t Topology) Lda() int { return t.lda }

// Alignment is the required per-process byte alignment.
func (t Topology) Alignment() Alignment { return t.alignment }

// Comm is the communicator this topology is bound to.
func (t Topology) Comm() comm.Comm { return t.comm }

// Nf is the number of real scalars per point (1 real, 2 complex-interleaved).
func (t Topology) Nf() int {
	if t.isComplex {
		return 2
	}
	return 1
}

// RankTriplet decomposes a flat rank into (r0,r1,r2) per t.order, with
// order[0] fastest-varying.
func (t Topology) RankTriplet(rank int) [3]int {
	var r [3]int
	rem := rank
	for i := 0; i < 3; i++ {
		axis := t.order[i]
		r[axis] = rem % t.proc[axis]
		rem /= t.proc[axis]
	}
	return r
}

// RankOf is the inverse of RankTriplet.
func (t Topology) RankOf(triplet [3]int) int {
	rank := 0
	mult := 1
	for i := 0; i < 3; i++ {
		axis := t.order[i]
		rank += triplet[axis] * mult
		mult *= t.proc[axis]
	}
	return rank
}

// blockDistribute splits n elements across p processes, giving the first
// (n mod p) processes one extra element — the conventional block
// distribution used throughout the pack's partition code (e.g. DGKernel's
// ElemsPerPartition accounting).
func blockDistribute(n, p, rank int) (start, size int) {
	base := n / p
	rem := n % p
	if rank < rem {
		size = base + 1
		start = rank * size
	} else {
		size = base
		start = rem*(base+1) + (rank-rem)*base
	}
	return start, size
}

// LocalStart returns the global start index along direction d owned by rank.
func (t Topology) LocalStart(d, rank int) int {
	triplet := t.RankTriplet(rank)
	start, _ := blockDistribute(t.n[d], t.proc[d], triplet[d])
	return start
}

// LocalSize returns the number of points rank owns along direction d,
// unpadded.
func (t Topology) LocalSize(d, rank int) int {
	triplet := t.RankTriplet(rank)
	_, size := blockDistribute(t.n[d], t.proc[d], triplet[d])
	return size
}

// OwnerOfIndex returns the per-axis process index (the triplet component for
// direction d) that owns global index idx along direction d — the inverse of
// blockDistribute, used by the transpose engine to find which rank on each
// side of a transpose owns a given block.
func (t Topology) OwnerOfIndex(d, idx int) int {
	p := t.proc[d]
	for r := 0; r < p; r++ {
		start, size := blockDistribute(t.n[d], p, r)
		if idx >= start && idx < start+size {
			return r
		}
	}
	return p - 1
}

// LocalSizes returns the local (possibly unpadded) sizes along all three
// directions for rank.
func (t Topology) LocalSizes(rank int) [3]int {
	return [3]int{t.LocalSize(0, rank), t.LocalSize(1, rank), t.LocalSize(2, rank)}
}

// padUnit is the smallest element count step such that step*nf*scalarBytes is
// a multiple of the configured alignment.
func (t Topology) padUnit() int {
	bytesPerElem := t.Nf() * scalarBytes
	align := int(t.alignment)
	if align <= bytesPerElem {
		return 1
	}
	if align%bytesPerElem == 0 {
		return align / bytesPerElem
	}
	return align // conservative fallback if misconfigured to a non-multiple
}

// PaddedFastAxisSize returns the fast-axis local size for rank, padded up so
// that the per-pencil byte footprint is a multiple of t.alignment — the
// invariant stated in spec §3.
func (t Topology) PaddedFastAxisSize(rank int) int {
	local := t.LocalSize(t.fastAxis, rank)
	unit := t.padUnit()
	if unit <= 1 {
		return local
	}
	return ((local + unit - 1) / unit) * unit
}

// AxisOrder returns (fast, mid, outer): the fast axis and the other two
// physical directions in ascending index order, fixing a canonical memory
// layout (fast axis contiguous, mid next, outer slowest) used by every
// component that addresses a local pencil buffer.
func (t Topology) AxisOrder() (fast, mid, outer int) {
	fast = t.fastAxis
	var others []int
	for i := 0; i < 3; i++ {
		if i != fast {
			others = append(others, i)
		}
	}
	return fast, others[0], others[1]
}

// PointStrides returns the per-axis stride in points (not scalars) for rank's
// local buffer, consistent with MemSize's padding of the fast axis.
func (t Topology) PointStrides(rank int) (strideFast, strideMid, strideOuter int) {
	_, mid, _ := t.AxisOrder()
	sizeFast := t.PaddedFastAxisSize(rank)
	sizeMid := t.LocalSize(mid, rank)
	return 1, sizeFast, sizeFast * sizeMid
}

// PointOffset returns the point offset (not scalar offset — multiply by Nf
// for that) of a local index triplet within rank's local buffer for one
// component.
func (t Topology) PointOffset(rank int, local [3]int) int {
	fast, mid, outer := t.AxisOrder()
	sf, sm, so := t.PointStrides(rank)
	return local[fast]*sf + local[mid]*sm + local[outer]*so
}

// MemSize returns the total scalar count (not bytes) rank must allocate for
// one component; multiply by Lda for the full buffer.
func (t Topology) MemSize(rank int) int {
	sizes := t.LocalSizes(rank)
	sizes[t.fastAxis] = t.PaddedFastAxisSize(rank)
	return sizes[0] * sizes[1] * sizes[2] * t.Nf()
}

// MemSizeTotal returns MemSize(rank) * Lda, the full per-process allocation
// size in scalars across all components.
func (t Topology) MemSizeTotal(rank int) int {
	return t.MemSize(rank) * t.lda
}

// AsComplex returns a copy of t with isComplex forced true. The fast-axis
// stride changes (Nf doubles) but all other fields are unchanged — one of
// the two scoped mutations spec §3 allows.
func (t Topology) AsComplex() Topology {
	t2 := t
	t2.isComplex = true
	return t2
}

// AsReal returns a copy of t with isComplex forced false.
func (t Topology) AsReal() Topology {
	t2 := t
	t2.isComplex = false
	return t2
}

// WithComm returns a copy of t bound to a different communicator — the
// second scoped mutation spec §3 allows, used once by rank reordering.
func (t Topology) WithComm(c comm.Comm) Topology {
	t2 := t
	t2.comm = c
	return t2
}

// WithFastAxis returns a copy of t with a different fast axis and process
// grid — used by the direction planner to build each intermediate topology.
func (t Topology) WithFastAxis(fastAxis int, n, proc [3]int) Topology {
	t2 := t
	t2.fastAxis = fastAxis
	t2.n = n
	t2.proc = proc
	return t2
}
