package transpose

import (
	"context"

	"github.com/notargets/gopoisson/topology"
)

// ForwardBlocking runs the blocking all-to-all(v) variant of spec §4.3, one
// component at a time: pack every send block's component c into the shared
// send-staging buffer, exchange, zero component c of the destination region,
// unpack every recv block's component c. buf is read in topoIn's layout and
// overwritten in topoOut's layout — it may be the same backing array for both
// as long as it is sized to fit the larger of the two. sendStage/recvStage
// need only hold one component's worth of scalars (d.StagingScalars()); they
// are reused across components since the exchange is collective per call.
func (d *Descriptor) ForwardBlocking(ctx context.Context, buf []float64, lda int, sendStage, recvStage []float64) {
	inMem, outMem := d.topoIn.MemSize(d.inRank()), d.topoOut.MemSize(d.outRank())
	for c := 0; c < lda; c++ {
		d.packFrom(buf[c*inMem:], sendStage, d.sendBlocks, d.sendOffsets, d.topoIn, d.inRank(), false)
		d.exchange(ctx, sendStage, recvStage)
		d.zero(buf[c*outMem:], d.topoOut, d.outRank())
		d.unpackInto(buf[c*outMem:], recvStage, d.recvBlocks, d.recvOffsets, d.topoOut, d.outRank(), true)
	}
}

// BackwardBlocking runs the same exchange with input/output topologies,
// block tables, and staging buffers swapped — spec §4.3 "Forward vs
// backward": the same descriptor serves both directions.
func (d *Descriptor) BackwardBlocking(ctx context.Context, buf []float64, lda int, sendStage, recvStage []float64) {
	inMem, outMem := d.topoIn.MemSize(d.inRank()), d.topoOut.MemSize(d.outRank())
	for c := 0; c < lda; c++ {
		d.packFrom(buf[c*outMem:], recvStage, d.recvBlocks, d.recvOffsets, d.topoOut, d.outRank(), true)
		d.exchangeSwapped(ctx, recvStage, sendStage)
		d.zero(buf[c*inMem:], d.topoIn, d.inRank())
		d.unpackInto(buf[c*inMem:], sendStage, d.sendBlocks, d.sendOffsets, d.topoIn, d.inRank(), false)
	}
}

func (d *Descriptor) exchange(ctx context.Context, send, recv []float64) {
	if d.uniform {
		d.subComm.AllToAll(ctx, floatBytes(send), floatBytes(recv), d.sendCounts[0]*8)
		return
	}
	d.subComm.AllToAllV(ctx, floatBytes(send), scaleAll(d.sendCounts, 8), scaleAll(d.sendDispls, 8),
		floatBytes(recv), scaleAll(d.recvCounts, 8), scaleAll(d.recvDispls, 8))
}

// exchangeSwapped performs the same collective with the recv-side counts
// used as the send side and vice versa, matching the backward direction's
// swapped block tables.
func (d *Descriptor) exchangeSwapped(ctx context.Context, send, recv []float64) {
	if d.uniform {
		d.subComm.AllToAll(ctx, floatBytes(send), floatBytes(recv), d.recvCounts[0]*8)
		return
	}
	d.subComm.AllToAllV(ctx, floatBytes(send), scaleAll(d.recvCounts, 8), scaleAll(d.recvDispls, 8),
		floatBytes(recv), scaleAll(d.sendCounts, 8), scaleAll(d.sendDispls, 8))
}

func scaleAll(vals []int, factor int) []int {
	out := make([]int, len(vals))
	for i, v := range vals {
		out[i] = v * factor
	}
	return out
}

// zero clears rank's local buffer for one component — spec §4.3 step 3: "the
// target buffer may alias the source; correctness requires starting from
// zero".
func (d *Descriptor) zero(buf []float64, t topology.Topology, rank int) {
	memSize := t.MemSize(rank)
	for i := 0; i < memSize; i++ {
		buf[i] = 0
	}
}

func (d *Descriptor) inRank() int {
	if d.topoIn.Comm() == nil {
		return 0
	}
	return d.topoIn.Comm().Rank()
}

func (d *Descriptor) outRank() int {
	if d.topoOut.Comm() == nil {
		return 0
	}
	return d.topoOut.Comm().Rank()
}

// packFrom walks every block in (axis-2, axis-1, axis-0) order with axis-0
// the source topology's fast axis, copying contiguous nf*blockSize[axis0]
// scalar runs for a single component into the staging buffer at each block's
// reserved offset. shifted selects whether the block's global start needs
// the shift applied before subtracting the source topology's local origin
// (true when reading from topoOut, i.e. the backward pack).
func (d *Descriptor) packFrom(compBuf []float64, stage []float64, blocks []block, offsets []int, t topology.Topology, rank int, shifted bool) {
	for bi, b := range blocks {
		d.packOneBlock(compBuf, stage[offsets[bi]:], t, rank, b, shifted)
	}
}

// packOneBlock copies one block's single component out of compBuf (topology
// t's layout, already offset to the component's base) into the head of dst
// — factored out so the non-blocking variant can pack a single block without
// looping over the whole table.
func (d *Descriptor) packOneBlock(compBuf []float64, dst []float64, t topology.Topology, rank int, b block, shifted bool) {
	fast, mid, outer := t.AxisOrder()
	start := blockOrigin(b, d.shift, shifted)
	localStart := [3]int{start[0] - t.LocalStart(0, rank), start[1] - t.LocalStart(1, rank), start[2] - t.LocalStart(2, rank)}
	runLen := b.size[fast] * d.nf
	cursor := 0
	for ok := 0; ok < b.size[outer]; ok++ {
		for mk := 0; mk < b.size[mid]; mk++ {
			var local [3]int
			local[outer] = localStart[outer] + ok
			local[mid] = localStart[mid] + mk
			local[fast] = localStart[fast]
			srcOff := t.PointOffset(rank, local) * d.nf
			copy(dst[cursor:cursor+runLen], compBuf[srcOff:srcOff+runLen])
			cursor += runLen
		}
	}
}

// unpackInto is packFrom's mirror: contiguous reads from the staging buffer,
// scattered writes into the destination topology's local layout, one
// component at a time.
func (d *Descriptor) unpackInto(compBuf []float64, stage []float64, blocks []block, offsets []int, t topology.Topology, rank int, shifted bool) {
	for bi, b := range blocks {
		d.unpackOneBlock(compBuf, stage[offsets[bi]:], t, rank, b, shifted)
	}
}

// unpackOneBlock is packOneBlock's mirror for a single block.
func (d *Descriptor) unpackOneBlock(compBuf []float64, src []float64, t topology.Topology, rank int, b block, shifted bool) {
	fast, mid, outer := t.AxisOrder()
	start := blockOrigin(b, d.shift, shifted)
	localStart := [3]int{start[0] - t.LocalStart(0, rank), start[1] - t.LocalStart(1, rank), start[2] - t.LocalStart(2, rank)}
	runLen := b.size[fast] * d.nf
	cursor := 0
	for ok := 0; ok < b.size[outer]; ok++ {
		for mk := 0; mk < b.size[mid]; mk++ {
			var local [3]int
			local[outer] = localStart[outer] + ok
			local[mid] = localStart[mid] + mk
			local[fast] = localStart[fast]
			dstOff := t.PointOffset(rank, local) * d.nf
			copy(compBuf[dstOff:dstOff+runLen], src[cursor:cursor+runLen])
			cursor += runLen
		}
	}
}

// blockOrigin applies the rigid shift to a block's global start only when
// requested — the shift is always either fully applied or not at all for a
// given (direction, side) pairing, never a per-block conditional (spec
// §4.3 invariant).
func blockOrigin(b block, shift [3]int, apply bool) [3]int {
	if !apply {
		return b.start
	}
	return [3]int{b.start[0] + shift[0], b.start[1] + shift[1], b.start[2] + shift[2]}
}
