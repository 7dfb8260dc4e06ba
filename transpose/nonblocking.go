package transpose

import (
	"context"

	"github.com/notargets/gopoisson/comm"
	"github.com/notargets/gopoisson/topology"
)

// ForwardNonBlocking is the persistent-request variant of spec §4.3: post a
// receive for every non-self recv block before sending anything, send every
// block (self blocks go straight into the recv staging slot with no network
// round trip), then unpack each recv block as soon as its request completes
// rather than waiting for the whole batch — overlapping unpacking with
// in-flight receives. Like ForwardBlocking it processes one lda component
// at a time; sendStage/recvStage need only hold one component's worth of
// scalars.
func (d *Descriptor) ForwardNonBlocking(ctx context.Context, buf []float64, lda int, sendStage, recvStage []float64) {
	inMem, outMem := d.topoIn.MemSize(d.inRank()), d.topoOut.MemSize(d.outRank())
	for c := 0; c < lda; c++ {
		compIn := buf[c*inMem:]
		compOut := buf[c*outMem:]
		d.runNonBlocking(ctx, compIn, compOut, sendStage, recvStage,
			d.sendBlocks, d.sendOffsets, d.topoIn, d.inRank(), false,
			d.recvBlocks, d.recvOffsets, d.recvIndexByID, d.topoOut, d.outRank(), true)
	}
}

// BackwardNonBlocking mirrors ForwardNonBlocking with topoIn/topoOut and the
// send/recv block tables swapped, exactly as BackwardBlocking mirrors
// ForwardBlocking.
func (d *Descriptor) BackwardNonBlocking(ctx context.Context, buf []float64, lda int, sendStage, recvStage []float64) {
	inMem, outMem := d.topoIn.MemSize(d.inRank()), d.topoOut.MemSize(d.outRank())
	for c := 0; c < lda; c++ {
		compOut := buf[c*outMem:]
		compIn := buf[c*inMem:]
		d.runNonBlocking(ctx, compOut, compIn, recvStage, sendStage,
			d.recvBlocks, d.recvOffsets, d.topoOut, d.outRank(), true,
			d.sendBlocks, d.sendOffsets, d.sendIndexByID, d.topoIn, d.inRank(), false)
	}
}

// runNonBlocking executes one component's worth of the persistent-request
// exchange. outBlocks/outOffsets/outTopo/outRank/outShifted describe the
// blocks this rank sends (read from srcCompBuf); inBlocks/inOffsets/
// inIndexByID/inTopo/inRank/inShifted describe the blocks this rank
// receives (written into dstCompBuf). A self block (src==dst==this rank) is
// located on the receive side via inIndexByID and copied directly into the
// recv staging slot, never touching the network.
func (d *Descriptor) runNonBlocking(
	ctx context.Context,
	srcCompBuf, dstCompBuf []float64,
	sendStage, recvStage []float64,
	outBlocks []block, outOffsets []int, outTopo topology.Topology, outRank int, outShifted bool,
	inBlocks []block, inOffsets []int, inIndexByID map[int]int, inTopo topology.Topology, inRank int, inShifted bool,
) {
	type pending struct {
		req comm.Request
		idx int
	}
	var pendings []pending

	// The peer of a non-self block is whichever end is not this rank; in the
	// backward direction the tables are swapped, so b.dst is this rank.
	me := d.worldOfSub[d.subComm.Rank()]
	peer := func(b block) int {
		if b.src == me {
			return d.subOfWorld[b.dst]
		}
		return d.subOfWorld[b.src]
	}

	for i, b := range inBlocks {
		if b.src == b.dst {
			continue // self block, satisfied directly during the send pass below
		}
		data := recvStage[inOffsets[i] : inOffsets[i]+b.volume()*d.nf]
		req := d.subComm.IRecv(ctx, peer(b), b.globalID, floatBytes(data))
		pendings = append(pendings, pending{req: req, idx: i})
	}

	var selfIdx []int
	for i, b := range outBlocks {
		dst := sendStage[outOffsets[i] : outOffsets[i]+b.volume()*d.nf]
		d.packOneBlock(srcCompBuf, dst, outTopo, outRank, b, outShifted)
		if b.src == b.dst {
			j, ok := inIndexByID[b.globalID]
			if ok {
				copy(recvStage[inOffsets[j]:inOffsets[j]+b.volume()*d.nf], dst)
				selfIdx = append(selfIdx, j)
			}
			continue
		}
		d.subComm.ISend(ctx, peer(b), b.globalID, floatBytes(dst)).Wait()
	}

	// dstCompBuf may alias srcCompBuf, so it is cleared and written only after
	// every send block has been packed.
	d.zero(dstCompBuf, inTopo, inRank)
	for _, j := range selfIdx {
		d.unpackOneBlock(dstCompBuf, recvStage[inOffsets[j]:], inTopo, inRank, inBlocks[j], inShifted)
	}

	for len(pendings) > 0 {
		reqs := make([]comm.Request, len(pendings))
		for k, p := range pendings {
			reqs[k] = p.req
		}
		chosen := d.subComm.WaitAny(reqs)
		p := pendings[chosen]
		b := inBlocks[p.idx]
		d.unpackOneBlock(dstCompBuf, recvStage[inOffsets[p.idx]:], inTopo, inRank, b, inShifted)
		pendings = append(pendings[:chosen], pendings[chosen+1:]...)
	}
}
