package transform

import "github.com/notargets/gopoisson/topology"

// lineScalars returns the scalar footprint of one fast-axis line before and
// after Execute, so the caller can size a single reusable run buffer large
// enough for both ends of the transform.
func (p *Plan) lineScalars() (inScalars, outScalars int) {
	inNf, outNf := 1, 1
	switch p.category {
	case CategoryC2C:
		inNf, outNf = 2, 2
	case CategoryR2C:
		if p.r2cThisPlan {
			outNf = 2
		} else {
			inNf = 2
		}
	}
	return p.inSize * inNf, p.outSize * outNf
}

// ApplyToPencil runs p once per fast-axis line across every point of a local
// pencil buffer, one component at a time (spec §4.2: "in-place execution of
// one 1-D FFT/DCT/DST along one direction of a pencil"). inTopo addresses the
// buffer's layout before this plan runs, outTopo its layout after — the same
// Topology in every case except a real->complex conversion or its
// complex->real inverse, where the fast axis's per-line scalar footprint
// changes and the two views diverge. The plan's scratch buffers are
// allocated on first use if Allocate has not been called. correct,
// when true, also applies p.Correct to the freshly transformed line (the
// Nyquist fix-up, spec §4.2) before it is written back.
func ApplyToPencil(p *Plan, inTopo, outTopo topology.Topology, buf []float64, lda int, correct bool) {
	if p.scratchReal == nil && p.scratchCplx == nil {
		p.Allocate()
	}
	rank := inTopo.Comm().Rank()
	_, mid, outer := inTopo.AxisOrder()
	sizes := inTopo.LocalSizes(rank)
	inMem, outMem := inTopo.MemSize(rank), outTopo.MemSize(rank)
	inNf, outNf := inTopo.Nf(), outTopo.Nf()

	inScalars, outScalars := p.lineScalars()
	lineCap := inScalars
	if outScalars > lineCap {
		lineCap = outScalars
	}
	run := make([]float64, lineCap)

	// A line's output is staged separately rather than written straight back
	// into buf: inTopo and outTopo address the same underlying array with
	// different per-line strides whenever this plan changes the per-line
	// scalar footprint (e.g. R2C's real->complex growth), so writing one
	// line's output in place can overwrite a sibling line's still-unread
	// input before its turn comes up.
	stage := make([]float64, lda*outMem)

	for c := 0; c < lda; c++ {
		inBase := buf[c*inMem:]
		outBase := stage[c*outMem:]
		for a := 0; a < sizes[outer]; a++ {
			for b := 0; b < sizes[mid]; b++ {
				var local [3]int
				local[outer], local[mid] = a, b

				srcOff := inTopo.PointOffset(rank, local) * inNf
				copy(run[:inScalars], inBase[srcOff:srcOff+inScalars])

				p.Execute(run)
				if correct {
					p.Correct(run)
				}

				dstOff := outTopo.PointOffset(rank, local) * outNf
				copy(outBase[dstOff:dstOff+outScalars], run[:outScalars])
			}
		}
	}
	copy(buf, stage)
}
