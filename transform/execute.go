package transform

import "github.com/notargets/gopoisson/internal/xerrors"

// Execute runs this plan's 1-D transform on one fast-axis run. run holds
// p.inSize real scalars (real categories, or the r2c input) or 2*p.inSize
// interleaved real/imaginary scalars (complex categories); on return the
// first p.outSize (or 2*p.outSize for complex output) entries of run hold the
// result. ApplyToPencil sizes run to the larger of the plan's input and output
// line footprints in scalars (lineScalars) — spec §4.2's "in-place on the
// given buffer" contract, approximated here via a reusable scratch buffer
// since gonum's fourier API is not in-place.
func (p *Plan) Execute(run []float64) {
	switch p.category {
	case CategoryEmpty:
		return
	case CategorySymEven:
		copy(p.scratchReal, run[:p.inSize])
		out := p.dct.Transform(run[:p.outSize], p.scratchReal)
		_ = out
	case CategorySymOdd:
		copy(p.scratchReal, run[:p.inSize])
		out := p.dst.Transform(run[:p.outSize], p.scratchReal)
		_ = out
	case CategoryMixed:
		p.executeMixed(run)
	case CategoryR2C:
		if p.r2cThisPlan {
			copy(p.scratchReal, run[:p.inSize])
			coeff := p.real.Coefficients(p.scratchCplx, p.scratchReal)
			writeInterleaved(run, coeff)
		} else {
			readInterleaved(p.scratchCplx, run, p.inSize)
			seq := p.real.Sequence(p.scratchReal, p.scratchCplx)
			copy(run[:p.outSize], seq)
		}
	case CategoryC2C:
		readInterleaved(p.scratchCplx, run, p.inSize)
		var coeff []complex128
		if p.role == RoleForward {
			coeff = p.cplx.Coefficients(nil, p.scratchCplx)
		} else {
			coeff = p.cplx.Sequence(nil, p.scratchCplx)
		}
		writeInterleaved(run, coeff)
	default:
		xerrors.Fatalf("transform: unknown category %v", p.category)
	}
}

// executeMixed realizes the mixed-symmetry (half-shifted cosine/sine)
// transform as the even/odd part of the real FFT of the mirrored,
// length-2N extension — the standard construction used when a dedicated
// DCT-III/DST-III routine is unavailable (gonum's fourier package ships only
// the type-I DCT/DST). See DESIGN.md.
func (p *Plan) executeMixed(run []float64) {
	n := p.inSize
	ext := p.scratchReal // length 2n
	for i := 0; i < n; i++ {
		ext[i] = run[i]
		ext[2*n-1-i] = run[i]
	}
	coeff := p.real.Coefficients(nil, ext)
	for i := 0; i < p.outSize; i++ {
		run[i] = real(coeff[i]) * 2
	}
}

// Correct applies the post-transform fix-up spec §4.2 names (Nyquist-mode
// handling): halves both parts of the Nyquist coefficient of an even-length
// forward real-to-complex transform. The inverse transform does not undo the
// halving.
func (p *Plan) Correct(run []float64) {
	if p.category != CategoryR2C || !p.r2cThisPlan || p.inSize%2 != 0 {
		return
	}
	nyquist := p.outSize - 1
	run[2*nyquist] *= 0.5
	run[2*nyquist+1] *= 0.5
}

func writeInterleaved(dst []float64, src []complex128) {
	for i, c := range src {
		dst[2*i] = real(c)
		dst[2*i+1] = imag(c)
	}
}

func readInterleaved(dst []complex128, src []float64, n int) {
	for i := 0; i < n; i++ {
		dst[i] = complex(src[2*i], src[2*i+1])
	}
}
