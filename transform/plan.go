package transform

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/notargets/gopoisson/layout"
)

// Role distinguishes the three places a Plan gets used: the forward field
// pass, the backward field pass (optionally with a derivative folded in),
// and the one-time forward pass over the Green's function.
type Role int

const (
	RoleForward Role = iota
	RoleBackward
	RoleBackwardDerivative
	RoleGreen
)

// Plan is the single-direction transform descriptor of spec §4.2: direction,
// category, in/out complexity, normalization, wavenumber factors, and the
// imult phase bookkeeping the rotational kernel needs.
type Plan struct {
	direction int
	role      Role
	kind      layout.Kind

	category      Category
	inSize        int
	outSize       int
	inComplex     bool
	outComplex    bool
	isSpectral    bool // already represented in the Green's analytic kernel
	r2cByKind     bool // this direction's kind belongs to the r2c/c2c family
	r2cThisPlan   bool // this specific plan performs the real->complex conversion
	fastAxisAfter int
	fieldStart    int // leading offset to skip (unbounded zero-padding)
	normFact      float64
	volFact       float64
	kFact         float64
	kOffset       float64
	symStart      int
	imult         [3]int // per-component ±1/0 phase flag
	targetSize    int    // real-domain size a backward r2c plan must reconstruct

	real *fourier.FFT
	cplx *fourier.CmplxFFT
	dct  *fourier.DCT
	dst  *fourier.DST

	scratchReal []float64
	scratchCplx []complex128
}

// New builds an un-initialized plan for one direction/role/kind. Call Init
// once the input size and complexity at this position in the sequence are
// known.
func New(direction int, role Role, kind layout.Kind) *Plan {
	return &Plan{direction: direction, role: role, kind: kind, fastAxisAfter: direction}
}

// Init computes the plan's category, output size/complexity, and scale
// factors from the current (size, isComplex) — spec §4.1 step 1. It is safe
// to call more than once.
func (p *Plan) Init(size int, isComplex bool) {
	p.inSize = size
	p.inComplex = isComplex
	p.r2cByKind = (p.kind == layout.KindPeriodic || p.kind == layout.KindUnbounded)
	p.r2cThisPlan = false

	switch {
	case p.kind == layout.KindEmpty:
		p.category = CategoryEmpty
		p.outSize = size
		p.outComplex = isComplex
		p.normFact = 1
		p.volFact = 1
		p.setImult(0)
		return
	case p.kind == layout.KindEvenEven:
		p.category = CategorySymEven
	case p.kind == layout.KindOddOdd:
		p.category = CategorySymOdd
	case p.kind == layout.KindMixed:
		p.category = CategoryMixed
	case p.r2cByKind && !isComplex:
		p.category = CategoryR2C
		p.r2cThisPlan = true
	case p.r2cByKind && isComplex && p.role != RoleForward && p.targetSize != 0 && p.targetSize != size:
		// This direction's own forward plan did the real->complex conversion;
		// this plan inverts it back to the real, original-size domain
		// (spec §4.2's "C2R" case) rather than staying same-size C2C.
		p.category = CategoryR2C
	case p.r2cByKind && isComplex:
		p.category = CategoryC2C
	}

	switch p.category {
	case CategorySymEven:
		p.dct = fourier.NewDCT(size)
		p.outSize = size
		p.outComplex = false
		p.normFact = 1.0 / float64(2*(size-1))
		p.symStart = 0
	case CategorySymOdd:
		p.dst = fourier.NewDST(size)
		p.outSize = size
		p.outComplex = false
		p.normFact = 1.0 / float64(2*(size+1))
		p.symStart = 1
	case CategoryMixed:
		// gonum has no half-shifted DCT/DST; approximate via a real FFT of
		// the size-2N mirrored extension (the classical "DCT-II via FFT"
		// construction). See DESIGN.md for why this is a deliberate
		// approximation rather than a dedicated backend.
		p.real = fourier.NewFFT(2 * size)
		p.outSize = size
		p.outComplex = false
		p.normFact = 1.0 / float64(2*size)
		p.symStart = 0
	case CategoryR2C:
		if p.r2cThisPlan {
			p.real = fourier.NewFFT(size)
			p.outSize = size/2 + 1
			p.outComplex = true
			p.normFact = 1.0 / float64(size)
		} else {
			// Inverse direction: size is the compact N/2+1 spectrum this
			// plan receives; p.targetSize is the original real N that
			// Sequence must reconstruct.
			p.real = fourier.NewFFT(p.targetSize)
			p.outSize = p.targetSize
			p.outComplex = false
			p.normFact = 1.0 / float64(p.targetSize)
		}
	case CategoryC2C:
		p.cplx = fourier.NewCmplxFFT(size)
		p.outSize = size
		p.outComplex = true
		p.normFact = 1.0 / float64(size)
	}
	p.volFact = 1.0
	p.setImult(0)
}

// setImult fills the per-component ±i phase flag. A symmetric transform
// contributes a fixed phase (DCT: 0, DST: ±1 depending on forward/backward);
// complex/empty transforms contribute none — the derivative factors
// themselves carry the ±i (spec §4.5).
func (p *Plan) setImult(component int) {
	phase := 0
	switch p.category {
	case CategorySymOdd:
		phase = 1
	case CategoryMixed:
		phase = 1
	}
	if p.role == RoleBackward || p.role == RoleBackwardDerivative {
		phase = -phase
	}
	for c := 0; c < 3; c++ {
		p.imult[c] = phase
	}
}

// Direction is the spatial axis this plan transforms.
func (p *Plan) Direction() int { return p.direction }

// Category is the resolved concrete transform.
func (p *Plan) Category() Category { return p.category }

// OutSize is the per-direction extent after executing this plan.
func (p *Plan) OutSize() int { return p.outSize }

// IsNowComplex reports whether the data is complex after this plan.
func (p *Plan) IsNowComplex() bool { return p.outComplex }

// FieldStart is the leading per-direction offset into the output that is
// padding to be skipped; it is 0 unless set through SetFieldStart.
func (p *Plan) FieldStart() int { return p.fieldStart }

// SetFieldStart overrides FieldStart.
func (p *Plan) SetFieldStart(n int) { p.fieldStart = n }

// SetTargetSize tells a backward plan for an r2c/unbounded direction the
// real-domain size its own forward counterpart converted away from, so Init
// can resolve it back to a true inverse (CategoryR2C, real outSize = n)
// instead of staying a same-size complex self-transform. Only consulted when
// this plan's kind is r2c-by-kind, its role is not forward, and n differs
// from the size passed to Init; otherwise it has no effect.
func (p *Plan) SetTargetSize(n int) { p.targetSize = n }

// FastAxisAfter is the fast axis of the topology produced by this plan —
// always the plan's own direction.
func (p *Plan) FastAxisAfter() int { return p.fastAxisAfter }

// IsR2C reports whether this direction's *kind* belongs to the r2c/c2c
// family (periodic or unbounded), independent of whether this specific plan
// instance performs the conversion.
func (p *Plan) IsR2C() bool { return p.r2cByKind }

// IsR2CByThisPlan reports whether this plan instance is the one that
// actually converts real input to complex output (spec §4.2's
// "isR2Cdone-by-this-plan", distinct from IsR2C: a plan may be r2c by kind
// but handled externally).
func (p *Plan) IsR2CByThisPlan() bool { return p.r2cThisPlan }

// IsSpectral reports whether the direction was marked through SetSpectral as
// absorbed into the Green's function's analytic form. It is a flag only:
// Execute and ApplyToPencil do not consult it.
func (p *Plan) IsSpectral() bool { return p.isSpectral }

// SetSpectral marks the direction as analytically represented.
func (p *Plan) SetSpectral(v bool) { p.isSpectral = v }

// NormFact is the accumulated normalization prefactor applied by the
// convolution kernel.
func (p *Plan) NormFact() float64 { return p.normFact }

// VolFact is the per-direction volume prefactor accumulated when assembling
// the Green's function.
func (p *Plan) VolFact() float64 { return p.volFact }

// SetVolFact overrides the volume factor, which Init sets to 1.
func (p *Plan) SetVolFact(v float64) { p.volFact = v }

// KFact/KOffset describe the affine map from array index to wavenumber:
// k = (i + KOffset) * KFact (spec §4.5).
func (p *Plan) KFact() float64   { return p.kFact }
func (p *Plan) KOffset() float64 { return p.kOffset }

// SetWavenumber configures the affine wavenumber map for this direction,
// given the domain length L along this direction.
func (p *Plan) SetWavenumber(L float64) {
	switch p.category {
	case CategoryR2C, CategoryC2C:
		p.kFact = 2 * math.Pi / L
		p.kOffset = 0
	case CategorySymEven:
		p.kFact = math.Pi / L
		p.kOffset = 0
	case CategorySymOdd:
		p.kFact = math.Pi / L
		p.kOffset = 1
	case CategoryMixed:
		p.kFact = math.Pi / L
		p.kOffset = 0.5
	}
}

// SymStart is the symmetry-reduced index offset used to fold the reflective
// extension back onto the principal domain (spec §4.5).
func (p *Plan) SymStart() int { return p.symStart }

// Imult is the per-component ±1/0 phase flag accumulated by this plan.
func (p *Plan) Imult(component int) int { return p.imult[component%3] }

// Allocate preallocates the scratch buffers Execute needs so the hot path
// never allocates.
func (p *Plan) Allocate() {
	switch p.category {
	case CategorySymEven, CategorySymOdd:
		p.scratchReal = make([]float64, p.inSize)
	case CategoryMixed:
		p.scratchReal = make([]float64, 2*p.inSize)
	case CategoryR2C:
		if p.r2cThisPlan {
			p.scratchReal = make([]float64, p.inSize)
			p.scratchCplx = make([]complex128, p.outSize)
		} else {
			p.scratchReal = make([]float64, p.outSize)
			p.scratchCplx = make([]complex128, p.inSize)
		}
	case CategoryC2C:
		p.scratchCplx = make([]complex128, p.inSize)
	}
}
