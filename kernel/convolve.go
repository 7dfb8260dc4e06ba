// Package kernel implements the convolution ("do the magic") step of spec
// §4.5: multiplying the field by the precomputed Green's function in its
// final forward topology, in either the scalar or rotational (curl) family.
package kernel

import (
	"math"

	"github.com/notargets/gopoisson/internal/xerrors"
	"github.com/notargets/gopoisson/topology"
	"github.com/notargets/gopoisson/transform"
)

// Mode selects the convolution family (spec §4.5).
type Mode int

const (
	Standard Mode = iota
	Rotational
)

// DerivativeOrder selects how the rotational kernel's derivative factors are
// computed (spec §4.5).
type DerivativeOrder int

const (
	OrderSpectral         DerivativeOrder = 1
	OrderFiniteDifference DerivativeOrder = 2
)

// ConvolveStandardReal applies f := normFact * G * f pointwise, for every
// component of lda, over topo's local real buffer.
func ConvolveStandardReal(topo topology.Topology, buf []float64, lda int, green []float64, normFact float64) {
	rank := topo.Comm().Rank()
	memSize := topo.MemSize(rank)
	for c := 0; c < lda; c++ {
		base := c * memSize
		for i := 0; i < memSize; i++ {
			buf[base+i] *= normFact * green[i]
		}
	}
}

// ConvolveStandardComplex applies a complex multiply by the scalar Green
// value with the scalar normalization factor, for interleaved
// real/imaginary pairs (spec §4.5, "Standard, complex").
func ConvolveStandardComplex(topo topology.Topology, buf []float64, lda int, green []float64, normFact float64) {
	rank := topo.Comm().Rank()
	memSize := topo.MemSize(rank) // already counts 2 scalars/point (Nf=2)
	points := memSize / 2
	for c := 0; c < lda; c++ {
		base := c * memSize
		for p := 0; p < points; p++ {
			fr, fi := buf[base+2*p], buf[base+2*p+1]
			gr, gi := green[2*p], green[2*p+1]
			f := complex(fr, fi) * complex(gr, gi) * complex(normFact, 0)
			buf[base+2*p] = real(f)
			buf[base+2*p+1] = imag(f)
		}
	}
}

// Factors is the precomputed derivative-factor table spec §9's "branching in
// the inner convolution loop" design note calls for: Axis[d][c] holds one
// complex factor per local index along direction d, for vector component c,
// so the convolution loop below indexes into it rather than recomputing a
// phase branch at every point. Built once, during solver setup, by
// BuildFactors.
type Factors struct {
	Axis [3][3][]complex128
}

// BuildFactors precomputes, for every direction and every local index that
// direction's rank owns, the complex derivative factor k_{d,c} the
// rotational kernel multiplies by (spec §4.5). plans[d] is direction d's
// backward-derivative plan (its KFact/KOffset/SymStart describe the
// wavenumber map; Imult's accumulated sign, from forward + backward-
// derivative plans, selects which axis carries kabs — phase 0 is a plain
// i*k derivative landing on the imaginary axis, phase +-1 has already picked
// up one i-rotation from a symmetric transform and lands back on the real
// axis, sign-flipped by the phase).
func BuildFactors(plans [3]*transform.Plan, order DerivativeOrder, h [3]float64, topo topology.Topology) Factors {
	rank := topo.Comm().Rank()
	var f Factors
	for d := 0; d < 3; d++ {
		p := plans[d]
		start := topo.LocalStart(d, rank)
		count := topo.LocalSize(d, rank)
		for c := 0; c < 3; c++ {
			f.Axis[d][c] = make([]complex128, count)
		}
		for i := 0; i < count; i++ {
			idx := start + i - p.SymStart()
			var kabs float64
			switch order {
			case OrderFiniteDifference:
				arg := (float64(idx) + p.KOffset()) * p.KFact() * h[d]
				kabs = math.Sin(arg) / h[d]
			default:
				kabs = (float64(idx) + p.KOffset()) * p.KFact()
			}
			for c := 0; c < 3; c++ {
				switch p.Imult(c) {
				case 0:
					f.Axis[d][c][i] = complex(0, kabs)
				case 1:
					f.Axis[d][c][i] = complex(-kabs, 0)
				case -1:
					f.Axis[d][c][i] = complex(kabs, 0)
				}
			}
		}
	}
	return f
}

// ConvolveRotationalComplex computes the curl of a 3-component complex
// vector field and multiplies the result by the scalar Green's function,
// per spec §4.5's rotational formula:
//
//	rot_0 = df2/dx1 - df1/dx2
//	rot_1 = df0/dx2 - df2/dx0
//	rot_2 = df1/dx0 - df0/dx1
//	out_c = normFact * rot_c * G
//
// buf holds three interleaved-complex component slices back to back, each
// sized memSize (topo's per-component scalar count); green is the same
// layout, one component's worth.
func ConvolveRotationalComplex(topo topology.Topology, buf []float64, green []float64, factors Factors, normFact float64) {
	rank := topo.Comm().Rank()
	memSize := topo.MemSize(rank)
	fast, mid, outer := topo.AxisOrder()
	sizes := topo.LocalSizes(rank)
	f := make([]complex128, 3)
	var df [3][3]complex128 // df[d][c] = df_c/dx_d

	for a := 0; a < sizes[outer]; a++ {
		for b := 0; b < sizes[mid]; b++ {
			for i := 0; i < sizes[fast]; i++ {
				var local [3]int
				local[outer], local[mid], local[fast] = a, b, i
				p := topo.PointOffset(rank, local)

				for c := 0; c < 3; c++ {
					base := c * memSize
					f[c] = complex(buf[base+2*p], buf[base+2*p+1])
				}
				for d := 0; d < 3; d++ {
					for c := 0; c < 3; c++ {
						df[d][c] = f[c] * factors.Axis[d][c][local[d]]
					}
				}
				g := complex(green[2*p], green[2*p+1])
				rot0 := (df[1][2] - df[2][1]) * g * complex(normFact, 0)
				rot1 := (df[2][0] - df[0][2]) * g * complex(normFact, 0)
				rot2 := (df[0][1] - df[1][0]) * g * complex(normFact, 0)
				buf[0*memSize+2*p], buf[0*memSize+2*p+1] = real(rot0), imag(rot0)
				buf[1*memSize+2*p], buf[1*memSize+2*p+1] = real(rot1), imag(rot1)
				buf[2*memSize+2*p], buf[2*memSize+2*p+1] = real(rot2), imag(rot2)
			}
		}
	}
}

// ConvolveRotationalReal is the real-variant analogue, used when the final
// forward topology has not become complex along any direction (fully
// symmetric configurations). The derivative factors here must be purely
// real (phase +-1 in every direction) since a real buffer has no imaginary
// part to carry a plain i*k rotation — configuration error otherwise.
func ConvolveRotationalReal(topo topology.Topology, buf []float64, green []float64, factors Factors, normFact float64) {
	rank := topo.Comm().Rank()
	memSize := topo.MemSize(rank)
	fast, mid, outer := topo.AxisOrder()
	sizes := topo.LocalSizes(rank)
	for d := 0; d < 3; d++ {
		for c := 0; c < 3; c++ {
			for _, v := range factors.Axis[d][c] {
				if imag(v) != 0 {
					xerrors.Fatalf("kernel: real rotational convolution requires purely real derivative factors, direction %d component %d has an imaginary phase", d, c)
				}
			}
		}
	}

	f := make([]float64, 3)
	var df [3][3]float64
	for a := 0; a < sizes[outer]; a++ {
		for b := 0; b < sizes[mid]; b++ {
			for i := 0; i < sizes[fast]; i++ {
				var local [3]int
				local[outer], local[mid], local[fast] = a, b, i
				p := topo.PointOffset(rank, local)

				for c := 0; c < 3; c++ {
					f[c] = buf[c*memSize+p]
				}
				for d := 0; d < 3; d++ {
					for c := 0; c < 3; c++ {
						df[d][c] = f[c] * real(factors.Axis[d][c][local[d]])
					}
				}
				g := green[p]
				buf[0*memSize+p] = (df[1][2] - df[2][1]) * g * normFact
				buf[1*memSize+p] = (df[2][0] - df[0][2]) * g * normFact
				buf[2*memSize+p] = (df[0][1] - df[1][0]) * g * normFact
			}
		}
	}
}

// Convolve dispatches to the standard or rotational family for the given
// mode and complexity, the single entry point the solver calls after the
// field's forward transform sequence completes.
func Convolve(topo topology.Topology, buf []float64, lda int, green []float64, normFact float64, mode Mode, factors Factors, isComplex bool) {
	switch {
	case mode == Standard && !isComplex:
		ConvolveStandardReal(topo, buf, lda, green, normFact)
	case mode == Standard && isComplex:
		ConvolveStandardComplex(topo, buf, lda, green, normFact)
	case mode == Rotational && !isComplex:
		if lda != 3 {
			xerrors.Fatalf("kernel: rotational convolution requires lda=3, got %d", lda)
		}
		ConvolveRotationalReal(topo, buf, green, factors, normFact)
	case mode == Rotational && isComplex:
		if lda != 3 {
			xerrors.Fatalf("kernel: rotational convolution requires lda=3, got %d", lda)
		}
		ConvolveRotationalComplex(topo, buf, green, factors, normFact)
	}
}
