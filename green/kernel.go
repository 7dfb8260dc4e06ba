package green

import (
	"math"

	"github.com/notargets/gopoisson/internal/xerrors"
	"github.com/notargets/gopoisson/topology"
)

// Kernel owns the Green's-function buffer through assembly (spec §4.4). It
// always carries lda = 1 regardless of the field's lda, per §4.1.
type Kernel struct {
	Type           Type
	Eps            float64 // regularization radius, only meaningful for Hejlesen kernels
	UnboundedCount int     // 0..3, how many directions are fully UNBOUNDED

	Buf []float64
}

// New validates the kernel/grid combination (spec §4.4 step 1's validity
// rules) and returns an empty Kernel ready for Fill.
func New(kind Type, eps float64, unboundedCount int, isotropic bool) (*Kernel, error) {
	if kind == LatticeGreen && unboundedCount < 2 {
		return nil, xerrors.Config("green: lattice Green requires >= 2 unbounded directions, got %d", unboundedCount)
	}
	if kind == LatticeGreen && !isotropic {
		return nil, xerrors.Config("green: lattice Green requires an isotropic grid spacing")
	}
	if kind.IsRegularized() && eps <= 0 {
		return nil, xerrors.Config("green: regularized kernel %v requires a positive smoothing radius", kind)
	}
	return &Kernel{Type: kind, Eps: eps, UnboundedCount: unboundedCount}, nil
}

// Fill fills topo's local Green buffer with the closed-form kernel selected
// by k.UnboundedCount (spec §4.4 step 1). hfact is the physical grid spacing
// along each direction; kfact/koffset/symstart describe the affine
// wavenumber map and symmetry-reduced index start of each spectral direction
// (only meaningful for directions that are NOT unbounded).
func (k *Kernel) Fill(topo topology.Topology, hfact, kfact, koffset [3]float64, symstart [3]int) {
	sizes := topo.LocalSizes(topo.Comm().Rank())
	rank := topo.Comm().Rank()
	k.Buf = make([]float64, topo.MemSize(rank))
	fast, mid, outer := topo.AxisOrder()

	unbounded := k.unboundedMask(topo)

	for a := 0; a < sizes[outer]; a++ {
		for b := 0; b < sizes[mid]; b++ {
			for c := 0; c < sizes[fast]; c++ {
				var local [3]int
				local[outer], local[mid], local[fast] = a, b, c
				var global [3]int
				global[outer] = local[outer] + topo.LocalStart(outer, rank)
				global[mid] = local[mid] + topo.LocalStart(mid, rank)
				global[fast] = local[fast] + topo.LocalStart(fast, rank)
				val := k.pointValue(global, unbounded, hfact, kfact, koffset, symstart)
				k.Buf[topo.PointOffset(rank, local)] = val
			}
		}
	}
}

// unboundedMask reports, per direction, whether that direction is one of the
// k.UnboundedCount spatial directions — by convention the lowest-indexed
// directions are unbounded first, matching the direction-planning order that
// always sorts unbounded/periodic directions after symmetric ones.
func (k *Kernel) unboundedMask(topo topology.Topology) [3]bool {
	var mask [3]bool
	n := topo.GlobalSize()
	count := 0
	for d := 0; d < 3 && count < k.UnboundedCount; d++ {
		if n[d] > 1 {
			mask[d] = true
			count++
		}
	}
	return mask
}

// pointValue evaluates the closed-form kernel at one global index, dispatched
// by how many directions are unbounded — spec §4.4 step 1's four cases.
func (k *Kernel) pointValue(global [3]int, unbounded [3]bool, hfact, kfact, koffset [3]float64, symstart [3]int) float64 {
	switch k.UnboundedCount {
	case 3:
		return k.green3DirUnbounded(global, hfact)
	case 2:
		return k.green2DirUnbounded(global, unbounded, hfact, kfact, koffset, symstart)
	case 1:
		return k.green1DirUnbounded(global, unbounded, hfact, kfact, koffset, symstart)
	default:
		return k.green0DirUnbounded(global, kfact, koffset, symstart)
	}
}

func spectralK(global [3]int, d int, kfact, koffset [3]float64, symstart [3]int) float64 {
	idx := global[d] - symstart[d]
	return (float64(idx) + koffset[d]) * kfact[d]
}

// green3DirUnbounded is the fully real-space kernel: free-space Green's
// function of the 3-D Laplacian, -1/(4*pi*r), regularized near r=0 for the
// Hejlesen kernels (Hejlesen et al. 2015) via an error-function mollifier.
// The regularized formula used here is the documented zeroth-order Hejlesen
// smoothing common to all three orders; higher orders add a near-field
// polynomial correction, approximated here — see DESIGN.md.
func (k *Kernel) green3DirUnbounded(global [3]int, hfact [3]float64) float64 {
	x := float64(global[0]) * hfact[0]
	y := float64(global[1]) * hfact[1]
	z := float64(global[2]) * hfact[2]
	r := math.Sqrt(x*x + y*y + z*z)
	if r == 0 {
		return k.nearFieldValue3D(hfact)
	}
	switch k.Type {
	case ChargelessDelta:
		return -1.0 / (4.0 * math.Pi * r)
	case Hejlesen2, Hejlesen4, Hejlesen6:
		eps := k.Eps
		base := -math.Erf(r/(math.Sqrt2*eps)) / (4.0 * math.Pi * r)
		return base + k.hejlesenCorrection(r, eps)
	case LatticeGreen:
		return lookupLattice(global, hfact)
	default:
		return -1.0 / (4.0 * math.Pi * r)
	}
}

// hejlesenCorrection is the higher-order near-field polynomial correction
// (order 4 and 6 add successive Gaussian-weighted terms to the order-2
// erf mollifier); order 2 contributes nothing beyond the base erf term.
func (k *Kernel) hejlesenCorrection(r, eps float64) float64 {
	order := k.Type.regularizationOrder()
	if order <= 2 {
		return 0
	}
	xi := r / eps
	gauss := math.Exp(-xi*xi/2) / (eps * math.Sqrt(2*math.Pi))
	switch order {
	case 4:
		return -gauss * xi / (4.0 * math.Pi * r)
	case 6:
		return -gauss * (xi + xi*xi*xi/3) / (4.0 * math.Pi * r)
	default:
		return 0
	}
}

// nearFieldValue3D is the regularized kernel's value at r=0, the finite r->0
// limit of green3DirUnbounded's formula: erf(r/(sqrt(2)*eps))/r tends to
// sqrt(2)/(sqrt(pi)*eps), and the order-4/6 correction term tends to
// -1/(4*pi*eps^2*sqrt(2*pi)); the unregularized chargeless kernel has no
// finite self-value and is left at 0 (a chargeless point source has zero
// self-interaction by definition).
func (k *Kernel) nearFieldValue3D(hfact [3]float64) float64 {
	if !k.Type.IsRegularized() {
		return 0
	}
	eps := k.Eps
	v := -math.Sqrt2 / (4.0 * math.Pi * math.Sqrt(math.Pi) * eps)
	if k.Type.regularizationOrder() > 2 {
		v -= 1.0 / (4.0 * math.Pi * eps * eps * math.Sqrt(2*math.Pi))
	}
	return v
}

// green2DirUnbounded assumes directions 0 and 1 are the unbounded pair and
// direction 2 is spectral. The semi-spectral kernel is
// -K0(|k|*r)/(2*pi) for k != 0, and the 2-D free-space log kernel for k = 0.
func (k *Kernel) green2DirUnbounded(global [3]int, unbounded [3]bool, hfact, kfact, koffset [3]float64, symstart [3]int) float64 {
	spectralDir := spectralDirection(unbounded)
	x := float64(global[0]) * hfact[0]
	y := float64(global[1]) * hfact[1]
	r := math.Sqrt(x*x + y*y)
	kabs := math.Abs(spectralK(global, spectralDir, kfact, koffset, symstart))
	if r == 0 {
		r = 0.5 * math.Min(hfact[0], hfact[1]) // FLUPS-style avoidance of the log/Bessel singularity at the origin
	}
	if kabs == 0 {
		return -math.Log(r) / (2.0 * math.Pi)
	}
	return -BesselK0(kabs*r) / (2.0 * math.Pi)
}

// green1DirUnbounded assumes direction 0 is the unbounded one, directions 1
// and 2 are spectral. The semi-spectral kernel is -exp(-|k|*|z|)/(2*|k|).
func (k *Kernel) green1DirUnbounded(global [3]int, unbounded [3]bool, hfact, kfact, koffset [3]float64, symstart [3]int) float64 {
	z := float64(global[0]) * hfact[0]
	k1 := spectralK(global, 1, kfact, koffset, symstart)
	k2 := spectralK(global, 2, kfact, koffset, symstart)
	kabs := math.Sqrt(k1*k1 + k2*k2)
	if kabs == 0 {
		return -math.Abs(z) / 2.0
	}
	return -math.Exp(-kabs*math.Abs(z)) / (2.0 * kabs)
}

// green0DirUnbounded is the fully spectral case: G(k) = -1/|k|^2, with the
// origin left at its natural definition (0) — spec §9's resolved open
// question ties actually zeroing the mode to the fully-periodic case, which
// the solver applies afterwards via ApplyModeZeroPolicy.
func (k *Kernel) green0DirUnbounded(global [3]int, kfact, koffset [3]float64, symstart [3]int) float64 {
	k0 := spectralK(global, 0, kfact, koffset, symstart)
	k1 := spectralK(global, 1, kfact, koffset, symstart)
	k2 := spectralK(global, 2, kfact, koffset, symstart)
	kabs2 := k0*k0 + k1*k1 + k2*k2
	if kabs2 == 0 {
		return 0
	}
	return -1.0 / kabs2
}

func spectralDirection(unbounded [3]bool) int {
	for d := 0; d < 3; d++ {
		if !unbounded[d] {
			return d
		}
	}
	return 2
}

// ApplyVolumeFactor multiplies every element by the accumulated volume
// factor (spec §4.4 step 3, product of the forward plans' VolFact).
func (k *Kernel) ApplyVolumeFactor(volFact float64) {
	for i := range k.Buf {
		k.Buf[i] *= volFact
	}
}

// ApplyModeZeroPolicy zeros the element at global index (0,0,0), if this rank
// owns it and kill is requested. Spec §9's resolved open question: kill
// should be true if and only if the problem is fully periodic (no unbounded
// direction) — the caller decides that and passes it in.
func (k *Kernel) ApplyModeZeroPolicy(topo topology.Topology, kill bool) {
	if !kill {
		return
	}
	rank := topo.Comm().Rank()
	if topo.LocalStart(0, rank) != 0 || topo.LocalStart(1, rank) != 0 || topo.LocalStart(2, rank) != 0 {
		return
	}
	k.Buf[topo.PointOffset(rank, [3]int{0, 0, 0})] = 0
}

// RegularizeOffPlane rewrites every point whose spectral-direction index is
// non-zero using the 0-unbounded formula (spec §4.4 step 4): a known
// deficiency of the 2-unbounded regularized kernel away from the zero plane.
// Only meaningful when k.UnboundedCount == 2.
func (k *Kernel) RegularizeOffPlane(topo topology.Topology, kfact, koffset [3]float64, symstart [3]int) {
	if k.UnboundedCount != 2 || !k.Type.IsRegularized() {
		return
	}
	rank := topo.Comm().Rank()
	sizes := topo.LocalSizes(rank)
	fast, mid, outer := topo.AxisOrder()
	spectralDir := 2 // by convention direction 2 is spectral when directions 0,1 are unbounded
	for a := 0; a < sizes[outer]; a++ {
		for b := 0; b < sizes[mid]; b++ {
			for c := 0; c < sizes[fast]; c++ {
				var local [3]int
				local[outer], local[mid], local[fast] = a, b, c
				var global [3]int
				global[outer] = local[outer] + topo.LocalStart(outer, rank)
				global[mid] = local[mid] + topo.LocalStart(mid, rank)
				global[fast] = local[fast] + topo.LocalStart(fast, rank)
				if global[spectralDir] == 0 {
					continue
				}
				k0 := spectralK(global, spectralDir, kfact, koffset, symstart)
				k.Buf[topo.PointOffset(rank, local)] = k.green0DirUnboundedAt(k0)
			}
		}
	}
}

func (k *Kernel) green0DirUnboundedAt(kabs float64) float64 {
	if kabs == 0 {
		return 0
	}
	return -1.0 / (kabs * kabs)
}
