package green

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// latticeDim3N and latticeDim2N mirror the original's hard-coded
// table sizes (spec §6): 3-D kernel is N=64 (N^3 samples), 2-D is N=32
// (N^2 samples).
const (
	latticeDim3N = 64
	latticeDim2N = 32
)

// LatticeKernel holds the precomputed lattice Green's function samples
// loaded from an `LGF_{dim}d_sym_acc12_{N}.ker` file (spec §6). Out-of-range
// lookups fall back to the analytical far-field tail -1/(4*pi*r) in 3-D and
// -log(r)/(2*pi) in 2-D.
type LatticeKernel struct {
	dim  int // 2 or 3
	n    int
	data []float64
}

// LoadLatticeKernel reads the binary kernel file for the requested
// dimension from dir — the original's `_lgf_readfile`, ported directly: N^3
// (or N^2) row-major float64 samples, no header.
func LoadLatticeKernel(dir string, dim int) (*LatticeKernel, error) {
	var n int
	switch dim {
	case 3:
		n = latticeDim3N
	case 2:
		n = latticeDim2N
	default:
		return nil, fmt.Errorf("green: greendim = %d is not available", dim)
	}
	path := fmt.Sprintf("%s/LGF_%dd_sym_acc12_%d.ker", dir, dim, n)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("green: unable to read lattice kernel file %s: %w", path, err)
	}
	defer f.Close()

	size := 1
	for i := 0; i < dim; i++ {
		size *= n
	}
	data := make([]float64, size)
	if err := binary.Read(f, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("green: short read of lattice kernel file %s: %w", path, err)
	}
	return &LatticeKernel{dim: dim, n: n, data: data}, nil
}

// Sample returns the kernel's value at symmetry-folded indices (i,j[,k]),
// all non-negative (the table stores only the symmetric octant/quadrant),
// falling back to the analytical tail (-1/(4*pi*r) in 3-D, -log(r)/(2*pi) in
// 2-D) once any index is at or beyond N.
func (lk *LatticeKernel) Sample(idx [3]int, h float64) float64 {
	for d := 0; d < lk.dim; d++ {
		if idx[d] >= lk.n {
			return lk.analyticalTail(idx, h)
		}
	}
	switch lk.dim {
	case 2:
		return lk.data[idx[0]*lk.n+idx[1]]
	default:
		return lk.data[idx[0]*lk.n*lk.n+idx[1]*lk.n+idx[2]]
	}
}

// analyticalTail is the far-field closed form used once an index falls
// outside the precomputed table (spec §6: "out-of-range lookups fall back to
// an analytical tail formula").
func (lk *LatticeKernel) analyticalTail(idx [3]int, h float64) float64 {
	r2 := 0.0
	for d := 0; d < lk.dim; d++ {
		r2 += float64(idx[d]) * float64(idx[d])
	}
	r := math.Sqrt(r2) * h
	if r == 0 {
		return 0
	}
	if lk.dim == 2 {
		return -math.Log(r) / (2.0 * math.Pi)
	}
	return -1.0 / (4.0 * math.Pi * r)
}

// lookupLattice is the package-level entry point green3DirUnbounded uses; it
// is wired through the package function UseLattice rather than carrying a *LatticeKernel
// field on every Kernel, since only the LatticeGreen type needs one.
var activeLatticeKernel *LatticeKernel

// UseLattice attaches a loaded LatticeKernel to be consulted by subsequent
// Fill calls against kernels configured with Type == LatticeGreen.
func UseLattice(lk *LatticeKernel) { activeLatticeKernel = lk }

func lookupLattice(global [3]int, hfact [3]float64) float64 {
	if activeLatticeKernel == nil {
		// no kernel file loaded: fall back to the unregularized analytical
		// kernel rather than panicking mid-fill.
		x := float64(global[0]) * hfact[0]
		y := float64(global[1]) * hfact[1]
		z := float64(global[2]) * hfact[2]
		r := math.Sqrt(x*x + y*y + z*z)
		if r == 0 {
			return 0
		}
		return -1.0 / (4.0 * math.Pi * r)
	}
	idx := [3]int{abs(global[0]), abs(global[1]), abs(global[2])}
	return activeLatticeKernel.Sample(idx, hfact[0])
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
