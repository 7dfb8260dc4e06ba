// Command validate runs a single validation scenario (spec §8's "Concrete
// scenarios" table): construct a solver for a chosen boundary-condition
// combination, fill a Gaussian source term, solve, and report the solution's
// norm and timing for each pipeline stage.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"

	"github.com/notargets/gopoisson/bc"
	"github.com/notargets/gopoisson/comm"
	"github.com/notargets/gopoisson/green"
	"github.com/notargets/gopoisson/solver"
	"github.com/notargets/gopoisson/topology"
)

var (
	n       = flag.Int("n", 32, "grid points per direction")
	bcName  = flag.String("bc", "periodic", "boundary condition: periodic, symmetric, or mixed")
	sigma   = flag.Float64("sigma", 0.05, "Gaussian source width, in domain-length units")
	rotflag = flag.Bool("rotational", false, "solve the rotational (curl) convolution instead of standard")
)

type stageProfiler struct{}

func (stageProfiler) Stage(name string, seconds float64) {
	fmt.Printf("  %-14s %8.4fs\n", name, seconds)
}

func bcSpecFor(name string) (bc.Spec, int) {
	per := bc.Pair{Left: bc.Periodic, Right: bc.Periodic}
	even := bc.Pair{Left: bc.Even, Right: bc.Even}
	odd := bc.Pair{Left: bc.Odd, Right: bc.Odd}

	switch name {
	case "periodic":
		return bc.Spec{per, per, per}, 0
	case "symmetric":
		return bc.Spec{even, odd, even}, 0
	case "mixed":
		return bc.Spec{even, odd, per}, 0
	default:
		log.Fatalf("unknown -bc value %q (want periodic, symmetric, or mixed)", name)
		return bc.Spec{}, 0
	}
}

// gaussianRHS fills component 0 of topo's external buffer with a narrow
// Gaussian charge density and leaves any remaining lda components (the
// rotational mode's vector field) zero.
func gaussianRHS(topo topology.Topology, h [3]float64, sigma float64) []float64 {
	rank := topo.Comm().Rank()
	buf := make([]float64, topo.MemSizeTotal(rank))
	sizes := topo.LocalSizes(rank)
	fast, mid, outer := topo.AxisOrder()
	global := topo.GlobalSize()
	center := [3]float64{
		float64(global[0]) * h[0] / 2,
		float64(global[1]) * h[1] / 2,
		float64(global[2]) * h[2] / 2,
	}
	oosigma2 := 1.0 / (sigma * sigma)
	oosigma3 := 1.0 / (sigma * sigma * sigma)
	const c1o4pi = 1.0 / (4 * math.Pi)

	for a := 0; a < sizes[outer]; a++ {
		for b := 0; b < sizes[mid]; b++ {
			for c := 0; c < sizes[fast]; c++ {
				var local [3]int
				local[outer], local[mid], local[fast] = a, b, c
				var g [3]int
				g[outer] = local[outer] + topo.LocalStart(outer, rank)
				g[mid] = local[mid] + topo.LocalStart(mid, rank)
				g[fast] = local[fast] + topo.LocalStart(fast, rank)
				x := (float64(g[0])+0.5)*h[0] - center[0]
				y := (float64(g[1])+0.5)*h[1] - center[1]
				z := (float64(g[2])+0.5)*h[2] - center[2]
				rho2 := (x*x + y*y + z*z) * oosigma2
				off := topo.PointOffset(rank, local) * topo.Nf()
				buf[off] = -c1o4pi * oosigma3 * math.Sqrt(2.0/math.Pi) * math.Exp(-rho2*0.5)
			}
		}
	}
	return buf
}

func norms(buf []float64) (l2, linf float64) {
	for _, v := range buf {
		l2 += v * v
		if a := math.Abs(v); a > linf {
			linf = a
		}
	}
	return math.Sqrt(l2), linf
}

func main() {
	flag.Parse()

	bcSpec, unboundedCount := bcSpecFor(*bcName)

	lda := 1
	derivativeOrder := 0
	if *rotflag {
		lda = 3
		derivativeOrder = 1
	}

	world := comm.NewLocalWorld(1)
	phys, err := topology.New(0, [3]int{*n, *n, *n}, [3]int{1, 1, 1}, topology.DefaultOrder, false, lda, topology.NoAlignment, world[0])
	if err != nil {
		log.Fatalf("topology: %v", err)
	}

	h := [3]float64{1.0 / float64(*n), 1.0 / float64(*n), 1.0 / float64(*n)}
	L := [3]float64{1, 1, 1}

	cfg := solver.Config{
		Physical:        phys,
		BC:              bcSpec,
		H:               h,
		L:               L,
		DerivativeOrder: derivativeOrder,
		Green: solver.GreenConfig{
			Type:           green.ChargelessDelta,
			UnboundedCount: unboundedCount,
		},
		Profiler: stageProfiler{},
	}

	s, err := solver.New(cfg)
	if err != nil {
		log.Fatalf("solver.New: %v", err)
	}
	defer s.Destroy()

	fmt.Printf("=== gopoisson validation: bc=%s n=%d ===\n", *bcName, *n)
	if _, err := s.Setup(false); err != nil {
		log.Fatalf("setup: %v", err)
	}

	rhs := gaussianRHS(phys, h, *sigma)
	sol := make([]float64, len(rhs))

	mode := solver.ModeStandard
	if *rotflag {
		mode = solver.ModeRotational
	}
	s.Solve(sol, rhs, mode)

	l2, linf := norms(sol)
	fmt.Printf("solution norms: L2=%.6e Linf=%.6e\n", l2, linf)
}
