package kernel

import (
	"testing"

	"github.com/notargets/gopoisson/comm"
	"github.com/notargets/gopoisson/layout"
	"github.com/notargets/gopoisson/topology"
	"github.com/notargets/gopoisson/transform"
)

func TestConvolveStandardReal(t *testing.T) {
	world := comm.NewLocalWorld(1)
	tp, err := topology.New(0, [3]int{4, 1, 1}, [3]int{1, 1, 1}, topology.DefaultOrder, false, 1, topology.NoAlignment, world[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	buf := []float64{1, 2, 3, 4}
	green := []float64{2, 2, 2, 2}
	ConvolveStandardReal(tp, buf, 1, green, 0.5)
	for i, v := range buf {
		want := float64(i+1) * 2 * 0.5
		if v != want {
			t.Fatalf("index %d: got %v want %v", i, v, want)
		}
	}
}

func TestConvolveStandardComplex(t *testing.T) {
	world := comm.NewLocalWorld(1)
	tp, err := topology.New(0, [3]int{2, 1, 1}, [3]int{1, 1, 1}, topology.DefaultOrder, true, 1, topology.NoAlignment, world[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// two complex points: (1+0i) and (0+1i)
	buf := []float64{1, 0, 0, 1}
	green := []float64{1, 0, 1, 0} // identity Green
	ConvolveStandardComplex(tp, buf, 1, green, 1.0)
	if buf[0] != 1 || buf[1] != 0 || buf[2] != 0 || buf[3] != 1 {
		t.Fatalf("identity green/normfact should leave the field unchanged, got %v", buf)
	}
}

func TestBuildFactorsSpectralPhase(t *testing.T) {
	world := comm.NewLocalWorld(1)
	tp, err := topology.New(0, [3]int{8, 8, 8}, [3]int{1, 1, 1}, topology.DefaultOrder, true, 1, topology.NoAlignment, world[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := transform.New(0, transform.RoleBackwardDerivative, layout.KindPeriodic)
	p.Init(8, true)
	p.SetWavenumber(1.0)
	plans := [3]*transform.Plan{p, p, p}
	factors := BuildFactors(plans, OrderSpectral, [3]float64{1, 1, 1}, tp)
	if factors.Axis[0][0][1] == 0 {
		t.Fatalf("expected a non-zero derivative factor for a non-zero wavenumber index")
	}
	if real(factors.Axis[0][0][1]) != 0 {
		t.Fatalf("a periodic direction's plain forward derivative should land on the imaginary axis, got %v", factors.Axis[0][0][1])
	}
}

func TestConvolveRotationalComplexMatchesCrossProduct(t *testing.T) {
	world := comm.NewLocalWorld(1)
	tp, err := topology.New(0, [3]int{2, 2, 2}, [3]int{1, 1, 1}, topology.DefaultOrder, true, 3, topology.NoAlignment, world[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mem := tp.MemSize(0)
	buf := make([]float64, 3*mem)
	// component 2 (f2) is set to the flat point index p, so it varies along
	// direction 1 (among others).
	for p := 0; p < mem/2; p++ {
		buf[2*mem+2*p] = float64(p)
	}
	green := make([]float64, mem)
	for p := 0; p < mem/2; p++ {
		green[2*p] = 1
	}
	var factors Factors
	for d := 0; d < 3; d++ {
		for c := 0; c < 3; c++ {
			factors.Axis[d][c] = make([]complex128, 2)
		}
	}
	// direction 1, component 2: constant real factor 1 (plain finite difference stand-in).
	factors.Axis[1][2][0] = complex(1, 0)
	factors.Axis[1][2][1] = complex(1, 0)

	ConvolveRotationalComplex(tp, buf, green, factors, 1.0)
	// rot_0 = df2/dx1 - df1/dx2; with only df2/dx1 nonzero, rot_0 should be
	// nonzero for at least one point where f2 varied along direction 1.
	nonZero := false
	for p := 0; p < mem/2; p++ {
		if buf[0*mem+2*p] != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		t.Fatalf("expected rot_0 to pick up the df2/dx1 contribution")
	}
}
