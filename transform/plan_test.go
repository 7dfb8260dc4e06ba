package transform

import (
	"math"
	"testing"

	"github.com/notargets/gopoisson/layout"
)

func TestPlanOrdinalMonotonic(t *testing.T) {
	kinds := []layout.Kind{layout.KindEvenEven, layout.KindPeriodic, layout.KindPeriodic}
	plans := make([]*Plan, 3)
	complex := false
	for i, k := range kinds {
		p := New(i, RoleForward, k)
		p.Init(16, complex)
		complex = p.IsNowComplex()
		plans[i] = p
	}
	for i := 1; i < 3; i++ {
		if plans[i-1].Category().Ordinal() > plans[i].Category().Ordinal() {
			t.Fatalf("category ordinal not monotonic: %v then %v", plans[i-1].Category(), plans[i].Category())
		}
	}
	if plans[1].Category() != CategoryR2C {
		t.Fatalf("expected first periodic-family plan to be R2C, got %v", plans[1].Category())
	}
	if plans[2].Category() != CategoryC2C {
		t.Fatalf("expected second periodic-family plan to be C2C, got %v", plans[2].Category())
	}
}

func TestR2CRoundTrip(t *testing.T) {
	n := 16
	p := New(0, RoleForward, layout.KindPeriodic)
	p.Init(n, false)
	p.Allocate()

	want := make([]float64, n)
	for i := range want {
		want[i] = math.Cos(2*math.Pi*float64(i)/float64(n)) + 0.3*float64(i%3)
	}
	run := make([]float64, (n/2+1)*2)
	copy(run, want)
	p.Execute(run)

	back := New(0, RoleBackward, layout.KindPeriodic)
	back.SetTargetSize(n)
	back.Init(p.OutSize(), p.IsNowComplex())
	back.Allocate()
	back.Execute(run)
	for i := 0; i < n; i++ {
		run[i] *= p.NormFact()
	}
	for i := range want {
		if math.Abs(run[i]-want[i]) > 1e-9 {
			t.Fatalf("R2C round trip mismatch at %d: got %v want %v", i, run[i], want[i])
		}
	}
}

func TestSymEvenRoundTrip(t *testing.T) {
	n := 9
	p := New(0, RoleForward, layout.KindEvenEven)
	p.Init(n, false)
	p.Allocate()

	want := make([]float64, n)
	for i := range want {
		want[i] = float64(i%3) + 0.5
	}
	run := make([]float64, n)
	copy(run, want)
	p.Execute(run)

	back := New(0, RoleBackward, layout.KindEvenEven)
	back.Init(n, false)
	back.Allocate()
	back.Execute(run)
	for i := range run {
		run[i] *= p.NormFact()
	}
	for i := range want {
		if math.Abs(run[i]-want[i]) > 1e-8 {
			t.Fatalf("DCT round trip mismatch at %d: got %v want %v", i, run[i], want[i])
		}
	}
}
