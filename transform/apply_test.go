package transform

import (
	"testing"

	"github.com/notargets/gopoisson/comm"
	"github.com/notargets/gopoisson/layout"
	"github.com/notargets/gopoisson/topology"
)

func TestApplyToPencilEmptyCategoryIsIdentity(t *testing.T) {
	world := comm.NewLocalWorld(1)
	topo, err := topology.New(0, [3]int{1, 3, 3}, [3]int{1, 1, 1}, topology.DefaultOrder, false, 1, topology.NoAlignment, world[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := New(0, RoleForward, layout.KindEmpty)
	p.Init(1, false)
	p.Allocate()

	buf := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	want := append([]float64{}, buf...)
	ApplyToPencil(p, topo, topo, buf, 1, true)
	for i, v := range buf {
		if v != want[i] {
			t.Fatalf("index %d: empty category must leave data untouched, got %v want %v", i, v, want[i])
		}
	}
}

// TestApplyToPencilR2CZeroFrequencyIsLineSum checks the one property of the
// real->complex transform that holds regardless of gonum's FFT sign
// convention for the other coefficients: the zero-frequency (k=0) term always
// equals the plain sum of the line's input values. It is run against a
// 2x2-line pencil to also exercise ApplyToPencil's outer/mid iteration and
// PointOffset addressing, not just a single line.
func TestApplyToPencilR2CZeroFrequencyIsLineSum(t *testing.T) {
	world := comm.NewLocalWorld(1)
	inTopo, err := topology.New(0, [3]int{4, 2, 2}, [3]int{1, 1, 1}, topology.DefaultOrder, false, 1, topology.NoAlignment, world[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outTopo, err := topology.New(0, [3]int{3, 2, 2}, [3]int{1, 1, 1}, topology.DefaultOrder, true, 1, topology.NoAlignment, world[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := New(0, RoleForward, layout.KindPeriodic)
	p.Init(4, false)
	p.Allocate()

	rank := 0
	lines := [][]float64{
		{1, 2, 3, 4},
		{0, 0, 0, 0},
		{-1, 1, -1, 1},
		{5, 5, 5, 5},
	}
	_, mid, outer := inTopo.AxisOrder()
	sizes := inTopo.LocalSizes(rank)

	buf := make([]float64, outTopo.MemSizeTotal(rank))
	li := 0
	for a := 0; a < sizes[outer]; a++ {
		for b := 0; b < sizes[mid]; b++ {
			var local [3]int
			local[outer], local[mid] = a, b
			off := inTopo.PointOffset(rank, local) * inTopo.Nf()
			copy(buf[off:off+4], lines[li])
			li++
		}
	}

	ApplyToPencil(p, inTopo, outTopo, buf, 1, true)

	li = 0
	for a := 0; a < sizes[outer]; a++ {
		for b := 0; b < sizes[mid]; b++ {
			var local [3]int
			local[outer], local[mid] = a, b
			off := outTopo.PointOffset(rank, local) * outTopo.Nf()
			want := 0.0
			for _, v := range lines[li] {
				want += v
			}
			if got := buf[off]; got != want {
				t.Fatalf("line %d: k=0 real part: got %v want %v", li, got, want)
			}
			if got := buf[off+1]; got != 0 {
				t.Fatalf("line %d: k=0 imaginary part must be zero, got %v", li, got)
			}
			li++
		}
	}
}

func TestCorrectHalvesNyquistOnlyForEvenLengthR2C(t *testing.T) {
	p := New(0, RoleForward, layout.KindPeriodic)
	p.Init(4, false) // even length -> CategoryR2C, outSize=3
	run := []float64{10, 0, -2, 2, -2, 7}
	p.Correct(run)
	if run[4] != -1 || run[5] != 3.5 {
		t.Fatalf("even-length R2C must halve the Nyquist coefficient, got run=%v", run)
	}

	pOdd := New(0, RoleForward, layout.KindPeriodic)
	pOdd.Init(5, false) // odd length -> no Nyquist mode
	runOdd := []float64{10, 0, -2, 2, -2, 7}
	wantOdd := append([]float64{}, runOdd...)
	pOdd.Correct(runOdd)
	for i, v := range runOdd {
		if v != wantOdd[i] {
			t.Fatalf("odd-length R2C must be a no-op, index %d got %v want %v", i, v, wantOdd[i])
		}
	}
}
