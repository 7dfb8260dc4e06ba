package green

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notargets/gopoisson/comm"
	"github.com/notargets/gopoisson/topology"
)

func TestBesselK0DecaysAndMatchesKnownValue(t *testing.T) {
	// K0(1) ~= 0.4210244382
	assert.InDelta(t, 0.4210244382, BesselK0(1.0), 1e-6)
	if BesselK0(2.0) >= BesselK0(1.0) {
		t.Fatalf("K0 should decay monotonically: K0(1)=%v K0(2)=%v", BesselK0(1.0), BesselK0(2.0))
	}
}

func TestBesselI0AtZero(t *testing.T) {
	assert.InDelta(t, 1.0, BesselI0(0.0), 1e-9)
}

func TestExpIntEiMonotonic(t *testing.T) {
	if ExpIntEi(1.0) >= ExpIntEi(2.0) {
		t.Fatalf("Ei should increase with x in this range")
	}
}

func TestFill3DirUnboundedChargelessDeltaDecaysWithDistance(t *testing.T) {
	world := comm.NewLocalWorld(1)
	tp, err := topology.New(0, [3]int{8, 8, 8}, [3]int{1, 1, 1}, topology.DefaultOrder, false, 1, topology.NoAlignment, world[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	k, err := New(ChargelessDelta, 0, 3, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hfact := [3]float64{0.1, 0.1, 0.1}
	k.Fill(tp, hfact, [3]float64{}, [3]float64{}, [3]int{})

	near := k.Buf[tp.PointOffset(0, [3]int{1, 0, 0})]
	far := k.Buf[tp.PointOffset(0, [3]int{7, 0, 0})]
	if math.Abs(near) <= math.Abs(far) {
		t.Fatalf("expected |G| to decay with distance: near=%v far=%v", near, far)
	}
	origin := k.Buf[tp.PointOffset(0, [3]int{0, 0, 0})]
	if origin != 0 {
		t.Fatalf("chargeless kernel should leave the self-value at 0, got %v", origin)
	}
}

func TestFill0DirUnboundedModeZero(t *testing.T) {
	world := comm.NewLocalWorld(1)
	tp, err := topology.New(0, [3]int{4, 4, 4}, [3]int{1, 1, 1}, topology.DefaultOrder, false, 1, topology.NoAlignment, world[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	k, err := New(ChargelessDelta, 0, 0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	kfact := [3]float64{1, 1, 1}
	k.Fill(tp, [3]float64{}, kfact, [3]float64{}, [3]int{})
	if k.Buf[tp.PointOffset(0, [3]int{0, 0, 0})] != 0 {
		t.Fatalf("fully-spectral kernel's mode zero should be left at 0 by construction")
	}
	k.ApplyModeZeroPolicy(tp, true)
	if k.Buf[tp.PointOffset(0, [3]int{0, 0, 0})] != 0 {
		t.Fatalf("ApplyModeZeroPolicy(kill=true) must zero the owned (0,0,0) element")
	}
}

func TestNewRejectsLatticeOnNonIsotropicGrid(t *testing.T) {
	if _, err := New(LatticeGreen, 0, 2, false); err == nil {
		t.Fatalf("expected configuration error for lattice Green on a non-isotropic grid")
	}
}
