package solver

import (
	"testing"

	"github.com/notargets/gopoisson/bc"
	"github.com/notargets/gopoisson/comm"
	"github.com/notargets/gopoisson/green"
	"github.com/notargets/gopoisson/topology"
)

func periodicSpec() bc.Spec {
	p := bc.Pair{Left: bc.Periodic, Right: bc.Periodic}
	return bc.Spec{p, p, p}
}

func mixedSpec() bc.Spec {
	return bc.Spec{
		{Left: bc.Even, Right: bc.Even},
		{Left: bc.Odd, Right: bc.Odd},
		{Left: bc.Periodic, Right: bc.Periodic},
	}
}

func smallPhysical(t *testing.T) topology.Topology {
	world := comm.NewLocalWorld(1)
	phys, err := topology.New(0, [3]int{8, 8, 8}, [3]int{1, 1, 1}, topology.DefaultOrder, false, 1, topology.NoAlignment, world[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return phys
}

func baseConfig(t *testing.T) Config {
	return Config{
		Physical: smallPhysical(t),
		BC:       periodicSpec(),
		H:        [3]float64{1, 1, 1},
		L:        [3]float64{1, 1, 1},
		Green: GreenConfig{
			Type:           green.ChargelessDelta,
			UnboundedCount: 0,
		},
	}
}

func TestNewRejectsUnsupportedLda(t *testing.T) {
	world := comm.NewLocalWorld(1)
	phys, err := topology.New(0, [3]int{8, 8, 8}, [3]int{1, 1, 1}, topology.DefaultOrder, false, 2, topology.NoAlignment, world[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := baseConfig(t)
	cfg.Physical = phys
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected an error for lda=2")
	}
}

func TestNewRejectsMismatchedUnboundedCount(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Green.UnboundedCount = 1
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected an error when Green.UnboundedCount disagrees with BC.UnboundedCount()")
	}
}

func TestNewRejectsInvalidGreenConfig(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Green.Type = green.Hejlesen2
	cfg.Green.Eps = 0 // regularized kernel requires eps > 0
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected an error for a regularized kernel with eps<=0")
	}
}

func TestNewAcceptsValidConfig(t *testing.T) {
	cfg := baseConfig(t)
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.fieldSeq == nil || s.greenSeq == nil {
		t.Fatalf("New must plan both sequences")
	}
}

func TestSetupReturnsFieldBufferSizedToFinalTopology(t *testing.T) {
	cfg := baseConfig(t)
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	field, err := s.Setup(false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	final := s.FinalTopology()
	want := final.MemSizeTotal(final.Comm().Rank())
	if len(field) != want {
		t.Fatalf("field buffer size: got %d want %d", len(field), want)
	}
	if len(s.greenBuf) == 0 {
		t.Fatalf("Setup must assemble the Green buffer")
	}
}

func TestSolveRoundTripsZeroRHSToZeroField(t *testing.T) {
	cfg := baseConfig(t)
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Setup(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	phys := s.PhysicalTopology()
	n := phys.MemSizeTotal(phys.Comm().Rank())
	rhs := make([]float64, n)
	out := make([]float64, n)
	s.Solve(out, rhs, ModeStandard)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("index %d: zero RHS must convolve to a zero field, got %v", i, v)
		}
	}
}

func TestSolveRejectsRotationalWithoutDerivative(t *testing.T) {
	cfg := baseConfig(t)
	cfg.BC = mixedSpec()
	cfg.DerivativeOrder = 0
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Setup(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	phys := s.PhysicalTopology()
	n := phys.MemSizeTotal(phys.Comm().Rank())
	rhs := make([]float64, n)
	out := make([]float64, n)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a fatal abort for rotational mode with derivative_order=0")
		}
	}()
	s.Solve(out, rhs, ModeRotational)
}

func TestDestroyFreesThePhysicalCommunicator(t *testing.T) {
	cfg := baseConfig(t)
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Destroy() // must not panic even though Local.Free is a no-op
}
