package layout

import (
	"github.com/notargets/gopoisson/bc"
	"github.com/notargets/gopoisson/internal/xerrors"
	"github.com/notargets/gopoisson/topology"
	"github.com/notargets/gopoisson/transform"
	"github.com/notargets/gopoisson/transpose"
)

// Direction is everything the dry run produces for one spatial direction:
// its three plans (forward always present; backward and, when the solver
// carries a derivative, backward-with-derivative), the Topology the forward
// plan leaves the data in, and the Transpose that got it there from the
// previous step's Topology.
type Direction struct {
	Kind               Kind
	Forward            *transform.Plan
	Backward           *transform.Plan
	BackwardDerivative *transform.Plan // nil when derivativeOrder == 0
	PreTopology        topology.Topology // what Transpose delivers data into, before Forward runs
	Topology           topology.Topology // what Forward leaves data in; "cur" for the next direction
	Transpose          *transpose.Descriptor
}

// Sequence is the complete output of one dry run (spec §4.1): the execution
// order of the three directions and, for each direction (indexed by
// direction, not by execution order), its plans/topology/transpose.
type Sequence struct {
	Order      [3]int
	Directions [3]Direction
	Final      topology.Topology
}

// Kinds classifies every direction's boundary-condition pair, then computes
// the execution order spec §4.1 defines.
func Kinds(n [3]int, bcSpec bc.Spec) (kinds [3]Kind, order [3]int) {
	for d := 0; d < 3; d++ {
		kinds[d] = ClassifyKind(n[d], bcSpec[d])
	}
	return kinds, Order(kinds)
}

// PlanField runs the field dry run of spec §4.1: starting from the physical
// Topology, build forward/backward(/backward-derivative) plans and
// intermediate Topologies and Transposes for all three directions in
// execution order. derivativeOrder == 0 means no backward-derivative plan is
// built (rotational convolution is then unavailable, per §7's configuration
// rule "rotational mode requested with derivative_order = 0").
func PlanField(phys topology.Topology, bcSpec bc.Spec, L [3]float64, derivativeOrder int) (*Sequence, error) {
	kinds, order := Kinds(phys.GlobalSize(), bcSpec)
	return buildSequence(phys, kinds, order, bcSpec, L, derivativeOrder, false)
}

// PlanGreen runs the Green's-function dry run of spec §4.1/§4.4: the same
// plan orderings and the same per-step Topology shapes as the field ("the
// topology after plan N equals the field's topology after plan N"), so the
// Green buffer ends its own sequence in exactly the field's final spectral
// Topology shape and the convolution kernel's §4.5 standard-real/-complex
// variants can index field and Green buffers one-for-one. The Green sequence
// always carries lda = 1 regardless of the field's lda. (The "force real and
// double the size" language in §4.1's Green-dry-run paragraph describes the
// zero-padding trick FFT-based unbounded solvers use to turn a circular
// convolution into a linear one; modeling it would make Green's final buffer
// a different size than field's, breaking §4.5's one-for-one indexing
// contract the convolution kernel already relies on — so this deliberately
// keeps the two sequences shape-identical instead and leaves the padding
// trick unmodeled, recorded here rather than left silent.)
func PlanGreen(phys topology.Topology, bcSpec bc.Spec, L [3]float64) (*Sequence, error) {
	greenPhys, err := topology.New(phys.FastAxis(), phys.GlobalSize(), phys.ProcGrid(), phys.Order(), phys.IsComplex(), 1, phys.Alignment(), phys.Comm())
	if err != nil {
		return nil, xerrors.Config("layout: green physical topology: %v", err)
	}
	kinds, order := Kinds(phys.GlobalSize(), bcSpec)
	return buildSequence(greenPhys, kinds, order, bcSpec, L, 0, true)
}

func buildSequence(phys topology.Topology, kinds [3]Kind, order [3]int, bcSpec bc.Spec, L [3]float64, derivativeOrder int, isGreen bool) (*Sequence, error) {
	seq := &Sequence{Order: order}
	cur := phys
	curSize := phys.GlobalSize()

	for step, dir := range order {
		fwd := transform.New(dir, transform.RoleForward, kinds[dir])
		fwd.Init(curSize[dir], cur.IsComplex())
		fwd.SetWavenumber(L[dir])

		newComplex := fwd.IsNowComplex()
		newSize := curSize
		newSize[dir] = fwd.OutSize()

		bwd := transform.New(dir, transform.RoleBackward, kinds[dir])
		if fwd.IsR2CByThisPlan() {
			bwd.SetTargetSize(curSize[dir])
		}
		bwd.Init(fwd.OutSize(), fwd.IsNowComplex())
		bwd.SetWavenumber(L[dir])

		var bwdDeriv *transform.Plan
		if derivativeOrder != 0 {
			dKind := ClassifyKind(phys.GlobalSize()[dir], bcSpec[dir].Derivative())
			bwdDeriv = transform.New(dir, transform.RoleBackwardDerivative, dKind)
			if fwd.IsR2CByThisPlan() {
				bwdDeriv.SetTargetSize(curSize[dir])
			}
			bwdDeriv.Init(fwd.OutSize(), fwd.IsNowComplex())
			bwdDeriv.SetWavenumber(L[dir])
		}

		newFast := dir
		var newProc [3]int
		if step == 0 {
			newProc = phys.ProcGrid()
		} else {
			newProc = pencilHint(cur.ProcGrid(), cur.FastAxis(), newFast)
		}

		lda := phys.Lda()
		if isGreen {
			lda = 1
		}

		// The transpose can only move data that already exists: it lands the
		// buffer in the new fast axis with direction dir's OLD (pre-Forward)
		// size and complexity. Forward's own resize (e.g. R2C's size/2+1, or
		// a symmetric transform's outSize) happens afterwards, in place
		// along the now-fast axis, via ApplyToPencil against (preTopo,
		// newTopo) — this is what spec §4.1 step 5's "for a real->complex
		// plan the transpose is planned in real layout then the output
		// topology is switched to complex" actually describes: "real
		// layout" is preTopo's old size and complexity, not newTopo's.
		preTopo, err := topology.New(newFast, curSize, newProc, phys.Order(), cur.IsComplex(), lda, phys.Alignment(), cur.Comm())
		if err != nil {
			return nil, xerrors.Config("layout: direction %d step %d (pre-transform): %v", dir, step, err)
		}
		newTopo, err := topology.New(newFast, newSize, newProc, phys.Order(), newComplex, lda, phys.Alignment(), cur.Comm())
		if err != nil {
			return nil, xerrors.Config("layout: direction %d step %d: %v", dir, step, err)
		}

		var shift [3]int
		shift[dir] = fwd.FieldStart()

		desc := transpose.New(cur, preTopo, shift)

		seq.Directions[dir] = Direction{
			Kind:               kinds[dir],
			Forward:            fwd,
			Backward:           bwd,
			BackwardDerivative: bwdDeriv,
			PreTopology:        preTopo,
			Topology:           newTopo,
			Transpose:          desc,
		}
		cur = newTopo
		curSize = newSize
	}
	seq.Final = cur
	return seq, nil
}

// pencilHint computes the next step's process grid (spec §4.1 step 3): the
// axis that is neither the old nor the new fast axis keeps its process
// count; the remaining processes redistribute onto the old fast axis (now
// free to be partitioned) while the new fast axis becomes unpartitioned.
func pencilHint(oldProc [3]int, oldFast, newFast int) [3]int {
	if oldFast == newFast {
		return oldProc
	}
	keep := -1
	for a := 0; a < 3; a++ {
		if a != oldFast && a != newFast {
			keep = a
			break
		}
	}
	total := oldProc[0] * oldProc[1] * oldProc[2]
	var newProc [3]int
	newProc[keep] = oldProc[keep]
	newProc[newFast] = 1
	if newProc[keep] != 0 {
		newProc[oldFast] = total / newProc[keep]
	} else {
		newProc[oldFast] = total
	}
	return newProc
}
