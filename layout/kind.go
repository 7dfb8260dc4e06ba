// Package layout derives, from the per-direction boundary conditions and
// grid sizes, the per-direction transform Kind and the execution order of
// the three directions (spec §4.1). It owns the direction planner and
// intermediate-topology/transpose construction; the actual 1-D transform
// math lives in package transform.
package layout

import "github.com/notargets/gopoisson/bc"

// Kind classifies a direction's boundary-condition pair into the family of
// 1-D transform it needs, before any real/complex resolution. This table is
// carried from the original FLUPS solver's bc-pair switch (see SPEC_FULL.md,
// "Supplemented features"): spec.md names the four transform kinds but not
// this mapping table.
type Kind int

const (
	KindEmpty     Kind = iota // direction has size 1 (2-D problem)
	KindPeriodic              // both sides PERIODIC
	KindUnbounded             // both sides UNBOUNDED
	KindEvenEven              // both sides EVEN
	KindOddOdd                // both sides ODD
	KindMixed                 // any other combination (EVEN/ODD, or one-sided UNBOUNDED)
)

// ClassifyKind returns the Kind for one direction given its boundary
// condition pair and global size along that direction.
func ClassifyKind(n int, p bc.Pair) Kind {
	if n <= 1 {
		return KindEmpty
	}
	switch {
	case p.Left == bc.Periodic && p.Right == bc.Periodic:
		return KindPeriodic
	case p.Left == bc.Unbounded && p.Right == bc.Unbounded:
		return KindUnbounded
	case p.Left == bc.Even && p.Right == bc.Even:
		return KindEvenEven
	case p.Left == bc.Odd && p.Right == bc.Odd:
		return KindOddOdd
	default:
		return KindMixed
	}
}

// orderClass groups a Kind into the coarse priority spec §4.1 sorts on:
// empty directions first (free), symmetric directions next (smallest working
// set), periodic/unbounded directions last (full complex FFT). R2C vs C2C is
// resolved later, per position, in transform.Plan.Init — see transform/plan.go.
func (k Kind) orderClass() int {
	switch k {
	case KindEmpty:
		return 0
	case KindEvenEven, KindOddOdd, KindMixed:
		return 1
	case KindPeriodic, KindUnbounded:
		return 2
	default:
		return 2
	}
}

// IsSymmetric reports whether this Kind keeps the data real throughout (DCT-
// or DST-like transforms never produce complex output).
func (k Kind) IsSymmetric() bool {
	return k == KindEvenEven || k == KindOddOdd || k == KindMixed
}

// Order computes the execution order of the three directions: ascending by
// orderClass, with the tie-break from spec §4.1 — if direction 0 is not
// already the lowest-priority direction, swap it into position 0 first, then
// order positions 1 and 2 between themselves.
func Order(kinds [3]Kind) [3]int {
	idx := [3]int{0, 1, 2}
	// stable insertion sort on orderClass, preserving original relative order
	// among ties except for the direction-0 rule applied below.
	for i := 1; i < 3; i++ {
		for j := i; j > 0 && kinds[idx[j]].orderClass() < kinds[idx[j-1]].orderClass(); j-- {
			idx[j], idx[j-1] = idx[j-1], idx[j]
		}
	}
	if idx[0] != 0 {
		lowest := kinds[idx[0]].orderClass()
		if kinds[0].orderClass() == lowest {
			// direction 0 ties for lowest priority: move it to position 0.
			pos := 0
			for i, d := range idx {
				if d == 0 {
					pos = i
					break
				}
			}
			idx[0], idx[pos] = idx[pos], idx[0]
		}
	}
	return idx
}
