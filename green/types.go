package green

// Type selects the closed-form kernel family used to fill the Green's
// function (spec §4.4 step 1). ChargelessDelta is the unregularized
// point-charge kernel; the Hejlesen variants are the successively
// higher-order regularized kernels from Hejlesen et al. 2015; LatticeGreen
// reads the precomputed `LGF_*.ker` file (spec §6).
type Type int

const (
	ChargelessDelta Type = iota
	Hejlesen2
	Hejlesen4
	Hejlesen6
	LatticeGreen
)

func (t Type) String() string {
	switch t {
	case ChargelessDelta:
		return "chargeless-delta"
	case Hejlesen2:
		return "hejlesen-2"
	case Hejlesen4:
		return "hejlesen-4"
	case Hejlesen6:
		return "hejlesen-6"
	case LatticeGreen:
		return "lattice-green"
	default:
		return "unknown"
	}
}

// regularizationOrder returns the Hejlesen order (2, 4, or 6), or 0 for the
// unregularized/lattice kernels — used to pick which correction polynomial
// the near-field formulas apply.
func (t Type) regularizationOrder() int {
	switch t {
	case Hejlesen2:
		return 2
	case Hejlesen4:
		return 4
	case Hejlesen6:
		return 6
	default:
		return 0
	}
}

// IsRegularized reports whether t needs the smoothing radius eps.
func (t Type) IsRegularized() bool {
	return t == Hejlesen2 || t == Hejlesen4 || t == Hejlesen6
}
