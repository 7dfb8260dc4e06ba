// Package transform implements the single-direction spectral transform
// contract spec §4.2 describes: in-place (conceptually — see Plan.Execute)
// execution of one 1-D FFT/DCT/DST along one direction of a pencil, with the
// scaling/wavenumber bookkeeping the convolution kernel and Green's-function
// assembly depend on. The actual 1-D math is gonum's fourier package
// (gonum.org/v1/gonum/dsp/fourier): spec §1/§6 name the 1-D transform library as
// an out-of-scope external collaborator treated as a black box, and fourier
// is the concrete black box this repo plugs in.
package transform

// Category is the concrete transform a Plan ends up running, resolved by
// Plan.Init from the direction's layout.Kind and the data's complexity at
// that point in the sequence.
type Category int

const (
	CategoryEmpty   Category = iota // direction trivial (2-D problem)
	CategorySymEven                 // DCT-I family (EVEN/EVEN)
	CategorySymOdd                  // DST-I family (ODD/ODD)
	CategoryMixed                   // half-shifted cosine/sine family (mixed EVEN/ODD)
	CategoryR2C                     // real input, complex output
	CategoryC2C                     // complex input, complex output
)

func (c Category) String() string {
	switch c {
	case CategoryEmpty:
		return "EMPTY"
	case CategorySymEven:
		return "SYM_EVEN"
	case CategorySymOdd:
		return "SYM_ODD"
	case CategoryMixed:
		return "MIXED"
	case CategoryR2C:
		return "R2C"
	case CategoryC2C:
		return "C2C"
	default:
		return "UNKNOWN"
	}
}

// Ordinal is the coarse tier used by the plan-ordering invariant in spec §8
// ("category(plan[0]) ≤ category(plan[1]) ≤ category(plan[2])"). The three
// symmetric categories are deliberately tied: the spec's ordering rule never
// distinguishes symmetric-even from symmetric-odd from mixed-symmetry, only
// "symmetric before periodic", so they share a tier.
func (c Category) Ordinal() int {
	switch c {
	case CategoryEmpty:
		return 0
	case CategorySymEven, CategorySymOdd, CategoryMixed:
		return 1
	case CategoryR2C:
		return 2
	case CategoryC2C:
		return 3
	default:
		return 0
	}
}
