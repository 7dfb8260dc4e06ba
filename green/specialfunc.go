// Package green assembles the discretized Green's function used by the
// convolution kernel (spec §4.4). It is filled once during setup, in whatever
// topology the field's forward sequence ends in, and never touched again
// during a solve.
package green

import "math"

// poly evaluates a polynomial given its coefficients in ascending order,
// Horner's method — ported from bessel.hpp's `poly` helper.
func poly(coef []float64, x float64) float64 {
	ans := coef[len(coef)-1]
	for i := len(coef) - 2; i >= 0; i-- {
		ans = ans*x + coef[i]
	}
	return ans
}

// Coefficient tables straight from Numerical Recipes' rational/Chebyshev
// approximations of the modified Bessel functions, as ported in
// original_source/src/bessel.hpp.
var (
	besselI0P  = []float64{9.999999999999997e-1, 2.466405579426905e-1, 1.478980363444585e-2, 3.826993559940360e-4, 5.395676869878828e-6, 4.700912200921704e-8, 2.733894920915608e-10, 1.115830108455192e-12, 3.301093025084127e-15, 7.209167098020555e-18, 1.166898488777214e-20, 1.378948246502109e-23, 1.124884061857506e-26, 5.498556929587117e-30}
	besselI0Q  = []float64{4.463598170691436e-1, 1.702205745042606e-3, 2.792125684538934e-6, 2.369902034785866e-9, 8.965900179621208e-13}
	besselI0PP = []float64{1.192273748120670e-1, 1.947452015979746e-1, 7.629241821600588e-2, 8.474903580801549e-3, 2.023821945835647e-4}
	besselI0QQ = []float64{2.962898424533095e-1, 4.866115913196384e-1, 1.938352806477617e-1, 2.261671093400046e-2, 6.450448095075585e-4, 1.529835782400450e-6}

	besselI1P  = []float64{5.000000000000000e-1, 6.090824836578078e-2, 2.407288574545340e-3, 4.622311145544158e-5, 5.161743818147913e-7, 3.712362374847555e-9, 1.833983433811517e-11, 6.493125133990706e-14, 1.693074927497696e-16, 3.299609473102338e-19, 4.813071975603122e-22, 5.164275442089090e-25, 3.846870021788629e-28, 1.712948291408736e-31}
	besselI1Q  = []float64{4.665973211630446e-1, 1.677754477613006e-3, 2.583049634689725e-6, 2.045930934253556e-9, 7.166133240195285e-13}
	besselI1PP = []float64{1.286515211317124e-1, 1.930915272916783e-1, 6.965689298161343e-2, 7.345978783504595e-3, 1.963602129240502e-4}
	besselI1QQ = []float64{3.309385098860755e-1, 4.878218424097628e-1, 1.663088501568696e-1, 1.473541892809522e-2, 1.964131438571051e-4, -1.034524660214173e-6}

	besselK0PI = []float64{1.0, 2.346487949187396e-1, 1.187082088663404e-2, 2.150707366040937e-4, 1.425433617130587e-6}
	besselK0QI = []float64{9.847324170755358e-1, 1.518396076767770e-2, 8.362215678646257e-5}
	besselK0P  = []float64{1.159315156584126e-1, 2.770731240515333e-1, 2.066458134619875e-2, 4.574734709978264e-4, 3.454715527986737e-6}
	besselK0Q  = []float64{9.836249671709183e-1, 1.627693622304549e-2, 9.809660603621949e-5}
	besselK0PP = []float64{1.253314137315499, 1.475731032429900e1, 6.123767403223466e1, 1.121012633939949e2, 9.285288485892228e1, 3.198289277679660e1, 3.595376024148513, 6.160228690102976e-2}
	besselK0QQ = []float64{1.0, 1.189963006673403e1, 5.027773590829784e1, 9.496513373427093e1, 8.318077493230258e1, 3.181399777449301e1, 4.443672926432041, 1.408295601966600e-1}

	besselK1PI = []float64{0.5, 5.598072040178741e-2, 1.818666382168295e-3, 2.397509908859959e-5, 1.239567816344855e-7}
	besselK1QI = []float64{9.870202601341150e-1, 1.292092053534579e-2, 5.881933053917096e-5}
	besselK1P  = []float64{-3.079657578292062e-1, -8.109417631822442e-2, -3.477550948593604e-3, -5.385594871975406e-5, -3.110372465429008e-7}
	besselK1Q  = []float64{9.861813171751389e-1, 1.375094061153160e-2, 6.774221332947002e-5}
	besselK1PP = []float64{1.253314137315502, 1.457171340220454e1, 6.063161173098803e1, 1.147386690867892e2, 1.040442011439181e2, 4.356596656837691e1, 7.265230396353690, 3.144418558991021e-1}
	besselK1QQ = []float64{1.0, 1.125154514806458e1, 4.427488496597630e1, 7.616113213117645e1, 5.863377227890893e1, 1.850303673841586e1, 1.857244676566022, 2.538540887654872e-2}
)

// BesselI0 is the modified Bessel function of the first kind, order 0.
func BesselI0(x float64) float64 {
	ax := math.Abs(x)
	if ax < 15.0 {
		y := x * x
		return poly(besselI0P, y) / poly(besselI0Q, 225.-y)
	}
	z := 1.0 - 15.0/ax
	return math.Exp(ax) * poly(besselI0PP, z) / (poly(besselI0QQ, z) * math.Sqrt(ax))
}

// BesselI1 is the modified Bessel function of the first kind, order 1.
func BesselI1(x float64) float64 {
	ax := math.Abs(x)
	if ax < 15.0 {
		y := x * x
		return x * poly(besselI1P, y) / poly(besselI1Q, 225.-y)
	}
	z := 1.0 - 15.0/ax
	ans := math.Exp(ax) * poly(besselI1PP, z) / (poly(besselI1QQ, z) * math.Sqrt(ax))
	if x > 0.0 {
		return ans
	}
	return -ans
}

// BesselK0 is the modified Bessel function of the second kind, order 0 — the
// kernel of the 2-directions-unbounded semi-spectral Green's function.
func BesselK0(x float64) float64 {
	if x <= 1.0 {
		z := x * x
		term := poly(besselK0PI, z) * math.Log(x) / poly(besselK0QI, 1.-z)
		return poly(besselK0P, z)/poly(besselK0Q, 1.-z) - term
	}
	z := 1. / x
	return math.Exp(-x) * poly(besselK0PP, z) / (poly(besselK0QQ, z) * math.Sqrt(x))
}

// BesselK1 is the modified Bessel function of the second kind, order 1.
func BesselK1(x float64) float64 {
	if x <= 1.0 {
		z := x * x
		term := poly(besselK1PI, z) * math.Log(x) / poly(besselK1QI, 1.-z)
		return x*(poly(besselK1P, z)/poly(besselK1Q, 1.-z)+term) + 1./x
	}
	z := 1.0 / x
	return math.Exp(-x) * poly(besselK1PP, z) / (poly(besselK1QQ, z) * math.Sqrt(x))
}

// expint1Coef and expint2Coef are the Chebyshev expansions from
// original_source/src/expint.hpp for the exponential-integral routine
// ExpIntEi.
var (
	expint1Coef = []float64{7.8737715392882774, -8.0314874286705335, 3.8797325768522250, -1.6042971072992259, 0.5630905453891458, -0.1704423017433357, 0.0452099390015415, -0.0106538986439085, 0.0022562638123478, -0.0004335700473221, 0.0000762166811878, -0.0000123417443064, 0.0000018519745698, -0.0000002588698662, 0.0000000338604319, -0.0000000041611418, 0.0000000004821606, -0.0000000000528465, 0.0000000000054945, -0.0000000000005433, 0.0000000000000512, -0.0000000000000046, 0.0000000000000004}
	expint2Coef = []float64{0.2155283776715125, 0.1028106215227030, -0.0045526707131788, 0.0003571613122851, -0.0000379341616932, 0.0000049143944914, -0.0000007355024922, 0.0000001230603606, -0.0000000225236907, 0.0000000044412375, -0.0000000009328509, 0.0000000002069297, -0.0000000000481502, 0.0000000000116891, -0.0000000000029474, 0.0000000000007691, -0.0000000000002070, 0.0000000000000573, -0.0000000000000163, 0.0000000000000047, -0.0000000000000014, 0.0000000000000004, -0.0000000000000001}
)

// chebyshevEval runs the Clenshaw recurrence shared by expint1/expint2.
func chebyshevEval(a []float64, t float64) (b0, b2 float64) {
	var b1 float64
	b0 = a[len(a)-1]
	for k := len(a) - 2; k >= 0; k-- {
		b2 = b1
		b1 = b0
		b0 = t*b1 - b2 + a[k]
	}
	return b0, b2
}

func expint1(x float64) float64 {
	t := 2. * (.25 * x)
	b0, b2 := chebyshevEval(expint1Coef, t)
	value := .5 * (b0 - b2)
	value += math.Log(math.Abs(x))
	return -value
}

func expint2(x float64) float64 {
	t := 2. * (2.*(4./x) - 1.)
	b0, b2 := chebyshevEval(expint2Coef, t)
	return .5 * (b0 - b2) * math.Exp(-x)
}

// ExpIntEi is the exponential integral Ei(x), evaluated by Chebyshev
// expansion for |x| <= 4 and an asymptotic expansion beyond — ported from
// original_source/src/expint.hpp.
func ExpIntEi(x float64) float64 {
	switch {
	case x >= -4. && x <= 4.:
		return expint1(x)
	case x > 4.:
		return expint2(x)
	default:
		return 0.
	}
}
