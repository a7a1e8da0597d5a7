// Package model encodes the first-order conditions of the two-sided market
// model and the closed-form profit and welfare expressions evaluated at a
// solved equilibrium.
//
// Every system is returned as a closure over its coefficients. The closures
// hold no state of their own, so the same system may be evaluated from many
// goroutines at once.
package model

import "math"

// Pair holds a demand and supply value for one market side, or their
// derivatives with respect to the asymmetry parameter.
type Pair struct {
	Demand float64
	Supply float64
}

// Single returns the single-homing FOC system for asymmetry a.
// Unknowns are (da, sa, db, sb).
func Single(a float64) func(x []float64) []float64 {
	return func(x []float64) []float64 {
		da, sa, db, sb := x[0], x[1], x[2], x[3]
		return []float64{
			1 - 2*da - db - 2*a*da/sa,
			da*da/(sa*sa) - 2*sa - sb,
			1 - 2*db - da - 2*db/sb,
			db*db/(sb*sb) - 2*sb - sa,
		}
	}
}

// Multi returns the multi-homing FOC system for asymmetry a. Both sides'
// demand terms share the combined supply sa+sb.
// Unknowns are (da, sa, db, sb).
func Multi(a float64) func(x []float64) []float64 {
	return func(x []float64) []float64 {
		da, sa, db, sb := x[0], x[1], x[2], x[3]
		total := sa + sb
		return []float64{
			1 - 2*da - db - (2*a*da+db)/total,
			da*(a*da+db)/(total*total) - a*(2*sa+sb),
			1 - 2*db - da - (a*da+2*db)/total,
			db*(a*da+db)/(total*total) - sa - 2*sb,
		}
	}
}

// Monopoly returns the reduced FOC system for a single remaining side.
// Unknowns are (d, s).
func Monopoly(a float64) func(x []float64) []float64 {
	return func(x []float64) []float64 {
		d, s := x[0], x[1]
		return []float64{
			1 - 2*d - 2*a*d/s,
			d*d/(s*s) - 2*s,
		}
	}
}

// Discriminant returns D = sqrt(d² + 48s³) for the base point.
func Discriminant(base Pair) float64 {
	d, s := base.Demand, base.Supply
	return math.Sqrt(d*d + 48*s*s*s)
}

// FirstDerivative returns the system for (d', s') at the base equilibrium.
func FirstDerivative(base Pair) func(x []float64) []float64 {
	d, s := base.Demand, base.Supply
	disc := Discriminant(base)
	return func(x []float64) []float64 {
		dpr, spr := x[0], x[1]
		return []float64{
			d/2 + (36*s*s*spr-d*d)/(2*disc),
			(dpr*4*s*(1+2*s) + 4*d*s) / (3 * d),
		}
	}
}

// SecondDerivative returns the system for (d'', s'') at the base
// equilibrium, given the first derivatives.
func SecondDerivative(base, first Pair) func(x []float64) []float64 {
	d, s := base.Demand, base.Supply
	dp, sp := first.Demand, first.Supply
	disc := Discriminant(base)
	discPrime := func(sp2 float64) float64 {
		return (d*d + dp + 32*(sp+sp2)*s*s + 8*s*s*sp2) / disc
	}
	return func(x []float64) []float64 {
		dpr, spr := x[0], x[1]
		return []float64{
			(-d - dp - discPrime(spr)) / 2,
			-sp + (4*s*s*(dp+2*dpr)+2*s*(dp+d+2*dpr))/(3*d),
		}
	}
}

// ProfitDerivative combines the base point and its second derivatives into
// the derivative of profit with respect to the asymmetry parameter.
func ProfitDerivative(base, second Pair) float64 {
	d, s := base.Demand, base.Supply
	dp2, sp2 := second.Demand, second.Supply
	return -d*dp2 - d*(d+dp2)/(2*s) + sp2*d*d/(2*s*s) - 2*s*s - s*sp2
}
