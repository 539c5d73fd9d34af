// Package dmath provides decimal helpers the standard decimal type lacks.
package dmath

import "github.com/shopspring/decimal"

// Precision is the working precision for iterative computations.
const Precision = 16

// Sqrt computes the square root of a non-negative decimal by Newton's
// method. Non-positive inputs yield zero. Converges well within the
// iteration bound at the working precision.
func Sqrt(d decimal.Decimal) decimal.Decimal {
	if !d.IsPositive() {
		return decimal.Zero
	}
	two := decimal.NewFromInt(2)
	guess := d.DivRound(two, Precision)
	if guess.IsZero() {
		guess = d
	}
	tolerance := decimal.New(1, -Precision+1)
	for i := 0; i < 64; i++ {
		next := guess.Add(d.DivRound(guess, Precision)).DivRound(two, Precision)
		if next.Sub(guess).Abs().LessThan(tolerance) {
			return refine(next, d)
		}
		guess = next
	}
	return refine(guess, d)
}

// refine snaps the iterate to a nearby short value when it is an exact root,
// so perfect squares come out clean.
func refine(approx, d decimal.Decimal) decimal.Decimal {
	for digits := int32(0); digits <= 8; digits++ {
		r := approx.Round(digits)
		if r.Mul(r).Equal(d) {
			return r
		}
	}
	return approx
}

// Clamp bounds d to [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}
