// Package compute holds the pure numeric core: exact decimal parsing and the
// factor normalization engine. No I/O, no mutation — every entry path
// (manual step, amount step, bulk upload, preview) funnels through the same
// functions so they can never disagree on resulting values.
package compute

import (
	"github.com/nuamhub/taxqual-backend/internal/domain"
)

// quotientDigits is the intermediate precision of the normalization
// division. The quotient is computed to this many fraction digits and then
// truncated to domain.FactorScale — truncation, not rounding, is the pinned
// rule, and it applies identically to the preview and commit paths.
const quotientDigits = 20

// ComputeFactors derives the 30 normalized factors from raw monetary
// amounts. The denominator is the base sum Σ amounts[8..19]; every position,
// including 20..37, is scaled by it. Amounts absent from the input are zero
// in the fixed array and normalize to zero.
//
// Zero-division policy: when the base sum is not strictly positive the
// engine returns an all-zeros factor set. It never fails.
func ComputeFactors(amounts domain.Factors) domain.Factors {
	var factors domain.Factors

	base := amounts.BaseSum()
	if base.Sign() <= 0 {
		return factors
	}

	for i := domain.FactorMin; i <= domain.FactorMax; i++ {
		quotient := amounts.At(i).DivRound(base, quotientDigits)
		factors.Set(i, quotient.Truncate(domain.FactorScale))
	}
	return factors
}
