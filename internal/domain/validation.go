package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	factorLowerBound = decimal.Zero
	factorUpperBound = decimal.NewFromInt(1)
)

// OutOfRangeFactor reports a single factor outside the closed range [0, 1]
type OutOfRangeFactor struct {
	Index int
	Value decimal.Decimal
}

func (e *OutOfRangeFactor) Error() string {
	return fmt.Sprintf("%s value %s is outside the range [0, 1]", FactorKey(e.Index), e.Value)
}

// FactorSumExceeded reports that the base subset factor_8..factor_19 sums
// above 1
type FactorSumExceeded struct {
	Sum decimal.Decimal
}

func (e *FactorSumExceeded) Error() string {
	return fmt.Sprintf("sum of factor_8..factor_19 is %s, must not exceed 1", e.Sum)
}

// ValidationError aggregates every violation found on a factor set.
// A record carrying any violation must never be persisted.
type ValidationError struct {
	Violations []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Error()
	}
	return "factor validation failed: " + strings.Join(msgs, "; ")
}

// ValidateFactors checks every factor against the domain invariants:
//  1. each factor_8..factor_37 lies in [0, 1]
//  2. the base subset factor_8..factor_19 sums to at most 1
//
// Both checks always run; all violations are collected so a caller can
// report every problem in one pass. Returns nil when the set is clean.
func ValidateFactors(f Factors) *ValidationError {
	var violations []error

	for i := FactorMin; i <= FactorMax; i++ {
		v := f.At(i)
		if v.LessThan(factorLowerBound) || v.GreaterThan(factorUpperBound) {
			violations = append(violations, &OutOfRangeFactor{Index: i, Value: v})
		}
	}

	if sum := f.BaseSum(); sum.GreaterThan(factorUpperBound) {
		violations = append(violations, &FactorSumExceeded{Sum: sum})
	}

	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}
