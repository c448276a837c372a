package compute

import (
	"testing"

	"github.com/nuamhub/taxqual-backend/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeFactors_NormalizesByBaseSum(t *testing.T) {
	// amounts 8:100, 9:200 → base sum 300, truncated to 8 fraction digits
	var amounts domain.Factors
	amounts.Set(8, dec("100"))
	amounts.Set(9, dec("200"))

	factors := ComputeFactors(amounts)

	assert.Equal(t, "0.33333333", factors.At(8).StringFixed(domain.FactorScale))
	assert.Equal(t, "0.66666666", factors.At(9).StringFixed(domain.FactorScale))
	for i := 10; i <= domain.FactorMax; i++ {
		assert.True(t, factors.At(i).IsZero(), "factor_%d", i)
	}
}

func TestComputeFactors_TruncatesNotRounds(t *testing.T) {
	// 2/3 = 0.666... must truncate to 0.66666666, never round to ...67
	var amounts domain.Factors
	amounts.Set(8, dec("1"))
	amounts.Set(9, dec("2"))

	factors := ComputeFactors(amounts)

	assert.True(t, factors.At(9).Equal(dec("0.66666666")))
}

func TestComputeFactors_AllZeroAmounts(t *testing.T) {
	// Zero base sum: every factor is exactly 0, never an error
	var amounts domain.Factors

	factors := ComputeFactors(amounts)

	for i := domain.FactorMin; i <= domain.FactorMax; i++ {
		assert.True(t, factors.At(i).IsZero(), "factor_%d", i)
	}
}

func TestComputeFactors_UpperAmountsDoNotFeedBaseSum(t *testing.T) {
	// amounts 20..37 are scaled by the base sum but never contribute to it
	var amounts domain.Factors
	amounts.Set(8, dec("100"))
	amounts.Set(20, dec("50"))
	amounts.Set(37, dec("25"))

	factors := ComputeFactors(amounts)

	assert.True(t, factors.At(8).Equal(dec("1")))
	assert.True(t, factors.At(20).Equal(dec("0.5")))
	assert.True(t, factors.At(37).Equal(dec("0.25")))
}

func TestComputeFactors_OnlyUpperAmountsYieldsZero(t *testing.T) {
	// With no base amounts there is no denominator; policy says all zero
	var amounts domain.Factors
	amounts.Set(25, dec("1000"))

	factors := ComputeFactors(amounts)

	for i := domain.FactorMin; i <= domain.FactorMax; i++ {
		assert.True(t, factors.At(i).IsZero(), "factor_%d", i)
	}
}

func TestComputeFactors_ScaleInvariance(t *testing.T) {
	// Homogeneous of degree 0: scaling every amount by the same positive
	// constant leaves every output factor unchanged
	var amounts domain.Factors
	amounts.Set(8, dec("123.45"))
	amounts.Set(13, dec("0.07"))
	amounts.Set(19, dec("876.48"))
	amounts.Set(30, dec("500"))

	base := ComputeFactors(amounts)

	for _, scale := range []string{"2", "0.001", "1000000", "3.14159"} {
		k := dec(scale)
		var scaled domain.Factors
		for i := domain.FactorMin; i <= domain.FactorMax; i++ {
			scaled.Set(i, amounts.At(i).Mul(k))
		}

		got := ComputeFactors(scaled)
		for i := domain.FactorMin; i <= domain.FactorMax; i++ {
			assert.True(t, got.At(i).Equal(base.At(i)),
				"scale %s factor_%d: %s != %s", scale, i, got.At(i), base.At(i))
		}
	}
}

func TestComputeFactors_BaseSubsetFactorsSumToAtMostOne(t *testing.T) {
	// Truncation guarantees the computed base subset never breaks the sum
	// bound, so amount-mode rows can never fail the validator on it
	var amounts domain.Factors
	for i := domain.FactorMin; i <= domain.BaseSubsetMax; i++ {
		amounts.Set(i, dec("1"))
	}

	factors := ComputeFactors(amounts)

	one := decimal.NewFromInt(1)
	assert.True(t, factors.BaseSum().LessThanOrEqual(one), "sum %s", factors.BaseSum())
}

func TestComputeFactors_PureFunction(t *testing.T) {
	var amounts domain.Factors
	amounts.Set(8, dec("10"))

	before := amounts
	_ = ComputeFactors(amounts)
	assert.Equal(t, before, amounts)
}
