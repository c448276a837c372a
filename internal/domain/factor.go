package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Factor indices are fixed by the tax authority's dividend declaration layout:
// positions 8 through 37, where 8..19 form the "base" subset whose sum is
// bounded by 1 and serves as the normalization denominator for amount-based
// entry.
const (
	FactorMin = 8
	FactorMax = 37

	// FactorCount is the number of factor positions on every record
	FactorCount = FactorMax - FactorMin + 1

	// BaseSubsetMax is the last index of the base subset (factor_8..factor_19)
	BaseSubsetMax = 19

	// FactorScale is the number of fraction digits every stored factor carries
	FactorScale = 8
)

// Factors holds the 30 allocation factors of a qualification record as a
// fixed-size array. Position 0 corresponds to factor index FactorMin.
// The zero value is a valid all-zeros factor set.
type Factors [FactorCount]decimal.Decimal

// At returns the factor at the given index (FactorMin..FactorMax)
func (f *Factors) At(index int) decimal.Decimal {
	return f[index-FactorMin]
}

// Set stores the factor at the given index (FactorMin..FactorMax)
func (f *Factors) Set(index int, value decimal.Decimal) {
	f[index-FactorMin] = value
}

// BaseSum returns the sum of the base subset factor_8..factor_19.
// This is the quantity bounded by 1 on every valid record.
func (f *Factors) BaseSum() decimal.Decimal {
	sum := decimal.Zero
	for i := FactorMin; i <= BaseSubsetMax; i++ {
		sum = sum.Add(f.At(i))
	}
	return sum
}

// FactorKey returns the canonical column/field name for a factor index, e.g. "factor_8"
func FactorKey(index int) string {
	return fmt.Sprintf("factor_%d", index)
}

// AmountKey returns the canonical column/field name for a raw amount index, e.g. "monto_8"
func AmountKey(index int) string {
	return fmt.Sprintf("monto_%d", index)
}

// FactorNames maps each factor index to its human label for display and
// reporting. Static lookup table, no logic depends on it.
var FactorNames = map[int]string{
	8:  "Créd. DPC s/d",
	9:  "Créd. DPC Acum.",
	10: "Créd. DPC Vol.",
	11: "Créd. s/d Acum.",
	12: "Rentas Prov.",
	13: "Otras Rentas",
	14: "Distr. Desprop.",
	15: "Util. Afectas",
	16: "Rentas Gen.",
	17: "Rentas Exentas (IGC)",
	18: "Rentas Exentas (IA)",
	19: "Ing. No Renta",
	20: "No Sujetos (Sin/d) H. 31.12.2019",
	21: "No Sujetos (Con/d) H. 31.12.2019",
	22: "No Sujetos (Sin/d) A. 01.01.2020",
	23: "No Sujetos (Con/d) A. 01.01.2020",
	24: "Sujeto Rest. (Sin/d)",
	25: "Sujeto Rest. (Con/d)",
	26: "Sujeto Rest. Sin derecho",
	27: "Sujeto Rest. Con derecho",
	28: "Crédito IPE",
	29: "Asoc. Rentas (Sin/d)",
	30: "Asoc. Rentas (Con/d)",
	31: "Asoc. Rentas Exentas (Sin)",
	32: "Asoc. Rentas Exentas (Con)",
	33: "Crédito por IPE (Asoc.)",
	34: "Tasa Efectiva",
	35: "Tasa Efectiva (Rest.)",
	36: "Tasa Efectiva (Acum.)",
	37: "Tasa Efectiva (Art. 20)",
}
