package compute

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/nuamhub/taxqual-backend/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal_PeriodSeparator(t *testing.T) {
	v, err := ParseDecimal("1234.56", decimal.Zero)
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.RequireFromString("1234.56")))
}

func TestParseDecimal_CommaSeparator(t *testing.T) {
	// Locale-tolerant parse: comma and period yield the same exact decimal
	v, err := ParseDecimal("1234,56", decimal.Zero)
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.RequireFromString("1234.56")))
}

func TestParseDecimal_BlankReturnsDefault(t *testing.T) {
	def := decimal.RequireFromString("0.5")

	v, err := ParseDecimal("", def)
	require.NoError(t, err)
	assert.True(t, v.Equal(def))

	v, err = ParseDecimal("   ", def)
	require.NoError(t, err)
	assert.True(t, v.Equal(def))
}

func TestParseDecimal_MalformedNeverCoerces(t *testing.T) {
	for _, input := range []string{"abc", "1.2.3", "12a", "--5"} {
		_, err := ParseDecimal(input, decimal.Zero)
		require.Error(t, err, "input %q", input)

		var malformed *domain.MalformedNumberError
		require.True(t, errors.As(err, &malformed), "input %q", input)
		assert.Equal(t, input, malformed.Input)
	}
}

func TestParseDecimal_NegativeAndInteger(t *testing.T) {
	v, err := ParseDecimal("-3", decimal.Zero)
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.NewFromInt(-3)))
}

func TestParseDecimalValue_NativeNumerics(t *testing.T) {
	v, err := ParseDecimalValue(float64(2.5), decimal.Zero)
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.RequireFromString("2.5")))

	v, err = ParseDecimalValue(7, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.NewFromInt(7)))

	v, err = ParseDecimalValue(json.Number("100.125"), decimal.Zero)
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.RequireFromString("100.125")))
}

func TestParseDecimalValue_NilReturnsDefault(t *testing.T) {
	def := decimal.NewFromInt(42)
	v, err := ParseDecimalValue(nil, def)
	require.NoError(t, err)
	assert.True(t, v.Equal(def))
}

func TestParseDecimalValue_UnsupportedType(t *testing.T) {
	_, err := ParseDecimalValue([]string{"1"}, decimal.Zero)
	var malformed *domain.MalformedNumberError
	assert.True(t, errors.As(err, &malformed))
}
