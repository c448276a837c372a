package compute

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nuamhub/taxqual-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// ParseDecimal converts locale-ambiguous numeric text into an exact decimal.
// Both ',' and '.' are accepted as the fractional separator; ',' is
// normalized to '.' before parsing. A blank or all-whitespace input returns
// the given default — that is the only silent path. Genuinely malformed text
// returns a *domain.MalformedNumberError, never a coerced zero.
func ParseDecimal(text string, def decimal.Decimal) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return def, nil
	}

	normalized := strings.ReplaceAll(trimmed, ",", ".")
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, &domain.MalformedNumberError{Input: text}
	}
	return d, nil
}

// ParseDecimalValue is ParseDecimal for values of unknown dynamic type, as
// decoded from JSON payloads. Native numerics pass through exactly; nil
// returns the default.
func ParseDecimalValue(value any, def decimal.Decimal) (decimal.Decimal, error) {
	switch v := value.(type) {
	case nil:
		return def, nil
	case string:
		return ParseDecimal(v, def)
	case json.Number:
		return ParseDecimal(v.String(), def)
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case decimal.Decimal:
		return v, nil
	default:
		return decimal.Zero, &domain.MalformedNumberError{Input: fmt.Sprintf("%v", value)}
	}
}
