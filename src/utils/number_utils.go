package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CoerceFloat converts a mapped field value into a float64. It never fails:
// missing, empty or unparseable values become 0.
func CoerceFloat(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case decimal.Decimal:
		return t.InexactFloat64()
	case string:
		return ParseTolerantFloat(t)
	default:
		return 0
	}
}

// CoerceDecimal is CoerceFloat for callers that need exact sums.
func CoerceDecimal(v any) decimal.Decimal {
	switch t := v.(type) {
	case decimal.Decimal:
		return t
	case string:
		d, ok := parseDecimal(t)
		if !ok {
			return decimal.Zero
		}
		return d
	default:
		return decimal.NewFromFloat(CoerceFloat(v))
	}
}

// ParseTolerantFloat parses numbers the way broker exports write them:
// "1 234.56", "1,234.56", "1.234,56", "-12,5", "(40.00)". Anything else is 0.
func ParseTolerantFloat(s string) float64 {
	d, ok := parseDecimal(s)
	if !ok {
		return 0
	}
	return d.InexactFloat64()
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	cleaned := normalizeDecimalString(s)
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// isThousandsComma reports whether the only comma in s groups thousands:
// exactly three digits follow it and one to three digits, not a bare zero,
// precede it ("1,000" but not "0,123" or "1234,567").
func isThousandsComma(s string, comma int) bool {
	if len(s)-comma-1 != 3 {
		return false
	}
	intPart := strings.TrimLeft(s[:comma], "+-")
	if len(intPart) < 1 || len(intPart) > 3 || intPart == "0" {
		return false
	}
	return true
}

func normalizeDecimalString(s string) string {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.Trim(cleaned, "\"")

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = strings.TrimSuffix(strings.TrimPrefix(cleaned, "("), ")")
	}

	cleaned = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\'', '\t':
			return -1
		}
		return r
	}, cleaned)

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(cleaned, ",") == 1 && !isThousandsComma(cleaned, lastComma) {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	if negative && cleaned != "" && !strings.HasPrefix(cleaned, "-") {
		cleaned = "-" + cleaned
	}
	return cleaned
}
