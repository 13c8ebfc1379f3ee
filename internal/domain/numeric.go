package domain

import (
	"strconv"
	"strings"
)

// ParseNumber extracts a numeric value from free-form seller input. Numeric
// values pass through unchanged; strings are stripped of everything except
// digits and decimal points before parsing. The second return value is false
// when no valid number is present. ParseNumber never fails hard: call sites
// decide the default for absent values.
func ParseNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		cleaned := stripNonNumeric(v)
		if cleaned == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// NumberOr returns the parsed value or the supplied default.
func NumberOr(value any, fallback float64) float64 {
	if n, ok := ParseNumber(value); ok {
		return n
	}
	return fallback
}

func stripNonNumeric(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
