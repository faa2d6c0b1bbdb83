package provider

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ExtractFloat normalizes a numeric cell from the formats providers return.
//
// stats.nba.com sends JSON numbers (decoded as float64 or json.Number),
// Postgres rows come back as int32/int64/float64, and some feeds send
// numbers as strings.
//
// Returns ok=false if the value is not extractable.
func ExtractFloat(val interface{}) (float64, bool) {
	if val == nil {
		return 0, false
	}

	switch v := val.(type) {
	case float64:
		return v, !math.IsNaN(v) && !math.IsInf(v, 0)
	case float32:
		return ExtractFloat(float64(v))
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return ExtractFloat(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return ExtractFloat(f)
	default:
		return 0, false
	}
}

// ExtractCount parses a non-negative whole number (wins, losses).
func ExtractCount(val interface{}) (int, error) {
	f, ok := ExtractFloat(val)
	if !ok {
		return 0, fmt.Errorf("not a number: %v", val)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("not a whole number: %v", val)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative count: %v", val)
	}
	if f > math.MaxInt32 {
		return 0, fmt.Errorf("count out of range: %v", val)
	}
	return int(f), nil
}

// ExtractString returns the cell as a trimmed string. Numbers are formatted
// without a trailing ".0".
func ExtractString(val interface{}) (string, bool) {
	switch v := val.(type) {
	case nil:
		return "", false
	case string:
		return strings.TrimSpace(v), true
	case json.Number:
		return v.String(), true
	case fmt.Stringer:
		return strings.TrimSpace(v.String()), true
	}
	if f, ok := ExtractFloat(val); ok {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return "", false
}
