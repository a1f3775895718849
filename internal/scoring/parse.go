package scoring

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

var suffixMultipliers = map[byte]float64{
	'k': 1e3,
	'm': 1e6,
	'b': 1e9,
}

// ParseMetric converts an imported cell or JSON value to a number. It accepts
// numbers, numeric strings with thousands separators ("1,234"), and K/M/B
// suffixes ("12.5K"). Anything else, including "n/a", "-" and NaN, yields nil:
// malformed input is absent data, never an error.
func ParseMetric(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, ok := parseMetricString(x)
		if !ok {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// ParseMetricInt is ParseMetric rounded to the nearest integer.
func ParseMetricInt(v any) *int64 {
	f := ParseMetric(v)
	if f == nil {
		return nil
	}
	n := int64(math.Round(*f))
	return &n
}

func parseMetricString(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(",", "", " ", "", "_", "").Replace(s)
	if s == "" {
		return 0, false
	}

	multiplier := 1.0
	if m, ok := suffixMultipliers[s[len(s)-1]]; ok {
		multiplier = m
		s = s[:len(s)-1]
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f * multiplier, true
}
