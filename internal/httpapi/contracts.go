package httpapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/ai-ratelimit-advisor/internal/advisor"
)

// resolveTimestamp implements spec.md §6's timestamp parsing rule: absent or
// unparseable falls back to the server wall clock (UTC); ISO-8601 (including
// a Z suffix, treated as UTC when naive), numeric Unix seconds (int, float,
// or numeric string) are all accepted.
func resolveTimestamp(raw interface{}, now time.Time) time.Time {
	switch v := raw.(type) {
	case nil:
		return now
	case float64:
		return unixSeconds(v)
	case string:
		if t, ok := parseISO8601(v); ok {
			return t
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return unixSeconds(f)
		}
		return now
	default:
		return now
	}
}

func unixSeconds(f float64) time.Time {
	sec := int64(f)
	nsec := int64((f - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}

func parseISO8601(v string) (time.Time, bool) {
	candidates := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	for _, layout := range candidates {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// rawConfigFieldsFromMap extracts the loosely-typed currentConfig shape used
// by the malformed-body coercion path (spec.md §4.3) from a decoded
// map[string]interface{}. hasRawConfig reports whether a currentConfig
// object was present at all.
func rawConfigFieldsFromMap(body map[string]interface{}) (fields advisor.RawConfigFields, hasRawConfig bool) {
	rawCfg, ok := body["currentConfig"].(map[string]interface{})
	if !ok {
		return advisor.RawConfigFields{}, false
	}
	hasRawConfig = true

	if algo, ok := rawCfg["algorithm"].(string); ok {
		fields.Algorithm = &algo
	}
	if limit, ok := asFloat(rawCfg["limit"]); ok {
		fields.Limit = &limit
	}
	if window, ok := asFloat(rawCfg["window"]); ok {
		w := int(window)
		fields.Window = &w
	}
	if capacity, ok := asFloat(rawCfg["capacity"]); ok {
		c := int64(capacity)
		fields.Capacity = &c
	}
	if fillRate, ok := asFloat(rawCfg["fillRate"]); ok {
		fields.FillRate = &fillRate
	}
	return fields, hasRawConfig
}

// observedRpsFromMap extracts observedRps for metrics purposes when the
// body couldn't be decoded as a DecisionRequest (spec.md §9: publish NaN
// when a datum is unknown, so callers must know whether it was present).
func observedRpsFromMap(body map[string]interface{}) (float64, bool) {
	v, ok := asFloat(body["observedRps"])
	return v, ok
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
