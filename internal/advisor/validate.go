package advisor

import "math"

// ValidateCurrentConfig returns a *ConfigError when cfg fails semantic
// validation (spec.md §4.3). A nil return means cfg validates.
func ValidateCurrentConfig(cfg IncomingConfig) *ConfigError {
	if !cfg.Algorithm.valid() {
		return &ConfigError{Reason: ReasonUnsupportedAlgorithm, Message: "unsupported algorithm"}
	}
	switch cfg.Algorithm {
	case AlgoFixed, AlgoSliding:
		if cfg.Limit == nil || cfg.Window == nil {
			return &ConfigError{Reason: ReasonMissingLimitWindow, Message: "limit and window are required for fixed/sliding"}
		}
		if *cfg.Limit <= 0 || *cfg.Window <= 0 {
			return &ConfigError{Reason: ReasonNonPositiveLimit, Message: "limit/window must be positive"}
		}
	case AlgoToken:
		if cfg.Capacity == nil || cfg.FillRate == nil {
			return &ConfigError{Reason: ReasonMissingTokenFields, Message: "capacity and fillRate are required for token"}
		}
		if *cfg.Capacity <= 0 || *cfg.FillRate <= 0 {
			return &ConfigError{Reason: ReasonNonPositiveToken, Message: "capacity/fillRate must be positive"}
		}
	}
	return nil
}

// RawConfigFields is the loosely-typed shape used to merge a malformed
// request's salvageable currentConfig fields (spec.md §4.3).
type RawConfigFields struct {
	Algorithm *string
	Limit     *float64
	Window    *int
	Capacity  *int64
	FillRate  *float64
}

// mergeOntoFallback overlays the non-nil fields of raw onto fallback's
// non-nil fields, incoming winning, matching the Python reference's
// fallback.dict(exclude_none=True) then raw_config.items() merge.
func mergeOntoFallback(raw RawConfigFields, fallback *IncomingConfig) IncomingConfig {
	var merged IncomingConfig
	if fallback != nil {
		merged = fallback.Clone()
	}
	if raw.Algorithm != nil {
		merged.Algorithm = normalizeAlgorithm(*raw.Algorithm)
	}
	if raw.Limit != nil {
		merged.Limit = raw.Limit
	}
	if raw.Window != nil {
		merged.Window = raw.Window
	}
	if raw.Capacity != nil {
		merged.Capacity = raw.Capacity
	}
	if raw.FillRate != nil {
		merged.FillRate = raw.FillRate
	}
	return merged
}

// CoerceCurrentConfig implements spec.md §4.3's malformed-body recovery: it
// merges whatever currentConfig fields were extractable from the raw
// payload over fallback, and returns the merged config only if it both
// builds and validates; otherwise it returns fallback unchanged (which may
// itself be nil).
func CoerceCurrentConfig(raw RawConfigFields, hasRawConfig bool, fallback *IncomingConfig) *IncomingConfig {
	if !hasRawConfig {
		return fallback
	}
	candidate := mergeOntoFallback(raw, fallback)
	if candidate.Algorithm == "" {
		return fallback
	}
	if ValidateCurrentConfig(candidate) != nil {
		return fallback
	}
	return &candidate
}

// DefaultFallbackConfig synthesizes a fixed config that always validates
// (spec.md §4.3). Invariant exercised by TestDefaultFallbackConfigAlwaysValidates.
func DefaultFallbackConfig(cfg Config) IncomingConfig {
	window := cfg.DefaultWindowSeconds
	if window < 1 {
		window = 1
	}
	limit := int(math.Ceil(cfg.MinRps * float64(window)))
	if limit < 1 {
		limit = 1
	}

	if maxRps := cfg.maxRpsOrNil(); maxRps != nil {
		maxLimit := int(math.Floor(*maxRps * float64(window)))
		if maxLimit < 1 {
			needed := int(math.Ceil(1 / *maxRps))
			if needed > window {
				window = needed
			}
			maxLimit = int(math.Floor(*maxRps * float64(window)))
		}
		if maxLimit >= 1 && limit > maxLimit {
			limit = maxLimit
		}
		if limit < 1 {
			limit = 1
		}
	}

	limitF := float64(limit)
	return IncomingConfig{
		Algorithm: AlgoFixed,
		Limit:     &limitF,
		Window:    &window,
	}
}
