// Package advisor implements the adaptive rate-limit recommendation engine:
// the telemetry buffer, the short-horizon forecaster, the validator/coercer,
// the hysteresis policy, and the process-global engine state.
package advisor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Algorithm identifies the rate-limiting strategy a config describes.
type Algorithm string

const (
	AlgoFixed   Algorithm = "fixed"
	AlgoSliding Algorithm = "sliding"
	AlgoToken   Algorithm = "token"
)

// normalizeAlgorithm lowercases and folds known aliases onto their canonical
// name. token_bucket/tokenbucket both collapse onto AlgoToken.
func normalizeAlgorithm(raw string) Algorithm {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch normalized {
	case "token_bucket", "tokenbucket":
		return AlgoToken
	default:
		return Algorithm(normalized)
	}
}

func (a Algorithm) valid() bool {
	switch a {
	case AlgoFixed, AlgoSliding, AlgoToken:
		return true
	default:
		return false
	}
}

// TimePoint is a single (timestamp, observed RPS) sample in the buffer.
type TimePoint struct {
	Timestamp time.Time
	RPS       float64
}

// IncomingConfig is the tagged-union shape shared by the client-reported
// current config and the recommended config returned to the caller.
type IncomingConfig struct {
	Algorithm Algorithm `json:"algorithm"`

	// fixed / sliding
	Limit  *float64 `json:"limit,omitempty"`
	Window *int      `json:"window,omitempty"`

	// token
	Capacity *int64   `json:"capacity,omitempty"`
	FillRate *float64 `json:"fillRate,omitempty"`
}

// rawIncomingConfig mirrors the wire shape with an untyped algorithm field so
// aliasing/normalization can run before the Algorithm type is assigned.
type rawIncomingConfig struct {
	Algorithm string   `json:"algorithm"`
	Limit     *float64 `json:"limit,omitempty"`
	Window    *int     `json:"window,omitempty"`
	Capacity  *int64   `json:"capacity,omitempty"`
	FillRate  *float64 `json:"fillRate,omitempty"`
}

// UnmarshalJSON normalizes algorithm aliases (token_bucket, tokenbucket)
// before decoding, matching the Python reference's pydantic pre-validator.
func (c *IncomingConfig) UnmarshalJSON(data []byte) error {
	var raw rawIncomingConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Algorithm = normalizeAlgorithm(raw.Algorithm)
	c.Limit = raw.Limit
	c.Window = raw.Window
	c.Capacity = raw.Capacity
	c.FillRate = raw.FillRate
	return nil
}

// MarshalJSON omits null fields, matching response_model_exclude_none.
func (c IncomingConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(rawIncomingConfig{
		Algorithm: string(c.Algorithm),
		Limit:     c.Limit,
		Window:    c.Window,
		Capacity:  c.Capacity,
		FillRate:  c.FillRate,
	})
}

// Clone returns a value copy with independently-owned pointer fields.
func (c IncomingConfig) Clone() IncomingConfig {
	out := c
	if c.Limit != nil {
		v := *c.Limit
		out.Limit = &v
	}
	if c.Window != nil {
		v := *c.Window
		out.Window = &v
	}
	if c.Capacity != nil {
		v := *c.Capacity
		out.Capacity = &v
	}
	if c.FillRate != nil {
		v := *c.FillRate
		out.FillRate = &v
	}
	return out
}

func (c IncomingConfig) String() string {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("IncomingConfig{algorithm=%s}", c.Algorithm)
	}
	return string(b)
}

// DecisionRequest is the decoded POST /v1/limit-config body.
type DecisionRequest struct {
	Timestamp     interface{}    `json:"timestamp,omitempty"`
	ObservedRps   float64        `json:"observedRps"`
	RejectedRate  *float64       `json:"rejectedRate,omitempty"`
	LatencyP95    *float64       `json:"latencyP95,omitempty"`
	Errors5xx     *int64         `json:"errors5xx,omitempty"`
	CurrentConfig IncomingConfig `json:"currentConfig"`
}

// Recommendation is the tagged config plus forecast metadata returned to the
// caller. It reuses IncomingConfig's shape and adds PredictedRps/ValidFor.
type Recommendation struct {
	IncomingConfig
	PredictedRps *float64 `json:"predictedRps,omitempty"`
	ValidFor     *int     `json:"validFor,omitempty"`
}

// MarshalJSON flattens IncomingConfig's fields alongside PredictedRps/ValidFor.
func (r Recommendation) MarshalJSON() ([]byte, error) {
	type alias struct {
		Algorithm    string   `json:"algorithm"`
		Limit        *float64 `json:"limit,omitempty"`
		Window       *int     `json:"window,omitempty"`
		Capacity     *int64   `json:"capacity,omitempty"`
		FillRate     *float64 `json:"fillRate,omitempty"`
		PredictedRps *float64 `json:"predictedRps,omitempty"`
		ValidFor     *int     `json:"validFor,omitempty"`
	}
	return json.Marshal(alias{
		Algorithm:    string(r.Algorithm),
		Limit:        r.Limit,
		Window:       r.Window,
		Capacity:     r.Capacity,
		FillRate:     r.FillRate,
		PredictedRps: r.PredictedRps,
		ValidFor:     r.ValidFor,
	})
}

// Clone returns a value copy with independently-owned pointer fields.
func (r Recommendation) Clone() Recommendation {
	out := Recommendation{IncomingConfig: r.IncomingConfig.Clone()}
	if r.PredictedRps != nil {
		v := *r.PredictedRps
		out.PredictedRps = &v
	}
	if r.ValidFor != nil {
		v := *r.ValidFor
		out.ValidFor = &v
	}
	return out
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
func int64Ptr(v int64) *int64     { return &v }
