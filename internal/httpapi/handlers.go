package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/ai-ratelimit-advisor/internal/advisor"
)

// maxDecisionBodyBytes bounds the request body read for POST
// /v1/limit-config so a caller cannot exhaust memory with an oversized
// payload; a body over this size is treated the same as a malformed one.
const maxDecisionBodyBytes = 1 << 20

// Handlers wires the advisor engine and metrics registry into HTTP
// endpoints, following the teacher's Handlers struct
// (internal/interfaces/http/handlers/handlers.go) that bundles dependencies
// behind method receivers instead of free functions.
type Handlers struct {
	engine     *advisor.Engine
	metrics    *MetricsRegistry
	algorithms []advisor.Algorithm
	log        zerolog.Logger
	version    string
}

// NewHandlers builds a Handlers bound to engine and metrics.
func NewHandlers(engine *advisor.Engine, metrics *MetricsRegistry, algorithms []advisor.Algorithm, log zerolog.Logger, version string) *Handlers {
	return &Handlers{
		engine:     engine,
		metrics:    metrics,
		algorithms: algorithms,
		log:        log,
		version:    version,
	}
}

// Health implements spec.md §6's GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

// Version is ambient ops surface carried per SPEC_FULL.md §6, mirroring the
// teacher's cobra.Command.Version wiring at an HTTP endpoint.
func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"name":    "ai-ratelimit-advisor",
		"version": h.version,
	})
}

// Metrics implements spec.md §6's GET /metrics.
func (h *Handlers) Metrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.Handler().ServeHTTP(w, r)
}

// LimitConfig implements spec.md §4.6/§4.7's POST /v1/limit-config. A body
// that fails to parse into a DecisionRequest — or parses but violates the
// DecisionRequest schema's range constraints (observedRps >= 0,
// rejectedRate in [0,1], latencyP95 >= 0, errors5xx >= 0 — all SchemaErrors
// per spec.md §7, mirroring the reference's pydantic field constraints) —
// takes the malformed-body branch instead of the happy path.
func (h *Handlers) LimitConfig(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(r.Body, maxDecisionBodyBytes))

	var req advisor.DecisionRequest
	if readErr != nil {
		h.decideMalformed(w, r, nil)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil || !decisionRequestInRange(req) {
		h.decideMalformed(w, r, body)
		return
	}

	received := time.Now().UTC()
	ts := resolveTimestamp(req.Timestamp, received)

	result := h.engine.Decide(req, ts, received)
	h.metrics.RecordDecision(req.ObservedRps, result, h.algorithms)

	h.log.Info().
		Str("request_id", requestIDFrom(r)).
		Float64("observed_rps", req.ObservedRps).
		Float64("predicted_rps", result.PredictedRps).
		Str("result", result.Result).
		Str("algorithm", string(result.Recommendation.Algorithm)).
		Msg("decision")

	h.writeJSON(w, http.StatusOK, result.Recommendation)
}

// decisionRequestInRange enforces the reference's LimitConfigRequest field
// constraints: observedRps >= 0, rejectedRate in [0,1], latencyP95 >= 0,
// errors5xx >= 0. Any violation is a SchemaError that routes to the
// malformed-body branch (spec.md §7, SPEC_FULL.md §10) rather than being
// scored by the policy as legitimate overload telemetry.
func decisionRequestInRange(req advisor.DecisionRequest) bool {
	if math.IsNaN(req.ObservedRps) || req.ObservedRps < 0 {
		return false
	}
	if req.RejectedRate != nil {
		v := *req.RejectedRate
		if math.IsNaN(v) || v < 0 || v > 1 {
			return false
		}
	}
	if req.LatencyP95 != nil {
		v := *req.LatencyP95
		if math.IsNaN(v) || v < 0 {
			return false
		}
	}
	if req.Errors5xx != nil && *req.Errors5xx < 0 {
		return false
	}
	return true
}

// decideMalformed implements spec.md §4.7's malformed-body recovery: it
// best-effort decodes the raw body as a loose JSON object, extracts
// whatever currentConfig/observedRps fields are salvageable, and always
// replies 200 per the advisor's "usable over error" guiding principle
// (spec.md §7).
func (h *Handlers) decideMalformed(w http.ResponseWriter, r *http.Request, body []byte) {
	var raw map[string]interface{}
	if body != nil {
		_ = json.Unmarshal(body, &raw)
	}
	rawFields, hasRawConfig := rawConfigFieldsFromMap(raw)
	observed, hasObserved := observedRpsFromMap(raw)

	result := h.engine.DecideMalformed(rawFields, hasRawConfig)
	h.metrics.RecordValidationPath(result, hasObserved, observed, h.algorithms)

	h.log.Warn().
		Str("request_id", requestIDFrom(r)).
		Bool("has_raw_config", hasRawConfig).
		Msg("malformed decision request recovered")

	h.writeJSON(w, http.StatusOK, result.Recommendation)
}

// MethodNotAllowed implements spec.md §4.7/§7's "any other path ... returns
// 422 with a structured error list" for a verb mismatch on a known route.
func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Errors: []ErrorDetail{{
			Code:    "method_not_allowed",
			Message: fmt.Sprintf("%s is not supported on %s", r.Method, r.URL.Path),
		}},
		RequestID: requestIDFrom(r),
		Timestamp: time.Now().UTC(),
	})
}

// NotFound handles unmatched routes.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusNotFound, ErrorResponse{
		Errors: []ErrorDetail{{
			Code:    "not_found",
			Message: "the requested endpoint does not exist",
		}},
		RequestID: requestIDFrom(r),
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("failed to encode response body")
	}
}
