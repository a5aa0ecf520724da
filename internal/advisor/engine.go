package advisor

import (
	"math"
	"time"

	"github.com/rs/zerolog"
)

// Engine wires the buffer, forecaster and state store into the per-request
// flow of spec.md §4.6: append, forecast outside the state lock, validate,
// then run the policy under the state lock. One Engine is shared by every
// request handler, matching the teacher's single long-lived
// internal/metrics.Collector instance.
type Engine struct {
	cfg        Config
	buffer     *Buffer
	forecaster *Forecaster
	state      *State
	log        zerolog.Logger
}

// NewEngine constructs an Engine from cfg. model may be nil (see Forecaster).
func NewEngine(cfg Config, model ForecastModel, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:        cfg,
		buffer:     NewBuffer(cfg.HistoryWindowSeconds, cfg.MaxHistoryPoints),
		forecaster: NewForecaster(model, cfg, logger),
		state:      NewState(),
		log:        logger,
	}
}

// DecisionResult is everything a handler needs to reply and update metrics.
type DecisionResult struct {
	Recommendation   Recommendation
	Result           string // "ok" | "invalid_config" | "validation_error"
	PredictedRps     float64
	HasPrediction    bool
	ForecastDuration time.Duration
	HistoryLen       int
}

const (
	ResultOK              = "ok"
	ResultInvalidConfig   = "invalid_config"
	ResultValidationError = "validation_error"
)

// Decide runs the happy/invalid-config paths of spec.md §4.6 for a
// successfully-parsed DecisionRequest: append the sample, forecast outside
// any lock, then either take the invalid-config branch (§4.7) or run the
// hysteresis policy under the state lock (§4.4-§4.5).
func (e *Engine) Decide(req DecisionRequest, ts, now time.Time) DecisionResult {
	e.buffer.Append(ts, req.ObservedRps)
	snapshot := e.buffer.Snapshot()

	start := time.Now()
	predicted, ok := e.forecaster.Forecast(snapshot)
	duration := time.Since(start)
	if !ok {
		predicted = req.ObservedRps
	}
	predicted = clamp(predicted, 0, e.cfg.maxRpsOrNil())
	predicted = math.Round(predicted*1000) / 1000
	e.state.SetLastPredictedRps(predicted)

	result := DecisionResult{
		PredictedRps:     predicted,
		HasPrediction:    true,
		ForecastDuration: duration,
		HistoryLen:       len(snapshot),
	}

	if configErr := ValidateCurrentConfig(req.CurrentConfig); configErr != nil {
		result.Recommendation = e.keepCurrent(predicted)
		result.Result = ResultInvalidConfig
		return result
	}

	e.state.WithLock(func(tx *Transaction) {
		result.Recommendation = Decide(tx, req, predicted, snapshot, now, e.cfg)
	})
	result.Result = ResultOK
	return result
}

// keepCurrent builds a response that carries the current engine config
// forward unchanged, sourced from lastGoodConfig if set, else a synthesized
// default (spec.md §4.7's invalid-config branch). It echoes the config
// as-is via KeepCurrentResponse rather than recomputing it through
// BuildResponse, so the reply is a true identity (spec.md §4.5 / Glossary).
func (e *Engine) keepCurrent(predicted float64) Recommendation {
	snapshot := e.state.Read()
	base := snapshot.LastGoodConfig
	var cfg IncomingConfig
	if base != nil {
		cfg = base.Clone()
	} else {
		cfg = DefaultFallbackConfig(e.cfg)
	}
	return KeepCurrentResponse(cfg, floatPtr(predicted), e.cfg)
}

// DecideMalformed implements spec.md §4.7's malformed-body recovery: the
// request body never parsed into a DecisionRequest, so no sample is
// appended and no fresh forecast runs — only state is consulted.
func (e *Engine) DecideMalformed(raw RawConfigFields, hasRawConfig bool) DecisionResult {
	snapshot := e.state.Read()
	predicted := 0.0
	hasPrediction := false
	if snapshot.LastPredictedRps != nil {
		predicted = *snapshot.LastPredictedRps
		hasPrediction = true
	}

	coerced := CoerceCurrentConfig(raw, hasRawConfig, snapshot.LastGoodConfig)
	if coerced != nil {
		cfg := coerced.Clone()
		return DecisionResult{
			Recommendation: KeepCurrentResponse(cfg, floatPtr(predicted), e.cfg),
			Result:         ResultValidationError,
			PredictedRps:   predicted,
			HasPrediction:  hasPrediction,
		}
	}

	if snapshot.LastGoodRecommendation != nil {
		return DecisionResult{
			Recommendation: snapshot.LastGoodRecommendation.Clone(),
			Result:         ResultValidationError,
			PredictedRps:   predicted,
			HasPrediction:  hasPrediction,
		}
	}

	fallback := DefaultFallbackConfig(e.cfg)
	return DecisionResult{
		Recommendation: KeepCurrentResponse(fallback, floatPtr(predicted), e.cfg),
		Result:         ResultValidationError,
		PredictedRps:   predicted,
		HasPrediction:  hasPrediction,
	}
}

// HistoryLen reports the current buffer length, for the history-points gauge.
func (e *Engine) HistoryLen() int { return e.buffer.Len() }

// Config returns the engine's tunables.
func (e *Engine) Config() Config { return e.cfg }
