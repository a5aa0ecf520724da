package advisor

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// ForecastModel is the pluggable preferred-path predictor (spec.md §4.2,
// "external time-series model library"). A real implementation would fit a
// seasonality-disabled model over points and predict at horizon seconds past
// the last sample. No verified Go ecosystem package equivalent to the
// Python reference's Prophet dependency was available in the retrieved
// example corpus (see DESIGN.md); per spec.md §9's explicit allowance
// ("an implementer may keep both paths or ship only the fallback"), this
// build ships only the fallback path, behind this interface so a model can
// be wired in later without touching the policy or HTTP layers.
type ForecastModel interface {
	// Predict returns a horizon-seconds-ahead RPS prediction from points,
	// which are guaranteed strictly timestamp-increasing and non-empty.
	Predict(points []TimePoint, horizonSeconds int) (float64, error)
}

// Forecaster selects between the preferred model path and the linear
// fallback, never mutating its input (spec.md §4.2).
type Forecaster struct {
	model          ForecastModel
	minPoints      int
	horizonSeconds int
	fallbackPoints int
	breaker        *gobreaker.CircuitBreaker
	log            zerolog.Logger
}

// NewForecaster builds a Forecaster. model may be nil, meaning "preferred
// model library not available" (spec.md §4.2's availability check) — every
// call then uses the fallback directly without tripping the breaker.
func NewForecaster(model ForecastModel, cfg Config, logger zerolog.Logger) *Forecaster {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "forecast-model",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &Forecaster{
		model:          model,
		minPoints:      cfg.MinHistoryPoints,
		horizonSeconds: cfg.ForecastSeconds,
		fallbackPoints: cfg.FallbackWindowPoints,
		breaker:        breaker,
		log:            logger,
	}
}

// Forecast returns a non-negative predicted RPS, or (0, false) if points is
// empty. Any model-path failure — including the breaker being open — is
// logged and demoted to the fallback; it is never surfaced to the caller
// (spec.md §7, ForecasterError).
func (f *Forecaster) Forecast(points []TimePoint) (float64, bool) {
	if len(points) == 0 {
		return 0, false
	}

	if f.model != nil && len(points) >= f.minPoints {
		result, err := f.breaker.Execute(func() (interface{}, error) {
			predicted, modelErr := f.model.Predict(points, f.horizonSeconds)
			if modelErr != nil {
				return nil, &ForecasterError{Cause: modelErr}
			}
			return predicted, nil
		})
		if err == nil {
			predicted := result.(float64)
			if predicted < 0 {
				predicted = 0
			}
			return predicted, true
		}
		f.log.Warn().Err(err).Msg("forecast model failed, demoting to linear fallback")
	}

	return fallbackForecast(points, f.horizonSeconds, f.fallbackPoints), true
}

// fallbackForecast implements spec.md §4.2's linear-extrapolation fallback.
func fallbackForecast(points []TimePoint, horizonSeconds, fallbackWindowPoints int) float64 {
	k := len(points)
	if fallbackWindowPoints < k {
		k = fallbackWindowPoints
	}
	if k < 1 {
		k = 1
	}
	window := points[len(points)-k:]

	if len(window) == 1 {
		return window[0].RPS
	}

	start := window[0]
	end := window[len(window)-1]
	span := end.Timestamp.Sub(start.Timestamp).Seconds()
	if span <= 0 {
		return end.RPS
	}

	slope := (end.RPS - start.RPS) / span
	predicted := end.RPS + slope*float64(horizonSeconds)
	if predicted < 0 {
		predicted = 0
	}
	return predicted
}
