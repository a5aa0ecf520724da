package httpapi

import (
	"math"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sawpanic/ai-ratelimit-advisor/internal/advisor"
)

// MetricsRegistry holds every Prometheus series named in spec.md §6,
// following the teacher's MetricsRegistry/NewMetricsRegistry/MustRegister
// shape (internal/interfaces/http/metrics.go).
type MetricsRegistry struct {
	RequestsTotal    *prometheus.CounterVec
	ForecastDuration prometheus.Histogram

	LastObservedRps         prometheus.Gauge
	LastPredictedRps        prometheus.Gauge
	LastRecommendedRps      prometheus.Gauge
	LastRecommendedLimit    prometheus.Gauge
	LastRecommendedWindow   prometheus.Gauge
	LastRecommendedCapacity prometheus.Gauge
	LastRecommendedFillRate prometheus.Gauge
	LastValidForSeconds     prometheus.Gauge
	HistoryPoints           prometheus.Gauge
	LastAlgorithm           *prometheus.GaugeVec
}

// NewMetricsRegistry builds and registers every series. algorithms lists the
// label values ai_last_algorithm tracks (spec.md §6: exactly one is 1.0).
func NewMetricsRegistry(algorithms []advisor.Algorithm) *MetricsRegistry {
	m := &MetricsRegistry{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_limit_config_requests_total",
				Help: "Total decision requests by outcome",
			},
			[]string{"result"},
		),
		ForecastDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ai_forecast_duration_seconds",
				Help:    "Wall-clock duration of the forecast step",
				Buckets: prometheus.DefBuckets,
			},
		),
		LastObservedRps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ai_last_observed_rps", Help: "Most recently observed RPS",
		}),
		LastPredictedRps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ai_last_predicted_rps", Help: "Most recent forecast RPS",
		}),
		LastRecommendedRps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ai_last_recommended_rps", Help: "Most recently recommended target RPS",
		}),
		LastRecommendedLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ai_last_recommended_limit", Help: "Most recently recommended limit (fixed/sliding)",
		}),
		LastRecommendedWindow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ai_last_recommended_window_seconds", Help: "Most recently recommended window (fixed/sliding)",
		}),
		LastRecommendedCapacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ai_last_recommended_capacity", Help: "Most recently recommended capacity (token)",
		}),
		LastRecommendedFillRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ai_last_recommended_fill_rate", Help: "Most recently recommended fill rate (token)",
		}),
		LastValidForSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ai_last_valid_for_seconds", Help: "validFor of the most recent recommendation",
		}),
		HistoryPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ai_history_points", Help: "Current telemetry buffer length",
		}),
		LastAlgorithm: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ai_last_algorithm", Help: "1.0 for the currently recommended algorithm, 0.0 otherwise",
			},
			[]string{"algorithm"},
		),
	}

	prometheus.MustRegister(
		m.RequestsTotal,
		m.ForecastDuration,
		m.LastObservedRps,
		m.LastPredictedRps,
		m.LastRecommendedRps,
		m.LastRecommendedLimit,
		m.LastRecommendedWindow,
		m.LastRecommendedCapacity,
		m.LastRecommendedFillRate,
		m.LastValidForSeconds,
		m.HistoryPoints,
		m.LastAlgorithm,
	)

	for _, algo := range algorithms {
		m.LastAlgorithm.WithLabelValues(string(algo)).Set(0)
	}

	return m
}

// Handler exposes the standard Prometheus exposition format.
func (m *MetricsRegistry) Handler() http.Handler { return promhttp.Handler() }

// RecordDecision publishes every gauge for a decision that reached the engine
// (result ok or invalid_config — both know observedRps/history/forecast), and
// sets ai_last_algorithm so exactly one label value is 1.0 (spec.md §6).
func (m *MetricsRegistry) RecordDecision(observedRps float64, result advisor.DecisionResult, algorithms []advisor.Algorithm) {
	m.RequestsTotal.WithLabelValues(result.Result).Inc()
	m.ForecastDuration.Observe(result.ForecastDuration.Seconds())
	m.LastObservedRps.Set(observedRps)
	m.HistoryPoints.Set(float64(result.HistoryLen))

	if result.HasPrediction {
		m.LastPredictedRps.Set(result.PredictedRps)
	} else {
		m.LastPredictedRps.Set(math.NaN())
	}

	rec := result.Recommendation
	m.setAlgorithmGauges(rec, algorithms)

	if rec.ValidFor != nil {
		m.LastValidForSeconds.Set(float64(*rec.ValidFor))
	} else {
		m.LastValidForSeconds.Set(math.NaN())
	}

	// The reference's update_metrics sets the off-family gauges to 0.0 on a
	// path that actually reached the engine (ok/invalid_config); NaN is
	// reserved for the validation-error "datum unknown" case below
	// (spec.md §6/§9).
	switch rec.Algorithm {
	case advisor.AlgoFixed, advisor.AlgoSliding:
		m.setRpsLimitGauges(rec)
		m.LastRecommendedCapacity.Set(0)
		m.LastRecommendedFillRate.Set(0)
	case advisor.AlgoToken:
		m.LastRecommendedLimit.Set(0)
		m.LastRecommendedWindow.Set(0)
		if rec.Capacity != nil {
			m.LastRecommendedCapacity.Set(float64(*rec.Capacity))
		}
		if rec.FillRate != nil {
			m.LastRecommendedFillRate.Set(*rec.FillRate)
			m.LastRecommendedRps.Set(*rec.FillRate)
		}
	}
}

func (m *MetricsRegistry) setRpsLimitGauges(rec advisor.Recommendation) {
	if rec.Limit != nil {
		m.LastRecommendedLimit.Set(*rec.Limit)
	}
	if rec.Window != nil && *rec.Window > 0 && rec.Limit != nil {
		m.LastRecommendedWindow.Set(float64(*rec.Window))
		m.LastRecommendedRps.Set(*rec.Limit / float64(*rec.Window))
	}
}

func (m *MetricsRegistry) setAlgorithmGauges(rec advisor.Recommendation, algorithms []advisor.Algorithm) {
	for _, algo := range algorithms {
		if algo == rec.Algorithm {
			m.LastAlgorithm.WithLabelValues(string(algo)).Set(1)
		} else {
			m.LastAlgorithm.WithLabelValues(string(algo)).Set(0)
		}
	}
}

// RecordValidationPath publishes the result counter plus NaN for data that a
// validation-error (malformed-body) reply cannot supply; invalid_config
// decisions go through RecordDecision instead (spec.md §9: "on
// validation-error replies where observed or history length are unknown,
// publish NaN rather than stale values").
func (m *MetricsRegistry) RecordValidationPath(result advisor.DecisionResult, hasObserved bool, observedRps float64, algorithms []advisor.Algorithm) {
	m.RequestsTotal.WithLabelValues(result.Result).Inc()

	if hasObserved {
		m.LastObservedRps.Set(observedRps)
	} else {
		m.LastObservedRps.Set(math.NaN())
	}
	if result.HasPrediction {
		m.LastPredictedRps.Set(result.PredictedRps)
	} else {
		m.LastPredictedRps.Set(math.NaN())
	}
	m.HistoryPoints.Set(math.NaN())

	rec := result.Recommendation
	m.setAlgorithmGauges(rec, algorithms)
	if rec.ValidFor != nil {
		m.LastValidForSeconds.Set(float64(*rec.ValidFor))
	} else {
		m.LastValidForSeconds.Set(math.NaN())
	}

	switch rec.Algorithm {
	case advisor.AlgoFixed, advisor.AlgoSliding:
		m.setRpsLimitGauges(rec)
		m.LastRecommendedCapacity.Set(math.NaN())
		m.LastRecommendedFillRate.Set(math.NaN())
	case advisor.AlgoToken:
		m.LastRecommendedLimit.Set(math.NaN())
		m.LastRecommendedWindow.Set(math.NaN())
		if rec.Capacity != nil {
			m.LastRecommendedCapacity.Set(float64(*rec.Capacity))
		}
		if rec.FillRate != nil {
			m.LastRecommendedFillRate.Set(*rec.FillRate)
			m.LastRecommendedRps.Set(*rec.FillRate)
		}
	default:
		m.LastRecommendedLimit.Set(math.NaN())
		m.LastRecommendedWindow.Set(math.NaN())
		m.LastRecommendedCapacity.Set(math.NaN())
		m.LastRecommendedFillRate.Set(math.NaN())
	}
}
