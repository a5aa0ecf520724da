package advisor

import (
	"math"
	"time"
)

func clamp(value, minimum float64, maximum *float64) float64 {
	if maximum != nil && value > *maximum {
		value = *maximum
	}
	if value < minimum {
		value = minimum
	}
	return value
}

// currentRpsLimit implements spec.md §4.4 Step 1.
func currentRpsLimit(cfg IncomingConfig) float64 {
	switch cfg.Algorithm {
	case AlgoFixed, AlgoSliding:
		return *cfg.Limit / float64(*cfg.Window)
	default:
		return *cfg.FillRate
	}
}

// isOverloaded implements spec.md §4.4 Step 2.
func isOverloaded(req DecisionRequest, cfg Config) bool {
	if req.RejectedRate != nil && *req.RejectedRate >= cfg.RejectedRateThreshold {
		return true
	}
	if req.LatencyP95 != nil && *req.LatencyP95 >= cfg.LatencyP95Threshold {
		return true
	}
	if req.Errors5xx != nil && *req.Errors5xx >= cfg.Errors5xxThreshold {
		return true
	}
	return false
}

// Bursty implements spec.md §4.4 Step 5's burstiness check.
func Bursty(points []TimePoint, cfg Config) bool {
	minSamples := cfg.BurstinessPoints
	if minSamples < 2 {
		minSamples = 2
	}
	if len(points) < minSamples {
		return false
	}
	tail := points[len(points)-cfg.BurstinessPoints:]
	var sum, max float64
	for i, p := range tail {
		sum += p.RPS
		if i == 0 || p.RPS > max {
			max = p.RPS
		}
	}
	mean := sum / float64(len(tail))
	if mean <= 0 {
		return false
	}
	return max/mean >= cfg.BurstinessThreshold
}

// ConfigsEqual implements spec.md §4.5.
func ConfigsEqual(current IncomingConfig, recommended Recommendation) bool {
	if current.Algorithm != recommended.Algorithm {
		return false
	}
	switch current.Algorithm {
	case AlgoFixed, AlgoSliding:
		return int64(*current.Limit) == int64(*recommended.Limit) && *current.Window == *recommended.Window
	default:
		return *current.Capacity == *recommended.Capacity && math.Abs(*current.FillRate-*recommended.FillRate) < 1e-6
	}
}

// BuildResponse implements spec.md §4.4 Step 6.
func BuildResponse(algorithm Algorithm, targetRps float64, current IncomingConfig, predictedRps *float64, cfg Config) Recommendation {
	maxRps := cfg.maxRpsOrNil()
	validFor := cfg.ForecastSeconds

	if algorithm == AlgoFixed || algorithm == AlgoSliding {
		window := cfg.DefaultWindowSeconds
		if current.Window != nil {
			window = *current.Window
		}
		if window < 1 {
			window = 1
		}
		limit := math.Ceil(targetRps * float64(window))
		minLimit := math.Ceil(cfg.MinRps * float64(window))
		if limit < minLimit {
			limit = minLimit
		}
		if maxRps != nil {
			maxLimit := math.Floor(*maxRps * float64(window))
			if limit > maxLimit {
				limit = maxLimit
			}
		}
		return Recommendation{
			IncomingConfig: IncomingConfig{
				Algorithm: algorithm,
				Limit:     floatPtr(limit),
				Window:    intPtr(window),
			},
			PredictedRps: predictedRps,
			ValidFor:     intPtr(validFor),
		}
	}

	fillRate := clamp(targetRps, cfg.MinRps, maxRps)
	capacity := math.Ceil(fillRate * cfg.TokenCapacitySeconds)
	minCapacity := math.Ceil(cfg.MinRps * cfg.TokenCapacitySeconds)
	if capacity < minCapacity {
		capacity = minCapacity
	}
	if capacity < fillRate {
		capacity = math.Ceil(fillRate)
	}
	if cfg.MaxCapacity > 0 && int64(capacity) > cfg.MaxCapacity {
		capacity = float64(cfg.MaxCapacity)
	}
	rounded := math.Round(fillRate*1000) / 1000
	return Recommendation{
		IncomingConfig: IncomingConfig{
			Algorithm: algorithm,
			Capacity:  int64Ptr(int64(capacity)),
			FillRate:  floatPtr(rounded),
		},
		PredictedRps: predictedRps,
		ValidFor:     intPtr(validFor),
	}
}

// KeepCurrentResponse re-packages current as-is, the way the Python
// reference's keep_current_response echoes int(config.limit)/config.window
// or int(config.capacity)/float(config.fillRate) directly rather than
// recomputing them through BuildResponse's target-rps math. Used by the
// invalid-config and malformed-body branches (spec.md §4.7) where the
// Glossary's "keep-current response" must be a true identity: re-deriving
// capacity from fillRate via TokenCapacitySeconds would silently change a
// token config's capacity even though nothing about current RPS prompted a
// change.
func KeepCurrentResponse(current IncomingConfig, predictedRps *float64, cfg Config) Recommendation {
	validFor := cfg.ForecastSeconds
	switch current.Algorithm {
	case AlgoFixed, AlgoSliding:
		window := cfg.DefaultWindowSeconds
		if current.Window != nil {
			window = *current.Window
		}
		limit := 0.0
		if current.Limit != nil {
			limit = float64(int(*current.Limit))
		}
		return Recommendation{
			IncomingConfig: IncomingConfig{
				Algorithm: current.Algorithm,
				Limit:     floatPtr(limit),
				Window:    intPtr(window),
			},
			PredictedRps: predictedRps,
			ValidFor:     intPtr(validFor),
		}
	default:
		var capacity int64
		if current.Capacity != nil {
			capacity = *current.Capacity
		}
		var fillRate float64
		if current.FillRate != nil {
			fillRate = *current.FillRate
		}
		return Recommendation{
			IncomingConfig: IncomingConfig{
				Algorithm: current.Algorithm,
				Capacity:  int64Ptr(capacity),
				FillRate:  floatPtr(fillRate),
			},
			PredictedRps: predictedRps,
			ValidFor:     intPtr(validFor),
		}
	}
}

// Decide runs the full recommendation policy (spec.md §4.4) against tx's
// current snapshot, commits the resulting state transitions (lastChangeAt,
// lastAlgoSwitchAt, lastGoodConfig/lastGoodRecommendation) through tx, and
// returns the accepted recommendation. Callers must hold the state lock for
// the duration (spec.md §5) — Decide is only ever invoked from inside
// State.WithLock.
func Decide(tx *Transaction, req DecisionRequest, predicted float64, history []TimePoint, now time.Time, cfg Config) Recommendation {
	snapshot := tx.Read()
	current := req.CurrentConfig
	currentLimit := currentRpsLimit(current)
	maxRps := cfg.maxRpsOrNil()
	predicted = clamp(predicted, 0, maxRps)

	overload := isOverloaded(req, cfg)
	spike := predicted >= currentLimit*cfg.DdosMultiplier

	targetRps := currentLimit
	switch {
	case overload || spike:
		targetRps = currentLimit * cfg.DecreaseFactor
	case predicted > currentLimit*(1+cfg.IncreaseThreshold):
		targetRps = predicted * (1 + cfg.IncreaseHeadroom)
	case predicted < currentLimit*(1-cfg.DecreaseThreshold):
		targetRps = predicted
	}

	targetRps = clamp(targetRps, cfg.MinRps, maxRps)
	if math.IsNaN(targetRps) || math.IsInf(targetRps, 0) {
		targetRps = currentLimit
	}

	desiredAlgorithm := current.Algorithm
	switchAllowed := cfg.AllowAlgoSwitch && (snapshot.LastAlgoSwitchAt == nil ||
		now.Sub(*snapshot.LastAlgoSwitchAt).Seconds() >= float64(cfg.MinAlgoSwitchIntervalSeconds))
	if switchAllowed {
		if Bursty(history, cfg) {
			desiredAlgorithm = AlgoToken
		} else if desiredAlgorithm == AlgoToken {
			desiredAlgorithm = AlgoSliding
		}
	}

	roundedPredicted := math.Round(predicted*1000) / 1000
	recommendation := BuildResponse(desiredAlgorithm, targetRps, current, floatPtr(roundedPredicted), cfg)

	changeRatio := 0.0
	if currentLimit > 0 {
		changeRatio = math.Abs(targetRps-currentLimit) / currentLimit
	}
	recentChangeBlock := snapshot.LastChangeAt != nil &&
		now.Sub(*snapshot.LastChangeAt).Seconds() < float64(cfg.MinChangeIntervalSeconds)

	algoChanged := desiredAlgorithm != current.Algorithm

	var accepted Recommendation
	switch {
	case ConfigsEqual(current, recommendation):
		accepted = recommendation
	case desiredAlgorithm == current.Algorithm && changeRatio < cfg.MinRelativeChange:
		accepted = BuildResponse(current.Algorithm, currentLimit, current, floatPtr(roundedPredicted), cfg)
	case recentChangeBlock:
		accepted = BuildResponse(current.Algorithm, currentLimit, current, floatPtr(roundedPredicted), cfg)
	default:
		accepted = recommendation
		tx.MarkChanged(now, algoChanged)
	}

	// spec.md §3: lastGoodConfig/lastGoodRecommendation are only assigned
	// after the recommendation passes policy — never from a
	// validation-error path, but always from this path regardless of
	// whether hysteresis suppressed the change.
	tx.PersistGood(current, accepted)

	return accepted
}
