package advisor

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineDecideHappyPath(t *testing.T) {
	cfg := Defaults()
	cfg.MinHistoryPoints = 1
	e := NewEngine(cfg, nil, zerolog.Nop())
	now := time.Unix(3_000_000_000, 0)

	req := DecisionRequest{ObservedRps: 100, CurrentConfig: fixedConfig(120, 1)}
	res := e.Decide(req, now, now)

	assert.Equal(t, ResultOK, res.Result)
	require.NotNil(t, res.Recommendation.Limit)
	assert.Equal(t, 1, e.HistoryLen())
	assert.True(t, res.HasPrediction)
}

func TestEngineDecideInvalidConfigTakesKeepCurrentBranch(t *testing.T) {
	cfg := Defaults()
	e := NewEngine(cfg, nil, zerolog.Nop())
	now := time.Unix(3_000_000_000, 0)

	// first establish a last-good config via a valid request
	good := DecisionRequest{ObservedRps: 50, CurrentConfig: fixedConfig(100, 1)}
	e.Decide(good, now, now)

	bad := DecisionRequest{ObservedRps: 60, CurrentConfig: IncomingConfig{Algorithm: AlgoFixed}} // missing limit/window
	res := e.Decide(bad, now.Add(time.Second), now.Add(time.Second))

	assert.Equal(t, ResultInvalidConfig, res.Result)
	require.NotNil(t, res.Recommendation.Limit)
	assert.Equal(t, AlgoFixed, res.Recommendation.Algorithm)
}

func TestEngineDecideInvalidConfigEchoesTokenCapacityWithoutRecomputing(t *testing.T) {
	cfg := Defaults()
	e := NewEngine(cfg, nil, zerolog.Nop())
	now := time.Unix(3_000_000_000, 0)

	// Establish a last-good token config whose capacity would NOT survive a
	// round trip through BuildResponse (capacity far exceeds
	// fillRate*TokenCapacitySeconds).
	good := DecisionRequest{ObservedRps: 5, CurrentConfig: tokenConfig(100, 5)}
	e.Decide(good, now, now)

	bad := DecisionRequest{ObservedRps: 5, CurrentConfig: IncomingConfig{Algorithm: AlgoToken}} // missing capacity/fillRate
	res := e.Decide(bad, now.Add(time.Second), now.Add(time.Second))

	assert.Equal(t, ResultInvalidConfig, res.Result)
	require.NotNil(t, res.Recommendation.Capacity)
	require.NotNil(t, res.Recommendation.FillRate)
	assert.Equal(t, int64(100), *res.Recommendation.Capacity)
	assert.Equal(t, 5.0, *res.Recommendation.FillRate)
}

func TestEngineDecideInvalidConfigWithNoPriorStateUsesFallback(t *testing.T) {
	cfg := Defaults()
	e := NewEngine(cfg, nil, zerolog.Nop())
	now := time.Unix(3_000_000_000, 0)

	bad := DecisionRequest{ObservedRps: 10, CurrentConfig: IncomingConfig{Algorithm: "bogus"}}
	res := e.Decide(bad, now, now)

	assert.Equal(t, ResultInvalidConfig, res.Result)
	require.NotNil(t, res.Recommendation.Limit)
	assert.Equal(t, AlgoFixed, res.Recommendation.Algorithm) // DefaultFallbackConfig is always fixed
}

func TestEngineDecideMalformedWithRawConfigCoerces(t *testing.T) {
	cfg := Defaults()
	e := NewEngine(cfg, nil, zerolog.Nop())
	now := time.Unix(3_000_000_000, 0)

	good := DecisionRequest{ObservedRps: 50, CurrentConfig: fixedConfig(100, 1)}
	e.Decide(good, now, now)

	algo := "fixed"
	limit := 75.0
	raw := RawConfigFields{Algorithm: &algo, Limit: &limit}
	res := e.DecideMalformed(raw, true)

	assert.Equal(t, ResultValidationError, res.Result)
	require.NotNil(t, res.Recommendation.Limit)
	assert.Equal(t, 75.0, *res.Recommendation.Limit)
}

func TestEngineDecideMalformedCoercedTokenEchoesCapacityWithoutRecomputing(t *testing.T) {
	cfg := Defaults()
	e := NewEngine(cfg, nil, zerolog.Nop())
	now := time.Unix(3_000_000_000, 0)

	good := DecisionRequest{ObservedRps: 5, CurrentConfig: tokenConfig(100, 5)}
	e.Decide(good, now, now)

	algo := "token"
	fillRate := 5.0
	raw := RawConfigFields{Algorithm: &algo, FillRate: &fillRate} // capacity salvaged from fallback
	res := e.DecideMalformed(raw, true)

	assert.Equal(t, ResultValidationError, res.Result)
	require.NotNil(t, res.Recommendation.Capacity)
	assert.Equal(t, int64(100), *res.Recommendation.Capacity)
}

func TestEngineDecideMalformedWithNoRawConfigFallsBackToLastGoodRecommendation(t *testing.T) {
	cfg := Defaults()
	e := NewEngine(cfg, nil, zerolog.Nop())
	now := time.Unix(3_000_000_000, 0)

	good := DecisionRequest{ObservedRps: 50, CurrentConfig: fixedConfig(100, 1)}
	goodResult := e.Decide(good, now, now)

	res := e.DecideMalformed(RawConfigFields{}, false)

	assert.Equal(t, ResultValidationError, res.Result)
	require.NotNil(t, res.Recommendation.Limit)
	assert.Equal(t, *goodResult.Recommendation.Limit, *res.Recommendation.Limit)
}

func TestEngineDecideMalformedWithNoPriorStateUsesDefaultFallback(t *testing.T) {
	cfg := Defaults()
	e := NewEngine(cfg, nil, zerolog.Nop())

	res := e.DecideMalformed(RawConfigFields{}, false)

	assert.Equal(t, ResultValidationError, res.Result)
	require.NotNil(t, res.Recommendation.Limit)
	assert.Equal(t, AlgoFixed, res.Recommendation.Algorithm)
	assert.False(t, res.HasPrediction)
}

func TestEngineConfigReturnsConstructorConfig(t *testing.T) {
	cfg := Defaults()
	cfg.MinRps = 5
	e := NewEngine(cfg, nil, zerolog.Nop())
	assert.Equal(t, 5.0, e.Config().MinRps)
}
