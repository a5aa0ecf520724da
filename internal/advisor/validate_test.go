package advisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatP(v float64) *float64 { return &v }
func intP(v int) *int           { return &v }
func int64P(v int64) *int64     { return &v }

func TestValidateCurrentConfigFixedSliding(t *testing.T) {
	tests := []struct {
		name   string
		cfg    IncomingConfig
		reason ReasonCode
		ok     bool
	}{
		{"valid fixed", IncomingConfig{Algorithm: AlgoFixed, Limit: floatP(100), Window: intP(1)}, "", true},
		{"valid sliding", IncomingConfig{Algorithm: AlgoSliding, Limit: floatP(100), Window: intP(1)}, "", true},
		{"missing limit", IncomingConfig{Algorithm: AlgoFixed, Window: intP(1)}, ReasonMissingLimitWindow, false},
		{"missing window", IncomingConfig{Algorithm: AlgoFixed, Limit: floatP(100)}, ReasonMissingLimitWindow, false},
		{"zero limit", IncomingConfig{Algorithm: AlgoFixed, Limit: floatP(0), Window: intP(1)}, ReasonNonPositiveLimit, false},
		{"negative window", IncomingConfig{Algorithm: AlgoFixed, Limit: floatP(10), Window: intP(-1)}, ReasonNonPositiveLimit, false},
		{"unknown algorithm", IncomingConfig{Algorithm: "bogus"}, ReasonUnsupportedAlgorithm, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCurrentConfig(tt.cfg)
			if tt.ok {
				assert.Nil(t, err)
			} else {
				require.NotNil(t, err)
				assert.Equal(t, tt.reason, err.Reason)
			}
		})
	}
}

func TestValidateCurrentConfigToken(t *testing.T) {
	tests := []struct {
		name   string
		cfg    IncomingConfig
		reason ReasonCode
		ok     bool
	}{
		{"valid token", IncomingConfig{Algorithm: AlgoToken, Capacity: int64P(10), FillRate: floatP(1)}, "", true},
		{"missing capacity", IncomingConfig{Algorithm: AlgoToken, FillRate: floatP(1)}, ReasonMissingTokenFields, false},
		{"missing fillRate", IncomingConfig{Algorithm: AlgoToken, Capacity: int64P(10)}, ReasonMissingTokenFields, false},
		{"zero capacity", IncomingConfig{Algorithm: AlgoToken, Capacity: int64P(0), FillRate: floatP(1)}, ReasonNonPositiveToken, false},
		{"negative fillRate", IncomingConfig{Algorithm: AlgoToken, Capacity: int64P(10), FillRate: floatP(-1)}, ReasonNonPositiveToken, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCurrentConfig(tt.cfg)
			if tt.ok {
				assert.Nil(t, err)
			} else {
				require.NotNil(t, err)
				assert.Equal(t, tt.reason, err.Reason)
			}
		})
	}
}

func TestNormalizeAlgorithmAliases(t *testing.T) {
	assert.Equal(t, AlgoToken, normalizeAlgorithm("token_bucket"))
	assert.Equal(t, AlgoToken, normalizeAlgorithm("tokenbucket"))
	assert.Equal(t, AlgoToken, normalizeAlgorithm("TOKEN_BUCKET"))
	assert.Equal(t, AlgoFixed, normalizeAlgorithm(" fixed "))
	assert.Equal(t, Algorithm("bogus"), normalizeAlgorithm("bogus"))
}

func TestDefaultFallbackConfigAlwaysValidates(t *testing.T) {
	cfg := Defaults()
	fallback := DefaultFallbackConfig(cfg)
	assert.Nil(t, ValidateCurrentConfig(fallback))
	assert.Equal(t, AlgoFixed, fallback.Algorithm)
	assert.Equal(t, 60, *fallback.Window)
	assert.Equal(t, 60.0, *fallback.Limit) // MinRps=1, window=60 -> ceil(60)=60
}

func TestDefaultFallbackConfigWidensWindowWhenMaxRpsTooLow(t *testing.T) {
	cfg := Defaults()
	cfg.MinRps = 1
	cfg.MaxRps = 0.01 // forces widened window so floor(MaxRps*window) >= 1
	fallback := DefaultFallbackConfig(cfg)
	assert.Nil(t, ValidateCurrentConfig(fallback))
}

func TestCoerceCurrentConfigMergesOntoFallback(t *testing.T) {
	fallback := &IncomingConfig{Algorithm: AlgoFixed, Limit: floatP(100), Window: intP(60)}
	algo := "fixed"
	limit := 50.0
	raw := RawConfigFields{Algorithm: &algo, Limit: &limit}

	got := CoerceCurrentConfig(raw, true, fallback)
	require.NotNil(t, got)
	assert.Equal(t, 50.0, *got.Limit)
	assert.Equal(t, 60, *got.Window) // fallback's window survives the merge
}

func TestCoerceCurrentConfigReturnsFallbackWhenCandidateInvalid(t *testing.T) {
	fallback := &IncomingConfig{Algorithm: AlgoFixed, Limit: floatP(100), Window: intP(60)}
	algo := "fixed"
	badLimit := 0.0
	raw := RawConfigFields{Algorithm: &algo, Limit: &badLimit, Window: intP(60)}

	got := CoerceCurrentConfig(raw, true, fallback)
	assert.Same(t, fallback, got)
}

func TestCoerceCurrentConfigNoRawConfigReturnsFallback(t *testing.T) {
	fallback := &IncomingConfig{Algorithm: AlgoToken, Capacity: int64P(5), FillRate: floatP(1)}
	got := CoerceCurrentConfig(RawConfigFields{}, false, fallback)
	assert.Same(t, fallback, got)
}

func TestCoerceCurrentConfigNilFallbackAndNoAlgorithmReturnsNil(t *testing.T) {
	raw := RawConfigFields{Limit: floatP(10)}
	got := CoerceCurrentConfig(raw, true, nil)
	assert.Nil(t, got)
}
