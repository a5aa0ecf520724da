package advisor

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable named in spec.md §6. Field names track the
// environment variables 1:1 (ops compatibility); LoadFromEnv overlays
// process environment on top of Defaults(), the way the teacher's
// DefaultServerConfig layers HTTP_PORT over a literal default
// (internal/interfaces/http/server.go).
type Config struct {
	HistoryWindowSeconds         int
	MaxHistoryPoints             int
	MinHistoryPoints             int
	ForecastSeconds              int
	FallbackWindowPoints         int
	MinChangeIntervalSeconds     int
	MinRelativeChange            float64
	IncreaseThreshold            float64
	DecreaseThreshold            float64
	IncreaseHeadroom             float64
	DecreaseFactor               float64
	MinRps                       float64
	MaxRps                       float64
	RejectedRateThreshold        float64
	LatencyP95Threshold          float64
	Errors5xxThreshold           int64
	DdosMultiplier               float64
	DefaultWindowSeconds         int
	TokenCapacitySeconds         float64
	MaxCapacity                  int64
	AllowAlgoSwitch              bool
	MinAlgoSwitchIntervalSeconds int
	BurstinessThreshold          float64
	BurstinessPoints             int
	LogLevel                     string
}

// Defaults returns the defaults listed throughout spec.md §4.
func Defaults() Config {
	return Config{
		HistoryWindowSeconds:         3600,
		MaxHistoryPoints:             5000,
		MinHistoryPoints:             10,
		ForecastSeconds:               60,
		FallbackWindowPoints:          5,
		MinChangeIntervalSeconds:     30,
		MinRelativeChange:            0.1,
		IncreaseThreshold:            0.1,
		DecreaseThreshold:            0.2,
		IncreaseHeadroom:             0.05,
		DecreaseFactor:               0.7,
		MinRps:                       1,
		MaxRps:                       10000,
		RejectedRateThreshold:        0.1,
		LatencyP95Threshold:          1.0,
		Errors5xxThreshold:           1,
		DdosMultiplier:               2.0,
		DefaultWindowSeconds:         60,
		TokenCapacitySeconds:         2.0,
		MaxCapacity:                  0,
		AllowAlgoSwitch:              false,
		MinAlgoSwitchIntervalSeconds: 300,
		BurstinessThreshold:          1.5,
		BurstinessPoints:             10,
		LogLevel:                     "INFO",
	}
}

// yamlOverlay mirrors Config with yaml tags matching the environment
// variable names lowercased, the way the teacher's GuardsConfig
// (internal/config/guards.go) tags a YAML config struct. All fields are
// pointers so an absent key in the file leaves the prior value untouched.
type yamlOverlay struct {
	HistoryWindowSeconds         *int     `yaml:"history_window_seconds"`
	MaxHistoryPoints             *int     `yaml:"max_history_points"`
	MinHistoryPoints             *int     `yaml:"min_history_points"`
	ForecastSeconds              *int     `yaml:"forecast_seconds"`
	FallbackWindowPoints         *int     `yaml:"fallback_window_points"`
	MinChangeIntervalSeconds     *int     `yaml:"min_change_interval_seconds"`
	MinRelativeChange            *float64 `yaml:"min_relative_change"`
	IncreaseThreshold            *float64 `yaml:"increase_threshold"`
	DecreaseThreshold             *float64 `yaml:"decrease_threshold"`
	IncreaseHeadroom              *float64 `yaml:"increase_headroom"`
	DecreaseFactor                *float64 `yaml:"decrease_factor"`
	MinRps                        *float64 `yaml:"min_rps"`
	MaxRps                        *float64 `yaml:"max_rps"`
	RejectedRateThreshold         *float64 `yaml:"rejected_rate_threshold"`
	LatencyP95Threshold           *float64 `yaml:"latency_p95_threshold"`
	Errors5xxThreshold            *int64   `yaml:"errors_5xx_threshold"`
	DdosMultiplier                *float64 `yaml:"ddos_multiplier"`
	DefaultWindowSeconds          *int     `yaml:"default_window_seconds"`
	TokenCapacitySeconds          *float64 `yaml:"token_capacity_seconds"`
	MaxCapacity                   *int64   `yaml:"max_capacity"`
	AllowAlgoSwitch               *bool    `yaml:"allow_algo_switch"`
	MinAlgoSwitchIntervalSeconds  *int     `yaml:"min_algo_switch_interval_seconds"`
	BurstinessThreshold           *float64 `yaml:"burstiness_threshold"`
	BurstinessPoints              *int     `yaml:"burstiness_points"`
	LogLevel                      *string  `yaml:"log_level"`
}

// applyYAMLFile overlays a YAML config file's present keys onto cfg. A
// missing file path is a no-op; a present-but-unreadable/unparseable file is
// an error the caller should surface at startup (unlike env vars, an
// explicitly-named config file that can't be read indicates a deployment
// mistake worth failing fast on).
func applyYAMLFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var overlay yamlOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setInt64 := func(dst *int64, v *int64) {
		if v != nil {
			*dst = *v
		}
	}
	setFloat := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}

	setInt(&cfg.HistoryWindowSeconds, overlay.HistoryWindowSeconds)
	setInt(&cfg.MaxHistoryPoints, overlay.MaxHistoryPoints)
	setInt(&cfg.MinHistoryPoints, overlay.MinHistoryPoints)
	setInt(&cfg.ForecastSeconds, overlay.ForecastSeconds)
	setInt(&cfg.FallbackWindowPoints, overlay.FallbackWindowPoints)
	setInt(&cfg.MinChangeIntervalSeconds, overlay.MinChangeIntervalSeconds)
	setFloat(&cfg.MinRelativeChange, overlay.MinRelativeChange)
	setFloat(&cfg.IncreaseThreshold, overlay.IncreaseThreshold)
	setFloat(&cfg.DecreaseThreshold, overlay.DecreaseThreshold)
	setFloat(&cfg.IncreaseHeadroom, overlay.IncreaseHeadroom)
	setFloat(&cfg.DecreaseFactor, overlay.DecreaseFactor)
	setFloat(&cfg.MinRps, overlay.MinRps)
	setFloat(&cfg.MaxRps, overlay.MaxRps)
	setFloat(&cfg.RejectedRateThreshold, overlay.RejectedRateThreshold)
	setFloat(&cfg.LatencyP95Threshold, overlay.LatencyP95Threshold)
	setInt64(&cfg.Errors5xxThreshold, overlay.Errors5xxThreshold)
	setFloat(&cfg.DdosMultiplier, overlay.DdosMultiplier)
	setInt(&cfg.DefaultWindowSeconds, overlay.DefaultWindowSeconds)
	setFloat(&cfg.TokenCapacitySeconds, overlay.TokenCapacitySeconds)
	setInt64(&cfg.MaxCapacity, overlay.MaxCapacity)
	if overlay.AllowAlgoSwitch != nil {
		cfg.AllowAlgoSwitch = *overlay.AllowAlgoSwitch
	}
	setInt(&cfg.MinAlgoSwitchIntervalSeconds, overlay.MinAlgoSwitchIntervalSeconds)
	setFloat(&cfg.BurstinessThreshold, overlay.BurstinessThreshold)
	setInt(&cfg.BurstinessPoints, overlay.BurstinessPoints)
	if overlay.LogLevel != nil {
		cfg.LogLevel = *overlay.LogLevel
	}
	return nil
}

// LoadConfig assembles a Config the way the CLI's serve command does:
// Defaults(), then an optional YAML file overlay, then process environment —
// env vars always win, matching SPEC_FULL.md §6's layered-config posture.
func LoadConfig(yamlPath string) (Config, error) {
	cfg := Defaults()
	if err := applyYAMLFile(yamlPath, &cfg); err != nil {
		return cfg, err
	}
	return overlayEnv(cfg), nil
}

// LoadFromEnv overlays process environment variables named in spec.md §6 on
// top of Defaults(). Malformed values are ignored (the default is kept),
// matching the reference implementation's bare int()/float() env parsing
// which would simply raise at import time — here we prefer "usable over
// exact" per spec.md §7's guiding principle and keep the prior value.
func LoadFromEnv() Config {
	return overlayEnv(Defaults())
}

// overlayEnv applies every environment variable named in spec.md §6 on top
// of cfg, leaving fields untouched when the variable is absent or malformed.
func overlayEnv(cfg Config) Config {
	getInt := func(name string, dst *int) {
		if v, ok := os.LookupEnv(name); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	getInt64 := func(name string, dst *int64) {
		if v, ok := os.LookupEnv(name); ok {
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				*dst = n
			}
		}
	}
	getFloat := func(name string, dst *float64) {
		if v, ok := os.LookupEnv(name); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				*dst = f
			}
		}
	}
	getBool := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = strings.EqualFold(strings.TrimSpace(v), "true")
		}
	}
	getString := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	getInt("HISTORY_WINDOW_SECONDS", &cfg.HistoryWindowSeconds)
	getInt("MAX_HISTORY_POINTS", &cfg.MaxHistoryPoints)
	getInt("MIN_HISTORY_POINTS", &cfg.MinHistoryPoints)
	getInt("FORECAST_SECONDS", &cfg.ForecastSeconds)
	getInt("FALLBACK_WINDOW_POINTS", &cfg.FallbackWindowPoints)
	getInt("MIN_CHANGE_INTERVAL_SECONDS", &cfg.MinChangeIntervalSeconds)
	getFloat("MIN_RELATIVE_CHANGE", &cfg.MinRelativeChange)
	getFloat("INCREASE_THRESHOLD", &cfg.IncreaseThreshold)
	getFloat("DECREASE_THRESHOLD", &cfg.DecreaseThreshold)
	getFloat("INCREASE_HEADROOM", &cfg.IncreaseHeadroom)
	getFloat("DECREASE_FACTOR", &cfg.DecreaseFactor)
	getFloat("MIN_RPS", &cfg.MinRps)
	getFloat("MAX_RPS", &cfg.MaxRps)
	getFloat("REJECTED_RATE_THRESHOLD", &cfg.RejectedRateThreshold)
	getFloat("LATENCY_P95_THRESHOLD", &cfg.LatencyP95Threshold)
	getInt64("ERRORS_5XX_THRESHOLD", &cfg.Errors5xxThreshold)
	getFloat("DDOS_MULTIPLIER", &cfg.DdosMultiplier)
	getInt("DEFAULT_WINDOW_SECONDS", &cfg.DefaultWindowSeconds)
	getFloat("TOKEN_CAPACITY_SECONDS", &cfg.TokenCapacitySeconds)
	getInt64("MAX_CAPACITY", &cfg.MaxCapacity)
	getBool("ALLOW_ALGO_SWITCH", &cfg.AllowAlgoSwitch)
	getInt("MIN_ALGO_SWITCH_INTERVAL_SECONDS", &cfg.MinAlgoSwitchIntervalSeconds)
	getFloat("BURSTINESS_THRESHOLD", &cfg.BurstinessThreshold)
	getInt("BURSTINESS_POINTS", &cfg.BurstinessPoints)
	getString("LOG_LEVEL", &cfg.LogLevel)

	return cfg
}

// maxRpsOrNil returns nil when the upper clamp is disabled (MaxRps <= 0),
// matching spec.md §6's "MAX_RPS <= 0 disables the upper clamp".
func (c Config) maxRpsOrNil() *float64 {
	if c.MaxRps <= 0 {
		return nil
	}
	v := c.MaxRps
	return &v
}

// Validate sanity-checks the config; it never rejects a value spec.md
// doesn't itself constrain, it only guards against configuring the engine
// into an unrecoverable state (e.g. MinRps > MaxRps with MaxRps enabled).
func (c Config) Validate() error {
	if c.MinRps < 0 {
		return fmt.Errorf("MIN_RPS must be non-negative, got %v", c.MinRps)
	}
	if c.MaxRps > 0 && c.MinRps > c.MaxRps {
		return fmt.Errorf("MIN_RPS (%v) must not exceed MAX_RPS (%v) when MAX_RPS is enabled", c.MinRps, c.MaxRps)
	}
	if c.HistoryWindowSeconds <= 0 {
		return fmt.Errorf("HISTORY_WINDOW_SECONDS must be positive, got %v", c.HistoryWindowSeconds)
	}
	if c.MaxHistoryPoints < 2 {
		return fmt.Errorf("MAX_HISTORY_POINTS must be at least 2, got %v", c.MaxHistoryPoints)
	}
	return nil
}
