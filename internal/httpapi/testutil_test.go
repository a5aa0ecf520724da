package httpapi

import (
	"sync"

	"github.com/sawpanic/ai-ratelimit-advisor/internal/advisor"
)

// newTestMetrics returns a package-wide MetricsRegistry. prometheus.MustRegister
// panics on a duplicate collector, so every test in this package shares one
// registration instead of each constructing its own.
var (
	sharedMetricsOnce sync.Once
	sharedMetrics     *MetricsRegistry
)

func newTestMetrics() *MetricsRegistry {
	sharedMetricsOnce.Do(func() {
		sharedMetrics = NewMetricsRegistry([]advisor.Algorithm{advisor.AlgoFixed, advisor.AlgoSliding, advisor.AlgoToken})
	})
	return sharedMetrics
}
