package advisor

import (
	"sync"
	"time"
)

// State is the process-global EngineState of spec.md §3: one lock covers
// every read and write, the same posture as the teacher's
// metrics.Collector (internal/metrics/collector.go) guarding its maps with
// a single sync.RWMutex.
type State struct {
	mu sync.Mutex

	lastChangeAt           *time.Time
	lastAlgoSwitchAt       *time.Time
	lastGoodRecommendation *Recommendation
	lastGoodConfig         *IncomingConfig
	lastPredictedRps       *float64
}

// NewState returns an empty engine state.
func NewState() *State {
	return &State{}
}

// Snapshot is an immutable read of the fields the policy needs.
type Snapshot struct {
	LastChangeAt           *time.Time
	LastAlgoSwitchAt       *time.Time
	LastGoodRecommendation *Recommendation
	LastGoodConfig         *IncomingConfig
	LastPredictedRps       *float64
}

// Read returns a copied snapshot of the current state.
func (s *State) Read() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		LastChangeAt:           s.lastChangeAt,
		LastAlgoSwitchAt:       s.lastAlgoSwitchAt,
		LastGoodRecommendation: s.lastGoodRecommendation,
		LastGoodConfig:         s.lastGoodConfig,
		LastPredictedRps:       s.lastPredictedRps,
	}
}

// SetLastPredictedRps publishes the current-request forecast; it is set
// before the policy lock is taken, matching spec.md §4.6 step 3.
func (s *State) SetLastPredictedRps(rps float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPredictedRps = &rps
}

// WithLock runs fn under the single state lock, the way spec.md §4.4/§5
// requires the entire policy decision to execute atomically. fn receives a
// mutator bound to this State so it can commit transitions before unlocking.
func (s *State) WithLock(fn func(tx *Transaction)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &Transaction{s: s}
	fn(tx)
}

// Transaction exposes the mutations a policy decision may perform while the
// state lock is held.
type Transaction struct{ s *State }

// Read returns a snapshot of the current state, including any transitions
// already committed earlier in this transaction.
func (tx *Transaction) Read() Snapshot {
	return Snapshot{
		LastChangeAt:           tx.s.lastChangeAt,
		LastAlgoSwitchAt:       tx.s.lastAlgoSwitchAt,
		LastGoodRecommendation: tx.s.lastGoodRecommendation,
		LastGoodConfig:         tx.s.lastGoodConfig,
		LastPredictedRps:       tx.s.lastPredictedRps,
	}
}

// MarkChanged sets lastChangeAt, and lastAlgoSwitchAt if algoChanged.
func (tx *Transaction) MarkChanged(now time.Time, algoChanged bool) {
	tx.s.lastChangeAt = &now
	if algoChanged {
		tx.s.lastAlgoSwitchAt = &now
	}
}

// PersistGood records lastGoodConfig/lastGoodRecommendation; per spec.md
// §3's invariant, this must only be called from the policy-pass path, never
// from a validation-error branch.
func (tx *Transaction) PersistGood(cfg IncomingConfig, rec Recommendation) {
	cfgCopy := cfg.Clone()
	recCopy := rec.Clone()
	tx.s.lastGoodConfig = &cfgCopy
	tx.s.lastGoodRecommendation = &recCopy
}
