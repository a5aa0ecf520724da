package advisor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateReadIsEmptyInitially(t *testing.T) {
	s := NewState()
	snap := s.Read()
	assert.Nil(t, snap.LastChangeAt)
	assert.Nil(t, snap.LastAlgoSwitchAt)
	assert.Nil(t, snap.LastGoodConfig)
	assert.Nil(t, snap.LastGoodRecommendation)
	assert.Nil(t, snap.LastPredictedRps)
}

func TestStateSetLastPredictedRps(t *testing.T) {
	s := NewState()
	s.SetLastPredictedRps(42.5)
	snap := s.Read()
	require.NotNil(t, snap.LastPredictedRps)
	assert.Equal(t, 42.5, *snap.LastPredictedRps)
}

func TestTransactionMarkChangedSetsAlgoSwitchOnlyWhenRequested(t *testing.T) {
	s := NewState()
	now := time.Unix(1_000_000_000, 0)

	s.WithLock(func(tx *Transaction) {
		tx.MarkChanged(now, false)
	})
	snap := s.Read()
	require.NotNil(t, snap.LastChangeAt)
	assert.Equal(t, now, *snap.LastChangeAt)
	assert.Nil(t, snap.LastAlgoSwitchAt)

	later := now.Add(time.Minute)
	s.WithLock(func(tx *Transaction) {
		tx.MarkChanged(later, true)
	})
	snap = s.Read()
	assert.Equal(t, later, *snap.LastChangeAt)
	require.NotNil(t, snap.LastAlgoSwitchAt)
	assert.Equal(t, later, *snap.LastAlgoSwitchAt)
}

func TestTransactionPersistGoodClonesInputs(t *testing.T) {
	s := NewState()
	cfg := fixedConfig(100, 1)
	rec := Recommendation{IncomingConfig: fixedConfig(100, 1)}

	s.WithLock(func(tx *Transaction) {
		tx.PersistGood(cfg, rec)
	})

	*cfg.Limit = 999
	*rec.Limit = 999

	snap := s.Read()
	require.NotNil(t, snap.LastGoodConfig)
	require.NotNil(t, snap.LastGoodRecommendation)
	assert.Equal(t, 100.0, *snap.LastGoodConfig.Limit)
	assert.Equal(t, 100.0, *snap.LastGoodRecommendation.Limit)
}

func TestTransactionReadReflectsPriorCommitsWithinSameLock(t *testing.T) {
	s := NewState()
	now := time.Unix(1_000_000_000, 0)

	s.WithLock(func(tx *Transaction) {
		before := tx.Read()
		assert.Nil(t, before.LastChangeAt)
		tx.MarkChanged(now, false)
		after := tx.Read()
		require.NotNil(t, after.LastChangeAt)
		assert.Equal(t, now, *after.LastChangeAt)
	})
}

func TestStateWithLockSerializesConcurrentAccess(t *testing.T) {
	s := NewState()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.WithLock(func(tx *Transaction) {
				tx.MarkChanged(time.Unix(int64(i), 0), false)
			})
		}(i)
	}
	wg.Wait()

	snap := s.Read()
	require.NotNil(t, snap.LastChangeAt)
}
