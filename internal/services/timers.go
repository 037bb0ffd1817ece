package services

import (
	"context"
	"sync"
	"time"
)

// SurvivalTimers drive the two local extrapolations: health decay at a slow
// cadence and reward accrual at a fast one. Both only send commands to the
// store.
type SurvivalTimers struct {
	store            *SnapshotStore
	decayInterval    time.Duration
	emissionInterval time.Duration
	now              func() time.Time
}

func NewSurvivalTimers(store *SnapshotStore, decayInterval, emissionInterval time.Duration) *SurvivalTimers {
	return &SurvivalTimers{
		store:            store,
		decayInterval:    decayInterval,
		emissionInterval: emissionInterval,
		now:              time.Now,
	}
}

// Run blocks until ctx is done.
func (t *SurvivalTimers) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		t.loop(ctx, t.decayInterval, func(now time.Time) { t.store.DecayTick(now) })
	}()
	go func() {
		defer wg.Done()
		t.loop(ctx, t.emissionInterval, func(now time.Time) { t.store.EmissionTick(now) })
	}()

	wg.Wait()
}

func (t *SurvivalTimers) loop(ctx context.Context, interval time.Duration, tick func(time.Time)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tick(t.now())
		case <-ctx.Done():
			return
		}
	}
}
